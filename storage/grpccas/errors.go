package grpccas

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"bpimesh.org/mesh/storage"
)

// The storage sentinels cross the wire as gRPC status codes:
// NotFound for absent objects, InvalidArgument for malformed or undefined
// CIDs, DataLoss for bytes that disagree with their CID.
var sentinelCodes = []struct {
	code codes.Code
	err  error
}{
	{codes.NotFound, storage.ErrNotFound},
	{codes.InvalidArgument, storage.ErrInvalidCID},
	{codes.DataLoss, storage.ErrCIDMismatch},
}

// toStatus encodes a storage error for the wire (server side).
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	for _, m := range sentinelCodes {
		if err == m.err {
			return status.Error(m.code, err.Error())
		}
	}
	return status.Error(codes.Internal, err.Error())
}

// fromStatus decodes a wire error back to a storage sentinel (client side).
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	for _, m := range sentinelCodes {
		if st.Code() == m.code {
			return m.err
		}
	}
	// A proxy may strip the code; match on the message as a fallback.
	for _, m := range sentinelCodes {
		if st.Message() == m.err.Error() {
			return m.err
		}
	}
	return err
}
