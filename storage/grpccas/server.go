package grpccas

import (
	"context"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"bpimesh.org/mesh/cidutil"
	"bpimesh.org/mesh/storage"
)

// Server exposes a storage.CAS over the CAS gRPC service. The CID contract
// is enforced on this side as well, so a misbehaving backing store cannot
// hand out bytes under a wrong CID.
type Server struct {
	UnimplementedCASServer
	CAS storage.CAS
}

func (s *Server) backing() (storage.CAS, error) {
	if s == nil || s.CAS == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing CAS")
	}
	return s.CAS, nil
}

func (s *Server) Put(_ context.Context, in *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	cas, err := s.backing()
	if err != nil {
		return nil, err
	}

	data := in.GetValue()
	want, err := cidutil.CIDv1RawSHA256CID(data)
	if err != nil {
		return nil, status.Error(codes.Internal, "cid computation failed")
	}
	id, err := cas.Put(data)
	if err != nil {
		return nil, toStatus(err)
	}
	if id.String() != want.String() {
		return nil, status.Error(codes.DataLoss, storage.ErrCIDMismatch.Error())
	}
	return wrapperspb.String(id.String()), nil
}

func (s *Server) Get(_ context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	cas, err := s.backing()
	if err != nil {
		return nil, err
	}

	id, err := cid.Decode(in.GetValue())
	if err != nil || !id.Defined() {
		return nil, status.Error(codes.InvalidArgument, storage.ErrInvalidCID.Error())
	}
	data, err := cas.Get(id)
	if err != nil {
		return nil, toStatus(err)
	}
	got, err := cidutil.CIDv1RawSHA256CID(data)
	if err != nil {
		return nil, status.Error(codes.Internal, "cid computation failed")
	}
	if got.String() != id.String() {
		return nil, status.Error(codes.DataLoss, storage.ErrCIDMismatch.Error())
	}
	return wrapperspb.Bytes(data), nil
}

func (s *Server) Has(_ context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	cas, err := s.backing()
	if err != nil {
		return nil, err
	}

	id, err := cid.Decode(in.GetValue())
	if err != nil || !id.Defined() {
		return nil, status.Error(codes.InvalidArgument, storage.ErrInvalidCID.Error())
	}
	return wrapperspb.Bool(cas.Has(id)), nil
}
