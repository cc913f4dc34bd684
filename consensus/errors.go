package consensus

import "errors"

// Kind is a stable category for programmatic error handling.
type Kind string

const (
	KindBitmap    Kind = "Bitmap"
	KindContext   Kind = "Context"
	KindSigner    Kind = "Signer"
	KindSignature Kind = "Signature"
	KindThreshold Kind = "Threshold"
	KindEvidence  Kind = "Evidence"
)

// Error is the package's structured error type.
//
// Code is a stable identifier (e.g., MESH-CNS-013) naming the violated rule.
// Threshold errors carry the collected and required counts.
type Error struct {
	Kind      Kind
	Code      string
	Message   string
	Collected int
	Required  int
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

func newError(kind Kind, code, msg string) error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// IsKind reports whether err is (or wraps) a *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// Code returns the stable code for a structured error, or "" if unknown.
func Code(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Code
}
