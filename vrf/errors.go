package vrf

import "errors"

// Kind is a stable category for programmatic error handling.
type Kind string

const (
	KindLength Kind = "Length"
	KindVerify Kind = "Verify"
	KindInput  Kind = "Input"
)

// Error is the package's structured error type.
//
// Code is a stable identifier (e.g., MESH-VRF-002). For length errors,
// Expected and Actual carry the byte counts.
type Error struct {
	Kind     Kind
	Code     string
	Message  string
	Expected int
	Actual   int
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

func lengthError(code, what string, expected, actual int) error {
	return &Error{
		Kind:     KindLength,
		Code:     code,
		Message:  "invalid " + what + " length",
		Expected: expected,
		Actual:   actual,
	}
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
