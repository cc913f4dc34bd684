package blsagg

import "errors"

// Kind is a stable category for programmatic error handling.
//
// Callers should branch on Kind/Code rather than matching error strings.
type Kind string

const (
	KindLength    Kind = "Length"
	KindVerify    Kind = "Verify"
	KindAggregate Kind = "Aggregate"
)

// Error is the package's structured error type.
//
// Code is a stable identifier (e.g., MESH-BLS-003) naming the violated
// constraint. Message is intended for humans; do not match on it.
//
// For length errors, Expected and Actual carry the byte counts.
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
