package header

import "errors"

// Kind is a stable category for programmatic error handling.
type Kind string

const (
	KindVersion    Kind = "Version"
	KindMode       Kind = "Mode"
	KindGenesis    Kind = "Genesis"
	KindContinuity Kind = "Continuity"
)

// Error is the package's structured error type.
//
// Code is a stable identifier (e.g., MESH-HDR-011) naming the violated rule.
// Continuity errors carry the heights of the two headers involved.
type Error struct {
	Kind       Kind
	Code       string
	Message    string
	PrevHeight uint64
	NextHeight uint64
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
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
