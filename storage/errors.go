package storage

import "errors"

// Sentinel errors shared by all CAS backends. Backends wrap transport-level
// failures but surface these unchanged so callers can branch with errors.Is.
var (
	ErrNotFound    = errors.New("storage: not found")
	ErrInvalidCID  = errors.New("storage: invalid cid")
	ErrCIDMismatch = errors.New("storage: cid mismatch")
	ErrImmutable   = errors.New("storage: immutable object mismatch")
)

// IsNotFound reports whether err indicates an absent object.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
