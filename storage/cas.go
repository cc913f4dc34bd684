// Package storage defines the content-addressed store contract shared by the
// mesh artifact pipeline (headers, commits, proof-of-effort bundles,
// checkpoints) and its pluggable backends.
package storage

import "github.com/ipfs/go-cid"

// CAS stores immutable byte objects keyed by their CID.
//
// Implementations must satisfy:
//   - Put is idempotent: storing the same bytes twice yields the same CID.
//   - an object, once stored, never changes; a write that would alter an
//     existing object fails with ErrImmutable.
//   - the CID returned by Put is computed from the bytes themselves, so the
//     caller controls canonicalization.
//   - Get returns ErrNotFound for an absent CID.
type CAS interface {
	Put(bytes []byte) (cid.Cid, error)
	Get(id cid.Cid) ([]byte, error)
	Has(id cid.Cid) bool
}
