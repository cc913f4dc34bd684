package storage

import (
	"fmt"

	"github.com/ipfs/go-cid"

	"bpimesh.org/mesh/cidutil"
)

// NamedCAS pairs a store with a stable backend identifier, so multi-backend
// writes can report which backend returned which CID.
type NamedCAS struct {
	Name string
	CAS  CAS
}

// ReplicatingCAS fans writes out to every backend and requires them all to
// agree on the CID. Reads walk the backends in order and return the first hit.
type ReplicatingCAS struct {
	Backends []NamedCAS
}

var _ CAS = ReplicatingCAS{}

// PutAll stores bytes on every backend and returns the canonical CID along
// with the per-backend CID map.
//
// The canonical CID is computed locally before any backend is contacted. A
// backend that reports a different CID stored something other than what was
// sent; PutAll stops there and returns ErrCIDMismatch with the partial map.
func (r ReplicatingCAS) PutAll(bytes []byte) (cid.Cid, map[string]cid.Cid, error) {
	want, err := cidutil.CIDv1RawSHA256CID(bytes)
	if err != nil {
		return cid.Undef, nil, err
	}
	if !want.Defined() {
		return cid.Undef, nil, ErrInvalidCID
	}
	if len(r.Backends) == 0 {
		return cid.Undef, nil, fmt.Errorf("storage: ReplicatingCAS has no backends")
	}

	got := make(map[string]cid.Cid, len(r.Backends))
	for _, b := range r.Backends {
		if b.CAS == nil {
			return cid.Undef, nil, fmt.Errorf("storage: nil CAS for backend %q", b.Name)
		}
		id, err := b.CAS.Put(bytes)
		if err != nil {
			return cid.Undef, nil, err
		}
		got[b.Name] = id
		if id != want {
			return cid.Undef, got, ErrCIDMismatch
		}
	}
	return want, got, nil
}

func (r ReplicatingCAS) Put(bytes []byte) (cid.Cid, error) {
	id, _, err := r.PutAll(bytes)
	return id, err
}

func (r ReplicatingCAS) Get(id cid.Cid) ([]byte, error) {
	for _, b := range r.Backends {
		if b.CAS == nil {
			continue
		}
		out, err := b.CAS.Get(id)
		switch {
		case err == nil:
			return out, nil
		case IsNotFound(err):
			// fall through to the next backend
		default:
			return nil, err
		}
	}
	return nil, ErrNotFound
}

func (r ReplicatingCAS) Has(id cid.Cid) bool {
	for _, b := range r.Backends {
		if b.CAS != nil && b.CAS.Has(id) {
			return true
		}
	}
	return false
}
