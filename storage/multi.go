package storage

import (
	"errors"

	"github.com/ipfs/go-cid"
)

// MultiCAS reads from a fixed sequence of stores and writes to the first.
//
// The adapter order is significant: Get and Has walk Adapters front to back
// and stop at the first hit, so callers decide the retrieval preference by
// how they build the slice. There is no map involved, which keeps hydration
// order reproducible across runs.
type MultiCAS struct {
	Adapters []CAS
}

var _ CAS = MultiCAS{}

func (m MultiCAS) Put(bytes []byte) (cid.Cid, error) {
	if len(m.Adapters) == 0 {
		return cid.Undef, errors.New("storage: MultiCAS has no adapters")
	}
	return m.Adapters[0].Put(bytes)
}

func (m MultiCAS) Get(id cid.Cid) ([]byte, error) {
	for _, cas := range m.Adapters {
		b, err := cas.Get(id)
		switch {
		case err == nil:
			return b, nil
		case IsNotFound(err):
			// try the next adapter
		default:
			return nil, err
		}
	}
	return nil, ErrNotFound
}

func (m MultiCAS) Has(id cid.Cid) bool {
	for _, cas := range m.Adapters {
		if cas.Has(id) {
			return true
		}
	}
	return false
}
