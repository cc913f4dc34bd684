// Package testkit holds the conformance suite every CAS backend must pass.
package testkit

import (
	"bytes"
	"testing"

	"github.com/ipfs/go-cid"

	"bpimesh.org/mesh/cidutil"
	"bpimesh.org/mesh/storage"
)

// NewCAS returns a fresh, empty store. Each call must be isolated from every
// other call so subtests cannot see each other's objects.
type NewCAS func(t *testing.T) storage.CAS

// RunCASConformance exercises the storage.CAS contract against newCAS.
func RunCASConformance(t *testing.T, newCAS NewCAS) {
	t.Helper()

	t.Run("RoundTrip", func(t *testing.T) {
		cas := newCAS(t)
		payload := []byte("hello, mesh storage")

		id, err := cas.Put(payload)
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		want, err := cidutil.CIDv1RawSHA256CID(payload)
		if err != nil {
			t.Fatalf("CIDv1RawSHA256CID failed: %v", err)
		}
		if id != want {
			t.Fatalf("Put CID: got %s want %s", id, want)
		}

		got, err := cas.Get(id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("Get bytes: got %q want %q", got, payload)
		}
	})

	t.Run("IdempotentPut", func(t *testing.T) {
		cas := newCAS(t)
		payload := []byte("same bytes")

		first, err := cas.Put(payload)
		if err != nil {
			t.Fatalf("first Put failed: %v", err)
		}
		second, err := cas.Put(payload)
		if err != nil {
			t.Fatalf("second Put failed: %v", err)
		}
		if first != second {
			t.Fatalf("Put not idempotent: %s vs %s", first, second)
		}
	})

	t.Run("AbsentObject", func(t *testing.T) {
		cas := newCAS(t)
		payload := []byte("missing")
		id, err := cidutil.CIDv1RawSHA256CID(payload)
		if err != nil {
			t.Fatalf("CIDv1RawSHA256CID failed: %v", err)
		}

		if cas.Has(id) {
			t.Fatal("Has true before Put")
		}
		if _, err := cas.Get(id); !storage.IsNotFound(err) {
			t.Fatalf("Get of absent object: got %v want ErrNotFound", err)
		}

		if _, err := cas.Put(payload); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if !cas.Has(id) {
			t.Fatal("Has false after Put")
		}
	})

	t.Run("UndefCID", func(t *testing.T) {
		cas := newCAS(t)
		if cas.Has(cid.Undef) {
			t.Fatal("Has true for undefined CID")
		}
		if _, err := cas.Get(cid.Undef); err == nil {
			t.Fatal("Get of undefined CID succeeded")
		}
	})
}
