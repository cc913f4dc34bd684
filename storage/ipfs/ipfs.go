// Package ipfs adapts a local Kubo repository as a CAS backend by shelling
// out to the "ipfs" binary. No daemon is required; blocks go straight into
// the local repo.
//
// The adapter pins nothing and trusts nothing: every byte that crosses the
// process boundary is checked against the mesh CID contract
// (CIDv1 raw + sha2-256, see cidutil.CIDv1RawSHA256CID) before it is
// accepted.
package ipfs

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ipfs/go-cid"

	"bpimesh.org/mesh/cidutil"
	"bpimesh.org/mesh/storage"
)

type CAS struct {
	bin string
	env []string
}

type Options struct {
	// Bin is the ipfs binary to invoke. Empty means "ipfs" on PATH.
	Bin string
	// Env replaces the command environment when non-nil (e.g. to point
	// IPFS_PATH at a dedicated repo). Nil inherits the process environment.
	Env []string
}

func New(opts Options) *CAS {
	bin := opts.Bin
	if bin == "" {
		bin = "ipfs"
	}
	return &CAS{bin: bin, env: opts.Env}
}

func (c *CAS) Put(data []byte) (cid.Cid, error) {
	want, err := mustMeshCID(data)
	if err != nil {
		return cid.Undef, err
	}

	// Raw block with explicit multihash parameters so Kubo derives the same
	// CID the rest of the repo does.
	out, err := c.ipfs(data,
		"block", "put",
		"--quiet",
		"--format=raw",
		"--mhtype=sha2-256",
		"--mhlen=32",
		"--cid-version=1",
		"/dev/stdin",
	)
	if err != nil {
		return cid.Undef, err
	}

	got, err := cid.Decode(strings.TrimSpace(string(out)))
	if err != nil {
		return cid.Undef, fmt.Errorf("ipfs: unexpected block put output: %w", err)
	}
	if got.String() != want.String() {
		return cid.Undef, storage.ErrCIDMismatch
	}
	return want, nil
}

func (c *CAS) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}

	out, err := c.ipfs(nil, "block", "get", id.String())
	if err != nil {
		if looksAbsent(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}

	got, err := mustMeshCID(out)
	if err != nil {
		return nil, err
	}
	if got.String() != id.String() {
		return nil, storage.ErrCIDMismatch
	}
	return out, nil
}

func (c *CAS) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	_, err := c.ipfs(nil, "block", "stat", id.String())
	return err == nil
}

func mustMeshCID(data []byte) (cid.Cid, error) {
	id, err := cidutil.CIDv1RawSHA256CID(data)
	if err != nil {
		return cid.Undef, err
	}
	if !id.Defined() {
		return cid.Undef, storage.ErrInvalidCID
	}
	return id, nil
}

func (c *CAS) ipfs(stdin []byte, args ...string) ([]byte, error) {
	cmd := exec.Command(c.bin, args...)
	if c.env != nil {
		cmd.Env = c.env
	}
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	out, err := cmd.Output()
	if err == nil {
		return out, nil
	}

	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if msg := strings.TrimSpace(string(ee.Stderr)); msg != "" {
			return nil, fmt.Errorf("ipfs: %s", msg)
		}
	}
	return nil, fmt.Errorf("ipfs: %w", err)
}

func looksAbsent(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}
