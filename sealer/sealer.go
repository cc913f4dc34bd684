// Package sealer orchestrates block sealing: it turns a window of notarized
// logblocks into a signed proof-of-effort bundle, extends the header chain,
// and collects a 2f+1 commit from the supplied validator keys. Inputs and
// outputs can live in content-addressed storage; the sealer hydrates CID
// references and stores the sealed artifacts back when a CAS is configured.
package sealer

import (
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/ipfs/go-cid"

	"bpimesh.org/mesh/blsagg"
	"bpimesh.org/mesh/cidutil"
	"bpimesh.org/mesh/consensus"
	"bpimesh.org/mesh/enc"
	"bpimesh.org/mesh/header"
	"bpimesh.org/mesh/poe"
	"bpimesh.org/mesh/storage"
	"bpimesh.org/mesh/valset"
)

// ArtifactRef refers to an artifact's bytes directly or by CID.
// Exactly one of Bytes or CID MUST be set.
type ArtifactRef struct {
	CID   string
	Bytes []byte
}

// Request describes one sealing run.
//
// Signers are aligned with the validator set's indices in ascending order:
// Signers[rank] signs as the validator at that rank. A zero key means the
// validator abstains. Content roots beyond the receipts root are optional
// and default to zero.
type Request struct {
	App           string
	LogBlocks     []ArtifactRef
	BillingWindow string
	PrevHeader    *header.Header
	Validators    *valset.Set
	Signers       []blsagg.PrivateKey
	Round         uint64

	PohRoot  enc.Hash
	DaRoot   enc.Hash
	XcmpRoot enc.Hash
}

// Options configures a sealing run.
type Options struct {
	// CAS hydrates CID references and receives the sealed artifacts.
	// Required when any ArtifactRef carries a CID.
	CAS storage.CAS
	// Calculator scores the aggregated usage. Nil means the default
	// calculator.
	Calculator *poe.Calculator
	// Mode is passed through to commit verification.
	Mode consensus.VerifyMode
}

// Sealed is the result of a sealing run. CIDs are set only when a CAS was
// configured.
type Sealed struct {
	Header       *header.Header
	HeaderCID    string
	Commit       *consensus.Commit
	CommitCID    string
	Bundle       *poe.Bundle
	BundleCID    string
	Verification consensus.Verification
}

// Seal runs one sealing pass over req.
func Seal(req Request, opts Options) (*Sealed, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	calc := opts.Calculator
	if calc == nil {
		calc = poe.NewDefaultCalculator()
	}

	logblocks, err := hydrateLogBlocks(req.LogBlocks, opts.CAS)
	if err != nil {
		return nil, err
	}

	bundle, err := calc.CreateBundle(req.App, logblocks, req.BillingWindow)
	if err != nil {
		return nil, newError(ErrInvalidRequest, "create bundle: %v", err)
	}

	receiptsRoot, err := receiptsRootHash(logblocks)
	if err != nil {
		return nil, err
	}

	setHash, err := req.Validators.SetHash()
	if err != nil {
		return nil, newError(ErrInvalidRequest, "validator set hash: %v", err)
	}

	next := nextHeader(req, receiptsRoot, setHash)
	if err := header.ValidateChain(req.PrevHeader, next); err != nil {
		return nil, newError(ErrInternal, "sealed header breaks chain: %v", err)
	}

	commit, err := collectCommit(req, next)
	if err != nil {
		return nil, err
	}

	verification := consensus.VerifyCommit(commit, req.Validators, opts.Mode)
	if opts.Mode == consensus.Strict && !verification.IsValid {
		return nil, newError(ErrInternal, "sealed commit failed verification: %s", strings.Join(verification.Errors, "; "))
	}

	sealed := &Sealed{
		Header:       next,
		Commit:       commit,
		Bundle:       bundle,
		Verification: verification,
	}
	if opts.CAS != nil {
		if err := storeArtifacts(sealed, opts.CAS); err != nil {
			return nil, err
		}
	}
	return sealed, nil
}

func validateRequest(req Request) error {
	if req.App == "" {
		return newError(ErrInvalidRequest, "app is required")
	}
	if len(req.LogBlocks) == 0 {
		return newError(ErrInvalidRequest, "at least one logblock is required")
	}
	if req.PrevHeader == nil {
		return newError(ErrInvalidRequest, "prev header is required")
	}
	if req.Validators == nil || req.Validators.Len() == 0 {
		return newError(ErrInvalidRequest, "validator set is required")
	}
	if len(req.Signers) == 0 {
		return newError(ErrInvalidRequest, "at least one signer is required")
	}
	if len(req.Signers) > req.Validators.Len() {
		return newError(ErrInvalidRequest, "more signers than validators")
	}
	return nil
}

// hydrate resolves an ArtifactRef to bytes, reading through the CAS and
// checking the read bytes against the requested CID.
func hydrate(ref ArtifactRef, cas storage.CAS) ([]byte, error) {
	if len(ref.Bytes) > 0 && ref.CID != "" {
		return nil, newError(ErrInvalidRequest, "ambiguous artifact ref: both bytes and CID set")
	}
	if len(ref.Bytes) > 0 {
		return ref.Bytes, nil
	}
	if ref.CID == "" {
		return nil, newError(ErrInvalidRequest, "empty artifact ref")
	}
	if cas == nil {
		return nil, newError(ErrMissingCAS, "artifact ref %s needs a CAS", ref.CID)
	}
	id, err := cid.Decode(ref.CID)
	if err != nil {
		return nil, newError(ErrInvalidCID, "artifact ref %s: %v", ref.CID, err)
	}
	b, err := cas.Get(id)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, newError(ErrNotFound, "artifact %s not in CAS", ref.CID)
		}
		return nil, newError(ErrInternal, "cas get %s: %v", ref.CID, err)
	}
	computed, err := cidutil.CIDv1RawSHA256CID(b)
	if err != nil {
		return nil, newError(ErrInternal, "cid recompute: %v", err)
	}
	if computed != id {
		return nil, newError(ErrCIDMismatch, "artifact %s bytes hash to %s", ref.CID, computed)
	}
	return b, nil
}

func hydrateLogBlocks(refs []ArtifactRef, cas storage.CAS) ([]poe.LogBlock, error) {
	out := make([]poe.LogBlock, len(refs))
	for i, ref := range refs {
		b, err := hydrate(ref, cas)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(b, &out[i]); err != nil {
			return nil, newError(ErrInvalidRequest, "logblock %d: invalid JSON: %v", i, err)
		}
	}
	return out, nil
}

// receiptsRootHash folds the logblock merkle roots into the header's
// receipts root.
func receiptsRootHash(logblocks []poe.LogBlock) (enc.Hash, error) {
	roots := make([][]byte, len(logblocks))
	for i, lb := range logblocks {
		_, hexRoot, ok := strings.Cut(lb.MerkleRoot, ":")
		if !ok {
			return enc.Hash{}, newError(ErrInvalidRequest, "logblock %d: malformed merkle root %q", i, lb.MerkleRoot)
		}
		b, err := hex.DecodeString(hexRoot)
		if err != nil {
			return enc.Hash{}, newError(ErrInvalidRequest, "logblock %d: merkle root hex: %v", i, err)
		}
		roots[i] = b
	}
	_, rootHex, _ := strings.Cut(poe.ReceiptsRoot(roots), ":")
	b, err := hex.DecodeString(rootHex)
	if err != nil || len(b) != 32 {
		return enc.Hash{}, newError(ErrInternal, "receipts root: %v", err)
	}
	var h enc.Hash
	copy(h[:], b)
	return h, nil
}

func nextHeader(req Request, receiptsRoot, setHash enc.Hash) *header.Header {
	ts := header.Canonicalize(time.Now())
	if !ts.After(req.PrevHeader.Timestamp) {
		ts = req.PrevHeader.Timestamp.Add(time.Millisecond)
	}
	return &header.Header{
		Version:          header.Version,
		Height:           req.PrevHeader.Height + 1,
		PrevHash:         enc.Hash(req.PrevHeader.Hash()),
		PohRoot:          req.PohRoot,
		ReceiptsRoot:     receiptsRoot,
		DaRoot:           req.DaRoot,
		XcmpRoot:         req.XcmpRoot,
		ValidatorSetHash: setHash,
		Mode:             header.ModeIBFT,
		Round:            req.Round,
		Timestamp:        ts,
	}
}

func collectCommit(req Request, next *header.Header) (*consensus.Commit, error) {
	hh := next.Hash()
	agg := consensus.NewAggregator(hh, req.Round, next.Height, req.Validators)
	indices := req.Validators.Indices()
	for rank, sk := range req.Signers {
		if sk == (blsagg.PrivateKey{}) {
			continue
		}
		idx := indices[rank]
		sig := consensus.SignCommit(sk, hh, req.Round, next.Height)
		if err := agg.AddSignature(idx, hh, req.Round, sig); err != nil {
			return nil, newError(ErrInvalidRequest, "signer for validator %d: %v", idx, err)
		}
	}
	commit, err := agg.Aggregate()
	if err != nil {
		return nil, newError(ErrBelowThreshold, "aggregate commit: %v", err)
	}
	return commit, nil
}

func storeArtifacts(s *Sealed, cas storage.CAS) error {
	bundleBytes, err := s.Bundle.CanonicalBytes()
	if err != nil {
		return newError(ErrInternal, "encode bundle: %v", err)
	}
	commitBytes, err := json.Marshal(s.Commit)
	if err != nil {
		return newError(ErrInternal, "encode commit: %v", err)
	}
	for _, put := range []struct {
		bytes []byte
		dst   *string
	}{
		{bundleBytes, &s.BundleCID},
		{s.Header.CanonicalBytes(), &s.HeaderCID},
		{commitBytes, &s.CommitCID},
	} {
		id, err := cas.Put(put.bytes)
		if err != nil {
			return newError(ErrInternal, "cas put: %v", err)
		}
		*put.dst = id.String()
	}
	return nil
}
