// Package consensus aggregates BFT commit signatures over block headers.
//
// A commit finalizes a header once 2f+1 of n validators have signed the
// commit message for (header hash, round, height), where f = (n-1)/3 is the
// Byzantine fault bound.
package consensus

import (
	"sort"

	"bpimesh.org/mesh/blsagg"
	"bpimesh.org/mesh/enc"
	"bpimesh.org/mesh/header"
	"bpimesh.org/mesh/valset"
)

// CommitMessage returns the canonical byte string validators sign to commit
// a header at (round, height). The commit domain tag is part of the message
// so commit signatures can never be replayed as any other signed object.
func CommitMessage(headerHash header.Hash, round, height uint64) []byte {
	b := enc.NewBuilder(len(enc.ConsensusCommit) + 32 + 8 + 8)
	b.Raw([]byte(enc.ConsensusCommit))
	b.Hash(enc.Hash(headerHash))
	b.U64(round)
	b.U64(height)
	return b.Bytes()
}

// SignCommit signs the commit message for (headerHash, round, height).
func SignCommit(sk blsagg.PrivateKey, headerHash header.Hash, round, height uint64) blsagg.Signature {
	return sk.Sign(CommitMessage(headerHash, round, height))
}

// RequiredThreshold returns the commit threshold 2f+1 for n validators.
func RequiredThreshold(n int) int {
	if n <= 0 {
		return 0
	}
	f := (n - 1) / 3
	return 2*f + 1
}

// Commit is a finalized header commit.
type Commit struct {
	HeaderHash         header.Hash
	AggregateSignature *blsagg.AggregatedSignature
	Bitmap             ValidatorBitmap
	Round              uint64
	Height             uint64
}

// SignatureCount returns the number of validators recorded in the bitmap.
func (c *Commit) SignatureCount() int {
	if c == nil {
		return 0
	}
	return c.Bitmap.CountSetBits()
}

// Aggregator collects commit signatures for one (header, round, height)
// against a fixed validator set.
type Aggregator struct {
	headerHash header.Hash
	round      uint64
	height     uint64
	set        *valset.Set

	ranks  map[uint64]int // validator index -> bitmap rank
	bitmap ValidatorBitmap
	inner  *blsagg.Aggregator
}

// NewAggregator pins an aggregator to (headerHash, round, height) over set.
func NewAggregator(headerHash header.Hash, round, height uint64, set *valset.Set) *Aggregator {
	ranks := make(map[uint64]int, set.Len())
	for rank, idx := range set.Indices() {
		ranks[idx] = rank
	}
	return &Aggregator{
		headerHash: headerHash,
		round:      round,
		height:     height,
		set:        set,
		ranks:      ranks,
		bitmap:     NewValidatorBitmap(set.Len()),
		inner:      blsagg.NewAggregator(),
	}
}

// AddSignature verifies and collects a validator's commit signature.
//
// headerHash and round must match the aggregator's pinned context; the
// signature must verify against the validator's registered BLS key; each
// validator may contribute at most once.
func (a *Aggregator) AddSignature(validatorIndex uint64, headerHash header.Hash, round uint64, sig blsagg.Signature) error {
	if headerHash != a.headerHash {
		return newError(KindContext, "MESH-CNS-010", "signature is for a different header")
	}
	if round != a.round {
		return newError(KindContext, "MESH-CNS-011", "signature is for a different round")
	}
	v, ok := a.set.Get(validatorIndex)
	if !ok {
		return newError(KindSigner, "MESH-CNS-012", "validator is not in the set")
	}
	rank := a.ranks[validatorIndex]
	if a.bitmap.IsSet(rank) {
		return newError(KindSigner, "MESH-CNS-013", "validator already signed")
	}
	msg := CommitMessage(a.headerHash, a.round, a.height)
	if !v.BLSPubkey.Verify(msg, sig) {
		return newError(KindSignature, "MESH-CNS-014", "commit signature verification failed")
	}
	if err := a.inner.AddHash(v.BLSPubkey, sig, blsagg.HashMessage(msg)); err != nil {
		return err
	}
	return a.bitmap.Set(rank)
}

// SignatureCount returns the number of collected signatures.
func (a *Aggregator) SignatureCount() int { return a.bitmap.CountSetBits() }

// RequiredThreshold returns the 2f+1 threshold for the pinned set.
func (a *Aggregator) RequiredThreshold() int { return RequiredThreshold(a.set.Len()) }

// HasThreshold reports whether 2f+1 signatures have been collected.
func (a *Aggregator) HasThreshold() bool {
	return a.SignatureCount() >= a.RequiredThreshold()
}

// Aggregate builds the commit, erroring below threshold.
func (a *Aggregator) Aggregate() (*Commit, error) {
	if !a.HasThreshold() {
		return nil, &Error{
			Kind:      KindThreshold,
			Code:      "MESH-CNS-020",
			Message:   "not enough commit signatures",
			Collected: a.SignatureCount(),
			Required:  a.RequiredThreshold(),
		}
	}
	agg, err := a.inner.Aggregate()
	if err != nil {
		return nil, err
	}
	return &Commit{
		HeaderHash:         a.headerHash,
		AggregateSignature: agg,
		Bitmap:             a.bitmap.Clone(),
		Round:              a.round,
		Height:             a.height,
	}, nil
}

// SignerIndices returns the validator indices recorded in the commit's
// bitmap, in ascending order.
func SignerIndices(c *Commit, set *valset.Set) []uint64 {
	indices := set.Indices()
	var out []uint64
	for _, rank := range c.Bitmap.SetIndices() {
		if rank < len(indices) {
			out = append(out, indices[rank])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
