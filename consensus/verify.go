package consensus

import (
	"bpimesh.org/mesh/blsagg"
	"bpimesh.org/mesh/valset"
)

// VerifyMode selects how VerifyCommit reports problems.
type VerifyMode int

const (
	// Strict stops at the first violation.
	Strict VerifyMode = iota
	// Permissive checks everything and collects all violations.
	Permissive
)

// Verification is the outcome of checking a commit against a validator set.
type Verification struct {
	IsValid           bool
	SignatureCount    int
	RequiredThreshold int
	Signers           []uint64
	Errors            []string
}

// VerifyCommit checks a commit against set: the bitmap must reference only
// set members, the signer count must match the aggregate, the aggregate
// signature must verify over the recomputed commit message, and the 2f+1
// threshold must be met.
func VerifyCommit(c *Commit, set *valset.Set, mode VerifyMode) Verification {
	v := Verification{
		SignatureCount:    c.SignatureCount(),
		RequiredThreshold: RequiredThreshold(set.Len()),
		Signers:           SignerIndices(c, set),
	}

	fail := func(msg string) bool {
		v.Errors = append(v.Errors, msg)
		return mode == Strict
	}

	if len(v.Signers) != v.SignatureCount {
		if fail("bitmap references ranks outside the validator set") {
			return v
		}
	}
	if got := c.AggregateSignature.SignerCount(); got != v.SignatureCount {
		if fail("aggregate signer count does not match bitmap") {
			return v
		}
	}
	for _, idx := range v.Signers {
		if !set.Has(idx) {
			if fail("signer is not in the validator set") {
				return v
			}
		}
	}

	msgHash := blsagg.HashMessage(CommitMessage(c.HeaderHash, c.Round, c.Height))
	if c.AggregateSignature == nil || c.AggregateSignature.MessageHash != msgHash {
		if fail("aggregate is over a different commit message") {
			return v
		}
	} else if !c.AggregateSignature.Verify() {
		if fail("aggregate signature verification failed") {
			return v
		}
	}

	if v.SignatureCount < v.RequiredThreshold {
		if fail("commit is below the 2f+1 threshold") {
			return v
		}
	}

	v.IsValid = len(v.Errors) == 0
	return v
}
