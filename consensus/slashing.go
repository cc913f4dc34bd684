package consensus

import (
	"fmt"

	"bpimesh.org/mesh/enc"
	"bpimesh.org/mesh/valset"
)

// EquivocationType classifies how a validator's two commits conflict.
type EquivocationType uint8

const (
	// DoubleCommit is two different headers committed at the same
	// (height, round).
	DoubleCommit EquivocationType = iota
	// HeightViolation is a commit at a lower height after the validator
	// already committed a higher one.
	HeightViolation
)

func (t EquivocationType) String() string {
	switch t {
	case DoubleCommit:
		return "double-commit"
	case HeightViolation:
		return "height-violation"
	default:
		return fmt.Sprintf("equivocation(%d)", uint8(t))
	}
}

// Evidence pairs two conflicting commits by one validator with an inclusion
// proof binding that validator to the set commitment the commits were made
// under. The inclusion proof is what lets a light client check membership
// without the full set.
type Evidence struct {
	Type           EquivocationType
	ValidatorIndex uint64
	CommitA        *Commit
	CommitB        *Commit
	Inclusion      *valset.InclusionProof
	Height         uint64
	Round          uint64
}

type commitKey struct {
	validator uint64
	height    uint64
	round     uint64
}

// Detector watches a stream of commits for Byzantine double-signing.
//
// It records each validator's header hash per (height, round) and emits
// Evidence when a later commit conflicts. A Detector is not safe for
// concurrent use.
type Detector struct {
	set      *valset.Set
	history  map[commitKey]*Commit
	detected []*Evidence
}

// NewDetector returns a detector over set.
func NewDetector(set *valset.Set) *Detector {
	return &Detector{
		set:     set,
		history: make(map[commitKey]*Commit),
	}
}

// ProcessCommit records c and returns any new equivocations it exposes.
//
// Every signer in c's bitmap is checked: a prior commit by the same signer
// at the same (height, round) with a different header is a DoubleCommit,
// and a prior commit at a higher height is a HeightViolation.
func (d *Detector) ProcessCommit(c *Commit) ([]*Evidence, error) {
	var found []*Evidence
	for _, idx := range SignerIndices(c, d.set) {
		key := commitKey{validator: idx, height: c.Height, round: c.Round}
		if prev, ok := d.history[key]; ok {
			if prev.HeaderHash != c.HeaderHash {
				ev, err := d.buildEvidence(DoubleCommit, idx, prev, c)
				if err != nil {
					return nil, err
				}
				found = append(found, ev)
			}
		} else {
			d.history[key] = c
		}

		for k, prev := range d.history {
			if k.validator != idx || k.height <= c.Height {
				continue
			}
			ev, err := d.buildEvidence(HeightViolation, idx, prev, c)
			if err != nil {
				return nil, err
			}
			found = append(found, ev)
		}
	}
	d.detected = append(d.detected, found...)
	return found, nil
}

func (d *Detector) buildEvidence(typ EquivocationType, idx uint64, a, b *Commit) (*Evidence, error) {
	if !d.set.Has(idx) {
		return nil, newError(KindSigner, "MESH-CNS-030", "equivocating validator is not in the set")
	}
	incl, err := d.set.InclusionProof(idx)
	if err != nil {
		return nil, err
	}
	return &Evidence{
		Type:           typ,
		ValidatorIndex: idx,
		CommitA:        a,
		CommitB:        b,
		Inclusion:      incl,
		Height:         a.Height,
		Round:          a.Round,
	}, nil
}

// Detected returns all evidence found so far, oldest first.
func (d *Detector) Detected() []*Evidence {
	return append([]*Evidence(nil), d.detected...)
}

// HistorySize returns the number of (validator, height, round) entries held.
func (d *Detector) HistorySize() int { return len(d.history) }

// Reset clears detection state, e.g. on an epoch change.
func (d *Detector) Reset() {
	d.history = make(map[commitKey]*Commit)
	d.detected = nil
}

// SlashingProof is a portable slashing proof.
//
// ProofHash commits to the evidence, the set hash, and the timestamp, so a
// proof cannot be rebound to different commits after the fact.
type SlashingProof struct {
	Evidence  *Evidence
	SetHash   enc.Hash
	Timestamp uint64 // unix milliseconds
	ProofHash enc.Hash
}

// NewSlashingProof builds a proof over ev and seals it with its hash.
func NewSlashingProof(ev *Evidence, setHash enc.Hash, timestampMS uint64) *SlashingProof {
	s := &SlashingProof{
		Evidence:  ev,
		SetHash:   setHash,
		Timestamp: timestampMS,
	}
	s.ProofHash = s.computeHash()
	return s
}

func (s *SlashingProof) computeHash() enc.Hash {
	b := enc.NewBuilder(256)
	b.U8(uint8(s.Evidence.Type))
	b.U64(s.Evidence.ValidatorIndex)
	commitBinding(b, s.Evidence.CommitA)
	commitBinding(b, s.Evidence.CommitB)
	b.Hash(s.SetHash)
	b.U64(s.Timestamp)
	return b.Sum(enc.SlashingProof)
}

func commitBinding(b *enc.Builder, c *Commit) {
	b.Hash(enc.Hash(c.HeaderHash))
	b.U64(c.Round)
	b.U64(c.Height)
	b.Frame(c.Bitmap)
	if c.AggregateSignature != nil {
		b.Frame(c.AggregateSignature.Signature.Bytes())
	} else {
		b.Frame(nil)
	}
}

// VerifyHash recomputes and checks the proof's seal.
func (s *SlashingProof) VerifyHash() bool {
	return s.ProofHash == s.computeHash()
}

// SlashingVerifier checks slashing proofs against a validator set, the way
// a light client holding only the set would.
type SlashingVerifier struct {
	set *valset.Set
}

// NewSlashingVerifier returns a verifier over set.
func NewSlashingVerifier(set *valset.Set) *SlashingVerifier {
	return &SlashingVerifier{set: set}
}

// Verify checks a slashing proof end to end: the seal, the commit conflict
// the evidence claims, the validator's membership via its inclusion proof,
// the validator's signature bit in both commits, and both commits' own
// validity.
func (v *SlashingVerifier) Verify(s *SlashingProof) error {
	if s == nil || s.Evidence == nil || s.Evidence.CommitA == nil || s.Evidence.CommitB == nil {
		return newError(KindEvidence, "MESH-CNS-031", "slashing proof is incomplete")
	}
	if !s.VerifyHash() {
		return newError(KindEvidence, "MESH-CNS-032", "slashing proof hash mismatch")
	}
	ev := s.Evidence

	if err := checkConflict(ev); err != nil {
		return err
	}

	setHash, err := v.set.SetHash()
	if err != nil {
		return err
	}
	if s.SetHash != setHash {
		return newError(KindEvidence, "MESH-CNS-035", "proof is for a different validator set")
	}
	info, ok := v.set.Get(ev.ValidatorIndex)
	if !ok {
		return newError(KindSigner, "MESH-CNS-030", "equivocating validator is not in the set")
	}
	if ev.Inclusion == nil || !ev.Inclusion.VerifyValidator(info, setHash) {
		return newError(KindEvidence, "MESH-CNS-036", "validator inclusion proof failed")
	}

	rank := v.rankOf(ev.ValidatorIndex)
	if !ev.CommitA.Bitmap.IsSet(rank) || !ev.CommitB.Bitmap.IsSet(rank) {
		return newError(KindEvidence, "MESH-CNS-037", "validator did not sign both commits")
	}

	for _, c := range []*Commit{ev.CommitA, ev.CommitB} {
		if res := VerifyCommit(c, v.set, Strict); !res.IsValid {
			return newError(KindEvidence, "MESH-CNS-038", "evidence commit failed verification")
		}
	}
	return nil
}

func checkConflict(ev *Evidence) error {
	a, b := ev.CommitA, ev.CommitB
	switch ev.Type {
	case DoubleCommit:
		if a.Height != b.Height || a.Round != b.Round {
			return newError(KindEvidence, "MESH-CNS-033", "double-commit evidence spans different heights or rounds")
		}
		if a.HeaderHash == b.HeaderHash {
			return newError(KindEvidence, "MESH-CNS-034", "commits do not conflict")
		}
	case HeightViolation:
		if a.Height <= b.Height {
			return newError(KindEvidence, "MESH-CNS-034", "commits do not conflict")
		}
	default:
		return newError(KindEvidence, "MESH-CNS-033", "unknown equivocation type")
	}
	return nil
}

func (v *SlashingVerifier) rankOf(index uint64) int {
	for rank, idx := range v.set.Indices() {
		if idx == index {
			return rank
		}
	}
	return -1
}
