package valset

import (
	"bpimesh.org/mesh/enc"
	"bpimesh.org/mesh/merkle"
)

// InclusionProof shows that a validator is committed by a set hash at a
// given epoch.
type InclusionProof struct {
	ValidatorIndex uint64
	ValidatorHash  enc.Hash
	SetHash        enc.Hash
	Epoch          uint64
	Merkle         *merkle.Proof
}

// InclusionProof builds a proof for the validator at index against the
// current commitment.
func (s *Set) InclusionProof(index uint64) (*InclusionProof, error) {
	v, ok := s.validators[index]
	if !ok {
		return nil, ErrUnknownIndex
	}
	if err := s.buildCommitment(); err != nil {
		return nil, err
	}

	// leaf position is the validator's rank in index order
	pos := 0
	for _, idx := range s.Indices() {
		if idx == index {
			break
		}
		pos++
	}
	mp, err := s.tree.Proof(pos)
	if err != nil {
		return nil, err
	}
	return &InclusionProof{
		ValidatorIndex: index,
		ValidatorHash:  v.Hash(),
		SetHash:        *s.setHash,
		Epoch:          s.epoch,
		Merkle:         mp,
	}, nil
}

// Verify checks the proof against setHash. The validator leaf hash must
// chain through the Merkle steps to the root.
func (p *InclusionProof) Verify(setHash enc.Hash) bool {
	if p.Merkle == nil || p.SetHash != setHash {
		return false
	}
	return p.Merkle.VerifyHash(p.ValidatorHash, setHash)
}

// VerifyValidator additionally binds the proof to a concrete validator
// record, rejecting proofs whose leaf hash does not match v.
func (p *InclusionProof) VerifyValidator(v ValidatorInfo, setHash enc.Hash) bool {
	if v.Index != p.ValidatorIndex || v.Hash() != p.ValidatorHash {
		return false
	}
	return p.Verify(setHash)
}
