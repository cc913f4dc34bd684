package merkle

import "bpimesh.org/mesh/enc"

// ProofStep is one sibling on the path from a leaf to the root.
//
// IsRight indicates the sibling sits to the right of the running hash.
type ProofStep struct {
	Sibling enc.Hash
	IsRight bool
}

// Proof is a Merkle inclusion proof for one leaf.
type Proof struct {
	LeafIndex int
	Steps     []ProofStep
}

// Proof returns the inclusion proof for the leaf at index.
func (t *Tree) Proof(index int) (*Proof, error) {
	n := t.LeafCount()
	if index < 0 || index >= n {
		return nil, &IndexError{Index: index, Leaves: n}
	}

	p := &Proof{LeafIndex: index}
	pos := index
	for _, level := range t.levels[:len(t.levels)-1] {
		if pos%2 == 0 {
			sibling := level[pos] // duplicated self when no right sibling
			if pos+1 < len(level) {
				sibling = level[pos+1]
			}
			p.Steps = append(p.Steps, ProofStep{Sibling: sibling, IsRight: true})
		} else {
			p.Steps = append(p.Steps, ProofStep{Sibling: level[pos-1], IsRight: false})
		}
		pos /= 2
	}
	return p, nil
}

// Verify checks that leafData sits under root at the proof's position.
func (p *Proof) Verify(leafData []byte, root enc.Hash) bool {
	return p.VerifyHash(LeafHash(leafData), root)
}

// VerifyHash checks a prehashed leaf against root.
func (p *Proof) VerifyHash(leafHash enc.Hash, root enc.Hash) bool {
	if p == nil {
		return false
	}
	h := leafHash
	for _, step := range p.Steps {
		if step.IsRight {
			h = internalHash(h, step.Sibling)
		} else {
			h = internalHash(step.Sibling, h)
		}
	}
	return h == root
}
