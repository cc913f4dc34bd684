// Package merkle provides domain-separated binary Merkle trees for protocol
// commitments (receipts roots, validator set hashes).
//
// Leaf and internal hashes use distinct domains so a leaf can never be
// reinterpreted as an internal node. Odd levels duplicate their last node.
package merkle

import (
	"errors"
	"fmt"

	"bpimesh.org/mesh/enc"
)

// ErrEmptyTree is returned when building or querying a tree with no leaves.
var ErrEmptyTree = errors.New("merkle: empty tree")

// IndexError reports a proof request for a leaf index outside the tree.
type IndexError struct {
	Index  int
	Leaves int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("merkle: leaf index %d out of bounds (tree has %d leaves)", e.Index, e.Leaves)
}

// Tree is an immutable Merkle tree over byte-slice leaves.
type Tree struct {
	// levels[0] is the leaf-hash level; the last level has a single root.
	levels [][]enc.Hash
}

// LeafHash returns DomainHash(MerkleLeaf, data).
func LeafHash(data []byte) enc.Hash {
	return enc.DomainHash(enc.MerkleLeaf, data)
}

func internalHash(left, right enc.Hash) enc.Hash {
	return enc.DomainHashParts(enc.MerkleInternal, left[:], right[:])
}

// New builds a tree from raw leaf data.
func New(leaves [][]byte) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyTree
	}
	hashed := make([]enc.Hash, len(leaves))
	for i, l := range leaves {
		hashed[i] = LeafHash(l)
	}
	return NewFromHashes(hashed)
}

// NewFromHashes builds a tree from prehashed leaves.
//
// Callers are responsible for hashing leaves with LeafHash (or an
// equivalent domain-separated scheme) before calling this.
func NewFromHashes(leafHashes []enc.Hash) (*Tree, error) {
	if len(leafHashes) == 0 {
		return nil, ErrEmptyTree
	}

	levels := [][]enc.Hash{append([]enc.Hash(nil), leafHashes...)}
	for len(levels[len(levels)-1]) > 1 {
		curr := levels[len(levels)-1]
		next := make([]enc.Hash, 0, (len(curr)+1)/2)
		for i := 0; i < len(curr); i += 2 {
			left := curr[i]
			right := left // odd level duplicates the last node
			if i+1 < len(curr) {
				right = curr[i+1]
			}
			next = append(next, internalHash(left, right))
		}
		levels = append(levels, next)
	}
	return &Tree{levels: levels}, nil
}

// Root returns the tree's root hash.
func (t *Tree) Root() enc.Hash {
	return t.levels[len(t.levels)-1][0]
}

// LeafCount returns the number of leaves.
func (t *Tree) LeafCount() int { return len(t.levels[0]) }

// RootOf is a convenience for New(leaves).Root().
func RootOf(leaves [][]byte) (enc.Hash, error) {
	t, err := New(leaves)
	if err != nil {
		return enc.Hash{}, err
	}
	return t.Root(), nil
}

// RootOfHashes is a convenience for NewFromHashes(leafHashes).Root().
func RootOfHashes(leafHashes []enc.Hash) (enc.Hash, error) {
	t, err := NewFromHashes(leafHashes)
	if err != nil {
		return enc.Hash{}, err
	}
	return t.Root(), nil
}
