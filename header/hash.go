package header

import "bpimesh.org/mesh/enc"

// Hash is a header hash, distinct in type from other protocol hashes so it
// cannot be passed where a content root is expected.
type Hash enc.Hash

// Hex returns the lowercase hex encoding.
func (h Hash) Hex() string { return enc.Hash(h).Hex() }

// Short returns the first 8 hex characters, for logs and display.
func (h Hash) Short() string { return enc.Hash(h).Short() }

// IsZero reports whether the hash is all zero bytes.
func (h Hash) IsZero() bool { return enc.Hash(h).IsZero() }

// HashFromHex parses a 64-character hex string into a header hash.
func HashFromHex(s string) (Hash, error) {
	h, err := enc.HashFromHex(s)
	return Hash(h), err
}
