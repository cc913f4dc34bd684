// Package enc provides domain-separated hashing and canonical byte encoding
// for BPI Mesh protocol objects.
//
// Every protocol hash goes through DomainHash so that hashes of distinct
// object kinds can never collide, even over identical payload bytes. Domain
// tags are versioned ASCII constants; a released tag is frozen and must never
// be reused for a different object kind.
package enc

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash is a 32-byte protocol hash.
type Hash [32]byte

// Domain tags for DomainHash. Frozen v1 values.
const (
	BLSKeygen    = "bpi-bls-keygen-v1"
	BLSPubkey    = "bpi-bls-pubkey-v1"
	BLSMessage   = "bpi-bls-message-v1"
	BLSSignature = "bpi-bls-signature-v1"

	MerkleLeaf     = "bpi-merkle-leaf-v1"
	MerkleInternal = "bpi-merkle-internal-v1"

	HeaderHash      = "bpi-header-hash-v1"
	ConsensusCommit = "bpi-consensus-commit-v1"
	ValidatorLeaf   = "bpi-validator-leaf-v1"
	SlashingProof   = "bpi-slashing-proof-v1"

	VRFKeygen = "bpi-vrf-keygen-v1"
	VRFPubkey = "bpi-vrf-pubkey-v1"
	VRFInput  = "bpi-vrf-input-v1"
	VRFOutput = "bpi-vrf-output-v1"
	VRFProof  = "bpi-vrf-proof-v1"
	VRFVerify = "bpi-vrf-verify-v1"
)

// DomainHash returns SHA-256(domain || data).
func DomainHash(domain string, data []byte) Hash {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write(data)
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// DomainHashParts returns SHA-256(domain || parts[0] || parts[1] || ...).
//
// Parts are hashed back to back without length framing, matching the
// concatenation form used throughout the protocol. Callers that need
// unambiguous framing should encode through a Builder first.
func DomainHashParts(domain string, parts ...[]byte) Hash {
	h := sha256.New()
	h.Write([]byte(domain))
	for _, p := range parts {
		h.Write(p)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// Hex returns the lowercase hex encoding of the hash.
func (h Hash) Hex() string { return hex.EncodeToString(h[:]) }

// Short returns the first 8 hex characters, for logs and display.
func (h Hash) Short() string { return h.Hex()[:8] }

// IsZero reports whether the hash is all zero bytes.
func (h Hash) IsZero() bool {
	for _, b := range h {
		if b != 0 {
			return false
		}
	}
	return true
}

// HashFromHex parses a 64-character hex string into a Hash.
func HashFromHex(s string) (Hash, error) {
	var out Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(b) != len(out) {
		return out, errHashLength(len(b))
	}
	copy(out[:], b)
	return out, nil
}
