// Package blsagg implements the mesh's BLS-shaped signature scheme and
// signature aggregation.
//
// The scheme uses BLS12-381 size conventions (48-byte G1 public keys,
// 96-byte G2 signatures, 32-byte scalars) but derives every value through
// domain-separated SHA-256 chains instead of elliptic-curve operations.
// Signatures are recomputable from the public key alone, so this scheme is
// NOT cryptographically secure and is not interoperable with real BLS12-381
// implementations. It exists as a deterministic wire-format and
// aggregation-logic scaffold for the consensus layer.
package blsagg

import (
	"fmt"

	"bpimesh.org/mesh/enc"
)

// Sizes follow BLS12-381 compressed-point conventions.
const (
	PrivateKeySize = 32 // scalar
	PublicKeySize  = 48 // G1 compressed
	SignatureSize  = 96 // G2 compressed
)

// PrivateKey is a 32-byte scalar-sized key.
type PrivateKey [PrivateKeySize]byte

// PublicKey is a 48-byte G1-sized key.
type PublicKey [PublicKeySize]byte

// Signature is a 96-byte G2-sized signature.
type Signature [SignatureSize]byte

// GenerateKeypair derives a keypair from seed.
//
// The private key is DomainHash(BLSKeygen, seed); the same seed always
// yields the same keypair.
func GenerateKeypair(seed []byte) (PrivateKey, PublicKey) {
	var sk PrivateKey
	h := enc.DomainHash(enc.BLSKeygen, seed)
	copy(sk[:], h[:])
	return sk, sk.PublicKey()
}

// Keypair pairs a private key with its derived public key.
type Keypair struct {
	Private PrivateKey
	Public  PublicKey
}

// GenerateTestKeys returns count deterministic keypairs from the seeds
// "test_key_0", "test_key_1", ...
func GenerateTestKeys(count int) []Keypair {
	out := make([]Keypair, count)
	for i := 0; i < count; i++ {
		out[i].Private, out[i].Public = GenerateKeypair([]byte(fmt.Sprintf("test_key_%d", i)))
	}
	return out
}

// PrivateKeyFromBytes parses a private key, checking the length.
func PrivateKeyFromBytes(b []byte) (PrivateKey, error) {
	var sk PrivateKey
	if len(b) != PrivateKeySize {
		return sk, lengthError("MESH-BLS-001", "private key", PrivateKeySize, len(b))
	}
	copy(sk[:], b)
	return sk, nil
}

// PublicKeyFromBytes parses a public key, checking the length.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != PublicKeySize {
		return pk, lengthError("MESH-BLS-002", "public key", PublicKeySize, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// SignatureFromBytes parses a signature, checking the length.
func SignatureFromBytes(b []byte) (Signature, error) {
	var sig Signature
	if len(b) != SignatureSize {
		return sig, lengthError("MESH-BLS-003", "signature", SignatureSize, len(b))
	}
	copy(sig[:], b)
	return sig, nil
}

func (sk PrivateKey) Bytes() []byte { return append([]byte(nil), sk[:]...) }
func (pk PublicKey) Bytes() []byte  { return append([]byte(nil), pk[:]...) }
func (s Signature) Bytes() []byte   { return append([]byte(nil), s[:]...) }

// PublicKey derives the public key by expanding DomainHash(BLSPubkey, sk)
// to 48 bytes in two 32-byte chunks (the second truncated).
func (sk PrivateKey) PublicKey() PublicKey {
	var pk PublicKey
	h := enc.DomainHash(enc.BLSPubkey, sk[:])
	for i := 0; i < 2; i++ {
		chunk := enc.DomainHashParts(enc.BLSPubkey, h[:], []byte{byte(i)})
		start := i * 32
		end := start + 32
		if end > PublicKeySize {
			end = PublicKeySize
		}
		copy(pk[start:end], chunk[:end-start])
	}
	return pk
}

// HashMessage returns the domain-separated message hash signed by Sign.
func HashMessage(message []byte) [32]byte {
	return enc.DomainHash(enc.BLSMessage, message)
}

// Sign signs a message. The empty message is valid.
func (sk PrivateKey) Sign(message []byte) Signature {
	return sk.SignHash(HashMessage(message))
}

// SignHash signs a pre-hashed message.
//
// The signature is derived from the PUBLIC key and the message hash, which
// is what makes verification a recomputation rather than a pairing check.
func (sk PrivateKey) SignHash(msgHash [32]byte) Signature {
	return sk.PublicKey().deterministicSignature(msgHash)
}

// Verify reports whether sig is the deterministic signature of message
// under pk.
func (pk PublicKey) Verify(message []byte, sig Signature) bool {
	return pk.VerifyHash(HashMessage(message), sig)
}

// VerifyHash reports whether sig matches the recomputed deterministic
// signature for msgHash.
func (pk PublicKey) VerifyHash(msgHash [32]byte, sig Signature) bool {
	return sig == pk.deterministicSignature(msgHash)
}

// deterministicSignature expands DomainHash(BLSSignature, pk || msgHash)
// to 96 bytes in three 32-byte chunks.
func (pk PublicKey) deterministicSignature(msgHash [32]byte) Signature {
	var sig Signature
	base := enc.DomainHashParts(enc.BLSSignature, pk[:], msgHash[:])
	for i := 0; i < 3; i++ {
		chunk := enc.DomainHashParts(enc.BLSSignature, base[:], []byte{byte(i)})
		start := i * 32
		end := start + 32
		if end > SignatureSize {
			end = SignatureSize
		}
		copy(sig[start:end], chunk[:end-start])
	}
	return sig
}
