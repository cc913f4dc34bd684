// Package vrf implements the mesh's hash-based verifiable random function
// and stake-weighted leader selection.
//
// Like blsagg, this is a deterministic hash construction with EC-VRF size
// conventions, NOT a real elliptic-curve VRF: the output is recomputable by
// anyone holding the private key, and the proof is a structured digest
// rather than a curve point. It provides the randomness-beacon plumbing for
// leader selection with honest-but-simplified cryptography.
package vrf

import (
	"encoding/binary"
	"fmt"
	"math"

	"bpimesh.org/mesh/enc"
)

const (
	PrivateKeySize = 32
	PublicKeySize  = 32
	ProofSize      = 80
	OutputSize     = 32
)

// PrivateKey is a 32-byte VRF key.
type PrivateKey [PrivateKeySize]byte

// PublicKey is DomainHash(VRFPubkey, private key).
type PublicKey [PublicKeySize]byte

// Proof is an 80-byte structured proof: bytes 0..16 hold the verification
// pattern, bytes 16..48 hold the output, the tail is filler digest.
type Proof [ProofSize]byte

// Output is the 32-byte pseudorandom VRF output.
type Output [OutputSize]byte

// GenerateKeypair derives a keypair from seed via DomainHash(VRFKeygen, seed).
func GenerateKeypair(seed []byte) (PrivateKey, PublicKey) {
	var sk PrivateKey
	h := enc.DomainHash(enc.VRFKeygen, seed)
	copy(sk[:], h[:])
	return sk, sk.PublicKey()
}

// Keypair pairs a private key with its derived public key.
type Keypair struct {
	Private PrivateKey
	Public  PublicKey
}

// GenerateTestKeys returns count deterministic keypairs from the seeds
// "vrf_test_key_0", "vrf_test_key_1", ...
func GenerateTestKeys(count int) []Keypair {
	out := make([]Keypair, count)
	for i := 0; i < count; i++ {
		out[i].Private, out[i].Public = GenerateKeypair([]byte(fmt.Sprintf("vrf_test_key_%d", i)))
	}
	return out
}

// PrivateKeyFromBytes parses a private key, checking the length.
func PrivateKeyFromBytes(b []byte) (PrivateKey, error) {
	var sk PrivateKey
	if len(b) != PrivateKeySize {
		return sk, lengthError("MESH-VRF-001", "private key", PrivateKeySize, len(b))
	}
	copy(sk[:], b)
	return sk, nil
}

// PublicKeyFromBytes parses a public key, checking the length.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != PublicKeySize {
		return pk, lengthError("MESH-VRF-002", "public key", PublicKeySize, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// ProofFromBytes parses a proof, checking the length.
func ProofFromBytes(b []byte) (Proof, error) {
	var p Proof
	if len(b) != ProofSize {
		return p, lengthError("MESH-VRF-003", "proof", ProofSize, len(b))
	}
	copy(p[:], b)
	return p, nil
}

// OutputFromBytes parses an output, checking the length.
func OutputFromBytes(b []byte) (Output, error) {
	var o Output
	if len(b) != OutputSize {
		return o, lengthError("MESH-VRF-004", "output", OutputSize, len(b))
	}
	copy(o[:], b)
	return o, nil
}

func (sk PrivateKey) Bytes() []byte { return append([]byte(nil), sk[:]...) }
func (pk PublicKey) Bytes() []byte  { return append([]byte(nil), pk[:]...) }
func (p Proof) Bytes() []byte       { return append([]byte(nil), p[:]...) }
func (o Output) Bytes() []byte      { return append([]byte(nil), o[:]...) }

// PublicKey derives the public key.
func (sk PrivateKey) PublicKey() PublicKey {
	return PublicKey(enc.DomainHash(enc.VRFPubkey, sk[:]))
}

// Prove computes the VRF output and proof for input.
func (sk PrivateKey) Prove(input []byte) (Proof, Output) {
	inputHash := enc.DomainHash(enc.VRFInput, input)
	output := Output(enc.DomainHashParts(enc.VRFOutput, sk[:], inputHash[:]))

	var proof Proof
	for i := 0; i < 3; i++ {
		chunk := enc.DomainHashParts(enc.VRFProof, sk[:], inputHash[:], output[:], []byte{byte(i)})
		start := i * 32
		end := start + 32
		if end > ProofSize {
			end = ProofSize
		}
		copy(proof[start:end], chunk[:end-start])
	}

	// Overwrite the head with the public verification pattern and embed the
	// output so Verify needs no private material.
	pk := sk.PublicKey()
	pattern := enc.DomainHashParts(enc.VRFVerify, pk[:16], inputHash[:16])
	copy(proof[:16], pattern[:16])
	copy(proof[16:48], output[:])

	return proof, output
}

// Verify checks proof and output against input.
//
// The embedded output must equal the claimed output byte for byte.
func (pk PublicKey) Verify(input []byte, proof Proof, output Output) bool {
	inputHash := enc.DomainHash(enc.VRFInput, input)
	pattern := enc.DomainHashParts(enc.VRFVerify, pk[:16], inputHash[:16])
	if [16]byte(proof[:16]) != [16]byte(pattern[:16]) {
		return false
	}
	return [32]byte(proof[16:48]) == [32]byte(output[:])
}

// UniformUint64 maps the output to [0, max) via the little-endian first
// eight bytes mod max. max == 0 returns 0.
func (o Output) UniformUint64(max uint64) uint64 {
	if max == 0 {
		return 0
	}
	return binary.LittleEndian.Uint64(o[:8]) % max
}

// Probability maps the output to [0, 1).
//
// The divisor is 2^64, not MaxUint64, and values whose float64 conversion
// rounds up to 2^64 are clamped just under 1.0 so the half-open bound holds.
func (o Output) Probability() float64 {
	v := binary.LittleEndian.Uint64(o[:8])
	p := float64(v) / math.Ldexp(1, 64)
	if p >= 1 {
		p = math.Nextafter(1, 0)
	}
	return p
}
