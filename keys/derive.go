package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"
)

const kdfTag = "bpi-mesh-kms-v1"

// Ed25519KeyFromSeed returns the mesh key string for an Ed25519 seed.
//
// Format: "ed25519:" + base64(pubkey).
func Ed25519KeyFromSeed(seed []byte) string {
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	s, _ := FormatKey(AlgEd25519, pub)
	return s
}

// DeriveRoleSeed deterministically derives a role-specific seed from a root
// seed.
//
// The derivation is SHA-256 over the root seed, the KMS tag, and the role,
// with zero-byte separators so no field can run into the next.
func DeriveRoleSeed(rootSeed []byte, role string) ([]byte, error) {
	if len(rootSeed) != ed25519.SeedSize {
		return nil, fmt.Errorf("root seed must be %d bytes", ed25519.SeedSize)
	}
	if err := CheckRole(role); err != nil {
		return nil, err
	}

	h := sha256.New()
	for _, part := range [][]byte{rootSeed, {0}, []byte(kdfTag), {0}, []byte("role:"), []byte(role)} {
		_, _ = h.Write(part)
	}
	sum := h.Sum(nil)
	if len(sum) < ed25519.SeedSize {
		return nil, errors.New("kdf output too short")
	}
	return append([]byte(nil), sum[:ed25519.SeedSize]...), nil
}
