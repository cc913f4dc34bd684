package keys

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/cloudflare/circl/sign/dilithium/mode3"

	"bpimesh.org/mesh/blsagg"
	"bpimesh.org/mesh/vrf"
)

// Key string algorithms. A key string is "<alg>:" + base64(public key).
const (
	AlgEd25519    = "ed25519"
	AlgDilithium3 = "dilithium3"
	AlgBLS        = "bls"
	AlgVRF        = "vrf"
)

func publicKeySize(alg string) (int, error) {
	switch alg {
	case AlgEd25519:
		return ed25519.PublicKeySize, nil
	case AlgDilithium3:
		return mode3.PublicKeySize, nil
	case AlgBLS:
		return blsagg.PublicKeySize, nil
	case AlgVRF:
		return vrf.PublicKeySize, nil
	default:
		return 0, fmt.Errorf("unsupported key algorithm: %q", alg)
	}
}

// FormatKey encodes a public key into the mesh key string for alg.
func FormatKey(alg string, pub []byte) (string, error) {
	want, err := publicKeySize(alg)
	if err != nil {
		return "", err
	}
	if len(pub) != want {
		return "", fmt.Errorf("%s public key must be %d bytes, got %d", alg, want, len(pub))
	}
	return alg + ":" + base64.StdEncoding.EncodeToString(pub), nil
}

// ParseKey decodes a mesh key string into its algorithm and public key
// bytes. FormatKey(ParseKey(s)) round-trips exactly.
func ParseKey(s string) (alg string, pub []byte, err error) {
	alg, b64, ok := strings.Cut(s, ":")
	if !ok {
		return "", nil, fmt.Errorf("key string has no algorithm prefix: %q", s)
	}
	want, err := publicKeySize(alg)
	if err != nil {
		return "", nil, err
	}
	pub, err = base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", nil, fmt.Errorf("invalid key string encoding: %w", err)
	}
	if len(pub) != want {
		return "", nil, fmt.Errorf("%s public key must be %d bytes, got %d", alg, want, len(pub))
	}
	return alg, pub, nil
}

// BLSKeyString formats a BLS verification key.
func BLSKeyString(pk blsagg.PublicKey) string {
	s, _ := FormatKey(AlgBLS, pk.Bytes())
	return s
}

// VRFKeyString formats a VRF verification key.
func VRFKeyString(pk vrf.PublicKey) string {
	s, _ := FormatKey(AlgVRF, pk.Bytes())
	return s
}

// Dilithium3KeyString formats a Dilithium3 verification key.
func Dilithium3KeyString(pk *mode3.PublicKey) string {
	s, _ := FormatKey(AlgDilithium3, pk.Bytes())
	return s
}
