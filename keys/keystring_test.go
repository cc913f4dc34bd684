package keys

import (
	"testing"

	"bpimesh.org/mesh/blsagg"
	"bpimesh.org/mesh/vrf"
)

func TestKeyStringRoundTrip(t *testing.T) {
	_, blsPub := blsagg.GenerateKeypair([]byte("keystring_test_bls"))
	_, vrfPub := vrf.GenerateKeypair([]byte("keystring_test_vrf"))

	cases := []struct {
		alg string
		pub []byte
	}{
		{AlgBLS, blsPub.Bytes()},
		{AlgVRF, vrfPub.Bytes()},
		{AlgEd25519, make([]byte, 32)},
	}
	for _, tc := range cases {
		s, err := FormatKey(tc.alg, tc.pub)
		if err != nil {
			t.Fatalf("FormatKey(%s): %v", tc.alg, err)
		}
		alg, pub, err := ParseKey(s)
		if err != nil {
			t.Fatalf("ParseKey(%s): %v", tc.alg, err)
		}
		if alg != tc.alg || string(pub) != string(tc.pub) {
			t.Errorf("%s round trip mismatch", tc.alg)
		}
	}
}

func TestParseKeyRejectsMalformed(t *testing.T) {
	bad := []string{
		"",
		"no-colon",
		"rsa:AAAA",
		"ed25519:!!!not-base64!!!",
		"ed25519:AAAA", // wrong length
		"bls:AAAA",
	}
	for _, s := range bad {
		if _, _, err := ParseKey(s); err == nil {
			t.Errorf("ParseKey(%q) accepted", s)
		}
	}
}

func TestFormatKeyRejectsWrongLength(t *testing.T) {
	if _, err := FormatKey(AlgBLS, make([]byte, 47)); err == nil {
		t.Fatal("short bls key accepted")
	}
	if _, err := FormatKey(AlgVRF, make([]byte, 33)); err == nil {
		t.Fatal("long vrf key accepted")
	}
}

func TestValidatorKeysDeterministic(t *testing.T) {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i * 3)
	}

	a, err := ValidatorKeys(seed)
	if err != nil {
		t.Fatalf("ValidatorKeys: %v", err)
	}
	b, err := ValidatorKeys(seed)
	if err != nil {
		t.Fatalf("ValidatorKeys: %v", err)
	}
	if a.BLSPublic != b.BLSPublic || a.VRFPublic != b.VRFPublic {
		t.Error("validator keys not deterministic")
	}
	if !a.Ed25519.Equal(b.Ed25519) {
		t.Error("ed25519 key not deterministic")
	}

	// role separation: the three keys come from distinct seeds
	if string(a.BLSPrivate.Bytes()) == string(a.VRFPrivate.Bytes()) {
		t.Error("bls and vrf keys share a seed")
	}

	blsStr, vrfStr, edStr := a.KeyStrings()
	for _, s := range []string{blsStr, vrfStr, edStr} {
		if _, _, err := ParseKey(s); err != nil {
			t.Errorf("ParseKey(%q): %v", s, err)
		}
	}
}

func TestValidatorKeysRejectShortSeed(t *testing.T) {
	if _, err := ValidatorKeys(make([]byte, 16)); err == nil {
		t.Fatal("short seed accepted")
	}
}
