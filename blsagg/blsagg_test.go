package blsagg

import (
	"bytes"
	"errors"
	"testing"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	sk, pk := GenerateKeypair([]byte("round-trip-seed"))
	msg := []byte("commit height 42")

	sig := sk.Sign(msg)
	if !pk.Verify(msg, sig) {
		t.Fatalf("signature did not verify under the signing key")
	}
	if pk.Verify([]byte("commit height 43"), sig) {
		t.Fatalf("signature verified under a different message")
	}

	_, other := GenerateKeypair([]byte("some-other-seed"))
	if other.Verify(msg, sig) {
		t.Fatalf("signature verified under a different key")
	}
}

func TestEmptyMessageIsSignable(t *testing.T) {
	sk, pk := GenerateKeypair([]byte("empty-msg-seed"))
	sig := sk.Sign(nil)
	if !pk.Verify(nil, sig) {
		t.Fatalf("empty message signature did not verify")
	}
}

func TestKeypairDeterministicFromSeed(t *testing.T) {
	sk1, pk1 := GenerateKeypair([]byte("seed"))
	sk2, pk2 := GenerateKeypair([]byte("seed"))
	if sk1 != sk2 || pk1 != pk2 {
		t.Fatalf("same seed produced different keypairs")
	}

	sk3, pk3 := GenerateKeypair([]byte("seed2"))
	if sk1 == sk3 || pk1 == pk3 {
		t.Fatalf("distinct seeds produced identical keypairs")
	}
}

func TestSignHashMatchesSign(t *testing.T) {
	sk, _ := GenerateKeypair([]byte("hash-path-seed"))
	msg := []byte("payload")
	if sk.Sign(msg) != sk.SignHash(HashMessage(msg)) {
		t.Fatalf("Sign and SignHash(HashMessage) disagree")
	}
}

func TestFromBytesLengthChecks(t *testing.T) {
	if _, err := PrivateKeyFromBytes(make([]byte, 31)); err == nil {
		t.Fatalf("short private key accepted")
	}
	if _, err := PublicKeyFromBytes(make([]byte, 49)); err == nil {
		t.Fatalf("long public key accepted")
	}
	_, err := SignatureFromBytes(make([]byte, 64))
	if err == nil {
		t.Fatalf("short signature accepted")
	}

	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("length error is not a *Error")
	}
	if e.Kind != KindLength || e.Code != "MESH-BLS-003" {
		t.Fatalf("unexpected kind/code: %s/%s", e.Kind, e.Code)
	}
	if e.Expected != SignatureSize || e.Actual != 64 {
		t.Fatalf("expected/actual not carried: %d/%d", e.Expected, e.Actual)
	}
}

func TestFromBytesRoundTrip(t *testing.T) {
	sk, pk := GenerateKeypair([]byte("bytes-seed"))
	sig := sk.Sign([]byte("m"))

	sk2, err := PrivateKeyFromBytes(sk.Bytes())
	if err != nil || sk2 != sk {
		t.Fatalf("private key bytes round trip failed: %v", err)
	}
	pk2, err := PublicKeyFromBytes(pk.Bytes())
	if err != nil || pk2 != pk {
		t.Fatalf("public key bytes round trip failed: %v", err)
	}
	sig2, err := SignatureFromBytes(sig.Bytes())
	if err != nil || sig2 != sig {
		t.Fatalf("signature bytes round trip failed: %v", err)
	}
}

func TestBytesReturnsCopy(t *testing.T) {
	sk, _ := GenerateKeypair([]byte("copy-seed"))
	b := sk.Bytes()
	b[0] ^= 0xFF
	if bytes.Equal(b, sk.Bytes()) {
		t.Fatalf("Bytes() aliases the key array")
	}
}

func TestGenerateTestKeysDeterministic(t *testing.T) {
	a := GenerateTestKeys(4)
	b := GenerateTestKeys(4)
	if len(a) != 4 {
		t.Fatalf("got %d keypairs, want 4", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("test key %d not deterministic", i)
		}
	}
	for i := 1; i < len(a); i++ {
		if a[i].Public == a[0].Public {
			t.Fatalf("test keys %d and 0 collide", i)
		}
	}
}
