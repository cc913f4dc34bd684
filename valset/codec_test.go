package valset

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSetJSONRoundTripPreservesHash(t *testing.T) {
	set := testSet(t, 4)
	want, err := set.SetHash()
	if err != nil {
		t.Fatalf("set hash: %v", err)
	}

	b, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := ParseSet(b)
	if err != nil {
		t.Fatalf("ParseSet: %v", err)
	}
	gotHash, err := got.SetHash()
	if err != nil {
		t.Fatalf("set hash: %v", err)
	}
	if gotHash != want {
		t.Error("set hash changed across JSON round trip")
	}
	if got.Epoch() != set.Epoch() {
		t.Errorf("epoch = %d, want %d", got.Epoch(), set.Epoch())
	}
}

func TestParseSetRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"truncated", `{`},
		{"bad bls hex", `{"validators":[{"index":0,"bls_pubkey":"zz","vrf_pubkey":"","stake":5000}]}`},
		{"bad status", `{"validators":[{"index":0,"bls_pubkey":"` + strings.Repeat("00", 48) + `","vrf_pubkey":"` + strings.Repeat("00", 32) + `","stake":5000,"status":"banana"}]}`},
		{"low stake", `{"validators":[{"index":0,"bls_pubkey":"` + strings.Repeat("00", 48) + `","vrf_pubkey":"` + strings.Repeat("00", 32) + `","stake":1}]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseSet([]byte(tc.json)); err == nil {
				t.Error("ParseSet accepted bad input")
			}
		})
	}
}
