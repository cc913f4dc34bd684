package header

import (
	"encoding/json"
	"testing"
	"time"

	"bpimesh.org/mesh/enc"
)

func TestJSONRoundTripPreservesHash(t *testing.T) {
	h := &Header{
		Version:          Version,
		Height:           42,
		PrevHash:         enc.Hash{1, 2, 3},
		PohRoot:          enc.Hash{4},
		ReceiptsRoot:     enc.Hash{5},
		DaRoot:           enc.Hash{6},
		XcmpRoot:         enc.Hash{7},
		ValidatorSetHash: enc.Hash{8},
		Mode:             ModeIBFT,
		Round:            3,
		Timestamp:        Canonicalize(time.Date(2025, 8, 1, 12, 0, 0, 500e6, time.UTC)),
	}
	b, err := json.Marshal(h)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := ParseHeader(b)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if got.Hash() != h.Hash() {
		t.Error("hash changed across JSON round trip")
	}
}

func TestParseHeaderRejectsInvalid(t *testing.T) {
	if _, err := ParseHeader([]byte("{")); err == nil {
		t.Error("accepted truncated JSON")
	}
	if _, err := ParseHeader([]byte(`{"prev_hash":"zz"}`)); err == nil {
		t.Error("accepted malformed hash hex")
	}
	// Valid JSON but wrong version fails shape validation.
	h := Genesis(GenesisConfig{Timestamp: time.Now()})
	h.Version = 9
	b, err := json.Marshal(h)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := ParseHeader(b); err == nil {
		t.Error("accepted unsupported version")
	}
}
