package header

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"bpimesh.org/mesh/enc"
)

// headerJSON is the interchange form. Hashes are lowercase hex; the
// timestamp is unix milliseconds, matching the canonical encoding so a
// decode round trip preserves the header hash.
type headerJSON struct {
	Version          uint8  `json:"version"`
	Height           uint64 `json:"height"`
	PrevHash         string `json:"prev_hash"`
	PohRoot          string `json:"poh_root"`
	ReceiptsRoot     string `json:"receipts_root"`
	DaRoot           string `json:"da_root"`
	XcmpRoot         string `json:"xcmp_root"`
	ValidatorSetHash string `json:"validator_set_hash"`
	Mode             uint8  `json:"mode"`
	Round            uint64 `json:"round"`
	TimestampMS      int64  `json:"timestamp_ms"`
}

// MarshalJSON encodes the header in its interchange form.
func (h *Header) MarshalJSON() ([]byte, error) {
	return json.Marshal(headerJSON{
		Version:          h.Version,
		Height:           h.Height,
		PrevHash:         hex.EncodeToString(h.PrevHash[:]),
		PohRoot:          hex.EncodeToString(h.PohRoot[:]),
		ReceiptsRoot:     hex.EncodeToString(h.ReceiptsRoot[:]),
		DaRoot:           hex.EncodeToString(h.DaRoot[:]),
		XcmpRoot:         hex.EncodeToString(h.XcmpRoot[:]),
		ValidatorSetHash: hex.EncodeToString(h.ValidatorSetHash[:]),
		Mode:             uint8(h.Mode),
		Round:            h.Round,
		TimestampMS:      h.Timestamp.UTC().UnixMilli(),
	})
}

// UnmarshalJSON decodes the interchange form.
func (h *Header) UnmarshalJSON(data []byte) error {
	var w headerJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("header: invalid JSON: %w", err)
	}
	fields := []struct {
		name string
		hex  string
		dst  *enc.Hash
	}{
		{"prev_hash", w.PrevHash, &h.PrevHash},
		{"poh_root", w.PohRoot, &h.PohRoot},
		{"receipts_root", w.ReceiptsRoot, &h.ReceiptsRoot},
		{"da_root", w.DaRoot, &h.DaRoot},
		{"xcmp_root", w.XcmpRoot, &h.XcmpRoot},
		{"validator_set_hash", w.ValidatorSetHash, &h.ValidatorSetHash},
	}
	for _, f := range fields {
		b, err := hex.DecodeString(f.hex)
		if err != nil || len(b) != len(f.dst) {
			return fmt.Errorf("header: invalid %s", f.name)
		}
		copy(f.dst[:], b)
	}
	h.Version = w.Version
	h.Height = w.Height
	h.Mode = ConsensusMode(w.Mode)
	h.Round = w.Round
	h.Timestamp = time.UnixMilli(w.TimestampMS).UTC()
	return nil
}

// ParseHeader decodes a header from its JSON interchange form and validates
// its shape.
func ParseHeader(data []byte) (*Header, error) {
	var h Header
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, err
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return &h, nil
}
