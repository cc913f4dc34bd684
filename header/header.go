// Package header defines canonical block headers and chain continuity rules.
//
// A header commits to the proof-of-history root, receipts root, data
// availability root, cross-chain message root, and the validator set hash
// for its height. Header hashes are computed over the canonical fixed-layout
// encoding, so two headers hash equal iff every committed field is equal.
package header

import (
	"time"

	"bpimesh.org/mesh/enc"
)

// Version is the current header format version.
const Version uint8 = 1

// ConsensusMode identifies the consensus protocol that finalizes a header.
type ConsensusMode uint8

const (
	// ModeIBFT is Istanbul BFT, the only mode currently in production.
	ModeIBFT ConsensusMode = 2
)

func (m ConsensusMode) String() string {
	switch m {
	case ModeIBFT:
		return "ibft"
	default:
		return "unknown"
	}
}

func (m ConsensusMode) known() bool {
	return m == ModeIBFT
}

// Header is a canonical block header.
//
// Timestamp is stored UTC with millisecond precision; the canonical encoding
// carries unix milliseconds, so sub-millisecond components never survive a
// hash round trip and are truncated on construction.
type Header struct {
	Version          uint8
	Height           uint64
	PrevHash         enc.Hash
	PohRoot          enc.Hash
	ReceiptsRoot     enc.Hash
	DaRoot           enc.Hash
	XcmpRoot         enc.Hash
	ValidatorSetHash enc.Hash
	Mode             ConsensusMode
	Round            uint64
	Timestamp        time.Time
}

// GenesisConfig parameterizes the chain's first header.
type GenesisConfig struct {
	ChainID          string
	Timestamp        time.Time
	ValidatorSetHash enc.Hash
}

// Genesis builds the height-0 header for cfg. Prev hash and all content
// roots are zero at genesis.
func Genesis(cfg GenesisConfig) *Header {
	return &Header{
		Version:          Version,
		Height:           0,
		ValidatorSetHash: cfg.ValidatorSetHash,
		Mode:             ModeIBFT,
		Round:            0,
		Timestamp:        Canonicalize(cfg.Timestamp),
	}
}

// Canonicalize truncates t to the millisecond precision and UTC location
// used by the canonical encoding.
func Canonicalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// CanonicalBytes returns the fixed-layout encoding that Hash commits to.
func (h *Header) CanonicalBytes() []byte {
	b := enc.NewBuilder(1 + 8 + 6*32 + 1 + 8 + 8)
	b.U8(h.Version)
	b.U64(h.Height)
	b.Hash(h.PrevHash)
	b.Hash(h.PohRoot)
	b.Hash(h.ReceiptsRoot)
	b.Hash(h.DaRoot)
	b.Hash(h.XcmpRoot)
	b.Hash(h.ValidatorSetHash)
	b.U8(uint8(h.Mode))
	b.U64(h.Round)
	b.I64(h.Timestamp.UTC().UnixMilli())
	return b.Bytes()
}

// Hash returns the header hash under the HeaderHash domain.
func (h *Header) Hash() Hash {
	return Hash(enc.DomainHash(enc.HeaderHash, h.CanonicalBytes()))
}

// Validate checks the header's internal shape.
func (h *Header) Validate() error {
	if h.Version != Version {
		return &Error{
			Kind:    KindVersion,
			Code:    "MESH-HDR-001",
			Message: "unsupported header version",
		}
	}
	if !h.Mode.known() {
		return &Error{
			Kind:    KindMode,
			Code:    "MESH-HDR-002",
			Message: "unknown consensus mode",
		}
	}
	if h.Height == 0 {
		if !h.PrevHash.IsZero() {
			return &Error{
				Kind:    KindGenesis,
				Code:    "MESH-HDR-003",
				Message: "genesis header must have zero prev hash",
			}
		}
		if h.Round != 0 {
			return &Error{
				Kind:    KindGenesis,
				Code:    "MESH-HDR-004",
				Message: "genesis header must have round 0",
			}
		}
		return nil
	}
	if h.PrevHash.IsZero() {
		return &Error{
			Kind:    KindContinuity,
			Code:    "MESH-HDR-005",
			Message: "non-genesis header must link to a prev hash",
		}
	}
	return nil
}

// ValidateChain checks that next directly extends prev: height increments by
// one, prev-hash linkage holds, timestamps strictly increase, and the format
// version is unchanged.
func ValidateChain(prev, next *Header) error {
	if err := next.Validate(); err != nil {
		return err
	}
	if next.Height != prev.Height+1 {
		return &Error{
			Kind:       KindContinuity,
			Code:       "MESH-HDR-010",
			Message:    "height must increment by one",
			PrevHeight: prev.Height,
			NextHeight: next.Height,
		}
	}
	if next.PrevHash != enc.Hash(prev.Hash()) {
		return &Error{
			Kind:       KindContinuity,
			Code:       "MESH-HDR-011",
			Message:    "prev hash does not match parent header",
			PrevHeight: prev.Height,
			NextHeight: next.Height,
		}
	}
	if !next.Timestamp.After(prev.Timestamp) {
		return &Error{
			Kind:       KindContinuity,
			Code:       "MESH-HDR-012",
			Message:    "timestamp must strictly increase",
			PrevHeight: prev.Height,
			NextHeight: next.Height,
		}
	}
	if next.Version != prev.Version {
		return &Error{
			Kind:       KindContinuity,
			Code:       "MESH-HDR-013",
			Message:    "version changed mid-chain",
			PrevHeight: prev.Height,
			NextHeight: next.Height,
		}
	}
	return nil
}
