package valset

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"bpimesh.org/mesh/blsagg"
	"bpimesh.org/mesh/vrf"
)

// validatorJSON is the interchange form of one validator. Keys are
// lowercase hex.
type validatorJSON struct {
	Index     uint64 `json:"index"`
	BLSPubkey string `json:"bls_pubkey"`
	VRFPubkey string `json:"vrf_pubkey"`
	Stake     uint64 `json:"stake"`
	Address   string `json:"address,omitempty"`
	Status    string `json:"status"`
}

type setJSON struct {
	Epoch      uint64          `json:"epoch"`
	Config     Config          `json:"config"`
	Validators []validatorJSON `json:"validators"`
}

func statusFromString(s string) (Status, error) {
	switch s {
	case "active", "":
		return StatusActive, nil
	case "inactive":
		return StatusInactive, nil
	case "jailed":
		return StatusJailed, nil
	default:
		return 0, fmt.Errorf("valset: unknown status %q", s)
	}
}

// MarshalJSON encodes the set with validators in ascending index order.
func (s *Set) MarshalJSON() ([]byte, error) {
	w := setJSON{Epoch: s.epoch, Config: s.config}
	for _, v := range s.Validators() {
		w.Validators = append(w.Validators, validatorJSON{
			Index:     v.Index,
			BLSPubkey: hex.EncodeToString(v.BLSPubkey.Bytes()),
			VRFPubkey: hex.EncodeToString(v.VRFPubkey.Bytes()),
			Stake:     v.Stake,
			Address:   v.Address,
			Status:    v.Status.String(),
		})
	}
	return json.Marshal(w)
}

// ParseSet decodes a set from its JSON interchange form. Membership rules
// from the embedded config apply; a zero config falls back to defaults.
func ParseSet(data []byte) (*Set, error) {
	var w setJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("valset: invalid JSON: %w", err)
	}
	config := w.Config
	if config == (Config{}) {
		config = DefaultConfig()
	}
	set := New(config, w.Epoch)
	for i, vj := range w.Validators {
		blsBytes, err := hex.DecodeString(vj.BLSPubkey)
		if err != nil {
			return nil, fmt.Errorf("valset: validator %d: bls_pubkey: %w", i, err)
		}
		blsPK, err := blsagg.PublicKeyFromBytes(blsBytes)
		if err != nil {
			return nil, fmt.Errorf("valset: validator %d: %w", i, err)
		}
		vrfBytes, err := hex.DecodeString(vj.VRFPubkey)
		if err != nil {
			return nil, fmt.Errorf("valset: validator %d: vrf_pubkey: %w", i, err)
		}
		vrfPK, err := vrf.PublicKeyFromBytes(vrfBytes)
		if err != nil {
			return nil, fmt.Errorf("valset: validator %d: %w", i, err)
		}
		status, err := statusFromString(vj.Status)
		if err != nil {
			return nil, fmt.Errorf("valset: validator %d: %w", i, err)
		}
		err = set.Add(ValidatorInfo{
			Index:     vj.Index,
			BLSPubkey: blsPK,
			VRFPubkey: vrfPK,
			Stake:     vj.Stake,
			Address:   vj.Address,
			Status:    status,
		})
		if err != nil {
			return nil, fmt.Errorf("valset: validator %d: %w", i, err)
		}
	}
	return set, nil
}
