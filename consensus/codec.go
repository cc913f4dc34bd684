package consensus

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"bpimesh.org/mesh/blsagg"
	"bpimesh.org/mesh/header"
)

// commitJSON is the interchange form of a Commit. Binary fields are
// lowercase hex.
type commitJSON struct {
	HeaderHash  string   `json:"header_hash"`
	Signature   string   `json:"signature"`
	Signers     []string `json:"signers"`
	MessageHash string   `json:"message_hash"`
	Bitmap      string   `json:"bitmap"`
	Round       uint64   `json:"round"`
	Height      uint64   `json:"height"`
}

// MarshalJSON encodes the commit in its interchange form.
func (c *Commit) MarshalJSON() ([]byte, error) {
	if c.AggregateSignature == nil {
		return nil, fmt.Errorf("consensus: commit has no aggregate signature")
	}
	signers := make([]string, len(c.AggregateSignature.Signers))
	for i, pk := range c.AggregateSignature.Signers {
		signers[i] = hex.EncodeToString(pk.Bytes())
	}
	return json.Marshal(commitJSON{
		HeaderHash:  c.HeaderHash.Hex(),
		Signature:   hex.EncodeToString(c.AggregateSignature.Signature.Bytes()),
		Signers:     signers,
		MessageHash: hex.EncodeToString(c.AggregateSignature.MessageHash[:]),
		Bitmap:      hex.EncodeToString(c.Bitmap),
		Round:       c.Round,
		Height:      c.Height,
	})
}

// UnmarshalJSON decodes the interchange form.
func (c *Commit) UnmarshalJSON(data []byte) error {
	var w commitJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("consensus: invalid commit JSON: %w", err)
	}
	hh, err := header.HashFromHex(w.HeaderHash)
	if err != nil {
		return fmt.Errorf("consensus: invalid header hash: %w", err)
	}
	sigBytes, err := hex.DecodeString(w.Signature)
	if err != nil {
		return fmt.Errorf("consensus: invalid signature hex: %w", err)
	}
	sig, err := blsagg.SignatureFromBytes(sigBytes)
	if err != nil {
		return err
	}
	signers := make([]blsagg.PublicKey, len(w.Signers))
	for i, s := range w.Signers {
		pkBytes, err := hex.DecodeString(s)
		if err != nil {
			return fmt.Errorf("consensus: invalid signer %d hex: %w", i, err)
		}
		pk, err := blsagg.PublicKeyFromBytes(pkBytes)
		if err != nil {
			return err
		}
		signers[i] = pk
	}
	msgHashBytes, err := hex.DecodeString(w.MessageHash)
	if err != nil || len(msgHashBytes) != 32 {
		return fmt.Errorf("consensus: invalid message hash")
	}
	bitmap, err := hex.DecodeString(w.Bitmap)
	if err != nil {
		return fmt.Errorf("consensus: invalid bitmap hex: %w", err)
	}

	c.HeaderHash = hh
	c.AggregateSignature = &blsagg.AggregatedSignature{
		Signature: sig,
		Signers:   signers,
	}
	copy(c.AggregateSignature.MessageHash[:], msgHashBytes)
	c.Bitmap = ValidatorBitmap(bitmap)
	c.Round = w.Round
	c.Height = w.Height
	return nil
}

// ParseCommit decodes a commit from its JSON interchange form.
func ParseCommit(data []byte) (*Commit, error) {
	var c Commit
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
