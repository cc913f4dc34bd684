package poe

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// BundleVersion is the current bundle schema version.
const BundleVersion = 1

// Bundle is the PoE submission unit: aggregated usage with its Φ/Γ scores
// over a set of logblocks, signed by the BPI communicator.
//
// Field order in the struct is the canonical JSON field order; do not
// reorder.
type Bundle struct {
	V             uint8         `json:"v"`
	App           string        `json:"app"`
	LogBlocks     []string      `json:"log_blocks"`
	UsageSum      ResourceUsage `json:"usage_sum"`
	Phi           float64       `json:"phi"`
	Gamma         float64       `json:"gamma"`
	BillingWindow string        `json:"billing_window"`
	SigBPIComm    string        `json:"sig_bpi_comm"`
}

// CreateBundle aggregates logblock usage, computes Φ/Γ, and collects the
// logblock roots. The signature field is empty until SignBundle.
func (c *Calculator) CreateBundle(app string, logblocks []LogBlock, billingWindow string) (*Bundle, error) {
	if app == "" {
		return nil, fmt.Errorf("poe: bundle app is required")
	}

	usage, err := AggregateLogBlockUsage(logblocks)
	if err != nil {
		return nil, err
	}
	phi := c.Phi(usage)
	gamma := c.Gamma(phi)

	roots := make([]string, len(logblocks))
	for i, lb := range logblocks {
		roots[i] = lb.MerkleRoot
	}

	return &Bundle{
		V:             BundleVersion,
		App:           app,
		LogBlocks:     roots,
		UsageSum:      usage,
		Phi:           phi,
		Gamma:         gamma,
		BillingWindow: billingWindow,
	}, nil
}

// CanonicalBytes returns the bundle's canonical JSON encoding.
//
// encoding/json emits struct fields in declaration order, which is the
// canonical order for this schema.
func (b *Bundle) CanonicalBytes() ([]byte, error) {
	return json.Marshal(b)
}

// signingBytes is CanonicalBytes with the signature field cleared, which is
// what SignBundle signs and VerifyBundle checks.
func (b *Bundle) signingBytes() ([]byte, error) {
	unsigned := *b
	unsigned.SigBPIComm = ""
	return json.Marshal(&unsigned)
}

// SignBundle signs the bundle's canonical bytes (signature field empty) and
// fills SigBPIComm with "ed25519:<base64 signature>".
func SignBundle(b *Bundle, priv ed25519.PrivateKey) error {
	if len(priv) != ed25519.PrivateKeySize {
		return fmt.Errorf("poe: ed25519 private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(priv))
	}
	msg, err := b.signingBytes()
	if err != nil {
		return err
	}
	sig := ed25519.Sign(priv, msg)
	b.SigBPIComm = "ed25519:" + base64.StdEncoding.EncodeToString(sig)
	return nil
}

// VerifyBundle checks SigBPIComm against the bundle's canonical bytes.
func VerifyBundle(b *Bundle, pub ed25519.PublicKey) error {
	if len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("poe: ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, len(pub))
	}
	alg, encoded, ok := strings.Cut(b.SigBPIComm, ":")
	if !ok || alg != "ed25519" {
		return fmt.Errorf("poe: missing or malformed bundle signature")
	}
	sig, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("poe: invalid signature base64: %w", err)
	}
	msg, err := b.signingBytes()
	if err != nil {
		return err
	}
	if !ed25519.Verify(pub, msg, sig) {
		return fmt.Errorf("poe: bundle signature invalid")
	}
	return nil
}

// ParseBundle decodes a bundle from JSON and checks the schema version.
func ParseBundle(data []byte) (*Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("poe: invalid bundle JSON: %w", err)
	}
	if b.V != BundleVersion {
		return nil, fmt.Errorf("poe: unsupported bundle version %d", b.V)
	}
	return &b, nil
}
