package poe

import (
	"crypto/ed25519"
	"strings"
	"testing"
)

func testLogBlocks() []LogBlock {
	return []LogBlock{
		{
			V: 1, App: "app-1", Height: 10,
			MerkleRoot: ReceiptsRoot([][]byte{[]byte("r1"), []byte("r2")}),
			Count:      100,
			SigNotary:  "ed25519:notary",
			Range:      TimeRange{FromTS: "2025-08-01T00:00:00Z", ToTS: "2025-08-01T01:00:00Z"},
		},
		{
			V: 1, App: "app-1", Height: 11,
			MerkleRoot: ReceiptsRoot([][]byte{[]byte("r3")}),
			Count:      50,
			SigNotary:  "ed25519:notary",
			Range:      TimeRange{FromTS: "2025-08-01T01:00:00Z", ToTS: "2025-08-01T02:00:00Z"},
		},
	}
}

func TestAggregateLogBlockUsage(t *testing.T) {
	usage, err := AggregateLogBlockUsage(testLogBlocks())
	if err != nil {
		t.Fatalf("aggregation failed: %v", err)
	}
	// 150 receipts total: 10ms CPU, 5 MB·s, 0.001 GB·day, 0.1 MB each.
	want := ResourceUsage{
		CPUMillis:     1500,
		MemoryMBSec:   750,
		StorageGBDay:  0.15,
		EgressMB:      15,
		ReceiptsCount: 150,
	}
	if usage.CPUMillis != want.CPUMillis || usage.MemoryMBSec != want.MemoryMBSec ||
		usage.ReceiptsCount != want.ReceiptsCount {
		t.Fatalf("usage = %+v, want %+v", usage, want)
	}
	if diff := usage.StorageGBDay - want.StorageGBDay; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("storage = %v, want %v", usage.StorageGBDay, want.StorageGBDay)
	}
}

func TestAggregateRejectsBadTimeRange(t *testing.T) {
	blocks := testLogBlocks()
	blocks[1].Range.ToTS = "not-a-timestamp"
	if _, err := AggregateLogBlockUsage(blocks); err == nil {
		t.Fatalf("bad time range accepted")
	}
}

func TestNegativeTimeRangeClampsToZero(t *testing.T) {
	secs, err := parseTimeRange(TimeRange{
		FromTS: "2025-08-01T02:00:00Z",
		ToTS:   "2025-08-01T01:00:00Z",
	})
	if err != nil {
		t.Fatalf("reversed range errored: %v", err)
	}
	if secs != 0 {
		t.Fatalf("reversed range duration = %d, want 0", secs)
	}
}

func TestCreateBundle(t *testing.T) {
	calc := NewDefaultCalculator()
	blocks := testLogBlocks()

	b, err := calc.CreateBundle("app-1", blocks, "2025-08")
	if err != nil {
		t.Fatalf("CreateBundle failed: %v", err)
	}
	if b.V != BundleVersion || b.App != "app-1" || b.BillingWindow != "2025-08" {
		t.Fatalf("bundle header wrong: %+v", b)
	}
	if len(b.LogBlocks) != 2 || b.LogBlocks[0] != blocks[0].MerkleRoot {
		t.Fatalf("logblock roots not collected: %v", b.LogBlocks)
	}
	if b.SigBPIComm != "" {
		t.Fatalf("fresh bundle carries a signature")
	}
	if b.Gamma != calc.Gamma(b.Phi) {
		t.Fatalf("gamma inconsistent with phi")
	}

	if _, err := calc.CreateBundle("", blocks, "2025-08"); err == nil {
		t.Fatalf("empty app accepted")
	}
}

func TestBundleSignVerifyRoundTrip(t *testing.T) {
	calc := NewDefaultCalculator()
	b, err := calc.CreateBundle("app-1", testLogBlocks(), "2025-08")
	if err != nil {
		t.Fatalf("CreateBundle failed: %v", err)
	}

	priv := ed25519.NewKeyFromSeed([]byte("0123456789abcdef0123456789abcdef"))
	pub := priv.Public().(ed25519.PublicKey)

	if err := SignBundle(b, priv); err != nil {
		t.Fatalf("SignBundle failed: %v", err)
	}
	if !strings.HasPrefix(b.SigBPIComm, "ed25519:") {
		t.Fatalf("signature encoding wrong: %q", b.SigBPIComm)
	}
	if err := VerifyBundle(b, pub); err != nil {
		t.Fatalf("VerifyBundle failed: %v", err)
	}

	// Any mutation after signing must fail verification.
	b.Phi += 0.001
	if err := VerifyBundle(b, pub); err == nil {
		t.Fatalf("mutated bundle verified")
	}
	b.Phi -= 0.001

	otherPub := ed25519.NewKeyFromSeed([]byte("fedcba9876543210fedcba9876543210")).Public().(ed25519.PublicKey)
	if err := VerifyBundle(b, otherPub); err == nil {
		t.Fatalf("bundle verified under wrong key")
	}
}

func TestBundleCanonicalBytesStable(t *testing.T) {
	calc := NewDefaultCalculator()
	b, _ := calc.CreateBundle("app-1", testLogBlocks(), "2025-08")

	b1, err := b.CanonicalBytes()
	if err != nil {
		t.Fatalf("CanonicalBytes failed: %v", err)
	}
	b2, _ := b.CanonicalBytes()
	if string(b1) != string(b2) {
		t.Fatalf("canonical bytes not stable")
	}

	parsed, err := ParseBundle(b1)
	if err != nil {
		t.Fatalf("ParseBundle failed: %v", err)
	}
	if parsed.App != b.App || parsed.Phi != b.Phi || len(parsed.LogBlocks) != len(b.LogBlocks) {
		t.Fatalf("parse round trip lost fields")
	}

	if _, err := ParseBundle([]byte(`{"v":9}`)); err == nil {
		t.Fatalf("unknown bundle version accepted")
	}
}

func TestReceiptsRoot(t *testing.T) {
	a := ReceiptsRoot([][]byte{[]byte("r1"), []byte("r2")})
	b := ReceiptsRoot([][]byte{[]byte("r1"), []byte("r2")})
	if a != b {
		t.Fatalf("root not deterministic")
	}
	if !strings.HasPrefix(a, "blake3:") || len(a) != len("blake3:")+64 {
		t.Fatalf("root encoding wrong: %q", a)
	}

	c := ReceiptsRoot([][]byte{[]byte("r2"), []byte("r1")})
	if a == c {
		t.Fatalf("root insensitive to receipt order")
	}

	empty := ReceiptsRoot(nil)
	if !strings.HasPrefix(empty, "blake3:") {
		t.Fatalf("empty root encoding wrong: %q", empty)
	}
	if empty == a {
		t.Fatalf("empty root collides with nonempty root")
	}
}
