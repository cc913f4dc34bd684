package poe

import (
	"encoding/hex"
	"fmt"
	"time"

	"lukechampine.com/blake3"
)

// TimeRange bounds a logblock's receipt window with RFC 3339 timestamps.
type TimeRange struct {
	FromTS string `json:"from_ts"`
	ToTS   string `json:"to_ts"`
}

// LogBlock is a notarized batch of execution receipts produced by an
// ENC notary. MerkleRoot is "blake3:<hex>" over the receipt hashes.
type LogBlock struct {
	V          uint8     `json:"v"`
	App        string    `json:"app"`
	Height     uint64    `json:"height"`
	MerkleRoot string    `json:"merkle_root"`
	Count      uint32    `json:"count"`
	SigNotary  string    `json:"sig_notary"`
	Range      TimeRange `json:"range"`
}

// Per-receipt usage estimates applied when the actual step receipts are not
// parsed. These are the protocol's fixed estimation constants.
const (
	estCPUMillisPerReceipt    = 10
	estMemoryMBSecPerReceipt  = 5
	estStorageGBDayPerReceipt = 0.001
	estEgressMBPerReceipt     = 0.1
)

// AggregateLogBlockUsage sums the estimated usage of each logblock.
//
// Every logblock's time range must parse; a bad range fails the whole
// aggregation.
func AggregateLogBlockUsage(logblocks []LogBlock) (ResourceUsage, error) {
	var total ResourceUsage
	for i, lb := range logblocks {
		usage, err := estimateUsage(lb)
		if err != nil {
			return ResourceUsage{}, fmt.Errorf("poe: logblock %d: %w", i, err)
		}
		total.Add(usage)
	}
	return total, nil
}

func estimateUsage(lb LogBlock) (ResourceUsage, error) {
	if _, err := parseTimeRange(lb.Range); err != nil {
		return ResourceUsage{}, err
	}
	n := uint64(lb.Count)
	return ResourceUsage{
		CPUMillis:     n * estCPUMillisPerReceipt,
		MemoryMBSec:   n * estMemoryMBSecPerReceipt,
		StorageGBDay:  float64(lb.Count) * estStorageGBDayPerReceipt,
		EgressMB:      float64(lb.Count) * estEgressMBPerReceipt,
		ReceiptsCount: n,
	}, nil
}

// parseTimeRange returns the window duration in whole seconds.
// Negative durations clamp to zero; parse failures are errors.
func parseTimeRange(r TimeRange) (uint64, error) {
	from, err := time.Parse(time.RFC3339, r.FromTS)
	if err != nil {
		return 0, fmt.Errorf("invalid from_ts: %w", err)
	}
	to, err := time.Parse(time.RFC3339, r.ToTS)
	if err != nil {
		return 0, fmt.Errorf("invalid to_ts: %w", err)
	}
	d := to.Sub(from)
	if d < 0 {
		return 0, nil
	}
	return uint64(d / time.Second), nil
}

// ReceiptsRoot computes the "blake3:<hex>" root over receipt hashes.
//
// The tree is binary with blake3 pair hashing; odd levels duplicate the
// last node; an empty set yields the hash of no input.
func ReceiptsRoot(receiptHashes [][]byte) string {
	if len(receiptHashes) == 0 {
		empty := blake3.Sum256(nil)
		return "blake3:" + hex.EncodeToString(empty[:])
	}

	level := make([][32]byte, len(receiptHashes))
	for i, h := range receiptHashes {
		level[i] = blake3.Sum256(h)
	}
	for len(level) > 1 {
		next := make([][32]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left
			if i+1 < len(level) {
				right = level[i+1]
			}
			pair := make([]byte, 0, 64)
			pair = append(pair, left[:]...)
			pair = append(pair, right[:]...)
			next = append(next, blake3.Sum256(pair))
		}
		level = next
	}
	return "blake3:" + hex.EncodeToString(level[0][:])
}
