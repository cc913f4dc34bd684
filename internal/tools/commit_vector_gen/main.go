// commit_vector_gen builds a deterministic consensus fixture: a 4-validator
// set, a height-1 header, and a 3-of-4 commit over it. The output files feed
// CLI walkthroughs and cross-implementation checks.
//
// Usage: commit_vector_gen <outdir>
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bpimesh.org/mesh/blsagg"
	"bpimesh.org/mesh/consensus"
	"bpimesh.org/mesh/enc"
	"bpimesh.org/mesh/header"
	"bpimesh.org/mesh/valset"
	"bpimesh.org/mesh/vrf"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: commit_vector_gen <outdir>")
		os.Exit(2)
	}
	outDir := os.Args[1]
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "mkdir: %v\n", err)
		os.Exit(1)
	}

	set := valset.New(valset.DefaultConfig(), 0)
	signers := make([]blsagg.PrivateKey, 4)
	for i := 0; i < 4; i++ {
		seed := []byte(fmt.Sprintf("commit-vector-%d", i))
		sk, pk := blsagg.GenerateKeypair(seed)
		_, vpk := vrf.GenerateKeypair(seed)
		signers[i] = sk
		must(set.Add(valset.ValidatorInfo{
			Index:     uint64(i),
			BLSPubkey: pk,
			VRFPubkey: vpk,
			Stake:     5000,
		}))
	}
	setHash, err := set.SetHash()
	must(err)

	genesis := header.Genesis(header.GenesisConfig{
		ChainID:          "commit-vector",
		Timestamp:        time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
		ValidatorSetHash: setHash,
	})
	next := &header.Header{
		Version:          header.Version,
		Height:           1,
		PrevHash:         enc.Hash(genesis.Hash()),
		ValidatorSetHash: setHash,
		Mode:             header.ModeIBFT,
		Timestamp:        genesis.Timestamp.Add(time.Second),
	}

	hh := next.Hash()
	agg := consensus.NewAggregator(hh, 0, next.Height, set)
	for i := 0; i < 3; i++ {
		sig := consensus.SignCommit(signers[i], hh, 0, next.Height)
		must(agg.AddSignature(uint64(i), hh, 0, sig))
	}
	commit, err := agg.Aggregate()
	must(err)

	writeJSON(filepath.Join(outDir, "valset.json"), set)
	writeJSON(filepath.Join(outDir, "genesis.json"), genesis)
	writeJSON(filepath.Join(outDir, "header.json"), next)
	writeJSON(filepath.Join(outDir, "commit.json"), commit)
	fmt.Printf("header hash: %s\n", hh.Hex())
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func writeJSON(path string, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	must(err)
	must(os.WriteFile(path, append(b, '\n'), 0o644))
}
