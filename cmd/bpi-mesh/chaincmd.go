package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"bpimesh.org/mesh/blsagg"
	"bpimesh.org/mesh/consensus"
	"bpimesh.org/mesh/header"
	"bpimesh.org/mesh/valset"
)

func cmdHeader(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: bpi-mesh header <hash|verify-chain> ...")
		return 2
	}
	switch args[0] {
	case "hash":
		return cmdHeaderHash(args[1:], out, errOut)
	case "verify-chain":
		return cmdHeaderVerifyChain(args[1:], out, errOut)
	default:
		fmt.Fprintf(errOut, "unknown header subcommand: %s\n", args[0])
		return 2
	}
}

func loadHeader(path string) (*header.Header, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	return header.ParseHeader(b)
}

func cmdHeaderHash(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("header hash", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: bpi-mesh header hash <header.json>")
		return 2
	}
	h, err := loadHeader(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	_, _ = fmt.Fprintln(out, h.Hash().Hex())
	return 0
}

func cmdHeaderVerifyChain(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("header verify-chain", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(errOut, "usage: bpi-mesh header verify-chain <prev.json> <next.json>")
		return 2
	}
	prev, err := loadHeader(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	next, err := loadHeader(fs.Arg(1))
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if err := header.ValidateChain(prev, next); err != nil {
		fmt.Fprintf(errOut, "chain invalid: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, "OK")
	return 0
}

func cmdCommit(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: bpi-mesh commit <aggregate|verify> ...")
		return 2
	}
	switch args[0] {
	case "aggregate":
		return cmdCommitAggregate(args[1:], out, errOut)
	case "verify":
		return cmdCommitVerify(args[1:], out, errOut)
	default:
		fmt.Fprintf(errOut, "unknown commit subcommand: %s\n", args[0])
		return 2
	}
}

func loadValset(path string) (*valset.Set, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read valset: %w", err)
	}
	return valset.ParseSet(b)
}

func cmdCommitAggregate(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("commit aggregate", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var headerPath, valsetPath string
	var round uint64
	var signers stringList
	fs.StringVar(&headerPath, "header", "", "Header JSON file to commit")
	fs.StringVar(&valsetPath, "valset", "", "Validator set JSON file")
	fs.Uint64Var(&round, "round", 0, "Consensus round")
	fs.Var(&signers, "signer", "Signer as <validator-index>:<bls-priv-hex> (repeatable)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if headerPath == "" || valsetPath == "" {
		fmt.Fprintln(errOut, "missing --header or --valset")
		return 2
	}
	if len(signers) == 0 {
		fmt.Fprintln(errOut, "missing --signer")
		return 2
	}

	h, err := loadHeader(headerPath)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	set, err := loadValset(valsetPath)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}

	hh := h.Hash()
	agg := consensus.NewAggregator(hh, round, h.Height, set)
	for i, entry := range signers {
		idxStr, privHex, ok := strings.Cut(entry, ":")
		if !ok {
			fmt.Fprintf(errOut, "--signer %d: expected <index>:<privhex>\n", i)
			return 2
		}
		idx, err := strconv.ParseUint(idxStr, 10, 64)
		if err != nil {
			fmt.Fprintf(errOut, "--signer %d: invalid index: %v\n", i, err)
			return 2
		}
		skBytes, err := hexBytes(privHex)
		if err != nil {
			fmt.Fprintf(errOut, "--signer %d: invalid key hex: %v\n", i, err)
			return 2
		}
		sk, err := blsagg.PrivateKeyFromBytes(skBytes)
		if err != nil {
			fmt.Fprintf(errOut, "--signer %d: %v\n", i, err)
			return 2
		}
		sig := consensus.SignCommit(sk, hh, round, h.Height)
		if err := agg.AddSignature(idx, hh, round, sig); err != nil {
			fmt.Fprintf(errOut, "--signer %d (validator %d): %v\n", i, idx, err)
			return 1
		}
	}

	commit, err := agg.Aggregate()
	if err != nil {
		fmt.Fprintf(errOut, "aggregate: %v\n", err)
		return 1
	}
	if err := writeJSON(out, commit); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return 0
}

func cmdCommitVerify(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("commit verify", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var commitPath, valsetPath, mode string
	fs.StringVar(&commitPath, "commit", "", "Commit JSON file")
	fs.StringVar(&valsetPath, "valset", "", "Validator set JSON file")
	fs.StringVar(&mode, "mode", "strict", "Verification mode: strict or permissive")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if commitPath == "" || valsetPath == "" {
		fmt.Fprintln(errOut, "missing --commit or --valset")
		return 2
	}
	var verifyMode consensus.VerifyMode
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "strict":
		verifyMode = consensus.Strict
	case "permissive":
		verifyMode = consensus.Permissive
	default:
		fmt.Fprintln(errOut, "invalid --mode (expected strict or permissive)")
		return 2
	}

	b, err := os.ReadFile(commitPath)
	if err != nil {
		fmt.Fprintf(errOut, "read commit: %v\n", err)
		return 1
	}
	commit, err := consensus.ParseCommit(b)
	if err != nil {
		fmt.Fprintf(errOut, "parse commit: %v\n", err)
		return 1
	}
	set, err := loadValset(valsetPath)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}

	verification := consensus.VerifyCommit(commit, set, verifyMode)
	if err := writeJSON(out, verification); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if !verification.IsValid {
		return 1
	}
	return 0
}
