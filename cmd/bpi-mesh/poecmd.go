package main

import (
	"crypto/ed25519"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"bpimesh.org/mesh/court"
	"bpimesh.org/mesh/keys"
	"bpimesh.org/mesh/poe"
	"bpimesh.org/mesh/storage/casregistry"
)

func cmdPoE(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: bpi-mesh poe <compute|bundle> ...")
		return 2
	}
	switch args[0] {
	case "compute":
		return cmdPoECompute(args[1:], out, errOut)
	case "bundle":
		return cmdPoEBundle(args[1:], out, errOut)
	default:
		fmt.Fprintf(errOut, "unknown poe subcommand: %s\n", args[0])
		return 2
	}
}

// loadCalculator returns the calculator derived from a court agreement file,
// or the default calculator when no agreement is given.
func loadCalculator(courtPath string) (*poe.Calculator, error) {
	if courtPath == "" {
		return poe.NewDefaultCalculator(), nil
	}
	b, err := os.ReadFile(courtPath)
	if err != nil {
		return nil, fmt.Errorf("read court agreement: %w", err)
	}
	agreement, err := court.Parse(b)
	if err != nil {
		return nil, err
	}
	if err := agreement.Validate(); err != nil {
		return nil, err
	}
	return agreement.Calculator()
}

func loadLogBlocks(path string) ([]poe.LogBlock, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read logblocks: %w", err)
	}
	var logblocks []poe.LogBlock
	if err := json.Unmarshal(b, &logblocks); err != nil {
		return nil, fmt.Errorf("invalid logblocks JSON: %w", err)
	}
	return logblocks, nil
}

func cmdPoECompute(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("poe compute", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var usage poe.ResourceUsage
	var logblocksPath, courtPath string
	fs.Uint64Var(&usage.CPUMillis, "cpu-millis", 0, "CPU usage in milliseconds")
	fs.Uint64Var(&usage.MemoryMBSec, "memory-mbsec", 0, "Memory usage in MB-seconds")
	fs.Float64Var(&usage.StorageGBDay, "storage-gbday", 0, "Storage usage in GB-days")
	fs.Float64Var(&usage.EgressMB, "egress-mb", 0, "Egress in MB")
	fs.Uint64Var(&usage.ReceiptsCount, "receipts", 0, "Receipt count")
	fs.StringVar(&logblocksPath, "logblocks", "", "JSON file with a logblock array (overrides usage flags)")
	fs.StringVar(&courtPath, "court", "", "Court agreement file for weights/scales")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if logblocksPath != "" {
		if !usage.IsZero() {
			fmt.Fprintln(errOut, "use usage flags or --logblocks, not both")
			return 2
		}
		logblocks, err := loadLogBlocks(logblocksPath)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		usage, err = poe.AggregateLogBlockUsage(logblocks)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
	}

	calc, err := loadCalculator(courtPath)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}

	phi, gamma, nexMint := calc.CalculatePoE(usage)
	result := struct {
		Usage   poe.ResourceUsage `json:"usage"`
		Phi     float64           `json:"phi"`
		Gamma   float64           `json:"gamma"`
		NEXMint float64           `json:"nex_mint"`
	}{usage, phi, gamma, nexMint}
	if err := writeJSON(out, result); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return 0
}

func cmdPoEBundle(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("poe bundle", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var app, window, logblocksPath, courtPath, signSeedHex string
	var store bool
	var backend string
	fs.StringVar(&app, "app", "", "Application identifier")
	fs.StringVar(&window, "window", "", "Billing window identifier (e.g. 2025-08)")
	fs.StringVar(&logblocksPath, "logblocks", "", "JSON file with a logblock array")
	fs.StringVar(&courtPath, "court", "", "Court agreement file for weights/scales")
	fs.StringVar(&signSeedHex, "sign-seed-hex", "", "ed25519 seed (64 hex) to sign the bundle")
	fs.BoolVar(&store, "store", false, "Store the bundle in a CAS backend and print its CID")
	fs.StringVar(&backend, "backend", "localfs", "CAS backend name (with --store)")
	casregistry.RegisterFlags(fs, casregistry.UsageCLI)

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if app == "" || window == "" || logblocksPath == "" {
		fmt.Fprintln(errOut, "missing --app, --window, or --logblocks")
		return 2
	}

	logblocks, err := loadLogBlocks(logblocksPath)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	calc, err := loadCalculator(courtPath)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	bundle, err := calc.CreateBundle(app, logblocks, window)
	if err != nil {
		fmt.Fprintf(errOut, "bundle: %v\n", err)
		return 1
	}

	if signSeedHex != "" {
		seed, err := keys.ParseSeedHex(signSeedHex)
		if err != nil {
			fmt.Fprintf(errOut, "invalid --sign-seed-hex: %v\n", err)
			return 2
		}
		priv := ed25519.NewKeyFromSeed(seed)
		if err := poe.SignBundle(bundle, priv); err != nil {
			fmt.Fprintf(errOut, "sign bundle: %v\n", err)
			return 1
		}
	}

	bundleBytes, err := bundle.CanonicalBytes()
	if err != nil {
		fmt.Fprintf(errOut, "encode bundle: %v\n", err)
		return 1
	}

	if store {
		cas, closeFn, err := casregistry.Open(backend, casregistry.UsageCLI)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		if closeFn != nil {
			defer func() { _ = closeFn() }()
		}
		id, err := cas.Put(bundleBytes)
		if err != nil {
			fmt.Fprintf(errOut, "store bundle: %v\n", err)
			return 1
		}
		fmt.Fprintf(errOut, "Bundle-CID: %s\n", id)
	}

	_, _ = fmt.Fprintf(out, "%s\n", bundleBytes)
	return 0
}

func cmdCourt(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 || args[0] != "show" {
		fmt.Fprintln(errOut, "usage: bpi-mesh court show <agreement.txt>")
		return 2
	}
	fs := flag.NewFlagSet("court show", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: bpi-mesh court show <agreement.txt>")
		return 2
	}
	b, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read agreement: %v\n", err)
		return 1
	}
	agreement, err := court.Parse(b)
	if err != nil {
		fmt.Fprintf(errOut, "parse agreement: %v\n", err)
		return 1
	}
	if err := agreement.Validate(); err != nil {
		fmt.Fprintf(errOut, "invalid agreement: %v\n", err)
		return 1
	}

	weights, err := agreement.PoEWeights()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	scales, err := agreement.PoEScales()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	result := struct {
		Meta      map[string]string     `json:"meta"`
		Weights   poe.Weights           `json:"weights"`
		Scales    poe.Scales            `json:"scales"`
		Consensus court.ConsensusPolicy `json:"consensus"`
		Fees      any                   `json:"fees"`
	}{agreement.Meta, weights, scales, agreement.Consensus, agreement.FeePolicy()}
	if err := writeJSON(out, result); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return 0
}

func cmdVectors(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("vectors", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if err := writeJSON(out, poe.GoldenVectors()); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return 0
}
