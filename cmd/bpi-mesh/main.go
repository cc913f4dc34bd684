// Command bpi-mesh is the operator CLI for the mesh: key management, BLS
// signing and aggregation, merkle and VRF utilities, proof-of-effort
// scoring, header and commit tooling, and content-addressed artifact
// storage.
package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"bpimesh.org/mesh/enc"
)

// version is stamped by the release build.
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "key":
		return cmdKey(args[1:], out, errOut)
	case "keygen":
		return cmdKeygen(args[1:], out, errOut)
	case "sign":
		return cmdSign(args[1:], out, errOut)
	case "verify":
		return cmdVerify(args[1:], out, errOut)
	case "aggregate":
		return cmdAggregate(args[1:], out, errOut)
	case "merkle":
		return cmdMerkle(args[1:], out, errOut)
	case "vrf":
		return cmdVRF(args[1:], out, errOut)
	case "poe":
		return cmdPoE(args[1:], out, errOut)
	case "header":
		return cmdHeader(args[1:], out, errOut)
	case "commit":
		return cmdCommit(args[1:], out, errOut)
	case "court":
		return cmdCourt(args[1:], out, errOut)
	case "store":
		return cmdStore(args[1:], out, errOut)
	case "checkpoint":
		return cmdCheckpoint(args[1:], out, errOut)
	case "vectors":
		return cmdVectors(args[1:], out, errOut)
	case "version":
		_, _ = fmt.Fprintf(out, "bpi-mesh %s\n", version)
		return 0
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "bpi-mesh: mesh operator CLI")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  bpi-mesh key init --name <name> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  bpi-mesh key derive --from <name> --role <role> [--force]")
	fmt.Fprintln(w, "  bpi-mesh key list")
	fmt.Fprintln(w, "  bpi-mesh key export --name <name> [--role <role>]")
	fmt.Fprintln(w, "  bpi-mesh keygen --alg bls|vrf|validator --seed-hex <hex>")
	fmt.Fprintln(w, "  bpi-mesh sign --priv-hex <hex> (--msg <text> | --file <path>)")
	fmt.Fprintln(w, "  bpi-mesh verify --pub-hex <hex> --sig <hex> (--msg <text> | --file <path>)")
	fmt.Fprintln(w, "  bpi-mesh aggregate (--msg <text> | --file <path>) --sig <pubhex>:<sighex> [--sig ...]")
	fmt.Fprintln(w, "  bpi-mesh merkle root (--file <path> | <hexleaf> ...)")
	fmt.Fprintln(w, "  bpi-mesh merkle proof --index <n> (--file <path> | <hexleaf> ...)")
	fmt.Fprintln(w, "  bpi-mesh merkle verify --proof <file> --root <hex> (--leaf <text> | --leaf-hex <hex>)")
	fmt.Fprintln(w, "  bpi-mesh vrf prove --priv-hex <hex> (--msg <text> | --file <path>)")
	fmt.Fprintln(w, "  bpi-mesh vrf verify --pub-hex <hex> --proof <hex> --output <hex> (--msg <text> | --file <path>)")
	fmt.Fprintln(w, "  bpi-mesh poe compute [usage flags | --logblocks <file>] [--court <file>]")
	fmt.Fprintln(w, "  bpi-mesh poe bundle --app <name> --window <id> --logblocks <file> [--sign-seed-hex <64hex>] [--store ...]")
	fmt.Fprintln(w, "  bpi-mesh header hash <header.json>")
	fmt.Fprintln(w, "  bpi-mesh header verify-chain <prev.json> <next.json>")
	fmt.Fprintln(w, "  bpi-mesh commit aggregate --header <file> --round <n> --valset <file> --signer <idx>:<privhex> [--signer ...]")
	fmt.Fprintln(w, "  bpi-mesh commit verify --commit <file> --valset <file> [--mode strict|permissive]")
	fmt.Fprintln(w, "  bpi-mesh court show <agreement.txt>")
	fmt.Fprintln(w, "  bpi-mesh store put|get|has [--backend <name>] [backend flags] ...")
	fmt.Fprintln(w, "  bpi-mesh checkpoint export|import [--backend <name>] [backend flags] ...")
	fmt.Fprintln(w, "  bpi-mesh vectors")
	fmt.Fprintln(w, "  bpi-mesh version")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - key stores under ~/.bpi-mesh/keys (0600 private key files)")
	fmt.Fprintln(w, "  - sign/verify/aggregate use the mesh BLS aggregation scheme")
	fmt.Fprintln(w, "  - store/checkpoint back onto localfs, grpc, or ipfs backends")
}

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// readMessage resolves the --msg / --file pair: exactly one must be set.
func readMessage(msg, file string) ([]byte, error) {
	if msg != "" && file != "" {
		return nil, fmt.Errorf("use --msg or --file, not both")
	}
	if msg != "" {
		return []byte(msg), nil
	}
	if file != "" {
		return os.ReadFile(file)
	}
	return nil, fmt.Errorf("missing --msg or --file")
}

func parseHash(s string) (enc.Hash, error) {
	return enc.HashFromHex(strings.TrimSpace(s))
}

func hexBytes(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimSpace(s))
}

func writeJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", b)
	return err
}
