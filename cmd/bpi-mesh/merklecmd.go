package main

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"bpimesh.org/mesh/merkle"
	"bpimesh.org/mesh/vrf"
)

func cmdMerkle(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: bpi-mesh merkle <root|proof|verify> ...")
		return 2
	}
	switch args[0] {
	case "root":
		return cmdMerkleRoot(args[1:], out, errOut)
	case "proof":
		return cmdMerkleProof(args[1:], out, errOut)
	case "verify":
		return cmdMerkleVerify(args[1:], out, errOut)
	default:
		fmt.Fprintf(errOut, "unknown merkle subcommand: %s\n", args[0])
		return 2
	}
}

// merkleLeaves reads leaves from --file (one leaf per line, taken as raw
// bytes) or from positional hex arguments.
func merkleLeaves(file string, hexArgs []string) ([][]byte, error) {
	if file != "" && len(hexArgs) > 0 {
		return nil, fmt.Errorf("use --file or hex leaves, not both")
	}
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		var leaves [][]byte
		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 1<<20), 1<<20)
		for sc.Scan() {
			leaves = append(leaves, append([]byte(nil), sc.Bytes()...))
		}
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return leaves, nil
	}
	if len(hexArgs) == 0 {
		return nil, fmt.Errorf("missing leaves: use --file or hex arguments")
	}
	leaves := make([][]byte, len(hexArgs))
	for i, a := range hexArgs {
		b, err := hex.DecodeString(a)
		if err != nil {
			return nil, fmt.Errorf("leaf %d: %v", i, err)
		}
		leaves[i] = b
	}
	return leaves, nil
}

func cmdMerkleRoot(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("merkle root", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var file string
	fs.StringVar(&file, "file", "", "File with one leaf per line")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	leaves, err := merkleLeaves(file, fs.Args())
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	root, err := merkle.RootOf(leaves)
	if err != nil {
		fmt.Fprintf(errOut, "merkle root: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, root.Hex())
	return 0
}

// proofJSON is the CLI interchange form of a merkle proof.
type proofJSON struct {
	LeafIndex int    `json:"leaf_index"`
	LeafHash  string `json:"leaf_hash"`
	Root      string `json:"root"`
	Steps     []struct {
		Sibling string `json:"sibling"`
		IsRight bool   `json:"is_right"`
	} `json:"steps"`
}

func cmdMerkleProof(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("merkle proof", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var file string
	var index int
	fs.StringVar(&file, "file", "", "File with one leaf per line")
	fs.IntVar(&index, "index", 0, "Leaf index to prove")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	leaves, err := merkleLeaves(file, fs.Args())
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	tree, err := merkle.New(leaves)
	if err != nil {
		fmt.Fprintf(errOut, "merkle tree: %v\n", err)
		return 1
	}
	proof, err := tree.Proof(index)
	if err != nil {
		fmt.Fprintf(errOut, "merkle proof: %v\n", err)
		return 1
	}

	var pj proofJSON
	pj.LeafIndex = proof.LeafIndex
	pj.LeafHash = merkle.LeafHash(leaves[index]).Hex()
	pj.Root = tree.Root().Hex()
	for _, s := range proof.Steps {
		pj.Steps = append(pj.Steps, struct {
			Sibling string `json:"sibling"`
			IsRight bool   `json:"is_right"`
		}{Sibling: s.Sibling.Hex(), IsRight: s.IsRight})
	}
	if err := writeJSON(out, pj); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return 0
}

func cmdMerkleVerify(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("merkle verify", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var proofFile, rootHex, leaf, leafHex string
	fs.StringVar(&proofFile, "proof", "", "Proof JSON file (from 'merkle proof')")
	fs.StringVar(&rootHex, "root", "", "Expected root as hex")
	fs.StringVar(&leaf, "leaf", "", "Leaf content as text")
	fs.StringVar(&leafHex, "leaf-hex", "", "Leaf content as hex")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if proofFile == "" || rootHex == "" {
		fmt.Fprintln(errOut, "missing --proof or --root")
		return 2
	}
	if (leaf == "") == (leafHex == "") {
		fmt.Fprintln(errOut, "set exactly one of --leaf or --leaf-hex")
		return 2
	}
	leafData := []byte(leaf)
	if leafHex != "" {
		var err error
		leafData, err = hexBytes(leafHex)
		if err != nil {
			fmt.Fprintf(errOut, "invalid --leaf-hex: %v\n", err)
			return 2
		}
	}

	b, err := os.ReadFile(proofFile)
	if err != nil {
		fmt.Fprintf(errOut, "read proof: %v\n", err)
		return 1
	}
	var pj proofJSON
	if err := json.Unmarshal(b, &pj); err != nil {
		fmt.Fprintf(errOut, "invalid proof JSON: %v\n", err)
		return 1
	}
	proof := &merkle.Proof{LeafIndex: pj.LeafIndex}
	for i, s := range pj.Steps {
		sib, err := parseHash(s.Sibling)
		if err != nil {
			fmt.Fprintf(errOut, "invalid proof step %d: %v\n", i, err)
			return 1
		}
		proof.Steps = append(proof.Steps, merkle.ProofStep{Sibling: sib, IsRight: s.IsRight})
	}
	root, err := parseHash(rootHex)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --root: %v\n", err)
		return 2
	}

	if !proof.Verify(leafData, root) {
		fmt.Fprintln(errOut, "proof invalid")
		return 1
	}
	_, _ = fmt.Fprintln(out, "OK")
	return 0
}

func cmdVRF(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: bpi-mesh vrf <prove|verify> ...")
		return 2
	}
	switch args[0] {
	case "prove":
		return cmdVRFProve(args[1:], out, errOut)
	case "verify":
		return cmdVRFVerify(args[1:], out, errOut)
	default:
		fmt.Fprintf(errOut, "unknown vrf subcommand: %s\n", args[0])
		return 2
	}
}

func cmdVRFProve(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("vrf prove", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var privHex, msg, file string
	fs.StringVar(&privHex, "priv-hex", "", "VRF private key as hex")
	fs.StringVar(&msg, "msg", "", "Input text")
	fs.StringVar(&file, "file", "", "Input file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if privHex == "" {
		fmt.Fprintln(errOut, "missing --priv-hex")
		return 2
	}
	skBytes, err := hexBytes(privHex)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --priv-hex: %v\n", err)
		return 2
	}
	sk, err := vrf.PrivateKeyFromBytes(skBytes)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --priv-hex: %v\n", err)
		return 2
	}
	input, err := readMessage(msg, file)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	proof, output := sk.Prove(input)
	fmt.Fprintf(out, "Proof:  %s\n", hex.EncodeToString(proof.Bytes()))
	fmt.Fprintf(out, "Output: %s\n", hex.EncodeToString(output.Bytes()))
	return 0
}

func cmdVRFVerify(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("vrf verify", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var pubHex, proofHex, outputHex, msg, file string
	fs.StringVar(&pubHex, "pub-hex", "", "VRF public key as hex")
	fs.StringVar(&proofHex, "proof", "", "Proof as hex")
	fs.StringVar(&outputHex, "output", "", "Output as hex")
	fs.StringVar(&msg, "msg", "", "Input text")
	fs.StringVar(&file, "file", "", "Input file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if pubHex == "" || proofHex == "" || outputHex == "" {
		fmt.Fprintln(errOut, "missing --pub-hex, --proof, or --output")
		return 2
	}
	pkBytes, err := hexBytes(pubHex)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --pub-hex: %v\n", err)
		return 2
	}
	pk, err := vrf.PublicKeyFromBytes(pkBytes)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --pub-hex: %v\n", err)
		return 2
	}
	proofBytes, err := hexBytes(proofHex)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --proof: %v\n", err)
		return 2
	}
	proof, err := vrf.ProofFromBytes(proofBytes)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --proof: %v\n", err)
		return 2
	}
	outputBytes, err := hexBytes(outputHex)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --output: %v\n", err)
		return 2
	}
	output, err := vrf.OutputFromBytes(outputBytes)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --output: %v\n", err)
		return 2
	}
	input, err := readMessage(msg, file)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	if !pk.Verify(input, proof, output) {
		fmt.Fprintln(errOut, "vrf proof invalid")
		return 1
	}
	_, _ = fmt.Fprintln(out, "OK")
	return 0
}
