package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"strings"

	"bpimesh.org/mesh/blsagg"
)

func cmdSign(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var privHex, msg, file string
	fs.StringVar(&privHex, "priv-hex", "", "BLS private key as hex")
	fs.StringVar(&msg, "msg", "", "Message text")
	fs.StringVar(&file, "file", "", "Message file")

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
	sk, err := blsagg.PrivateKeyFromBytes(skBytes)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --priv-hex: %v\n", err)
		return 2
	}
	message, err := readMessage(msg, file)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	sig := sk.Sign(message)
	_, _ = fmt.Fprintln(out, hex.EncodeToString(sig.Bytes()))
	return 0
}

func cmdVerify(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var pubHex, sigHex, msg, file string
	fs.StringVar(&pubHex, "pub-hex", "", "BLS public key as hex")
	fs.StringVar(&sigHex, "sig", "", "Signature as hex")
	fs.StringVar(&msg, "msg", "", "Message text")
	fs.StringVar(&file, "file", "", "Message file")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	pk, sig, ok := parsePubSig(pubHex, sigHex, errOut)
	if !ok {
		return 2
	}
	message, err := readMessage(msg, file)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	if !pk.Verify(message, sig) {
		fmt.Fprintln(errOut, "signature invalid")
		return 1
	}
	_, _ = fmt.Fprintln(out, "OK")
	return 0
}

func parsePubSig(pubHex, sigHex string, errOut io.Writer) (blsagg.PublicKey, blsagg.Signature, bool) {
	var zeroPK blsagg.PublicKey
	var zeroSig blsagg.Signature
	if pubHex == "" {
		fmt.Fprintln(errOut, "missing --pub-hex")
		return zeroPK, zeroSig, false
	}
	if sigHex == "" {
		fmt.Fprintln(errOut, "missing --sig")
		return zeroPK, zeroSig, false
	}
	pkBytes, err := hexBytes(pubHex)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --pub-hex: %v\n", err)
		return zeroPK, zeroSig, false
	}
	pk, err := blsagg.PublicKeyFromBytes(pkBytes)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --pub-hex: %v\n", err)
		return zeroPK, zeroSig, false
	}
	sigBytes, err := hexBytes(sigHex)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --sig: %v\n", err)
		return zeroPK, zeroSig, false
	}
	sig, err := blsagg.SignatureFromBytes(sigBytes)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --sig: %v\n", err)
		return zeroPK, zeroSig, false
	}
	return pk, sig, true
}

func cmdAggregate(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("aggregate", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var msg, file string
	var sigs stringList
	fs.StringVar(&msg, "msg", "", "Message text every signature must cover")
	fs.StringVar(&file, "file", "", "Message file")
	fs.Var(&sigs, "sig", "Signature as <pubhex>:<sighex> (repeatable)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if len(sigs) == 0 {
		fmt.Fprintln(errOut, "missing --sig")
		return 2
	}
	message, err := readMessage(msg, file)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	agg := blsagg.NewAggregator()
	for i, entry := range sigs {
		pubHex, sigHex, ok := strings.Cut(entry, ":")
		if !ok {
			fmt.Fprintf(errOut, "--sig %d: expected <pubhex>:<sighex>\n", i)
			return 2
		}
		pk, sig, ok := parsePubSig(pubHex, sigHex, errOut)
		if !ok {
			return 2
		}
		if err := agg.Add(pk, sig, message); err != nil {
			fmt.Fprintf(errOut, "--sig %d: %v\n", i, err)
			return 1
		}
	}

	aggregate, err := agg.Aggregate()
	if err != nil {
		fmt.Fprintf(errOut, "aggregate: %v\n", err)
		return 1
	}

	signers := make([]string, len(aggregate.Signers))
	for i, pk := range aggregate.Signers {
		signers[i] = hex.EncodeToString(pk.Bytes())
	}
	result := struct {
		Signature   string   `json:"signature"`
		Signers     []string `json:"signers"`
		MessageHash string   `json:"message_hash"`
		Valid       bool     `json:"valid"`
	}{
		Signature:   hex.EncodeToString(aggregate.Signature.Bytes()),
		Signers:     signers,
		MessageHash: hex.EncodeToString(aggregate.MessageHash[:]),
		Valid:       aggregate.Verify(),
	}
	if err := writeJSON(out, result); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if !result.Valid {
		return 1
	}
	return 0
}
