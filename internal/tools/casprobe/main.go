// casprobe smoke-tests a CAS backend: put a payload, read it back, check
// presence. Exit 0 means the backend honors the CAS contract for that
// round trip.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"time"

	"bpimesh.org/mesh/storage/casregistry"

	_ "bpimesh.org/mesh/storage/grpccas"
	_ "bpimesh.org/mesh/storage/ipfs"
	_ "bpimesh.org/mesh/storage/localfs"
)

func main() {
	fs := flag.NewFlagSet("casprobe", flag.ExitOnError)
	backend := fs.String("backend", "localfs", "CAS backend name")
	casregistry.RegisterFlags(fs, casregistry.UsageCLI)
	_ = fs.Parse(os.Args[1:])

	cas, closeFn, err := casregistry.Open(*backend, casregistry.UsageCLI)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if closeFn != nil {
		defer func() { _ = closeFn() }()
	}

	payload := []byte(fmt.Sprintf("casprobe %s %d", *backend, time.Now().UnixNano()))
	id, err := cas.Put(payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "put: %v\n", err)
		os.Exit(1)
	}
	got, err := cas.Get(id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "get %s: %v\n", id, err)
		os.Exit(1)
	}
	if !bytes.Equal(got, payload) {
		fmt.Fprintf(os.Stderr, "get %s: bytes differ\n", id)
		os.Exit(1)
	}
	if !cas.Has(id) {
		fmt.Fprintf(os.Stderr, "has %s: false after put\n", id)
		os.Exit(1)
	}
	fmt.Printf("OK %s\n", id)
}
