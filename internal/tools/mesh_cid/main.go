// mesh_cid prints the CIDv1 (raw + sha2-256) of a file's bytes, matching
// the CID every mesh CAS backend derives on Put.
package main

import (
	"fmt"
	"os"

	"bpimesh.org/mesh/cidutil"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: mesh_cid <file>")
		os.Exit(2)
	}
	b, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "read: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(cidutil.CIDv1RawSHA256(b))
}
