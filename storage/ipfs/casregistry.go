package ipfs

import (
	"flag"

	"bpimesh.org/mesh/storage"
	"bpimesh.org/mesh/storage/casregistry"
)

var (
	flagBin string
)

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "ipfs",
		Description: "IPFS CAS via the local Kubo CLI (raw blocks)",
		Usage:       casregistry.UsageCLI,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flagBin, "ipfs-bin", "", "Path to the ipfs binary (for --backend=ipfs); defaults to \"ipfs\" on PATH")
		},
		Open: func() (storage.CAS, func() error, error) {
			return New(Options{Bin: flagBin}), nil, nil
		},
	})
}
