package localfs

import (
	"flag"
	"fmt"

	"bpimesh.org/mesh/storage"
	"bpimesh.org/mesh/storage/casregistry"
)

var flagLocalDir string

// The localfs backend is the only one enabled for both CLIs and daemons; it
// is the default everywhere a backend flag exists.
func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "localfs",
		Description: "Local filesystem CAS (directory)",
		Usage:       casregistry.UsageCLI | casregistry.UsageDaemon,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flagLocalDir, "localfs-dir", "", "LocalFS CAS directory (for --backend=localfs)")
		},
		Open: func() (storage.CAS, func() error, error) {
			if flagLocalDir == "" {
				return nil, nil, fmt.Errorf("missing --localfs-dir")
			}
			cas, err := New(flagLocalDir)
			return cas, nil, err
		},
	})
}
