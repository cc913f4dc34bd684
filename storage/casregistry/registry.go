// Package casregistry is the process-wide registry of CAS backends.
//
// A backend package registers itself in init():
//
//	casregistry.MustRegister(casregistry.Backend{ ... })
//
// and is pulled into a binary with a (usually blank) import. Binaries then
// register all backend flags in one pass and open a backend by name.
package casregistry

import (
	"flag"
	"fmt"
	"sort"
	"sync"

	"bpimesh.org/mesh/storage"
)

// Backend describes one openable CAS implementation.
type Backend struct {
	Name        string
	Description string
	Usage       Usage

	// RegisterFlags adds the backend's flags to fs. A backend may be asked to
	// register on several FlagSets over a process lifetime (CLI subcommands
	// each parse their own), so implementations bind package-level variables.
	RegisterFlags func(fs *flag.FlagSet)

	// Open builds the CAS from whatever the registered flags currently hold.
	// The returned close function may be nil.
	Open func() (storage.CAS, func() error, error)
}

var (
	mu       sync.RWMutex
	backends = map[string]Backend{}
)

// Register adds b to the registry. Name collisions and incomplete backends
// are rejected.
func Register(b Backend) error {
	switch {
	case b.Name == "":
		return fmt.Errorf("casregistry: backend name is required")
	case b.RegisterFlags == nil:
		return fmt.Errorf("casregistry: backend %q missing RegisterFlags", b.Name)
	case b.Open == nil:
		return fmt.Errorf("casregistry: backend %q missing Open", b.Name)
	case b.Usage == 0:
		return fmt.Errorf("casregistry: backend %q missing Usage", b.Name)
	}

	mu.Lock()
	defer mu.Unlock()
	if _, exists := backends[b.Name]; exists {
		return fmt.Errorf("casregistry: backend %q already registered", b.Name)
	}
	backends[b.Name] = b
	return nil
}

// MustRegister is Register for init() use; it panics on error.
func MustRegister(b Backend) {
	if err := Register(b); err != nil {
		panic(err)
	}
}

// List returns the backends available for usage, ordered by name.
func List(usage Usage) []Backend {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Backend, 0, len(backends))
	for _, b := range backends {
		if b.Usage.allows(usage) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the sorted backend names available for usage.
func Names(usage Usage) []string {
	bs := List(usage)
	names := make([]string, len(bs))
	for i, b := range bs {
		names[i] = b.Name
	}
	return names
}

// RegisterFlags registers the flags of every backend available for usage on
// fs, so a single FlagSet.Parse accepts all backend flags at once.
func RegisterFlags(fs *flag.FlagSet, usage Usage) {
	for _, b := range List(usage) {
		b.RegisterFlags(fs)
	}
}

func lookup(name string, usage Usage) (Backend, error) {
	mu.RLock()
	b, ok := backends[name]
	mu.RUnlock()
	if !ok {
		return Backend{}, fmt.Errorf("unknown backend %q", name)
	}
	if !b.Usage.allows(usage) {
		return Backend{}, fmt.Errorf("backend %q not supported in this binary", name)
	}
	return b, nil
}

// Open opens the named backend using its currently parsed flag values.
func Open(name string, usage Usage) (storage.CAS, func() error, error) {
	b, err := lookup(name, usage)
	if err != nil {
		return nil, nil, err
	}
	return b.Open()
}

// OpenWithConfig opens the named backend with flag values taken from config
// instead of the command line, keyed by flag name.
//
// The backend's flags are bound to a throwaway FlagSet, which overwrites the
// backend's package-level flag variables. Do not mix config-driven and
// CLI-driven opening of the same backend in one process. Keys apply in sorted
// order; an unknown key fails.
func OpenWithConfig(name string, usage Usage, config map[string]string) (storage.CAS, func() error, error) {
	b, err := lookup(name, usage)
	if err != nil {
		return nil, nil, err
	}

	fs := flag.NewFlagSet("casregistry:"+name, flag.ContinueOnError)
	b.RegisterFlags(fs)

	keys := make([]string, 0, len(config))
	for k := range config {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := fs.Set(k, config[k]); err != nil {
			return nil, nil, fmt.Errorf("backend %q config %q: %w", name, k, err)
		}
	}
	return b.Open()
}
