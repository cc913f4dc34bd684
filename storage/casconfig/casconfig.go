// Package casconfig opens one or more CAS backends from a JSON config file,
// composing them into a single storage.CAS.
//
// The config names casregistry backends; the binary still has to link the
// backend packages (blank imports) for the names to resolve.
//
// Example:
//
//	{
//	  "write_policy": "all",
//	  "backends": [
//	    {"name":"localfs", "config":{"localfs-dir":"/var/lib/mesh/cas"}},
//	    {"name":"ipfs", "config":{"ipfs-bin":"/usr/local/bin/ipfs"}}
//	  ]
//	}
//
// write_policy "first" (the default) writes to the first backend and reads
// with ordered fallback; "all" replicates writes to every backend and
// requires CID agreement. Config keys are backend-specific and mirror the
// backend's CLI flag names.
package casconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"bpimesh.org/mesh/storage"
	"bpimesh.org/mesh/storage/casregistry"
)

type Config struct {
	WritePolicy string          `json:"write_policy,omitempty"`
	Backends    []BackendConfig `json:"backends"`
}

type BackendConfig struct {
	// Name is the casregistry backend to open ("localfs", "grpc", "ipfs").
	Name string `json:"name"`
	// ID optionally distinguishes multiple instances of the same backend;
	// it keys the per-backend CID map on replicated writes. Defaults to Name.
	ID     string            `json:"id,omitempty"`
	Config map[string]string `json:"config,omitempty"`
}

func (b BackendConfig) ident() string {
	if b.ID != "" {
		return b.ID
	}
	return b.Name
}

// LoadFile reads and validates a config file.
func LoadFile(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, errors.New("casconfig: empty config path")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if len(c.Backends) == 0 {
		return errors.New("casconfig: at least one backend is required")
	}
	seen := make(map[string]struct{}, len(c.Backends))
	for _, b := range c.Backends {
		if b.Name == "" {
			return errors.New("casconfig: backend name is required")
		}
		id := b.ident()
		if _, dup := seen[id]; dup {
			return fmt.Errorf("casconfig: duplicate backend id %q", id)
		}
		seen[id] = struct{}{}
	}
	switch c.WritePolicy {
	case "", "first", "all":
		return nil
	default:
		return fmt.Errorf("casconfig: invalid write_policy %q", c.WritePolicy)
	}
}

// Open opens every configured backend and composes them per WritePolicy.
//
// A non-empty preferredBackend (matched against Name or ID) is moved to the
// front, making it the write target under write_policy "first".
func (c Config) Open(usage casregistry.Usage, preferredBackend string) (storage.CAS, func() error, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}

	ordered, err := c.reorder(preferredBackend)
	if err != nil {
		return nil, nil, err
	}

	var (
		named   []storage.NamedCAS
		closers []func() error
	)
	closeAll := func() error {
		var firstErr error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	for _, b := range ordered {
		cas, closeFn, err := casregistry.OpenWithConfig(b.Name, usage, b.Config)
		if err != nil {
			_ = closeAll()
			return nil, nil, err
		}
		named = append(named, storage.NamedCAS{Name: b.ident(), CAS: cas})
		if closeFn != nil {
			closers = append(closers, closeFn)
		}
	}

	if len(named) == 1 {
		return named[0].CAS, closeAll, nil
	}

	if c.WritePolicy == "all" {
		return storage.ReplicatingCAS{Backends: named}, closeAll, nil
	}
	adapters := make([]storage.CAS, len(named))
	for i, n := range named {
		adapters[i] = n.CAS
	}
	return storage.MultiCAS{Adapters: adapters}, closeAll, nil
}

func (c Config) reorder(preferred string) ([]BackendConfig, error) {
	ordered := append([]BackendConfig(nil), c.Backends...)
	if preferred == "" {
		return ordered, nil
	}
	for i, b := range ordered {
		if b.Name == preferred || b.ID == preferred {
			copy(ordered[1:i+1], ordered[:i])
			ordered[0] = b
			return ordered, nil
		}
	}
	return nil, fmt.Errorf("casconfig: preferred backend %q not found in config", preferred)
}
