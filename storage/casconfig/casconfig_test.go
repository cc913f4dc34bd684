package casconfig

import (
	"os"
	"path/filepath"
	"testing"

	"bpimesh.org/mesh/storage/casregistry"
	"bpimesh.org/mesh/storage/localfs"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "empty",
			cfg:     Config{},
			wantErr: true,
		},
		{
			name: "ok single",
			cfg: Config{
				Backends: []BackendConfig{{Name: "localfs"}},
			},
		},
		{
			name: "missing name",
			cfg: Config{
				Backends: []BackendConfig{{ID: "a"}},
			},
			wantErr: true,
		},
		{
			name: "duplicate id",
			cfg: Config{
				Backends: []BackendConfig{
					{Name: "localfs", ID: "a"},
					{Name: "localfs", ID: "a"},
				},
			},
			wantErr: true,
		},
		{
			name: "distinct ids same backend",
			cfg: Config{
				Backends: []BackendConfig{
					{Name: "localfs", ID: "a"},
					{Name: "localfs", ID: "b"},
				},
			},
		},
		{
			name: "bad write policy",
			cfg: Config{
				WritePolicy: "quorum",
				Backends:    []BackendConfig{{Name: "localfs"}},
			},
			wantErr: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("Validate succeeded, want error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("Validate failed: %v", err)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cas.json")
	body := `{"write_policy":"all","backends":[{"name":"localfs","config":{"localfs-dir":"/tmp/x"}}]}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.WritePolicy != "all" || len(cfg.Backends) != 1 {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("LoadFile of missing file succeeded")
	}
}

func twoDirConfig(t *testing.T, policy string) (Config, string, string) {
	t.Helper()
	dirA := t.TempDir()
	dirB := t.TempDir()
	cfg := Config{
		WritePolicy: policy,
		Backends: []BackendConfig{
			{Name: "localfs", ID: "a", Config: map[string]string{"localfs-dir": dirA}},
			{Name: "localfs", ID: "b", Config: map[string]string{"localfs-dir": dirB}},
		},
	}
	return cfg, dirA, dirB
}

func TestOpen_FirstPolicyFallback(t *testing.T) {
	cfg, dirA, dirB := twoDirConfig(t, "first")

	cas, closeFn, err := cfg.Open(casregistry.UsageCLI, "")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if closeFn != nil {
		defer func() { _ = closeFn() }()
	}

	// Writes land only in the first backend.
	id, err := cas.Put([]byte("first-policy"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	a, err := localfs.New(dirA)
	if err != nil {
		t.Fatalf("New(dirA) failed: %v", err)
	}
	b, err := localfs.New(dirB)
	if err != nil {
		t.Fatalf("New(dirB) failed: %v", err)
	}
	if !a.Has(id) {
		t.Fatal("first backend missing written object")
	}
	if b.Has(id) {
		t.Fatal("second backend has object under write_policy first")
	}

	// Reads fall back to later backends.
	onlyB, err := b.Put([]byte("only-in-b"))
	if err != nil {
		t.Fatalf("Put to dirB failed: %v", err)
	}
	got, err := cas.Get(onlyB)
	if err != nil {
		t.Fatalf("Get fallback failed: %v", err)
	}
	if string(got) != "only-in-b" {
		t.Fatalf("Get fallback bytes: got %q", got)
	}
}

func TestOpen_AllPolicyReplicates(t *testing.T) {
	cfg, dirA, dirB := twoDirConfig(t, "all")

	cas, closeFn, err := cfg.Open(casregistry.UsageCLI, "")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if closeFn != nil {
		defer func() { _ = closeFn() }()
	}

	id, err := cas.Put([]byte("replicated"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	for _, dir := range []string{dirA, dirB} {
		fs, err := localfs.New(dir)
		if err != nil {
			t.Fatalf("New(%s) failed: %v", dir, err)
		}
		if !fs.Has(id) {
			t.Fatalf("backend at %s missing replicated object", dir)
		}
	}
}

func TestOpen_PreferredBackendReorders(t *testing.T) {
	cfg, dirA, dirB := twoDirConfig(t, "first")

	cas, closeFn, err := cfg.Open(casregistry.UsageCLI, "b")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if closeFn != nil {
		defer func() { _ = closeFn() }()
	}

	id, err := cas.Put([]byte("preferred-write"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	a, err := localfs.New(dirA)
	if err != nil {
		t.Fatalf("New(dirA) failed: %v", err)
	}
	b, err := localfs.New(dirB)
	if err != nil {
		t.Fatalf("New(dirB) failed: %v", err)
	}
	if !b.Has(id) {
		t.Fatal("preferred backend missing written object")
	}
	if a.Has(id) {
		t.Fatal("non-preferred backend received write")
	}

	if _, _, err := cfg.Open(casregistry.UsageCLI, "nope"); err == nil {
		t.Fatal("Open with unknown preferred backend succeeded")
	}
}
