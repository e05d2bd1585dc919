package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"xdao.co/sigpolicy/storage"
	_ "xdao.co/sigpolicy/storage/localfs"
	"xdao.co/sigpolicy/storage/registry"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Logging.Level != "info" || cfg.Validation.Mode != "permissive" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Stores.WritePolicy != WriteFirst || time.Duration(cfg.Fetch.Timeout) != 30*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if err := validateConfig(cfg); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	yml := `
logging:
  level: debug
  encoding: json
validation:
  mode: strict
  rejectImplicit: true
fetch:
  timeout: 5s
stores:
  writePolicy: all
  backends:
    - type: localfs
      options:
        localfs-dir: ` + filepath.Join(dir, "a") + `
    - name: mirror
      type: localfs
      options:
        localfs-dir: ` + filepath.Join(dir, "b") + `
policies:
  - identifier: 2.16.724.1.3.1.1.2.1.9
    file: policies/age.pdf
`
	path := filepath.Join(dir, "sigpolicy.yaml")
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Validation.Mode != "strict" || !cfg.Validation.RejectImplicit {
		t.Fatalf("validation: %+v", cfg.Validation)
	}
	if time.Duration(cfg.Fetch.Timeout) != 5*time.Second {
		t.Fatalf("fetch.timeout: got %v", cfg.Fetch.Timeout)
	}
	if cfg.Stores.Backends[0].Name != "localfs" || cfg.Stores.Backends[1].Name != "mirror" {
		t.Fatalf("backend names: %+v", cfg.Stores.Backends)
	}
	if want := filepath.Join(dir, "policies", "age.pdf"); cfg.Policies[0].File != want {
		t.Fatalf("policy file: got %q want %q", cfg.Policies[0].File, want)
	}

	store, closeFn, err := cfg.OpenStores(registry.UsageCLI)
	if err != nil {
		t.Fatalf("OpenStores: %v", err)
	}
	defer closeFn()
	rs, ok := store.(storage.ReplicatingStore)
	if !ok || len(rs.Backends) != 2 {
		t.Fatalf("expected replicating store with 2 backends, got %T", store)
	}

	id, err := store.Put(context.Background(), []byte("replicated"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	for _, b := range rs.Backends {
		if !b.Store.Has(context.Background(), id) {
			t.Fatalf("backend %q missing replicated document", b.Name)
		}
	}
}

func TestParse_JSONAndFallback(t *testing.T) {
	cfg, err := Parse([]byte(`{"validation":{"mode":"strict"},"fetch":{"disabled":true,"timeout":"1m30s"}}`), ".json")
	if err != nil {
		t.Fatalf("Parse json: %v", err)
	}
	if cfg.Validation.Mode != "strict" || !cfg.Fetch.Disabled {
		t.Fatalf("unexpected %+v", cfg)
	}
	if time.Duration(cfg.Fetch.Timeout) != 90*time.Second {
		t.Fatalf("fetch.timeout: got %v", cfg.Fetch.Timeout)
	}
	if cfg.Fetcher(nil) != nil {
		t.Fatalf("disabled fetch without a store should yield no fetcher")
	}

	cfg, err = Parse([]byte("metrics:\n  enabled: true\n"), "")
	if err != nil {
		t.Fatalf("Parse fallback: %v", err)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != "/metrics" {
		t.Fatalf("unexpected metrics %+v", cfg.Metrics)
	}
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"level":         "logging:\n  level: loud\n",
		"mode":          "validation:\n  mode: lax\n",
		"write policy":  "stores:\n  writePolicy: some\n",
		"backend type":  "stores:\n  backends:\n    - name: x\n",
		"dup backend":   "stores:\n  backends:\n    - type: localfs\n    - type: localfs\n",
		"policy file":   "policies:\n  - identifier: 1.2\n",
		"policy target": "policies:\n  - file: a.pdf\n",
		"syntax":        "logging: [\n",
	}
	for name, in := range cases {
		if _, err := Parse([]byte(in), ".yaml"); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestOpenStores_NoneAndUnknown(t *testing.T) {
	cfg := Default()
	s, closeFn, err := cfg.OpenStores(registry.UsageCLI)
	if err != nil || s != nil {
		t.Fatalf("expected nil store, got %v, %v", s, err)
	}
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}

	cfg.Stores.Backends = []BackendConfig{{Name: "x", Type: "no-such-backend"}}
	if _, _, err := cfg.OpenStores(registry.UsageCLI); err == nil {
		t.Fatalf("expected unknown backend to fail")
	}
}

func TestProvider(t *testing.T) {
	cfg := Default()
	cfg.Policies = []PolicyConfig{{URL: "https://example.test/p.pdf", File: "/nonexistent/p.pdf"}}
	p, err := cfg.Provider()
	if err != nil {
		t.Fatalf("Provider: %v", err)
	}
	if p.Len() != 1 {
		t.Fatalf("Len: got %d", p.Len())
	}
}

func TestDuration_Forms(t *testing.T) {
	cfg, err := Parse([]byte(`{"fetch":{"timeout":2000000000}}`), ".json")
	if err != nil {
		t.Fatalf("Parse nanoseconds: %v", err)
	}
	if time.Duration(cfg.Fetch.Timeout) != 2*time.Second {
		t.Fatalf("nanoseconds: got %v", cfg.Fetch.Timeout)
	}
	if _, err := Parse([]byte(`{"fetch":{"timeout":"soon"}}`), ".json"); err == nil {
		t.Fatalf("expected invalid duration to fail")
	}
	if _, err := Parse([]byte("fetch:\n  timeout: soon\n"), ".yaml"); err == nil {
		t.Fatalf("expected invalid yaml duration to fail")
	}
}
