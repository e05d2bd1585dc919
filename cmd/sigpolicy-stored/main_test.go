package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRun_ListBackends(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run(context.Background(), []string{"-list-backends"}, &out, &errOut); code != 0 {
		t.Fatalf("exit %d: %s", code, errOut.String())
	}
	if !strings.Contains(out.String(), "localfs") || !strings.Contains(out.String(), "ipfs") {
		t.Fatalf("unexpected backend list:\n%s", out.String())
	}
	if strings.Contains(out.String(), "grpc\t") {
		t.Fatalf("client-only grpc backend listed for the daemon:\n%s", out.String())
	}
}

func TestRun_BadConfig(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(p, []byte("stores:\n  writePolicy: sometimes\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	var out, errOut bytes.Buffer
	if code := run(context.Background(), []string{"-config", p}, &out, &errOut); code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
	if !strings.Contains(errOut.String(), "writePolicy") {
		t.Fatalf("error should name the bad field: %s", errOut.String())
	}
}

func TestRun_MissingBackendOptions(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run(context.Background(), []string{"-backend", "localfs"}, &out, &errOut); code != 2 {
		t.Fatalf("expected exit 2 without -localfs-dir, got %d", code)
	}
}
