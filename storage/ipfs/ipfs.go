// Package ipfs stores policy documents as raw blocks in a local Kubo repository
// through the "ipfs" CLI. It never talks to a daemon or to the network itself.
//
// Blocks are written as CIDv1 raw + sha2-256, so the CID of a policy document
// matches cidutil.ForBytes and a sha256 policy digest maps straight onto it.
package ipfs

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/ipfs/go-cid"

	"xdao.co/sigpolicy/cidutil"
	"xdao.co/sigpolicy/storage"
	"xdao.co/sigpolicy/storage/registry"
)

type Store struct {
	bin string
	env []string
	pin bool
}

var _ storage.Store = (*Store)(nil)

type Options struct {
	// Bin is the path to the ipfs binary. If empty, "ipfs" is used.
	Bin string
	// RepoPath sets IPFS_PATH for every invocation when non-empty.
	RepoPath string
	// Pin pins every block written by Put.
	Pin bool
}

func New(opts Options) *Store {
	bin := opts.Bin
	if bin == "" {
		bin = "ipfs"
	}
	var env []string
	if opts.RepoPath != "" {
		env = append(os.Environ(), "IPFS_PATH="+opts.RepoPath)
	}
	return &Store{bin: bin, env: env, pin: opts.Pin}
}

func (s *Store) Put(ctx context.Context, doc []byte) (cid.Cid, error) {
	id, err := cidutil.ForBytes(doc)
	if err != nil {
		return cid.Undef, err
	}

	args := []string{
		"block", "put",
		"--quiet",
		"--cid-codec=raw",
		"--mhtype=sha2-256",
		"--mhlen=32",
	}
	if s.pin {
		args = append(args, "--pin")
	}
	args = append(args, "/dev/stdin")
	out, err := s.run(ctx, doc, args...)
	if err != nil {
		return cid.Undef, err
	}

	got, err := cid.Decode(strings.TrimSpace(string(out)))
	if err != nil {
		return cid.Undef, fmt.Errorf("ipfs: unexpected block put output: %w", err)
	}
	if got != id {
		return cid.Undef, storage.ErrCIDMismatch
	}
	return id, nil
}

func (s *Store) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	out, err := s.run(ctx, nil, "block", "get", id.String())
	if err != nil {
		if isNotFound(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	got, err := cidutil.ForBytes(out)
	if err != nil {
		return nil, err
	}
	if got != id {
		return nil, storage.ErrCIDMismatch
	}
	return out, nil
}

func (s *Store) Has(ctx context.Context, id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	_, err := s.run(ctx, nil, "block", "stat", "--offline", id.String())
	return err == nil
}

func (s *Store) run(ctx context.Context, stdin []byte, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, s.bin, args...)
	if s.env != nil {
		cmd.Env = s.env
	}
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	out, err := cmd.Output()
	if err == nil {
		return out, nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if msg := strings.TrimSpace(string(ee.Stderr)); msg != "" {
			return nil, fmt.Errorf("ipfs: %s", msg)
		}
	}
	return nil, fmt.Errorf("ipfs: %w", err)
}

func isNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found")
}

var (
	flagBin  string
	flagRepo string
	flagPin  bool
)

func init() {
	registry.MustRegister(registry.Backend{
		Name:        "ipfs",
		Description: "Local Kubo repository via the ipfs CLI (offline)",
		Usage:       registry.UsageCLI | registry.UsageDaemon,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flagBin, "ipfs-bin", "ipfs", "ipfs binary (for --backend=ipfs)")
			fs.StringVar(&flagRepo, "ipfs-path", "", "IPFS_PATH override (for --backend=ipfs)")
			fs.BoolVar(&flagPin, "ipfs-pin", false, "Pin stored documents (for --backend=ipfs)")
		},
		Open: func() (storage.Store, func() error, error) {
			return New(Options{Bin: flagBin, RepoPath: flagRepo, Pin: flagPin}), nil, nil
		},
		OpenConfig: func(cfg map[string]string) (storage.Store, func() error, error) {
			return New(Options{Bin: cfg["ipfs-bin"], RepoPath: cfg["ipfs-path"], Pin: cfg["ipfs-pin"] == "true"}), nil, nil
		},
	})
}
