// Package registry links policy document store backends into binaries.
//
// Backends register themselves in init(); a binary enables one by importing
// the backend package, usually as a blank import.
package registry

import (
	"flag"
	"fmt"
	"sort"
	"sync"

	"xdao.co/sigpolicy/storage"
)

// Usage restricts which programs accept a backend.
type Usage uint8

const (
	// UsageCLI marks backends usable from the sigpolicy CLI.
	UsageCLI Usage = 1 << iota
	// UsageDaemon marks backends usable behind sigpolicy-stored.
	UsageDaemon
)

func (u Usage) allows(want Usage) bool { return u&want != 0 }

// Backend opens a storage.Store either from its registered flags or from a
// key/value config map (keys usually mirror the flag names).
type Backend struct {
	Name        string
	Description string
	Usage       Usage

	RegisterFlags func(fs *flag.FlagSet)
	Open          func() (storage.Store, func() error, error)
	OpenConfig    func(cfg map[string]string) (storage.Store, func() error, error)
}

var (
	mu       sync.RWMutex
	backends = map[string]Backend{}
)

func Register(b Backend) error {
	if b.Name == "" {
		return fmt.Errorf("registry: backend name is required")
	}
	if b.RegisterFlags == nil || b.Open == nil || b.OpenConfig == nil {
		return fmt.Errorf("registry: backend %q is incomplete", b.Name)
	}
	if b.Usage == 0 {
		return fmt.Errorf("registry: backend %q missing Usage", b.Name)
	}

	mu.Lock()
	defer mu.Unlock()
	if _, exists := backends[b.Name]; exists {
		return fmt.Errorf("registry: backend %q already registered", b.Name)
	}
	backends[b.Name] = b
	return nil
}

func MustRegister(b Backend) {
	if err := Register(b); err != nil {
		panic(err)
	}
}

// List returns backends matching usage, sorted by name.
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

func Names(usage Usage) []string {
	bs := List(usage)
	n := make([]string, 0, len(bs))
	for _, b := range bs {
		n = append(n, b.Name)
	}
	return n
}

// RegisterFlags registers flags for every backend matching usage so a single
// flag.Parse pass accepts all of them.
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
		return Backend{}, fmt.Errorf("registry: unknown backend %q", name)
	}
	if !b.Usage.allows(usage) {
		return Backend{}, fmt.Errorf("registry: backend %q not supported in this binary", name)
	}
	return b, nil
}

// Open opens the named backend from parsed flag values.
func Open(name string, usage Usage) (storage.Store, func() error, error) {
	b, err := lookup(name, usage)
	if err != nil {
		return nil, nil, err
	}
	return b.Open()
}

// OpenWithConfig opens the named backend from a config map.
func OpenWithConfig(name string, usage Usage, cfg map[string]string) (storage.Store, func() error, error) {
	b, err := lookup(name, usage)
	if err != nil {
		return nil, nil, err
	}
	return b.OpenConfig(cfg)
}
