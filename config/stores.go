package config

import (
	"errors"
	"fmt"
	"time"

	"xdao.co/sigpolicy/fetch"
	"xdao.co/sigpolicy/storage"
	"xdao.co/sigpolicy/storage/registry"
)

// OpenStores opens the configured backends through the registry. Backend
// packages must already be linked in (usually by blank import). With no
// backends configured it returns a nil store and a no-op closer.
func (c *Config) OpenStores(usage registry.Usage) (storage.Store, func() error, error) {
	if len(c.Stores.Backends) == 0 {
		return nil, func() error { return nil }, nil
	}

	var (
		named   []storage.Named
		closers []func() error
	)
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	for _, b := range c.Stores.Backends {
		s, closer, err := registry.OpenWithConfig(b.Type, usage, b.Options)
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("config: open store %q: %w", b.Name, err)
		}
		if closer != nil {
			closers = append(closers, closer)
		}
		named = append(named, storage.Named{Name: b.Name, Store: s})
	}

	if c.Stores.WritePolicy == WriteAll {
		return storage.ReplicatingStore{Backends: named}, closeAll, nil
	}
	stores := make([]storage.Store, 0, len(named))
	for _, n := range named {
		stores = append(stores, n.Store)
	}
	return storage.MultiStore{Stores: stores}, closeAll, nil
}

// Provider builds the local policy document provider from the policies section.
func (c *Config) Provider() (*fetch.Provider, error) {
	entries := make([]fetch.Entry, 0, len(c.Policies))
	for _, p := range c.Policies {
		entries = append(entries, fetch.Entry{
			Identifier: p.Identifier,
			URL:        p.URL,
			File:       p.File,
			MediaType:  p.MediaType,
		})
	}
	return fetch.NewProvider(entries, c.Fetch.MaxBytes)
}

// Fetcher builds the document fetcher. It returns nil when fetching is
// disabled; store lookups by cid: URL still go through store when non-nil.
func (c *Config) Fetcher(store storage.Store) fetch.Fetcher {
	if c.Fetch.Disabled {
		if store == nil {
			return nil
		}
		m := fetch.NewMux()
		sf := &fetch.StoreFetcher{Store: store}
		m.Handle("cid", sf)
		m.Handle("ipfs", sf)
		return m
	}
	return fetch.NewDefaultMux(&fetch.HTTPFetcher{
		Timeout:   time.Duration(c.Fetch.Timeout),
		MaxBytes:  c.Fetch.MaxBytes,
		UserAgent: c.Fetch.UserAgent,
	}, store)
}
