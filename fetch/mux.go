package fetch

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"xdao.co/sigpolicy/policy"
	"xdao.co/sigpolicy/storage"
)

// Mux dispatches to a Fetcher by URL scheme.
type Mux struct {
	fetchers map[string]Fetcher
}

func NewMux() *Mux {
	return &Mux{fetchers: make(map[string]Fetcher)}
}

// NewDefaultMux wires http, https and file. When store is non-nil, cid and
// ipfs URLs resolve through it.
func NewDefaultMux(httpFetcher *HTTPFetcher, store storage.Store) *Mux {
	m := NewMux()
	if httpFetcher == nil {
		httpFetcher = &HTTPFetcher{}
	}
	m.Handle("http", httpFetcher)
	m.Handle("https", httpFetcher)
	m.Handle("file", &FileFetcher{MaxBytes: httpFetcher.MaxBytes})
	if store != nil {
		sf := &StoreFetcher{Store: store}
		m.Handle("cid", sf)
		m.Handle("ipfs", sf)
	}
	return m
}

// Handle registers f for scheme, replacing any earlier registration.
func (m *Mux) Handle(scheme string, f Fetcher) {
	m.fetchers[strings.ToLower(scheme)] = f
}

// Schemes lists registered schemes in sorted order.
func (m *Mux) Schemes() []string {
	out := make([]string, 0, len(m.fetchers))
	for s := range m.fetchers {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (m *Mux) Fetch(ctx context.Context, rawURL string) (*policy.Document, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("fetch: parse url: %w", err)
	}
	f, ok := m.fetchers[strings.ToLower(u.Scheme)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	return f.Fetch(ctx, strings.TrimSpace(rawURL))
}
