package fetch

import (
	"context"
	"fmt"

	"xdao.co/sigpolicy/policy"
)

// Entry maps a policy identifier and/or URL to a local copy of the document.
type Entry struct {
	Identifier string
	URL        string
	File       string
	MediaType  string
}

// Provider serves locally configured policy documents, so validation works
// for policies whose published URL is unreachable or absent.
type Provider struct {
	byID     map[string]Entry
	byURL    map[string]Entry
	maxBytes int64
}

// NewProvider indexes entries. Later entries win on duplicate keys.
func NewProvider(entries []Entry, maxBytes int64) (*Provider, error) {
	p := &Provider{
		byID:     make(map[string]Entry),
		byURL:    make(map[string]Entry),
		maxBytes: maxBytes,
	}
	for i, e := range entries {
		if e.File == "" {
			return nil, fmt.Errorf("fetch: provider entry %d has no file", i)
		}
		if e.Identifier == "" && e.URL == "" {
			return nil, fmt.Errorf("fetch: provider entry %d needs an identifier or url", i)
		}
		if e.Identifier != "" {
			p.byID[e.Identifier] = e
		}
		if e.URL != "" {
			p.byURL[e.URL] = e
		}
	}
	return p, nil
}

// Lookup returns the configured document for d, matching on identifier first
// and then on URL. It returns ErrNotConfigured when nothing matches.
func (p *Provider) Lookup(ctx context.Context, d *policy.Descriptor) (*policy.Document, error) {
	if p == nil {
		return nil, ErrNotConfigured
	}
	e, ok := p.byID[d.Identifier()]
	if !ok {
		if u, has := d.URL(); has {
			e, ok = p.byURL[u]
		}
	}
	if !ok {
		return nil, ErrNotConfigured
	}
	return readFile(ctx, e.File, e.MediaType, p.maxBytes)
}

// Len reports how many distinct entries are indexed by identifier or URL.
func (p *Provider) Len() int {
	if p == nil {
		return 0
	}
	seen := make(map[string]struct{})
	for _, e := range p.byID {
		seen[e.File+"\x00"+e.Identifier+"\x00"+e.URL] = struct{}{}
	}
	for _, e := range p.byURL {
		seen[e.File+"\x00"+e.Identifier+"\x00"+e.URL] = struct{}{}
	}
	return len(seen)
}
