// Package fetch retrieves signature policy documents named by a descriptor's
// URL or identifier.
//
// Retrieval is plain: bytes come back as they were served. Nothing here
// interprets the document or checks it against a declared digest.
package fetch

import (
	"context"
	"errors"

	"xdao.co/sigpolicy/policy"
)

// DefaultMaxBytes bounds a single document when a fetcher has no explicit limit.
const DefaultMaxBytes int64 = 16 << 20

var (
	ErrUnsupportedScheme = errors.New("fetch: unsupported url scheme")
	ErrTooLarge          = errors.New("fetch: document exceeds size limit")
	ErrStatus            = errors.New("fetch: unexpected response status")
	ErrNotConfigured     = errors.New("fetch: no local document configured")
)

// Fetcher retrieves the document at rawURL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*policy.Document, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, rawURL string) (*policy.Document, error)

func (f FetcherFunc) Fetch(ctx context.Context, rawURL string) (*policy.Document, error) {
	return f(ctx, rawURL)
}

func limitOrDefault(n int64) int64 {
	if n <= 0 {
		return DefaultMaxBytes
	}
	return n
}
