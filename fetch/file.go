package fetch

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path/filepath"

	"xdao.co/sigpolicy/policy"
)

// FileFetcher reads file:// URLs from the local filesystem.
type FileFetcher struct {
	MaxBytes int64
}

func (f *FileFetcher) Fetch(ctx context.Context, rawURL string) (*policy.Document, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch: parse url: %w", err)
	}
	if u.Scheme != "file" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Host != "" && u.Host != "localhost" {
		return nil, fmt.Errorf("fetch: remote file host %q not supported", u.Host)
	}
	return readFile(ctx, filepath.FromSlash(u.Path), "", f.MaxBytes)
}

// readFile loads p with a size cap. An empty mediaType is guessed from the extension.
func readFile(ctx context.Context, p, mediaType string, maxBytes int64) (*policy.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fh, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer fh.Close()

	limit := limitOrDefault(maxBytes)
	data, err := io.ReadAll(io.LimitReader(fh, limit+1))
	if err != nil {
		return nil, fmt.Errorf("fetch: read %s: %w", p, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, p)
	}

	if mediaType == "" {
		mediaType = mime.TypeByExtension(filepath.Ext(p))
		if mediaType == "" {
			mediaType = "application/octet-stream"
		}
	}
	return policy.NewDocument(filepath.Base(p), mediaType, data), nil
}
