package fetch

import (
	"context"
	"fmt"
	"strings"

	"github.com/ipfs/go-cid"

	"xdao.co/sigpolicy/policy"
	"xdao.co/sigpolicy/storage"
)

// StoreFetcher resolves cid:<cid> and ipfs://<cid> URLs through a policy
// document store.
type StoreFetcher struct {
	Store storage.Store
}

func (f *StoreFetcher) Fetch(ctx context.Context, rawURL string) (*policy.Document, error) {
	id, err := ParseCIDURL(rawURL)
	if err != nil {
		return nil, err
	}
	data, err := f.Store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch: %s: %w", id, err)
	}
	return policy.NewDocument(id.String(), "application/octet-stream", data), nil
}

// ParseCIDURL extracts the CID from a cid: or ipfs:// URL.
func ParseCIDURL(rawURL string) (cid.Cid, error) {
	var s string
	switch {
	case strings.HasPrefix(rawURL, "cid:"):
		s = strings.TrimPrefix(rawURL, "cid:")
	case strings.HasPrefix(rawURL, "ipfs://"):
		s = strings.TrimPrefix(rawURL, "ipfs://")
		s = strings.TrimPrefix(s, "ipfs/")
		if i := strings.IndexByte(s, '/'); i >= 0 {
			return cid.Undef, fmt.Errorf("fetch: ipfs paths below a CID are not supported: %s", rawURL)
		}
	default:
		return cid.Undef, fmt.Errorf("%w: %s", ErrUnsupportedScheme, rawURL)
	}
	id, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, fmt.Errorf("%w: %v", storage.ErrInvalidCID, err)
	}
	return id, nil
}
