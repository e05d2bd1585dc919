package storage

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"

	"xdao.co/sigpolicy/cidutil"
)

// Named tags a Store with the backend id it was opened under.
type Named struct {
	Name  string
	Store Store
}

// ReplicatingStore writes every document to all backends and reads with
// ordered fallback. A backend returning a different CID fails the write.
type ReplicatingStore struct {
	Backends []Named
}

var _ Store = ReplicatingStore{}

// PutAll writes doc everywhere and reports the CID each backend returned.
func (r ReplicatingStore) PutAll(ctx context.Context, doc []byte) (cid.Cid, map[string]cid.Cid, error) {
	want, err := cidutil.ForBytes(doc)
	if err != nil {
		return cid.Undef, nil, err
	}
	if len(r.Backends) == 0 {
		return cid.Undef, nil, ErrNoBackends
	}

	out := make(map[string]cid.Cid, len(r.Backends))
	for _, b := range r.Backends {
		if b.Store == nil {
			return cid.Undef, nil, fmt.Errorf("storage: nil store for backend %q", b.Name)
		}
		got, err := b.Store.Put(ctx, doc)
		if err != nil {
			return cid.Undef, out, fmt.Errorf("storage: backend %q: %w", b.Name, err)
		}
		out[b.Name] = got
		if got != want {
			return cid.Undef, out, ErrCIDMismatch
		}
	}
	return want, out, nil
}

func (r ReplicatingStore) Put(ctx context.Context, doc []byte) (cid.Cid, error) {
	id, _, err := r.PutAll(ctx, doc)
	return id, err
}

func (r ReplicatingStore) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	stores := make([]Store, 0, len(r.Backends))
	for _, b := range r.Backends {
		if b.Store != nil {
			stores = append(stores, b.Store)
		}
	}
	return MultiStore{Stores: stores}.Get(ctx, id)
}

func (r ReplicatingStore) Has(ctx context.Context, id cid.Cid) bool {
	for _, b := range r.Backends {
		if b.Store != nil && b.Store.Has(ctx, id) {
			return true
		}
	}
	return false
}
