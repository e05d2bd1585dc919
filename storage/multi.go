package storage

import (
	"context"

	"github.com/ipfs/go-cid"
)

// MultiStore consults Stores in slice order on reads and writes only to the first.
type MultiStore struct {
	Stores []Store
}

var _ Store = MultiStore{}

func (m MultiStore) Put(ctx context.Context, doc []byte) (cid.Cid, error) {
	if len(m.Stores) == 0 {
		return cid.Undef, ErrNoBackends
	}
	return m.Stores[0].Put(ctx, doc)
}

func (m MultiStore) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	for _, s := range m.Stores {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b, err := s.Get(ctx, id)
		if err == nil {
			return b, nil
		}
		if !IsNotFound(err) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}

func (m MultiStore) Has(ctx context.Context, id cid.Cid) bool {
	for _, s := range m.Stores {
		if s.Has(ctx, id) {
			return true
		}
	}
	return false
}
