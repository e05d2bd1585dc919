// Package storage holds resolved signature policy documents keyed by the CID
// of their bytes, so a validator can find a document from its declared sha256
// digest without going back to the network.
package storage

import (
	"context"

	"github.com/ipfs/go-cid"
)

// Store is a content-addressed policy document store.
//
// Contract:
// - Put MUST be idempotent and MUST return the CID of the bytes written.
// - Stored documents MUST be immutable.
// - Get MUST verify the returned bytes against id and return ErrNotFound when absent.
type Store interface {
	Put(ctx context.Context, doc []byte) (cid.Cid, error)
	Get(ctx context.Context, id cid.Cid) ([]byte, error)
	Has(ctx context.Context, id cid.Cid) bool
}
