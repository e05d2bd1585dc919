package storage

import (
	"bytes"
	"context"
	"sync"

	"github.com/ipfs/go-cid"

	"xdao.co/sigpolicy/cidutil"
)

// Memory is an in-process Store. It is safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	docs map[cid.Cid][]byte
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{docs: make(map[cid.Cid][]byte)}
}

func (m *Memory) Put(_ context.Context, doc []byte) (cid.Cid, error) {
	id, err := cidutil.ForBytes(doc)
	if err != nil {
		return cid.Undef, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.docs[id]; ok {
		if !bytes.Equal(existing, doc) {
			return cid.Undef, ErrImmutable
		}
		return id, nil
	}
	m.docs[id] = append([]byte(nil), doc...)
	return id, nil
}

func (m *Memory) Get(_ context.Context, id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, ErrInvalidCID
	}
	m.mu.RLock()
	b, ok := m.docs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	out := append([]byte(nil), b...)
	got, err := cidutil.ForBytes(out)
	if err != nil {
		return nil, err
	}
	if got != id {
		return nil, ErrCIDMismatch
	}
	return out, nil
}

func (m *Memory) Has(_ context.Context, id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.docs[id]
	return ok
}
