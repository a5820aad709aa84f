package store

import (
	"context"
	"sync"

	"github.com/hupe1980/sessionmesh/core"
)

// InMemoryStore is a trivial in-process DocumentStore useful for tests,
// examples and single-process prototypes. Documents are copied on save and
// retrieval to avoid accidental external mutation of internal buffers.
//
// It does not enforce size quotas or eviction and does not survive process
// restarts; use the sqlite or bolt backend when that matters.
type InMemoryStore struct {
	mu   sync.RWMutex
	docs map[int]core.Document // userID -> document
}

// NewInMemoryStore returns an empty in-memory document store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{docs: make(map[int]core.Document)}
}

// Get returns a copy of the user's document or core.ErrDocumentNotFound.
func (s *InMemoryStore) Get(ctx context.Context, userID int) (core.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[userID]
	if !ok {
		return nil, core.ErrDocumentNotFound
	}
	return doc.Clone(), nil
}

// Put stores (or overwrites) the user's document. The input is copied.
func (s *InMemoryStore) Put(ctx context.Context, userID int, doc core.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := doc.Clone()
	if cp == nil {
		cp = core.Document{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[userID] = cp
	return nil
}

// Len returns the number of stored documents.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Close is a no-op so InMemoryStore satisfies Backend.
func (s *InMemoryStore) Close() error { return nil }
