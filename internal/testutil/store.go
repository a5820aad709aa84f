package testutil

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/sessionmesh/core"
)

// CountingStore is a fake core.DocumentStore that records how often it is
// called. Documents live in a map; GetErr / PutErr force failures and
// BeforeCall, when set, runs at the start of every call (use it to block a
// call or observe registry state while the store is "in flight").
type CountingStore struct {
	mu   sync.Mutex
	docs map[int]core.Document

	gets atomic.Int64
	puts atomic.Int64

	GetErr     error
	PutErr     error
	BeforeCall func(op string, userID int)
}

// NewCountingStore returns an empty fake store.
func NewCountingStore() *CountingStore {
	return &CountingStore{docs: make(map[int]core.Document)}
}

var _ core.DocumentStore = (*CountingStore)(nil)

// Get returns the stored document, GetErr, or core.ErrDocumentNotFound.
func (s *CountingStore) Get(_ context.Context, userID int) (core.Document, error) {
	s.gets.Add(1)
	if s.BeforeCall != nil {
		s.BeforeCall("get", userID)
	}
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[userID]
	if !ok {
		return nil, core.ErrDocumentNotFound
	}
	return doc.Clone(), nil
}

// Put stores a copy of doc unless PutErr is set.
func (s *CountingStore) Put(_ context.Context, userID int, doc core.Document) error {
	s.puts.Add(1)
	if s.BeforeCall != nil {
		s.BeforeCall("put", userID)
	}
	if s.PutErr != nil {
		return s.PutErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[userID] = doc.Clone()
	return nil
}

// Gets returns the number of Get calls.
func (s *CountingStore) Gets() int { return int(s.gets.Load()) }

// Puts returns the number of Put calls.
func (s *CountingStore) Puts() int { return int(s.puts.Load()) }

// Calls returns the total number of store calls.
func (s *CountingStore) Calls() int { return s.Gets() + s.Puts() }
