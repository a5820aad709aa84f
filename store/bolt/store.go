// Package bolt provides a BoltDB-backed core.DocumentStore.
package bolt

import (
	"context"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/hupe1980/sessionmesh/core"
)

const documentBucket = "user_documents"

// Store provides a BoltDB-backed document store keyed by user id.
type Store struct {
	db *bbolt.DB
}

// Open opens a BoltDB-backed store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put upserts the user's document.
func (s *Store) Put(ctx context.Context, userID int, doc core.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if userID < 1 {
		return fmt.Errorf("%w: user id must be positive, got %d", core.ErrInvalidArgument, userID)
	}

	payload := doc.Clone()
	if payload == nil {
		payload = core.Document{}
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(documentBucket))
		if bucket == nil {
			return fmt.Errorf("document bucket is missing")
		}
		return bucket.Put(documentKey(userID), payload)
	})
}

// Get fetches the user's document or core.ErrDocumentNotFound.
func (s *Store) Get(ctx context.Context, userID int) (core.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if userID < 1 {
		return nil, fmt.Errorf("%w: user id must be positive, got %d", core.ErrInvalidArgument, userID)
	}

	var doc core.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(documentBucket))
		if bucket == nil {
			return fmt.Errorf("document bucket is missing")
		}
		payload := bucket.Get(documentKey(userID))
		if payload == nil {
			return core.ErrDocumentNotFound
		}
		// bbolt memory is only valid inside the transaction
		doc = core.Document(payload).Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	return doc, nil
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(documentBucket))
		if err != nil {
			return fmt.Errorf("create document bucket: %w", err)
		}
		return nil
	})
}

// documentKey encodes ids big-endian so keys iterate in id order.
func documentKey(userID int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(userID))
	return key
}
