package core

import "context"

// Document is an opaque payload persisted per user.
type Document []byte

// Clone returns an independent copy of the document (nil stays nil).
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	cp := make(Document, len(d))
	copy(cp, d)
	return cp
}

// DocumentStore is the key-addressed persistence capability the dispatcher
// depends on. Implementations should be thread-safe. Short method names
// mirror the other store contracts.
//
// Get returns ErrDocumentNotFound when no document exists for the user.
// Put has upsert semantics.
type DocumentStore interface {
	Get(ctx context.Context, userID int) (Document, error)
	Put(ctx context.Context, userID int, doc Document) error
}
