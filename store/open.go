package store

import (
	"fmt"
	"io"
	"strings"

	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/store/bolt"
	"github.com/hupe1980/sessionmesh/store/sqlite"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

// Backend is a DocumentStore whose resources must be released with Close.
type Backend interface {
	core.DocumentStore
	io.Closer
}

// Open constructs the named backend. path is ignored for the memory backend
// and required for the durable ones.
func Open(backend, path string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendMemory:
		return NewInMemoryStore(), nil
	case BackendSQLite:
		s, err := sqlite.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, nil
	case BackendBolt:
		s, err := bolt.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open bolt store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", core.ErrInvalidArgument, backend)
	}
}
