// Package sqlite provides a SQLite-backed core.DocumentStore.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/sessionmesh/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS user_documents (
    user_id INTEGER PRIMARY KEY,
    body BLOB NOT NULL,
    updated_at INTEGER NOT NULL
);
`

// Store persists user documents in SQLite, one row per user id.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// Open opens a SQLite document store and ensures its schema exists.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := "file:" + cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Get returns the user's document or core.ErrDocumentNotFound.
func (s *Store) Get(ctx context.Context, userID int) (core.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if userID < 1 {
		return nil, fmt.Errorf("%w: user id must be positive, got %d", core.ErrInvalidArgument, userID)
	}

	var body []byte
	err := s.sqlDB.QueryRowContext(ctx, `SELECT body FROM user_documents WHERE user_id = ?`, userID).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("get user document: %w", err)
	}
	if body == nil {
		body = []byte{}
	}
	return core.Document(body), nil
}

// Put upserts the user's document.
func (s *Store) Put(ctx context.Context, userID int, doc core.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if userID < 1 {
		return fmt.Errorf("%w: user id must be positive, got %d", core.ErrInvalidArgument, userID)
	}
	body := []byte(doc)
	if body == nil {
		body = []byte{}
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO user_documents (user_id, body, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   body = excluded.body,
		   updated_at = excluded.updated_at`,
		userID,
		body,
		toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("put user document: %w", err)
	}
	return nil
}
