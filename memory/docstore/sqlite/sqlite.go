// Package sqlite stores note documents in a single SQLite table.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/becomeliminal/expmem/memory"
)

// SchemaDDL creates the documents table.
const SchemaDDL = `CREATE TABLE IF NOT EXISTS documents (
	id   TEXT PRIMARY KEY,
	body BLOB NOT NULL
)`

// DocStore keeps one row per note document.
type DocStore struct {
	db     *sql.DB
	closer bool // db was opened by Open
}

var _ memory.DocumentStore = (*DocStore)(nil)

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway store.
func Open(ctx context.Context, path string) (*DocStore, error) {
	if path == "" {
		return nil, errors.New("sqlite: path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: ":memory:" databases are per connection, and the store
	// has a single writer anyway.
	db.SetMaxOpenConns(1)

	s, err := New(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.closer = true
	return s, nil
}

// New wraps an existing database and applies the schema.
func New(ctx context.Context, db *sql.DB) (*DocStore, error) {
	if _, err := db.ExecContext(ctx, SchemaDDL); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &DocStore{db: db}, nil
}

// Put inserts or replaces the document for id.
func (s *DocStore) Put(ctx context.Context, id string, body []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, body) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET body = excluded.body`,
		id, body,
	)
	if err != nil {
		return fmt.Errorf("document put %s: %w", id, err)
	}
	return nil
}

// Delete removes the document for id. A missing row is not an error.
func (s *DocStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("document delete %s: %w", id, err)
	}
	return nil
}

// Name returns id; Walk reports rows by id.
func (s *DocStore) Name(id string) string {
	return id
}

// Remove deletes the row Walk reported as name.
func (s *DocStore) Remove(ctx context.Context, name string) error {
	return s.Delete(ctx, name)
}

// Walk visits every document ordered by id.
func (s *DocStore) Walk(ctx context.Context, fn memory.WalkFunc) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, body FROM documents ORDER BY id`)
	if err != nil {
		return fmt.Errorf("document walk: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var body []byte
		if err := rows.Scan(&id, &body); err != nil {
			if cbErr := fn(id, nil, err); cbErr != nil {
				return cbErr
			}
			continue
		}
		if err := fn(id, body, nil); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("document walk: %w", err)
	}
	return nil
}

// Count returns the number of stored documents.
func (s *DocStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("document count: %w", err)
	}
	return n, nil
}

// Close closes the database if Open created it.
func (s *DocStore) Close() error {
	if s.closer {
		return s.db.Close()
	}
	return nil
}
