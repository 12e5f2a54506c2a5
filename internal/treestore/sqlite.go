package treestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver registration.

	"trackr/internal/treestore/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Store backed by a SQLite database. Each node stores its
// value as a JSON document keyed by full path; subtree replace deletes every
// descendant row inside the same transaction as the insert.
type SQLite struct {
	db *sql.DB
	listeners
}

// NewSQLite opens (or creates) the database at dsn and runs migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Single writer; serialized access keeps subtree replaces atomic.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Get unmarshals the value stored at path into dest.
func (s *SQLite) Get(ctx context.Context, path string, dest any) error {
	path, err := normalizePath(path)
	if err != nil {
		return err
	}

	var raw string
	row := s.db.QueryRowContext(ctx, `SELECT value FROM tree_nodes WHERE path = ?`, path)
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("get %s: %w", path, err)
	}

	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Set stores value at path, replacing the entire subtree below it.
func (s *SQLite) Set(ctx context.Context, path string, value any) error {
	path, err := normalizePath(path)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set %s: %w", path, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM tree_nodes WHERE path = ? OR path LIKE ?`,
		path, path+"/%",
	); err != nil {
		return fmt.Errorf("clear subtree %s: %w", path, err)
	}

	now := time.Now().UTC().Format(timeLayout)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO tree_nodes (path, value, updated_at) VALUES (?, ?, ?)`,
		path, string(raw), now,
	); err != nil {
		return fmt.Errorf("insert %s: %w", path, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit set %s: %w", path, err)
	}

	s.notify(path)
	return nil
}

// Delete removes the subtree rooted at path.
func (s *SQLite) Delete(ctx context.Context, path string) error {
	path, err := normalizePath(path)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM tree_nodes WHERE path = ? OR path LIKE ?`,
		path, path+"/%",
	); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}

	s.notify(path)
	return nil
}

// Children lists the direct child segments below path, sorted.
func (s *SQLite) Children(ctx context.Context, path string) ([]string, error) {
	path, err := normalizePath(path)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT path FROM tree_nodes WHERE path LIKE ?`, path+"/%",
	)
	if err != nil {
		return nil, fmt.Errorf("children %s: %w", path, err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	for rows.Next() {
		var full string
		if err := rows.Scan(&full); err != nil {
			return nil, fmt.Errorf("children %s: %w", path, err)
		}
		rest := strings.TrimPrefix(full, path+"/")
		if idx := strings.IndexByte(rest, '/'); idx >= 0 {
			rest = rest[:idx]
		}
		if rest != "" {
			seen[rest] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("children %s: %w", path, err)
	}

	children := make([]string, 0, len(seen))
	for child := range seen {
		children = append(children, child)
	}
	sort.Strings(children)
	return children, nil
}

// Subscribe registers a change listener for paths under prefix.
func (s *SQLite) Subscribe(prefix string, fn ListenerFunc) func() {
	return s.subscribe(prefix, fn)
}
