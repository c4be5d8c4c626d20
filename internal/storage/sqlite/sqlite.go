// Package sqlite is the SQLite-backed storage.Storage implementation for
// datasets, metric/dashboard files, and asset permissions.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/untoldecay/dataplane/internal/storage"
)

// SQLiteStorage is the sqlite-backed storage.Storage implementation.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// New opens (creating if necessary) a SQLite database at path and applies
// the schema. Foreign keys are enabled per connection since SQLite leaves
// them off by default.
func New(ctx context.Context, path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1) // single-writer; pairs with BEGIN IMMEDIATE below

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStorage{db: db, path: path}, nil
}

func (s *SQLiteStorage) Close() error { return s.db.Close() }

func (s *SQLiteStorage) Path() string { return s.path }

func (s *SQLiteStorage) UnderlyingDB() *sql.DB { return s.db }

func (s *SQLiteStorage) UnderlyingConn(ctx context.Context) (*sql.Conn, error) {
	return s.db.Conn(ctx)
}

// connTx is the storage.Transaction implementation bound to one *sql.Conn
// mid-transaction: Storage opens transactions, connTx executes within them.
type connTx struct {
	conn *sql.Conn
}

// RunInTransaction opens a BEGIN IMMEDIATE transaction and commits iff fn returns nil.
func (s *SQLiteStorage) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("begin immediate: %w", err)
	}

	tx := &connTx{conn: conn}
	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(ctx, "ROLLBACK")
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}
