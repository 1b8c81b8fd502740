// Package sqlite is the single-file embedded backend for the audit ledgers,
// device bindings and the CRL.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// migrations run in order on every open and must stay idempotent.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS audit_entries (
		chain      TEXT    NOT NULL,
		seq        INTEGER NOT NULL,
		event_id   TEXT    NOT NULL,
		timestamp  TEXT    NOT NULL,
		prev_hash  TEXT    NOT NULL DEFAULT '',
		entry_hash TEXT    NOT NULL DEFAULT '',
		payload    TEXT    NOT NULL,
		PRIMARY KEY (chain, seq)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS audit_entries_event_id ON audit_entries (event_id)`,
	`CREATE TABLE IF NOT EXISTS device_bindings (
		user_id       TEXT PRIMARY KEY,
		device_secret TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS certificate_revocations (
		certificate_id TEXT PRIMARY KEY,
		reason         TEXT NOT NULL,
		revoked_at     TEXT NOT NULL,
		requested_by   TEXT NOT NULL DEFAULT ''
	)`,
}

var errDBUnavailable = errors.New("sqlite db unavailable")

type DB struct {
	db *sql.DB
	// mu serializes ledger appends so the tail read and the insert see the
	// same chain head.
	mu sync.Mutex
}

func Open(path string) (*DB, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	out := &DB{db: db}
	if err := out.migrate(context.Background()); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	return out, nil
}

func (d *DB) migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration: %w", err)
		}
	}
	return nil
}

func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *DB) ready() error {
	if d == nil || d.db == nil {
		return errDBUnavailable
	}
	return nil
}
