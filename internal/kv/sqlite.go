package kv

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the durable Store backend. Cells live in a single table;
// Apply runs every put of a batch inside one transaction so a batch is
// never half-visible.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM cells WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cell %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Has(ctx context.Context, key string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM cells WHERE key = ?`, key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("probe cell %s: %w", key, err)
	}
	return true, nil
}

func (s *SQLiteStore) Apply(ctx context.Context, b *Batch) error {
	if b == nil || len(b.puts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cells (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range b.puts {
		if _, err := stmt.ExecContext(ctx, p.key, p.value); err != nil {
			return fmt.Errorf("put cell %s: %w", p.key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	slog.DebugContext(ctx, "Batch committed", "cells", len(b.puts))
	return nil
}

func (s *SQLiteStore) ExtendLease(ctx context.Context, ttl time.Duration) error {
	expiresAt := time.Now().Add(ttl).Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lease (id, expires_at) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET expires_at = excluded.expires_at`, expiresAt)
	if err != nil {
		return fmt.Errorf("extend lease: %w", err)
	}
	return nil
}

// LeaseExpiry returns the current lease deadline, or zero when no lease has
// been recorded yet.
func (s *SQLiteStore) LeaseExpiry(ctx context.Context) (time.Time, error) {
	var expiresAt int64
	err := s.db.QueryRowContext(ctx, `SELECT expires_at FROM lease WHERE id = 1`).Scan(&expiresAt)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read lease: %w", err)
	}
	return time.Unix(expiresAt, 0), nil
}
