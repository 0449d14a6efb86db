// Package storage implements the SQLite snapshot gateway. Each user holds
// exactly one row with the whole snapshot as a JSON document; saves bump a
// revision counter so the mirror worker can tell writes apart.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"budget/internal/snapshot"

	_ "modernc.org/sqlite"
)

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

// Save implements snapshot.Gateway. The document replaces any previous one
// for the user; last writer wins.
func (s *SQLiteStore) Save(ctx context.Context, userID string, snap snapshot.Snapshot) error {
	doc, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (user_id, document, rev, updated_at)
		VALUES (?, ?, 1, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			document = excluded.document,
			rev = snapshots.rev + 1,
			updated_at = CURRENT_TIMESTAMP`,
		userID, doc)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}

	slog.InfoContext(ctx, "Snapshot saved to SQLite",
		"user_id", userID,
		"accounts", len(snap.Accounts),
		"bytes", len(doc))

	return nil
}

// Load implements snapshot.Gateway. It returns (nil, nil) for users without
// a stored snapshot. Legacy single-account documents are migrated by the
// snapshot decoder on the way out.
func (s *SQLiteStore) Load(ctx context.Context, userID string) (*snapshot.Snapshot, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM snapshots WHERE user_id = ?`, userID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}

	snap, err := snapshot.Decode(doc)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// Rev returns the revision counter for a user's snapshot, zero when none
// exists.
func (s *SQLiteStore) Rev(ctx context.Context, userID string) (int64, error) {
	var rev int64
	err := s.db.QueryRowContext(ctx,
		`SELECT rev FROM snapshots WHERE user_id = ?`, userID).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query snapshot rev: %w", err)
	}
	return rev, nil
}
