// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package state persists per-target compile state across invocations: the
// citation fingerprints the skip logic compares, and a history of compile
// runs for inspection.
// Implements: prd005-cli (history surface); docs/ARCHITECTURE § State.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/texflow/pkg/types"
)

const dbFile = "texflow.db"

// Store manages the compile-state SQLite database.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the state database under cfg.Dir, creating the
// schema if it does not exist.
func NewStore(cfg types.StateConfig) (*Store, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = ".texflow"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS targets (
			path TEXT PRIMARY KEY,
			bcf_hash TEXT,
			bib_hash TEXT,
			updated_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			target TEXT NOT NULL,
			status TEXT NOT NULL,
			pdf_path TEXT,
			message TEXT,
			diagnostic_count INTEGER,
			started_at TEXT,
			finished_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_target ON runs(target)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// LastFingerprints returns the fingerprints recorded for the target after
// its last successful compile. An unknown target yields an empty pair,
// which never satisfies the skip guard.
func (s *Store) LastFingerprints(ctx context.Context, target string) (types.FingerprintPair, error) {
	var pair types.FingerprintPair
	err := s.db.QueryRowContext(ctx,
		`SELECT bcf_hash, bib_hash FROM targets WHERE path = ?`, target,
	).Scan(&pair.BCF, &pair.Bib)
	if err == sql.ErrNoRows {
		return types.FingerprintPair{}, nil
	}
	if err != nil {
		return types.FingerprintPair{}, fmt.Errorf("querying fingerprints: %w", err)
	}
	return pair, nil
}

// SaveFingerprints upserts the fingerprints for a target. Called only after
// a verified successful compile.
func (s *Store) SaveFingerprints(ctx context.Context, target string, pair types.FingerprintPair) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO targets (path, bcf_hash, bib_hash, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
			bcf_hash=excluded.bcf_hash, bib_hash=excluded.bib_hash, updated_at=excluded.updated_at`,
		target, pair.BCF, pair.Bib, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving fingerprints: %w", err)
	}
	return nil
}

// Run is one recorded compile invocation.
type Run struct {
	ID              int64
	Target          string
	Status          string // "success" or "error"
	PDFPath         string
	Message         string
	DiagnosticCount int
	StartedAt       time.Time
	FinishedAt      time.Time
}

// RecordRun appends a run to the history.
func (s *Store) RecordRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (target, status, pdf_path, message, diagnostic_count, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.Target, run.Status, run.PDFPath, run.Message, run.DiagnosticCount,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	return nil
}

// History returns the most recent runs, newest first, optionally filtered
// by target. limit <= 0 selects a default of 20.
func (s *Store) History(ctx context.Context, target string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, target, status, pdf_path, message, diagnostic_count, started_at, finished_at
		FROM runs`
	args := []any{}
	if target != "" {
		query += ` WHERE target = ?`
		args = append(args, target)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished string
		if err := rows.Scan(&r.ID, &r.Target, &r.Status, &r.PDFPath, &r.Message,
			&r.DiagnosticCount, &started, &finished); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
