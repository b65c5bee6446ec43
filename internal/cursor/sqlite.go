// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cursor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ManuGH/seitokai/internal/persistence/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS gateway_cursor (
	name       TEXT PRIMARY KEY,
	message_id TEXT NOT NULL,
	updated_at INTEGER NOT NULL DEFAULT (unixepoch())
);`

const cursorName = "default"

// SQLiteStore keeps the cursor in a WAL-mode SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) the database at path. An
// existing file is integrity-checked first.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if _, err := os.Stat(path); err == nil {
		issues, err := sqlite.VerifyIntegrity(ctx, path, "quick")
		if err != nil {
			return nil, fmt.Errorf("cursor: verify %s: %w", path, err)
		}
		if len(issues) > 0 {
			return nil, fmt.Errorf("cursor: %s is corrupt: %s", path, strings.Join(issues, "; "))
		}
	}

	db, err := sqlite.Open(ctx, path, sqlite.Config{MaxOpenConns: 1})
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cursor: create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT message_id FROM gateway_cursor WHERE name = ?`, cursorName).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("cursor: load: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) Save(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO gateway_cursor (name, message_id, updated_at) VALUES (?, ?, unixepoch())
		 ON CONFLICT(name) DO UPDATE SET message_id = excluded.message_id, updated_at = excluded.updated_at`,
		cursorName, id)
	if err != nil {
		return fmt.Errorf("cursor: save: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
