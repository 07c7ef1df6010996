// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jeranaias/tlchat/internal/logger"
	"github.com/jeranaias/tlchat/internal/model"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const sqliteFileName = "tlchat.db"

const kvSchema = `
CREATE TABLE IF NOT EXISTS kv (
	key           TEXT PRIMARY KEY,
	value         TEXT NOT NULL,
	updated_at_ns INTEGER NOT NULL
);
`

func sqlitePath(dataDir string) string {
	return filepath.Join(dataDir, sqliteFileName)
}

// SQLiteStore keeps every record as a row in a single kv table.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(kvSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string {
	return s.path
}

// ReadSessions implements Store.
func (s *SQLiteStore) ReadSessions() []model.Session {
	value, ok := s.get(SessionsKey)
	if !ok {
		return []model.Session{}
	}
	return decodeSessions([]byte(value), s.path)
}

// WriteSessions implements Store.
func (s *SQLiteStore) WriteSessions(sessions []model.Session) error {
	data, err := encodeSessions(sessions)
	if err != nil {
		return fmt.Errorf("encode sessions: %w", err)
	}
	return s.put(SessionsKey, string(data))
}

// ReadDraft implements Store.
func (s *SQLiteStore) ReadDraft(sessionID string) string {
	value, _ := s.get(DraftKey(sessionID))
	return value
}

// WriteDraft implements Store.
func (s *SQLiteStore) WriteDraft(sessionID, text string) error {
	if err := ValidateSessionID(sessionID); err != nil {
		return err
	}
	return s.put(DraftKey(sessionID), text)
}

// DeleteDraft implements Store.
func (s *SQLiteStore) DeleteDraft(sessionID string) error {
	if _, err := s.db.Exec("DELETE FROM kv WHERE key = ?", DraftKey(sessionID)); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) get(key string) (string, bool) {
	var value string
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.Logger.Debug().Err(err).Str("key", key).Msg("STORAGE_READ | sqlite read failed")
		}
		return "", false
	}
	return value, true
}

func (s *SQLiteStore) put(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO kv (key, value, updated_at_ns) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at_ns = excluded.updated_at_ns
	`, key, value, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
