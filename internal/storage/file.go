// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jeranaias/tlchat/internal/logger"
	"github.com/jeranaias/tlchat/internal/model"
	"github.com/jeranaias/tlchat/internal/util"
)

// FileStore keeps each key in its own file under BaseDir.
type FileStore struct {
	// BaseDir is the data directory, e.g. ~/.tlchat/data
	BaseDir string

	mu sync.Mutex
}

// NewFileStore creates a file store, creating baseDir if needed.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		return nil, errors.New("storage: empty data directory")
	}
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &FileStore{BaseDir: baseDir}, nil
}

// ReadSessions implements Store.
func (s *FileStore) ReadSessions() []model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.filePath(SessionsKey)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Logger.Debug().Err(err).Str("path", path).Msg("STORAGE_READ | sessions unreadable")
		}
		return []model.Session{}
	}
	return decodeSessions(data, path)
}

// WriteSessions implements Store.
func (s *FileStore) WriteSessions(sessions []model.Session) error {
	data, err := encodeSessions(sessions)
	if err != nil {
		return fmt.Errorf("encode sessions: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return util.AtomicWriteFile(s.filePath(SessionsKey), data, 0o600)
}

// ReadDraft implements Store.
func (s *FileStore) ReadDraft(sessionID string) string {
	if ValidateSessionID(sessionID) != nil {
		return ""
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath(DraftKey(sessionID)))
	if err != nil {
		return ""
	}
	return string(data)
}

// WriteDraft implements Store.
func (s *FileStore) WriteDraft(sessionID, text string) error {
	if err := ValidateSessionID(sessionID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return util.AtomicWriteFile(s.filePath(DraftKey(sessionID)), []byte(text), 0o600)
}

// DeleteDraft implements Store.
func (s *FileStore) DeleteDraft(sessionID string) error {
	if err := ValidateSessionID(sessionID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.filePath(DraftKey(sessionID))); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Close implements Store.
func (s *FileStore) Close() error {
	return nil
}

// filePath maps a key to its file. Keys are validated before they get here.
func (s *FileStore) filePath(key string) string {
	return filepath.Join(s.BaseDir, key)
}
