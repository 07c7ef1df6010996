// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"sync"

	"github.com/jeranaias/tlchat/internal/model"
)

// MemoryStore keeps records in a map. Session lists are stored encoded so
// readers never share slices with writers.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
	writes int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

// ReadSessions implements Store.
func (s *MemoryStore) ReadSessions() []model.Session {
	s.mu.RLock()
	data := s.values[SessionsKey]
	s.mu.RUnlock()
	return decodeSessions(data, "memory")
}

// WriteSessions implements Store.
func (s *MemoryStore) WriteSessions(sessions []model.Session) error {
	data, err := encodeSessions(sessions)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.values[SessionsKey] = data
	s.writes++
	s.mu.Unlock()
	return nil
}

// ReadDraft implements Store.
func (s *MemoryStore) ReadDraft(sessionID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return string(s.values[DraftKey(sessionID)])
}

// WriteDraft implements Store.
func (s *MemoryStore) WriteDraft(sessionID, text string) error {
	if err := ValidateSessionID(sessionID); err != nil {
		return err
	}
	s.mu.Lock()
	s.values[DraftKey(sessionID)] = []byte(text)
	s.mu.Unlock()
	return nil
}

// DeleteDraft implements Store.
func (s *MemoryStore) DeleteDraft(sessionID string) error {
	s.mu.Lock()
	delete(s.values, DraftKey(sessionID))
	s.mu.Unlock()
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}

// SetRaw stores bytes under key unchanged. Tests use it to plant corrupt data.
func (s *MemoryStore) SetRaw(key string, data []byte) {
	s.mu.Lock()
	s.values[key] = data
	s.mu.Unlock()
}

// SessionWrites returns how many times WriteSessions has succeeded.
func (s *MemoryStore) SessionWrites() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}
