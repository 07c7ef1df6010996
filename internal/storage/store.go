// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/tlchat/internal/logger"
	"github.com/jeranaias/tlchat/internal/model"
)

// =============================================================================
// KEYS
// =============================================================================

const (
	// SessionsKey holds the JSON array of every session.
	SessionsKey = "tlc.sessions"

	// DraftKeyPrefix prefixes the per-session draft key.
	DraftKeyPrefix = "tlc.draft."

	maxSessionIDLen = 128
)

// DraftKey returns the record key for a session's draft.
func DraftKey(sessionID string) string {
	return DraftKeyPrefix + sessionID
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrInvalidKey is returned when a session id cannot be used as a key.
	ErrInvalidKey = errors.New("invalid storage key")

	// ErrUnknownBackend is returned by Open for an unrecognised backend name.
	ErrUnknownBackend = errors.New("unknown storage backend")
)

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store is the persistence contract used by the session registry and the
// chat engine. Writes are synchronous.
type Store interface {
	// ReadSessions returns the stored session list, or an empty slice when
	// nothing usable is stored.
	ReadSessions() []model.Session

	// WriteSessions replaces the stored session list.
	WriteSessions(sessions []model.Session) error

	// ReadDraft returns a session's draft text, or "".
	ReadDraft(sessionID string) string

	// WriteDraft stores a session's draft text verbatim.
	WriteDraft(sessionID, text string) error

	// DeleteDraft removes a session's draft. Missing drafts are not an error.
	DeleteDraft(sessionID string) error

	// Close releases backend resources.
	Close() error
}

// Backend names a Store implementation.
type Backend string

const (
	BackendFile   Backend = "file"
	BackendSQLite Backend = "sqlite"
	BackendMemory Backend = "memory"
)

// Open constructs the named backend rooted at dataDir.
func Open(backend Backend, dataDir string) (Store, error) {
	switch Backend(strings.ToLower(string(backend))) {
	case BackendFile, "":
		return NewFileStore(dataDir)
	case BackendSQLite:
		return NewSQLiteStore(sqlitePath(dataDir))
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// ValidateSessionID reports ErrInvalidKey unless id is a non-empty run of
// letters, digits, '-' or '_'. Generated ids always pass.
func ValidateSessionID(id string) error {
	if id == "" || len(id) > maxSessionIDLen {
		return fmt.Errorf("%w: length %d", ErrInvalidKey, len(id))
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return fmt.Errorf("%w: %q", ErrInvalidKey, id)
		}
	}
	return nil
}

// encodeSessions serialises the list, writing [] for nil.
func encodeSessions(sessions []model.Session) ([]byte, error) {
	if sessions == nil {
		sessions = []model.Session{}
	}
	return json.Marshal(sessions)
}

// decodeSessions parses a stored list. Corrupt data yields an empty slice;
// entries without an id are dropped.
func decodeSessions(data []byte, source string) []model.Session {
	if len(data) == 0 {
		return []model.Session{}
	}

	var sessions []model.Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		logger.Logger.Debug().Err(err).Str("source", source).Msg("STORAGE_CORRUPT | discarding session list")
		return []model.Session{}
	}

	out := sessions[:0]
	for _, s := range sessions {
		if s.ID == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
