// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/tlchat/internal/logger"
	"github.com/jeranaias/tlchat/internal/model"
	"github.com/jeranaias/tlchat/internal/storage"
	"github.com/jeranaias/tlchat/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// MaxTitleLength bounds renamed titles.
	MaxTitleLength = 50

	// AutoTitleLength bounds titles derived from the first user message.
	AutoTitleLength = 40

	// DefaultTitle is used when a session has no user message yet.
	DefaultTitle = "New chat"

	// UntitledTitle replaces a blank rename.
	UntitledTitle = "Untitled"

	// ResetTimeout bounds the best-effort remote reset on new chat.
	ResetTimeout = 5 * time.Second
)

// ErrSessionNotFound is returned when an operation names an unknown session.
var ErrSessionNotFound = errors.New("session not found")

// Resetter discards server-side state for a session.
type Resetter interface {
	ResetSession(ctx context.Context, sessionID string) error
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry is the ordered, id-unique list of sessions.
type Registry struct {
	mu       sync.Mutex
	store    storage.Store
	resetter Resetter
	sessions []model.Session

	// now is swapped in tests.
	now func() time.Time

	resets sync.WaitGroup
}

// NewRegistry creates an empty registry. resetter may be nil.
func NewRegistry(store storage.Store, resetter Resetter) *Registry {
	return &Registry{
		store:    store,
		resetter: resetter,
		sessions: []model.Session{},
		now:      time.Now,
	}
}

// Load reads the stored sessions and fixes the display order: most recently
// updated first. Duplicate ids keep their most recent entry.
func (r *Registry) Load() {
	loaded := r.store.ReadSessions()

	sort.SliceStable(loaded, func(i, j int) bool {
		return loaded[i].UpdatedAt.After(loaded[j].UpdatedAt)
	})

	seen := make(map[string]struct{}, len(loaded))
	sessions := make([]model.Session, 0, len(loaded))
	for _, s := range loaded {
		if _, dup := seen[s.ID]; dup {
			continue
		}
		seen[s.ID] = struct{}{}
		sessions = append(sessions, s)
	}

	r.mu.Lock()
	r.sessions = sessions
	r.mu.Unlock()

	logger.Logger.Debug().Int("count", len(sessions)).Msg("SESSION_LOAD")
}

// UpsertFromMessages mirrors the visible message list into the session
// named by activeID, creating it at the front when it does not exist yet.
// It is a no-op when activeID is empty or messages is empty.
func (r *Registry) UpsertFromMessages(activeID string, messages []model.Message) error {
	if activeID == "" || len(messages) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	msgs := model.CloneMessages(messages)
	idx := r.indexLocked(activeID)
	if idx < 0 {
		s := model.Session{
			ID:        activeID,
			Title:     deriveTitle(msgs),
			Messages:  msgs,
			UpdatedAt: r.now(),
		}
		r.sessions = append([]model.Session{s}, r.sessions...)
		logger.Logger.Debug().Str("session_id", activeID).Msg("SESSION_CREATE")
		return r.persistLocked()
	}

	existing := r.sessions[idx]
	updated := model.Session{
		ID:        activeID,
		Title:     existing.Title,
		Messages:  msgs,
		UpdatedAt: existing.UpdatedAt,
	}
	if updated.Title == "" {
		updated.Title = deriveTitle(msgs)
	}
	if len(existing.Messages) != len(msgs) {
		updated.UpdatedAt = r.now()
	}
	r.sessions[idx] = updated
	return r.persistLocked()
}

// Append adds messages to a stored session without touching any visible
// list. It reports false when the session no longer exists.
func (r *Registry) Append(id string, messages ...model.Message) (bool, error) {
	return r.Update(id, func(msgs []model.Message) []model.Message {
		return append(msgs, messages...)
	})
}

// Update rewrites a stored session's messages through fn, which receives a
// private copy. It reports false, without calling fn, when the session does
// not exist. UpdatedAt follows the same count rule as UpsertFromMessages.
func (r *Registry) Update(id string, fn func([]model.Message) []model.Message) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(id)
	if idx < 0 {
		return false, nil
	}

	s := r.sessions[idx].Clone()
	before := len(s.Messages)
	s.Messages = fn(s.Messages)
	if len(s.Messages) != before {
		s.UpdatedAt = r.now()
	}
	if s.Title == "" {
		s.Title = deriveTitle(s.Messages)
	}
	r.sessions[idx] = s
	return true, r.persistLocked()
}

// SwitchTo makes id the active session and returns a copy of its messages.
func (r *Registry) SwitchTo(active *Active, id string) ([]model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(id)
	if idx < 0 {
		return nil, ErrSessionNotFound
	}
	active.Set(id)
	return model.CloneMessages(r.sessions[idx].Messages), nil
}

// Delete removes a session and its draft. When id was active the active id
// is cleared and an empty list is returned with changed=true; otherwise the
// caller's view needs no change and (nil, false) is returned.
func (r *Registry) Delete(active *Active, id string) (messages []model.Message, changed bool) {
	r.mu.Lock()
	if idx := r.indexLocked(id); idx >= 0 {
		next := make([]model.Session, 0, len(r.sessions)-1)
		next = append(next, r.sessions[:idx]...)
		next = append(next, r.sessions[idx+1:]...)
		r.sessions = next
	}
	if err := r.persistLocked(); err != nil {
		logger.Logger.Warn().Err(err).Str("session_id", id).Msg("SESSION_DELETE | persist failed")
	}
	r.mu.Unlock()

	if id != "" {
		if err := r.store.DeleteDraft(id); err != nil && !errors.Is(err, storage.ErrInvalidKey) {
			logger.Logger.Debug().Err(err).Str("session_id", id).Msg("SESSION_DELETE | draft not removed")
		}
	}

	logger.Logger.Info().Str("session_id", id).Bool("was_active", active.Is(id)).Msg("SESSION_DELETE")

	if active.Is(id) {
		active.Clear()
		return []model.Message{}, true
	}
	return nil, false
}

// Rename sets a session's title. The title is trimmed and clamped to
// MaxTitleLength runes; a blank title becomes UntitledTitle.
func (r *Registry) Rename(id, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(id)
	if idx < 0 {
		return ErrSessionNotFound
	}

	s := r.sessions[idx].Clone()
	s.Title = CleanTitle(title)
	r.sessions[idx] = s
	return r.persistLocked()
}

// Search returns sessions whose title contains query, ignoring case. An
// empty query returns every session. Order is preserved.
func (r *Registry) Search(query string) []model.Session {
	q := strings.ToLower(util.Normalize(query))

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if q == "" || strings.Contains(strings.ToLower(util.Normalize(s.Title)), q) {
			out = append(out, s.Clone())
		}
	}
	return out
}

// StartNew asks the remote side to discard the current session's state,
// then allocates and activates a fresh id. The reset runs in the background
// with a ResetTimeout bound and its failure is only logged.
func (r *Registry) StartNew(ctx context.Context, active *Active) string {
	if prev := active.ID(); prev != "" && r.resetter != nil {
		r.resets.Add(1)
		go func() {
			defer r.resets.Done()
			resetCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ResetTimeout)
			defer cancel()
			if err := r.resetter.ResetSession(resetCtx, prev); err != nil {
				logger.Logger.Warn().Err(err).Str("session_id", prev).Msg("SESSION_RESET | remote reset failed")
				return
			}
			logger.Logger.Debug().Str("session_id", prev).Msg("SESSION_RESET")
		}()
	}

	id := NewID()
	active.Set(id)
	return id
}

// WaitResets blocks until background resets started by StartNew finish.
func (r *Registry) WaitResets() {
	r.resets.Wait()
}

// =============================================================================
// READ ACCESS
// =============================================================================

// List returns a copy of every session in display order.
func (r *Registry) List() []model.Session {
	return r.Search("")
}

// Get returns a copy of one session.
func (r *Registry) Get(id string) (model.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(id)
	if idx < 0 {
		return model.Session{}, false
	}
	return r.sessions[idx].Clone(), true
}

// Len returns the number of sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Draft returns the stored draft for a session.
func (r *Registry) Draft(id string) string {
	if id == "" {
		return ""
	}
	return r.store.ReadDraft(id)
}

// SaveDraft stores the draft for a session. An empty id is ignored.
func (r *Registry) SaveDraft(id, text string) error {
	if id == "" {
		return nil
	}
	return r.store.WriteDraft(id, text)
}

// =============================================================================
// HELPERS
// =============================================================================

func (r *Registry) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i := range r.sessions {
		if r.sessions[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *Registry) persistLocked() error {
	if err := r.store.WriteSessions(r.sessions); err != nil {
		logger.Logger.Warn().Err(err).Int("count", len(r.sessions)).Msg("SESSION_PERSIST | write failed")
		return err
	}
	return nil
}

// CleanTitle trims and clamps a user-supplied title.
func CleanTitle(title string) string {
	t := util.TruncateRunesNoEllipsis(strings.TrimSpace(util.Normalize(title)), MaxTitleLength)
	t = strings.TrimSpace(t)
	if t == "" {
		return UntitledTitle
	}
	return t
}

func deriveTitle(msgs []model.Message) string {
	first := util.TruncateRunesNoEllipsis(util.Normalize(model.FirstUserContent(msgs)), AutoTitleLength)
	if first == "" {
		return DefaultTitle
	}
	return first
}
