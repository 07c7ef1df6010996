// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/tlchat/internal/logger"
	"github.com/jeranaias/tlchat/internal/model"
	"github.com/jeranaias/tlchat/internal/reveal"
	"github.com/jeranaias/tlchat/internal/session"
	"github.com/jeranaias/tlchat/internal/util"
)

// Asker sends one question to the answer service.
type Asker interface {
	Chat(ctx context.Context, sessionID, query string) (string, error)
}

// =============================================================================
// STATE
// =============================================================================

// State is a point-in-time copy of everything a view renders.
type State struct {
	// Version increases with every change. Views drop snapshots older than
	// the last one they rendered.
	Version uint64

	ActiveID  string
	Messages  []model.Message
	Loading   bool
	Typing    bool
	Error     string
	Draft     string
	LastQuery string
}

// CanRetry reports whether Retry would resubmit something.
func (s State) CanRetry() bool {
	return !s.Loading && s.LastQuery != ""
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine serialises every user action against the session registry, the
// answer service and the reveal scheduler.
type Engine struct {
	mu sync.Mutex

	registry  *session.Registry
	asker     Asker
	scheduler *reveal.Scheduler
	active    session.Active

	messages  []model.Message
	loading   bool
	typing    bool
	errText   string
	draft     string
	lastQuery string

	// view is bumped whenever the visible list is replaced wholesale, so a
	// request can tell whether the list it appended to is still on screen.
	view uint64

	// revealTarget is the full text of the run in progress.
	revealTarget string

	version uint64

	subsMu  sync.Mutex
	subs    map[int]func(State)
	nextSub int
}

// NewEngine creates an engine with no active session. The registry should
// already be loaded.
func NewEngine(registry *session.Registry, asker Asker) *Engine {
	e := &Engine{
		registry: registry,
		asker:    asker,
		messages: []model.Message{},
		subs:     make(map[int]func(State)),
	}
	e.scheduler = reveal.NewScheduler(e.onRevealDone)
	return e
}

// Close stops any reveal, writing its full text, and waits for background
// session resets.
func (e *Engine) Close() {
	e.mu.Lock()
	e.finishRevealLocked()
	e.mu.Unlock()
	e.registry.WaitResets()
}

// =============================================================================
// ASK
// =============================================================================

// Ask validates and submits a query under the active session, allocating a
// session id if there is none. It blocks for the duration of the request.
func (e *Engine) Ask(ctx context.Context, query string) error {
	q := strings.TrimSpace(util.Normalize(query))

	e.mu.Lock()
	if e.loading {
		e.mu.Unlock()
		return ErrBusy
	}
	if q == "" {
		return e.rejectLocked(MsgEmptyQuery)
	}
	if util.RuneLen(q) > MaxQueryLength {
		return e.rejectLocked(MsgQueryTooLong)
	}

	e.finishRevealLocked()
	e.loading = true
	e.errText = ""
	e.lastQuery = q
	sid := e.active.ID()
	if sid == "" {
		sid = session.NewID()
		e.active.Set(sid)
	}
	view := e.view
	e.setMessagesLocked(append(model.CloneMessages(e.messages), model.NewUserMessage(q)))
	st := e.snapshotLocked()
	e.mu.Unlock()
	e.publish(st)

	logger.Logger.Info().Str("session_id", sid).Int("query_runes", util.RuneLen(q)).Msg("CHAT_ASK")
	answer, err := e.call(ctx, sid, q)

	e.mu.Lock()
	defer e.unlockAndPublish()
	e.loading = false

	if err != nil {
		if e.onScreenLocked(sid, view) {
			e.errText = failureText(err)
		}
		logger.Logger.Warn().Err(err).Str("session_id", sid).Msg("CHAT_ERROR")
		return fmt.Errorf("ask: %w", err)
	}

	if !e.onScreenLocked(sid, view) {
		e.deliverLateLocked(sid, view, func(msgs []model.Message) []model.Message {
			return append(msgs, answerMessage(answer))
		})
		e.clearStoredDraftIf(sid, q)
		return nil
	}

	e.setMessagesLocked(append(model.CloneMessages(e.messages), model.NewAssistantPlaceholder()))
	e.startRevealLocked(answer)
	// Text typed while waiting is a new draft and survives.
	if strings.TrimSpace(util.Normalize(e.draft)) == q {
		e.draft = ""
		e.saveDraftLocked()
	}
	return nil
}

// call runs the asker outside the engine lock. The caller clears loading
// once it holds the lock again; a panicking asker clears it here.
func (e *Engine) call(ctx context.Context, sid, query string) (string, error) {
	defer func() {
		if r := recover(); r != nil {
			e.mu.Lock()
			e.loading = false
			e.unlockAndPublish()
			logger.Logger.Error().Interface("panic", r).Str("session_id", sid).Msg("CHAT_PANIC")
			panic(r)
		}
	}()
	return e.asker.Chat(ctx, sid, query)
}

// rejectLocked records a validation failure and releases the lock.
func (e *Engine) rejectLocked(msg string) error {
	e.errText = msg
	st := e.snapshotLocked()
	e.mu.Unlock()
	e.publish(st)
	return &ValidationError{Message: msg}
}

// =============================================================================
// REGENERATE / RETRY
// =============================================================================

// Regenerate re-asks the last user question and replaces the trailing
// assistant message with the new answer. It does nothing while loading or
// when no user message exists.
func (e *Engine) Regenerate(ctx context.Context) error {
	e.mu.Lock()
	last, ok := model.LastUserMessage(e.messages)
	if e.loading || !ok {
		e.mu.Unlock()
		return nil
	}

	e.loading = true
	e.errText = ""
	sid := e.active.ID()
	if sid == "" {
		sid = session.NewID()
		e.active.Set(sid)
	}
	view := e.view
	st := e.snapshotLocked()
	e.mu.Unlock()
	e.publish(st)

	logger.Logger.Info().Str("session_id", sid).Msg("CHAT_REGENERATE")
	answer, err := e.call(ctx, sid, last.Content)

	e.mu.Lock()
	defer e.unlockAndPublish()
	e.loading = false

	if err != nil {
		if e.onScreenLocked(sid, view) {
			e.errText = MsgRegenerateFailed
		}
		logger.Logger.Warn().Err(err).Str("session_id", sid).Msg("CHAT_REGENERATE_ERROR")
		return fmt.Errorf("regenerate: %w", err)
	}

	if !e.onScreenLocked(sid, view) {
		e.deliverLateLocked(sid, view, func(msgs []model.Message) []model.Message {
			return replaceLastAnswer(msgs, answerMessage(answer))
		})
		return nil
	}

	e.finishRevealLocked()
	e.setMessagesLocked(replaceLastAnswer(model.CloneMessages(e.messages), model.NewAssistantPlaceholder()))
	e.startRevealLocked(answer)
	return nil
}

// Retry resubmits the last accepted query. It does nothing while loading
// or before any query was accepted.
func (e *Engine) Retry(ctx context.Context) error {
	e.mu.Lock()
	q := e.lastQuery
	busy := e.loading
	e.mu.Unlock()

	if busy || q == "" {
		return nil
	}
	return e.Ask(ctx, q)
}

// =============================================================================
// SESSION NAVIGATION
// =============================================================================

// SwitchSession shows the stored session id.
func (e *Engine) SwitchSession(id string) error {
	e.mu.Lock()
	defer e.unlockAndPublish()

	if _, ok := e.registry.Get(id); !ok {
		return fmt.Errorf("switch %s: %w", id, session.ErrSessionNotFound)
	}

	e.finishRevealLocked()
	msgs, err := e.registry.SwitchTo(&e.active, id)
	if err != nil {
		return fmt.Errorf("switch %s: %w", id, err)
	}
	e.replaceViewLocked(msgs)
	e.draft = e.registry.Draft(id)
	e.errText = ""

	logger.Logger.Debug().Str("session_id", id).Msg("SESSION_SWITCH")
	return nil
}

// DeleteSession removes a session. Deleting the active session clears the
// view; deleting another session leaves the view untouched.
func (e *Engine) DeleteSession(id string) {
	e.mu.Lock()
	defer e.unlockAndPublish()

	if e.active.Is(id) {
		e.finishRevealLocked()
	}
	msgs, changed := e.registry.Delete(&e.active, id)
	if !changed {
		return
	}
	e.replaceViewLocked(msgs)
	e.draft = ""
}

// NewChat starts a fresh, not yet persisted session.
func (e *Engine) NewChat(ctx context.Context) string {
	e.mu.Lock()
	defer e.unlockAndPublish()

	e.finishRevealLocked()
	id := e.registry.StartNew(ctx, &e.active)
	e.replaceViewLocked([]model.Message{})
	e.draft = e.registry.Draft(id)
	e.errText = ""

	logger.Logger.Debug().Str("session_id", id).Msg("SESSION_NEW")
	return id
}

// RenameSession sets a session's title.
func (e *Engine) RenameSession(id, title string) error {
	err := e.registry.Rename(id, title)
	if err == nil {
		e.touch()
	}
	return err
}

// SearchSessions filters sessions by title.
func (e *Engine) SearchSessions(query string) []model.Session {
	return e.registry.Search(query)
}

// Sessions returns every session in display order.
func (e *Engine) Sessions() []model.Session {
	return e.registry.List()
}

// =============================================================================
// COMPOSER
// =============================================================================

// SetDraft updates the composer text and stores it for the active session.
// It returns the version of the state it published.
func (e *Engine) SetDraft(text string) uint64 {
	e.mu.Lock()
	if e.draft != text {
		e.draft = text
		e.saveDraftLocked()
	}
	st := e.snapshotLocked()
	e.mu.Unlock()

	e.publish(st)
	return st.Version
}

// ClearError dismisses the error line.
func (e *Engine) ClearError() {
	e.mu.Lock()
	defer e.unlockAndPublish()
	e.errText = ""
}

// =============================================================================
// OBSERVATION
// =============================================================================

// Snapshot returns a copy of the current view state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Subscribe registers fn for state changes and returns a function that
// removes it. fn runs on the goroutine that made the change and must not
// block.
func (e *Engine) Subscribe(fn func(State)) func() {
	e.subsMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	e.subsMu.Unlock()

	return func() {
		e.subsMu.Lock()
		delete(e.subs, id)
		e.subsMu.Unlock()
	}
}

func (e *Engine) snapshotLocked() State {
	e.version++
	return State{
		Version:   e.version,
		ActiveID:  e.active.ID(),
		Messages:  model.CloneMessages(e.messages),
		Loading:   e.loading,
		Typing:    e.typing,
		Error:     e.errText,
		Draft:     e.draft,
		LastQuery: e.lastQuery,
	}
}

func (e *Engine) publish(st State) {
	e.subsMu.Lock()
	subs := make([]func(State), 0, len(e.subs))
	for _, fn := range e.subs {
		subs = append(subs, fn)
	}
	e.subsMu.Unlock()

	for _, fn := range subs {
		fn(st)
	}
}

func (e *Engine) unlockAndPublish() {
	st := e.snapshotLocked()
	e.mu.Unlock()
	e.publish(st)
}

func (e *Engine) touch() {
	e.mu.Lock()
	e.unlockAndPublish()
}

// =============================================================================
// REVEAL PLUMBING
// =============================================================================

func (e *Engine) startRevealLocked(text string) {
	e.revealTarget = text
	e.typing = true
	e.scheduler.Start(text, e.applyReveal)
}

// applyReveal writes a revealed prefix into the trailing assistant message.
// It refuses stale epochs and lists whose last message is not an assistant.
func (e *Engine) applyReveal(epoch uint64, revealed string) bool {
	e.mu.Lock()

	if !e.scheduler.Current(epoch) {
		e.mu.Unlock()
		return false
	}
	n := len(e.messages)
	if n == 0 || e.messages[n-1].Role != model.RoleAssistant {
		e.typing = false
		e.revealTarget = ""
		logger.Logger.Debug().Uint64("epoch", epoch).Msg("REVEAL_STALE | last message is not an assistant reply")
		e.unlockAndPublish()
		return false
	}

	msgs := model.CloneMessages(e.messages)
	msgs[n-1].Content = revealed
	e.setMessagesLocked(msgs)
	e.unlockAndPublish()
	return true
}

func (e *Engine) onRevealDone(epoch uint64) {
	e.mu.Lock()
	if !e.scheduler.Latest(epoch) {
		e.mu.Unlock()
		return
	}
	e.typing = false
	e.revealTarget = ""
	e.unlockAndPublish()
}

// finishRevealLocked stops a run in progress after writing its full text,
// so that leaving a session mid-reveal never persists a truncated answer.
func (e *Engine) finishRevealLocked() {
	if e.scheduler.Active() {
		n := len(e.messages)
		if n > 0 && e.messages[n-1].Role == model.RoleAssistant {
			msgs := model.CloneMessages(e.messages)
			msgs[n-1].Content = e.revealTarget
			e.setMessagesLocked(msgs)
		}
	}
	e.scheduler.Stop()
	e.typing = false
	e.revealTarget = ""
}

// =============================================================================
// HELPERS
// =============================================================================

// setMessagesLocked replaces the visible list and mirrors it to the
// registry under the active id.
func (e *Engine) setMessagesLocked(msgs []model.Message) {
	e.messages = msgs
	_ = e.registry.UpsertFromMessages(e.active.ID(), msgs)
}

// replaceViewLocked swaps in another session's list without persisting it.
func (e *Engine) replaceViewLocked(msgs []model.Message) {
	e.view++
	e.messages = model.CloneMessages(msgs)
}

// onScreenLocked reports whether sid's list, as it was when a request
// started, is still the one displayed.
func (e *Engine) onScreenLocked(sid string, view uint64) bool {
	return e.view == view && e.active.ID() == sid
}

// deliverLateLocked stores a result for a session that is no longer on
// screen. If the user has since returned to that session the visible list
// is updated as well, without a reveal.
func (e *Engine) deliverLateLocked(sid string, view uint64, apply func([]model.Message) []model.Message) {
	if e.active.ID() == sid {
		e.setMessagesLocked(apply(model.CloneMessages(e.messages)))
		logger.Logger.Debug().Str("session_id", sid).Uint64("view", view).Msg("CHAT_LATE | applied to returned session")
		return
	}

	found, err := e.registry.Update(sid, apply)
	switch {
	case err != nil:
		logger.Logger.Warn().Err(err).Str("session_id", sid).Msg("CHAT_LATE | persist failed")
	case !found:
		logger.Logger.Debug().Str("session_id", sid).Msg("CHAT_LATE | session gone, result dropped")
	default:
		logger.Logger.Debug().Str("session_id", sid).Msg("CHAT_LATE | stored to origin session")
	}
}

func (e *Engine) saveDraftLocked() {
	if err := e.registry.SaveDraft(e.active.ID(), e.draft); err != nil {
		logger.Logger.Debug().Err(err).Str("session_id", e.active.ID()).Msg("DRAFT_SAVE | failed")
	}
}

// clearStoredDraftIf drops sid's stored draft when it still holds the
// question that was just answered.
func (e *Engine) clearStoredDraftIf(sid, answered string) {
	if strings.TrimSpace(util.Normalize(e.registry.Draft(sid))) != answered {
		return
	}
	if err := e.registry.SaveDraft(sid, ""); err != nil {
		logger.Logger.Debug().Err(err).Str("session_id", sid).Msg("DRAFT_SAVE | failed")
	}
}

func answerMessage(text string) model.Message {
	now := time.Now()
	return model.Message{Role: model.RoleAssistant, Content: text, CreatedAt: &now}
}

// replaceLastAnswer overwrites a trailing assistant message with m, or
// appends m when the list ends with something else.
func replaceLastAnswer(msgs []model.Message, m model.Message) []model.Message {
	if n := len(msgs); n > 0 && msgs[n-1].Role == model.RoleAssistant {
		msgs[n-1] = m
		return msgs
	}
	return append(msgs, m)
}
