// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/tlchat/internal/answer"
	"github.com/jeranaias/tlchat/internal/logger"
	"github.com/jeranaias/tlchat/internal/model"
	"github.com/jeranaias/tlchat/internal/session"
	"github.com/jeranaias/tlchat/internal/storage"
)

func TestMain(m *testing.M) {
	logger.Discard()
	os.Exit(m.Run())
}

// =============================================================================
// TEST HELPERS
// =============================================================================

type askCall struct {
	SessionID string
	Query     string
}

// fakeAsker answers from a queue. When gate is set each call blocks until
// the gate is closed.
type fakeAsker struct {
	mu      sync.Mutex
	calls   []askCall
	answers []string
	err     error
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeAsker) Chat(ctx context.Context, sessionID, query string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, askCall{sessionID, query})
	gate, entered := f.gate, f.entered
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if len(f.answers) == 0 {
		return "", nil
	}
	a := f.answers[0]
	if len(f.answers) > 1 {
		f.answers = f.answers[1:]
	}
	return a, nil
}

func (f *fakeAsker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeAsker) lastCall() askCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

// gated makes the next calls block until the returned release is called.
func (f *fakeAsker) gated() (entered <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	f.entered = make(chan struct{}, 4)
	gate := f.gate
	var once sync.Once
	return f.entered, func() { once.Do(func() { close(gate) }) }
}

func newTestEngine(t *testing.T, asker Asker) (*Engine, *session.Registry, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	reg := session.NewRegistry(store, nil)
	reg.Load()
	e := NewEngine(reg, asker)
	t.Cleanup(e.Close)
	return e, reg, store
}

func waitSettled(t *testing.T, e *Engine) State {
	t.Helper()
	require.Eventually(t, func() bool {
		s := e.Snapshot()
		return !s.Loading && !s.Typing
	}, 2*time.Second, 2*time.Millisecond)
	return e.Snapshot()
}

func waitEntered(t *testing.T, entered <-chan struct{}) {
	t.Helper()
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("request never reached the answer service")
	}
}

func seedSession(t *testing.T, reg *session.Registry, id string, msgs ...model.Message) {
	t.Helper()
	require.NoError(t, reg.UpsertFromMessages(id, msgs))
}

func user(content string) model.Message {
	return model.Message{Role: model.RoleUser, Content: content}
}

func assistant(content string) model.Message {
	return model.Message{Role: model.RoleAssistant, Content: content}
}

// =============================================================================
// ASK TESTS
// =============================================================================

func TestAsk_SpeedLimitScenario(t *testing.T) {
	asker := &fakeAsker{answers: []string{"60 km/h"}}
	e, reg, _ := newTestEngine(t, asker)

	// Snapshots may be published out of order; Version restores it.
	var mu sync.Mutex
	frames := map[uint64]string{}
	unsubscribe := e.Subscribe(func(s State) {
		if n := len(s.Messages); n == 2 && s.Messages[1].Role == model.RoleAssistant {
			mu.Lock()
			frames[s.Version] = s.Messages[1].Content
			mu.Unlock()
		}
	})
	defer unsubscribe()

	require.NoError(t, e.Ask(context.Background(), "  What is the speed limit?  "))
	st := waitSettled(t, e)

	require.Len(t, st.Messages, 2)
	assert.Equal(t, model.RoleUser, st.Messages[0].Role)
	assert.Equal(t, "What is the speed limit?", st.Messages[0].Content)
	assert.NotNil(t, st.Messages[0].CreatedAt)
	assert.Equal(t, model.RoleAssistant, st.Messages[1].Role)
	assert.Equal(t, "60 km/h", st.Messages[1].Content)
	assert.Empty(t, st.Error)

	mu.Lock()
	assert.Equal(t, []string{"", "60 km/", "60 km/h"}, orderedDistinct(frames))
	mu.Unlock()

	call := asker.lastCall()
	assert.Equal(t, st.ActiveID, call.SessionID)
	assert.Equal(t, "What is the speed limit?", call.Query)

	stored, ok := reg.Get(st.ActiveID)
	require.True(t, ok)
	assert.Equal(t, "What is the speed limit?", stored.Title)
	assert.Equal(t, "60 km/h", stored.Messages[1].Content)
}

func orderedDistinct(frames map[uint64]string) []string {
	versions := make([]uint64, 0, len(frames))
	for v := range frames {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })

	var out []string
	for _, v := range versions {
		if len(out) == 0 || out[len(out)-1] != frames[v] {
			out = append(out, frames[v])
		}
	}
	return out
}

func TestAsk_OverHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"answer":"60 km/h"}`))
	}))
	defer server.Close()

	e, _, _ := newTestEngine(t, answer.NewClient(server.URL))
	require.NoError(t, e.Ask(context.Background(), "What is the speed limit?"))

	st := waitSettled(t, e)
	require.Len(t, st.Messages, 2)
	assert.Equal(t, "60 km/h", st.Messages[1].Content)
}

func TestAsk_Validation(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"empty", "", MsgEmptyQuery},
		{"whitespace", "   \n\t", MsgEmptyQuery},
		{"too long", strings.Repeat("a", MaxQueryLength+1), MsgQueryTooLong},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			asker := &fakeAsker{answers: []string{"x"}}
			e, reg, _ := newTestEngine(t, asker)

			err := e.Ask(context.Background(), tc.query)

			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tc.want, vErr.Message)

			st := e.Snapshot()
			assert.Equal(t, tc.want, st.Error)
			assert.False(t, st.Loading)
			assert.Empty(t, st.Messages)
			assert.Empty(t, st.ActiveID)
			assert.Zero(t, asker.callCount(), "no network call for rejected input")
			assert.Zero(t, reg.Len())
		})
	}
}

func TestAsk_MaxLengthAccepted(t *testing.T) {
	asker := &fakeAsker{answers: []string{"ok"}}
	e, _, _ := newTestEngine(t, asker)

	require.NoError(t, e.Ask(context.Background(), strings.Repeat("é", MaxQueryLength)))
	waitSettled(t, e)
	assert.Equal(t, 1, asker.callCount())
}

func TestAsk_DecomposedInputCountsComposed(t *testing.T) {
	asker := &fakeAsker{answers: []string{"ok"}}
	e, _, _ := newTestEngine(t, asker)

	// 5000 "e + combining acute" pairs compose to 5000 runes.
	require.NoError(t, e.Ask(context.Background(), strings.Repeat("e\u0301", MaxQueryLength)))
	waitSettled(t, e)
	assert.Equal(t, 1, asker.callCount())
}

func TestAsk_FailureMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"validation from service", &answer.StatusError{Status: 422, Body: `{"detail":"validation error"}`}, MsgInvalidInput},
		{"server error", &answer.StatusError{Status: 500}, MsgRequestFailed},
		{"transport", &answer.TransportError{Op: "chat", Err: errors.New("connection refused")}, MsgRequestFailed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			asker := &fakeAsker{err: tc.err}
			e, _, _ := newTestEngine(t, asker)

			err := e.Ask(context.Background(), "question")
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.err)

			st := e.Snapshot()
			assert.Equal(t, tc.want, st.Error)
			assert.False(t, st.Loading)
			assert.False(t, st.Typing)
			require.Len(t, st.Messages, 1, "user message stays visible")
			assert.True(t, st.CanRetry())
		})
	}
}

func TestAsk_RefusedWhileLoading(t *testing.T) {
	asker := &fakeAsker{answers: []string{"first"}}
	entered, release := asker.gated()
	e, _, _ := newTestEngine(t, asker)

	done := make(chan error, 1)
	go func() { done <- e.Ask(context.Background(), "first") }()
	waitEntered(t, entered)

	assert.True(t, e.Snapshot().Loading)
	assert.ErrorIs(t, e.Ask(context.Background(), "second"), ErrBusy)
	assert.NoError(t, e.Regenerate(context.Background()))
	assert.NoError(t, e.Retry(context.Background()))
	assert.Equal(t, 1, asker.callCount())

	release()
	require.NoError(t, <-done)
	waitSettled(t, e)
}

func TestAsk_ClearsDraftOnSuccess(t *testing.T) {
	asker := &fakeAsker{answers: []string{"answer"}}
	e, reg, _ := newTestEngine(t, asker)
	id := e.NewChat(context.Background())

	e.SetDraft("my question")
	assert.Equal(t, "my question", reg.Draft(id))

	require.NoError(t, e.Ask(context.Background(), "my question"))
	st := waitSettled(t, e)
	assert.Empty(t, st.Draft)
	assert.Empty(t, reg.Draft(id))
}

func TestAsk_KeepsDraftOnFailure(t *testing.T) {
	asker := &fakeAsker{err: errors.New("down")}
	e, _, _ := newTestEngine(t, asker)
	e.NewChat(context.Background())
	e.SetDraft("my question")

	require.Error(t, e.Ask(context.Background(), "my question"))
	assert.Equal(t, "my question", e.Snapshot().Draft)
}

func TestAsk_KeepsDraftTypedWhileLoading(t *testing.T) {
	asker := &fakeAsker{answers: []string{"answer"}}
	entered, release := asker.gated()
	e, reg, _ := newTestEngine(t, asker)
	id := e.NewChat(context.Background())
	e.SetDraft("my question")

	done := make(chan error, 1)
	go func() { done <- e.Ask(context.Background(), "my question") }()
	waitEntered(t, entered)

	e.SetDraft("follow-up typed while waiting")
	release()
	require.NoError(t, <-done)

	st := waitSettled(t, e)
	assert.Equal(t, "follow-up typed while waiting", st.Draft)
	assert.Equal(t, "follow-up typed while waiting", reg.Draft(id))
}

func TestAsk_EmptySubmitWhileLoadingIsBusy(t *testing.T) {
	asker := &fakeAsker{answers: []string{"answer"}}
	entered, release := asker.gated()
	e, _, _ := newTestEngine(t, asker)

	done := make(chan error, 1)
	go func() { done <- e.Ask(context.Background(), "question") }()
	waitEntered(t, entered)

	assert.ErrorIs(t, e.Ask(context.Background(), "   "), ErrBusy)
	assert.Empty(t, e.Snapshot().Error)

	release()
	require.NoError(t, <-done)
	st := waitSettled(t, e)
	assert.Empty(t, st.Error)
	require.Len(t, st.Messages, 2)
	assert.Equal(t, "answer", st.Messages[1].Content)
}

type panickingAsker struct{}

func (panickingAsker) Chat(ctx context.Context, sessionID, query string) (string, error) {
	panic("asker exploded")
}

func TestAsk_PanickingAskerClearsLoading(t *testing.T) {
	e, _, _ := newTestEngine(t, panickingAsker{})

	assert.Panics(t, func() { _ = e.Ask(context.Background(), "question") })
	assert.False(t, e.Snapshot().Loading)

	e.NewChat(context.Background())
	assert.Panics(t, func() { _ = e.Ask(context.Background(), "question") })
	assert.False(t, e.Snapshot().Loading)
	assert.Panics(t, func() { _ = e.Regenerate(context.Background()) })
	assert.False(t, e.Snapshot().Loading)
}

// =============================================================================
// REGENERATE / RETRY TESTS
// =============================================================================

func TestRegenerate_NoUserMessageIsNoOp(t *testing.T) {
	asker := &fakeAsker{answers: []string{"x"}}
	e, _, _ := newTestEngine(t, asker)

	require.NoError(t, e.Regenerate(context.Background()))

	st := e.Snapshot()
	assert.False(t, st.Loading)
	assert.Empty(t, st.Messages)
	assert.Zero(t, asker.callCount())
}

func TestRegenerate_ReplacesLastAnswer(t *testing.T) {
	asker := &fakeAsker{answers: []string{"first answer", "second answer"}}
	e, reg, _ := newTestEngine(t, asker)

	require.NoError(t, e.Ask(context.Background(), "question"))
	waitSettled(t, e)

	require.NoError(t, e.Regenerate(context.Background()))
	st := waitSettled(t, e)

	require.Len(t, st.Messages, 2)
	assert.Equal(t, "second answer", st.Messages[1].Content)
	assert.Equal(t, askCall{st.ActiveID, "question"}, asker.lastCall())

	stored, _ := reg.Get(st.ActiveID)
	assert.Equal(t, "second answer", stored.Messages[1].Content)
}

func TestRegenerate_AppendsWhenLastIsUser(t *testing.T) {
	asker := &fakeAsker{answers: []string{"answer"}}
	e, reg, _ := newTestEngine(t, asker)
	seedSession(t, reg, "s1", user("orphan question"))
	require.NoError(t, e.SwitchSession("s1"))

	require.NoError(t, e.Regenerate(context.Background()))
	st := waitSettled(t, e)

	require.Len(t, st.Messages, 2)
	assert.Equal(t, "answer", st.Messages[1].Content)
	assert.Equal(t, "orphan question", asker.lastCall().Query)
}

func TestRegenerate_Failure(t *testing.T) {
	asker := &fakeAsker{answers: []string{"ok"}}
	e, _, _ := newTestEngine(t, asker)
	require.NoError(t, e.Ask(context.Background(), "q"))
	waitSettled(t, e)

	asker.mu.Lock()
	asker.err = errors.New("boom")
	asker.mu.Unlock()

	require.Error(t, e.Regenerate(context.Background()))
	st := e.Snapshot()
	assert.Equal(t, MsgRegenerateFailed, st.Error)
	assert.False(t, st.Loading)
	assert.Equal(t, "ok", st.Messages[1].Content, "previous answer untouched")
}

func TestRetry_ResubmitsLastQuery(t *testing.T) {
	asker := &fakeAsker{err: errors.New("down")}
	e, _, _ := newTestEngine(t, asker)

	require.NoError(t, e.Retry(context.Background()), "nothing to retry yet")
	assert.Zero(t, asker.callCount())

	require.Error(t, e.Ask(context.Background(), "question"))

	asker.mu.Lock()
	asker.err = nil
	asker.answers = []string{"recovered"}
	asker.mu.Unlock()

	require.NoError(t, e.Retry(context.Background()))
	st := waitSettled(t, e)
	assert.Empty(t, st.Error)
	assert.Equal(t, "question", asker.lastCall().Query)
	assert.Equal(t, "recovered", st.Messages[len(st.Messages)-1].Content)
}

// =============================================================================
// NAVIGATION TESTS
// =============================================================================

func TestSwitchSession(t *testing.T) {
	e, reg, _ := newTestEngine(t, &fakeAsker{})
	seedSession(t, reg, "s1", user("q1"), assistant("a1"))
	seedSession(t, reg, "s2", user("q2"))
	require.NoError(t, reg.SaveDraft("s2", "unsent text"))

	require.NoError(t, e.SwitchSession("s1"))
	st := e.Snapshot()
	assert.Equal(t, "s1", st.ActiveID)
	assert.Len(t, st.Messages, 2)
	assert.Empty(t, st.Draft)

	require.NoError(t, e.SwitchSession("s2"))
	st = e.Snapshot()
	assert.Equal(t, "s2", st.ActiveID)
	assert.Equal(t, "unsent text", st.Draft)

	err := e.SwitchSession("missing")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	assert.Equal(t, "s2", e.Snapshot().ActiveID)
}

func TestSwitchSession_ClearsError(t *testing.T) {
	e, reg, _ := newTestEngine(t, &fakeAsker{})
	seedSession(t, reg, "s1", user("q1"))

	require.Error(t, e.Ask(context.Background(), ""))
	require.NoError(t, e.SwitchSession("s1"))
	assert.Empty(t, e.Snapshot().Error)
}

func TestSwitchMidReveal_NoStaleWrites(t *testing.T) {
	long := strings.Repeat("abcdef", 40)
	asker := &fakeAsker{answers: []string{long}}
	e, reg, _ := newTestEngine(t, asker)
	seedSession(t, reg, "other", user("other q"), assistant("other a"))

	require.NoError(t, e.Ask(context.Background(), "question"))
	origin := e.Snapshot().ActiveID
	require.True(t, e.Snapshot().Typing)

	require.NoError(t, e.SwitchSession("other"))
	st := e.Snapshot()
	assert.False(t, st.Typing)

	time.Sleep(20 * 12 * time.Millisecond)

	st = e.Snapshot()
	require.Len(t, st.Messages, 2)
	assert.Equal(t, "other a", st.Messages[1].Content)
	otherStored, _ := reg.Get("other")
	assert.Equal(t, "other a", otherStored.Messages[1].Content)

	// The interrupted answer is stored in full.
	originStored, ok := reg.Get(origin)
	require.True(t, ok)
	assert.Equal(t, long, originStored.Messages[1].Content)
}

func TestDeleteActive_MidReveal(t *testing.T) {
	asker := &fakeAsker{answers: []string{strings.Repeat("xyzxyz", 40)}}
	e, reg, store := newTestEngine(t, asker)
	seedSession(t, reg, "other", user("other q"), assistant("other a"))

	require.NoError(t, e.Ask(context.Background(), "question"))
	origin := e.Snapshot().ActiveID

	e.DeleteSession(origin)
	st := e.Snapshot()
	assert.Empty(t, st.ActiveID)
	assert.Empty(t, st.Messages)
	assert.False(t, st.Typing)

	time.Sleep(20 * 12 * time.Millisecond)

	st = e.Snapshot()
	assert.Empty(t, st.Messages, "tick resurrected content after delete")
	_, ok := reg.Get(origin)
	assert.False(t, ok)
	for _, s := range store.ReadSessions() {
		for _, m := range s.Messages {
			assert.NotContains(t, m.Content, "xyz")
		}
	}

	// The next question starts a brand new session.
	asker.mu.Lock()
	asker.answers = []string{"fresh"}
	asker.mu.Unlock()
	require.NoError(t, e.Ask(context.Background(), "again"))
	st = waitSettled(t, e)
	assert.NotEqual(t, origin, st.ActiveID)
	assert.Len(t, st.Messages, 2)
}

func TestDeleteInactive_LeavesView(t *testing.T) {
	e, reg, _ := newTestEngine(t, &fakeAsker{})
	seedSession(t, reg, "s1", user("q1"), assistant("a1"))
	seedSession(t, reg, "s2", user("q2"))
	require.NoError(t, e.SwitchSession("s1"))
	before := e.Snapshot()

	e.DeleteSession("s2")

	after := e.Snapshot()
	assert.Equal(t, "s1", after.ActiveID)
	assert.Equal(t, before.Messages, after.Messages)
	assert.Equal(t, 1, reg.Len())
}

func TestNewChat(t *testing.T) {
	e, reg, _ := newTestEngine(t, &fakeAsker{})
	seedSession(t, reg, "s1", user("q1"), assistant("a1"))
	require.NoError(t, e.SwitchSession("s1"))

	id := e.NewChat(context.Background())

	st := e.Snapshot()
	assert.Equal(t, id, st.ActiveID)
	assert.NotEqual(t, "s1", id)
	assert.Empty(t, st.Messages)
	assert.Empty(t, st.Draft)
	assert.Equal(t, 1, reg.Len(), "new session is not listed until it has messages")
}

// =============================================================================
// LATE RESULT TESTS
// =============================================================================

func TestLateAnswer_AfterNewChat(t *testing.T) {
	asker := &fakeAsker{answers: []string{"late answer"}}
	entered, release := asker.gated()
	e, reg, _ := newTestEngine(t, asker)

	done := make(chan error, 1)
	go func() { done <- e.Ask(context.Background(), "slow question") }()
	waitEntered(t, entered)
	origin := e.Snapshot().ActiveID

	fresh := e.NewChat(context.Background())
	release()
	require.NoError(t, <-done)

	st := waitSettled(t, e)
	assert.Equal(t, fresh, st.ActiveID)
	assert.Empty(t, st.Messages, "late answer must not appear in the new chat")

	stored, ok := reg.Get(origin)
	require.True(t, ok)
	require.Len(t, stored.Messages, 2)
	assert.Equal(t, "late answer", stored.Messages[1].Content)
}

func TestLateAnswer_AfterSwitchAway(t *testing.T) {
	asker := &fakeAsker{answers: []string{"late answer"}}
	e, reg, _ := newTestEngine(t, asker)
	seedSession(t, reg, "other", user("other q"))
	entered, release := asker.gated()

	done := make(chan error, 1)
	go func() { done <- e.Ask(context.Background(), "slow question") }()
	waitEntered(t, entered)
	origin := e.Snapshot().ActiveID

	require.NoError(t, e.SwitchSession("other"))
	release()
	require.NoError(t, <-done)

	st := waitSettled(t, e)
	assert.Equal(t, "other", st.ActiveID)
	assert.Len(t, st.Messages, 1)

	stored, _ := reg.Get(origin)
	assert.Equal(t, "late answer", stored.Messages[len(stored.Messages)-1].Content)
}

func TestLateAnswer_AfterReturnToOrigin(t *testing.T) {
	asker := &fakeAsker{answers: []string{"late answer"}}
	e, reg, _ := newTestEngine(t, asker)
	seedSession(t, reg, "other", user("other q"))
	entered, release := asker.gated()

	done := make(chan error, 1)
	go func() { done <- e.Ask(context.Background(), "slow question") }()
	waitEntered(t, entered)
	origin := e.Snapshot().ActiveID

	require.NoError(t, e.SwitchSession("other"))
	require.NoError(t, e.SwitchSession(origin))
	release()
	require.NoError(t, <-done)

	st := waitSettled(t, e)
	require.Len(t, st.Messages, 2)
	assert.Equal(t, "late answer", st.Messages[1].Content)
	stored, _ := reg.Get(origin)
	assert.Len(t, stored.Messages, 2)
}

func TestLateAnswer_AfterDeleteIsDropped(t *testing.T) {
	asker := &fakeAsker{answers: []string{"late answer"}}
	entered, release := asker.gated()
	e, reg, _ := newTestEngine(t, asker)

	done := make(chan error, 1)
	go func() { done <- e.Ask(context.Background(), "slow question") }()
	waitEntered(t, entered)
	origin := e.Snapshot().ActiveID

	e.DeleteSession(origin)
	release()
	require.NoError(t, <-done)

	waitSettled(t, e)
	_, ok := reg.Get(origin)
	assert.False(t, ok, "deleted session must not be recreated")
	assert.Zero(t, reg.Len())
	assert.Empty(t, e.Snapshot().Messages)
}

func TestLateFailure_DoesNotShowErrorInOtherSession(t *testing.T) {
	asker := &fakeAsker{err: errors.New("down")}
	entered, release := asker.gated()
	e, _, _ := newTestEngine(t, asker)

	done := make(chan error, 1)
	go func() { done <- e.Ask(context.Background(), "slow question") }()
	waitEntered(t, entered)

	e.NewChat(context.Background())
	release()
	require.Error(t, <-done)

	st := e.Snapshot()
	assert.Empty(t, st.Error)
	assert.False(t, st.Loading)
}

// =============================================================================
// INVARIANT TESTS
// =============================================================================

func TestAtMostOneRevealAcrossNavigation(t *testing.T) {
	asker := &fakeAsker{answers: []string{strings.Repeat("0123456789", 30)}}
	e, reg, _ := newTestEngine(t, asker)
	seedSession(t, reg, "a", user("qa"), assistant("aa"))
	seedSession(t, reg, "b", user("qb"), assistant("ab"))

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, e.Ask(ctx, "question"))
		require.NoError(t, e.SwitchSession("a"))
		require.NoError(t, e.Regenerate(ctx))
		require.NoError(t, e.SwitchSession("b"))
		e.NewChat(ctx)
	}
	require.NoError(t, e.Ask(ctx, "final"))
	require.NoError(t, e.SwitchSession("a"))

	assert.False(t, e.scheduler.Active())
	time.Sleep(10 * 12 * time.Millisecond)

	st := e.Snapshot()
	assert.Equal(t, "a", st.ActiveID)
	assert.False(t, st.Typing)
	stored, _ := reg.Get("a")
	assert.Equal(t, stored.Messages, st.Messages)
}

func TestUpdatedAtStableDuringReveal(t *testing.T) {
	asker := &fakeAsker{answers: []string{strings.Repeat("word ", 30)}}
	e, reg, _ := newTestEngine(t, asker)

	require.NoError(t, e.Ask(context.Background(), "question"))
	id := e.Snapshot().ActiveID
	first, _ := reg.Get(id)

	st := waitSettled(t, e)
	last, _ := reg.Get(id)
	assert.True(t, last.UpdatedAt.Equal(first.UpdatedAt), "reveal ticks bumped updatedAt")
	assert.Equal(t, st.Messages, last.Messages)
}

func TestSnapshotIsACopy(t *testing.T) {
	asker := &fakeAsker{answers: []string{"answer"}}
	e, _, _ := newTestEngine(t, asker)
	require.NoError(t, e.Ask(context.Background(), "q"))
	waitSettled(t, e)

	st := e.Snapshot()
	st.Messages[0].Content = "mutated"
	assert.Equal(t, "q", e.Snapshot().Messages[0].Content)
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	e, _, _ := newTestEngine(t, &fakeAsker{})

	var mu sync.Mutex
	count := 0
	unsubscribe := e.Subscribe(func(State) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	e.SetDraft("a")
	unsubscribe()
	e.SetDraft("b")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count)
}

func TestRenameAndSearch(t *testing.T) {
	e, reg, _ := newTestEngine(t, &fakeAsker{})
	seedSession(t, reg, "s1", user("speed limits"))
	seedSession(t, reg, "s2", user("parking"))

	require.NoError(t, e.RenameSession("s2", "   "))
	assert.ErrorIs(t, e.RenameSession("missing", "x"), session.ErrSessionNotFound)

	got := e.SearchSessions("untitled")
	require.Len(t, got, 1)
	assert.Equal(t, "s2", got[0].ID)
	assert.Len(t, e.Sessions(), 2)
}
