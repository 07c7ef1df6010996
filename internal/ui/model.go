// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/tlchat/internal/chat"
	"github.com/jeranaias/tlchat/internal/logger"
	"github.com/jeranaias/tlchat/internal/model"
	"github.com/jeranaias/tlchat/internal/session"
	"github.com/jeranaias/tlchat/internal/ui/styles"
)

// Engine is the part of chat.Engine the view drives.
type Engine interface {
	Ask(ctx context.Context, query string) error
	Regenerate(ctx context.Context) error
	Retry(ctx context.Context) error
	SwitchSession(id string) error
	DeleteSession(id string)
	NewChat(ctx context.Context) string
	RenameSession(id, title string) error
	SearchSessions(query string) []model.Session
	Sessions() []model.Session
	SetDraft(text string) uint64
	ClearError()
	Snapshot() chat.State
	Subscribe(fn func(chat.State)) func()
}

// Options configures the view.
type Options struct {
	Theme          styles.Mode
	SidebarWidth   int
	ShowTimestamps bool
}

// DefaultSidebarWidth is used when Options.SidebarWidth is zero.
const DefaultSidebarWidth = 28

type focusArea int

const (
	focusComposer focusArea = iota
	focusSidebar
	focusSearch
	focusRename
)

// requestDoneMsg reports the end of a blocking engine call.
type requestDoneMsg struct {
	op  string
	err error
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the root tea.Model.
type Model struct {
	engine Engine
	ctx    context.Context
	opts   Options
	keys   KeyMap
	theme  *styles.Theme

	bridge      *stateBridge
	unsubscribe func()

	state       chat.State
	lastVersion uint64

	sessions []model.Session
	selected int
	focus    focusArea
	renameID string

	composer textarea.Model
	search   textinput.Model
	rename   textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model
	markdown *markdownRenderer

	width  int
	height int
	ready  bool
}

// New subscribes to engine and returns the initial model. Call Close when
// the program ends.
func New(ctx context.Context, engine Engine, opts Options) Model {
	if opts.SidebarWidth <= 0 {
		opts.SidebarWidth = DefaultSidebarWidth
	}
	theme := styles.NewTheme(opts.Theme)

	composer := textarea.New()
	composer.Placeholder = "Ask a question…"
	composer.ShowLineNumbers = false
	composer.CharLimit = 0
	composer.SetHeight(3)
	composer.KeyMap.InsertNewline = DefaultKeyMap().Newline
	composer.Focus()

	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = "search titles"

	rename := textinput.New()
	rename.Prompt = "title: "
	rename.CharLimit = session.MaxTitleLength

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Typing

	bridge := newStateBridge()
	m := Model{
		engine:   engine,
		ctx:      ctx,
		opts:     opts,
		keys:     DefaultKeyMap(),
		theme:    theme,
		bridge:   bridge,
		composer: composer,
		search:   search,
		rename:   rename,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		help:     help.New(),
		markdown: newMarkdownRenderer(theme.GlamourStyle()),
	}
	m.unsubscribe = engine.Subscribe(bridge.push)
	m.applyState(engine.Snapshot())
	return m
}

// Close detaches the model from the engine.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	m.bridge.close()
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init starts listening for engine snapshots.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.bridge.wait(), textarea.Blink, m.spinner.Tick)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.layout()
		return m, nil

	case StateMsg:
		m.applyState(chat.State(msg))
		return m, m.bridge.wait()

	case requestDoneMsg:
		if msg.err != nil && !errors.Is(msg.err, chat.ErrBusy) {
			logger.Logger.Debug().Err(msg.err).Str("op", msg.op).Msg("UI_REQUEST_FAILED")
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	return m, nil
}

// =============================================================================
// STATE
// =============================================================================

// applyState adopts st unless a newer snapshot was already seen.
func (m *Model) applyState(st chat.State) {
	if st.Version < m.lastVersion {
		return
	}
	m.lastVersion = st.Version

	switched := st.ActiveID != m.state.ActiveID
	m.state = st

	if st.Draft != m.composer.Value() {
		m.composer.SetValue(st.Draft)
	}
	m.refreshSessions()
	if switched {
		m.selectActive()
	}
	m.renderTranscript()
}

func (m *Model) refreshSessions() {
	if q := m.search.Value(); q != "" {
		m.sessions = m.engine.SearchSessions(q)
	} else {
		m.sessions = m.engine.Sessions()
	}
	if m.selected >= len(m.sessions) {
		m.selected = len(m.sessions) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

func (m *Model) selectActive() {
	for i, s := range m.sessions {
		if s.ID == m.state.ActiveID {
			m.selected = i
			return
		}
	}
}

func (m Model) selectedSession() (model.Session, bool) {
	if m.selected < 0 || m.selected >= len(m.sessions) {
		return model.Session{}, false
	}
	return m.sessions[m.selected], true
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}

	switch m.focus {
	case focusSearch:
		return m.handleSearchKey(msg)
	case focusRename:
		return m.handleRenameKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.NewChat):
		m.engine.NewChat(m.ctx)
		m.focusComposer()
		return m, nil

	case key.Matches(msg, m.keys.Regenerate):
		return m, m.request("regenerate", m.engine.Regenerate)

	case key.Matches(msg, m.keys.Retry):
		if !m.state.CanRetry() {
			return m, nil
		}
		return m, m.request("retry", m.engine.Retry)

	case key.Matches(msg, m.keys.Search):
		m.focus = focusSearch
		m.composer.Blur()
		return m, m.search.Focus()

	case key.Matches(msg, m.keys.Rename):
		return m.startRename()

	case key.Matches(msg, m.keys.ScrollUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.ScrollDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Focus):
		if m.focus == focusSidebar {
			m.focusComposer()
			return m, nil
		}
		m.focus = focusSidebar
		m.composer.Blur()
		return m, nil
	}

	if m.focus == focusSidebar {
		return m.handleSidebarKey(msg)
	}
	return m.handleComposerKey(msg)
}

func (m Model) handleComposerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Send):
		query := m.composer.Value()
		return m, m.request("ask", func(ctx context.Context) error {
			return m.engine.Ask(ctx, query)
		})

	case key.Matches(msg, m.keys.Cancel):
		m.engine.ClearError()
		return m, nil
	}

	var cmd tea.Cmd
	m.composer, cmd = m.composer.Update(msg)
	if v := m.composer.Value(); v != m.state.Draft {
		m.lastVersion = m.engine.SetDraft(v)
		m.state.Draft = v
	}
	return m, cmd
}

func (m Model) handleSidebarKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}
	case key.Matches(msg, m.keys.Down):
		if m.selected < len(m.sessions)-1 {
			m.selected++
		}
	case key.Matches(msg, m.keys.Send):
		if s, ok := m.selectedSession(); ok {
			if err := m.engine.SwitchSession(s.ID); err != nil {
				logger.Logger.Debug().Err(err).Str("session_id", s.ID).Msg("UI_SWITCH_FAILED")
			}
			m.focusComposer()
		}
	case key.Matches(msg, m.keys.Delete):
		if s, ok := m.selectedSession(); ok {
			m.engine.DeleteSession(s.ID)
			m.refreshSessions()
		}
	case key.Matches(msg, m.keys.Cancel):
		m.focusComposer()
	}
	return m, nil
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.search.SetValue("")
		m.search.Blur()
		m.refreshSessions()
		m.focusComposer()
		return m, nil
	case key.Matches(msg, m.keys.Send), key.Matches(msg, m.keys.Focus):
		m.search.Blur()
		m.focus = focusSidebar
		m.selected = 0
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.refreshSessions()
	return m, cmd
}

func (m Model) startRename() (tea.Model, tea.Cmd) {
	id := m.state.ActiveID
	if m.focus == focusSidebar {
		if s, ok := m.selectedSession(); ok {
			id = s.ID
		}
	}
	var current model.Session
	found := false
	for _, s := range m.sessions {
		if s.ID == id {
			current, found = s, true
			break
		}
	}
	if !found {
		return m, nil
	}

	m.renameID = id
	m.rename.SetValue(current.Title)
	m.rename.CursorEnd()
	m.focus = focusRename
	m.composer.Blur()
	return m, m.rename.Focus()
}

func (m Model) handleRenameKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.rename.Blur()
		m.focusComposer()
		return m, nil
	case key.Matches(msg, m.keys.Send):
		if err := m.engine.RenameSession(m.renameID, m.rename.Value()); err != nil {
			logger.Logger.Debug().Err(err).Str("session_id", m.renameID).Msg("UI_RENAME_FAILED")
		}
		m.rename.Blur()
		m.refreshSessions()
		m.focusComposer()
		return m, nil
	}

	var cmd tea.Cmd
	m.rename, cmd = m.rename.Update(msg)
	return m, cmd
}

func (m *Model) focusComposer() {
	m.focus = focusComposer
	m.composer.Focus()
}

// request runs a blocking engine call off the update loop.
func (m Model) request(op string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return requestDoneMsg{op: op, err: fn(ctx)}
	}
}

// =============================================================================
// RUN
// =============================================================================

// Run starts the full-screen program and blocks until the user quits.
func Run(ctx context.Context, engine Engine, opts Options) error {
	m := New(ctx, engine, opts)
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
