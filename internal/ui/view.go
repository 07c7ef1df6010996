// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/tlchat/internal/model"
	"github.com/jeranaias/tlchat/internal/util"
)

const (
	// TypingText is shown while a request or reveal is in progress.
	TypingText = "Assistant is typing…"

	headerHeight   = 1
	composerHeight = 5 // textarea plus border
	statusHeight   = 1
	helpHeight     = 1
)

// =============================================================================
// LAYOUT
// =============================================================================

func (m *Model) layout() {
	mainWidth := m.mainWidth()

	m.composer.SetWidth(mainWidth - 2)
	m.search.Width = m.opts.SidebarWidth - 4
	m.rename.Width = mainWidth - 10

	vpHeight := m.height - headerHeight - composerHeight - statusHeight - helpHeight
	if vpHeight < 3 {
		vpHeight = 3
	}
	m.viewport.Width = mainWidth
	m.viewport.Height = vpHeight
	m.help.Width = m.width

	m.renderTranscript()
}

func (m Model) mainWidth() int {
	w := m.width - m.opts.SidebarWidth - 2
	if w < 20 {
		w = 20
	}
	return w
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the whole screen.
func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}

	header := m.renderHeader()
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), m.renderMain())
	footer := m.help.View(m.keys)

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m Model) renderHeader() string {
	title := "New chat"
	for _, s := range m.sessions {
		if s.ID == m.state.ActiveID {
			title = s.Title
			break
		}
	}
	line := m.theme.HeaderTitle.Render("tlchat") + "  " + util.ClampWidth(title, m.width-12)
	return m.theme.Header.Width(m.width).Render(line)
}

func (m Model) renderSidebar() string {
	inner := m.opts.SidebarWidth - 4
	height := m.height - headerHeight - helpHeight - 2

	var b strings.Builder
	if m.focus == focusSearch || m.search.Value() != "" {
		b.WriteString(m.search.View())
		b.WriteString("\n")
	}

	if len(m.sessions) == 0 {
		empty := "No sessions yet"
		if m.search.Value() != "" {
			empty = "No matches"
		}
		b.WriteString(m.theme.Empty.Render(empty))
	}

	for i, s := range m.sessions {
		label := util.PadWidth(util.ClampWidth(s.Title, inner), inner)
		style := m.theme.SessionItem
		switch {
		case i == m.selected && m.focus == focusSidebar:
			style = m.theme.SessionItemSelected
		case s.ID == m.state.ActiveID:
			style = m.theme.SessionItemActive
		}
		b.WriteString(style.Render(label))
		b.WriteString("\n")
		b.WriteString(m.theme.SessionMeta.Render(fmt.Sprintf("%d messages", s.MessageCount())))
		b.WriteString("\n")
	}

	style := m.theme.Sidebar
	if m.focus == focusSidebar || m.focus == focusSearch {
		style = m.theme.SidebarFocused
	}
	return style.Width(m.opts.SidebarWidth - 2).Height(height).Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) renderMain() string {
	parts := []string{m.viewport.View(), m.renderStatus()}

	if m.focus == focusRename {
		parts = append(parts, m.rename.View())
	} else {
		style := m.theme.Composer
		if m.focus == focusComposer {
			style = m.theme.ComposerFocused
		}
		parts = append(parts, style.Render(m.composer.View()))
	}

	return m.theme.Main.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// renderStatus is the single line between transcript and composer.
func (m Model) renderStatus() string {
	switch {
	case m.state.Error != "":
		line := m.theme.ErrorLine.Render(m.state.Error)
		if m.state.CanRetry() {
			line += "  " + m.theme.Hint.Render("ctrl+t to retry")
		}
		return line
	case m.state.Loading || m.state.Typing:
		return m.spinner.View() + " " + m.theme.Typing.Render(TypingText)
	}
	return ""
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// renderTranscript rebuilds the viewport content from the current state.
func (m *Model) renderTranscript() {
	if m.viewport.Width == 0 {
		return
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.transcript(m.viewport.Width))
	if atBottom || m.state.Typing || m.state.Loading {
		m.viewport.GotoBottom()
	}
}

func (m Model) transcript(width int) string {
	if len(m.state.Messages) == 0 {
		return m.theme.Empty.Render("Ask anything to start a conversation.")
	}

	var b strings.Builder
	for i, msg := range m.state.Messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.renderMessage(msg, width))
	}
	return b.String()
}

func (m Model) renderMessage(msg model.Message, width int) string {
	label := m.theme.UserLabel.Render(msg.Role.DisplayName())
	if msg.IsAssistant() {
		label = m.theme.AssistantLabel.Render(msg.Role.DisplayName())
	}
	if m.opts.ShowTimestamps && msg.CreatedAt != nil {
		label += " " + m.theme.Timestamp.Render(msg.CreatedAt.Local().Format("15:04"))
	}

	var body string
	if msg.IsAssistant() {
		body = m.markdown.Render(msg.Content, width-2)
	} else {
		body = m.theme.UserText.Width(width - 2).Render(msg.Content)
	}
	return label + "\n" + body
}
