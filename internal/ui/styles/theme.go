// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Mode selects light or dark rendering.
type Mode int

const (
	ModeAuto Mode = iota
	ModeDark
	ModeLight
)

// ParseMode maps a config value ("auto", "dark", "light") to a Mode.
// Unknown values mean ModeAuto.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dark":
		return ModeDark
	case "light":
		return ModeLight
	default:
		return ModeAuto
	}
}

// Theme holds every style used by the terminal front-ends.
type Theme struct {
	IsDark bool

	// ==========================================================================
	// LAYOUT
	// ==========================================================================

	Header         lipgloss.Style
	HeaderTitle    lipgloss.Style
	Sidebar        lipgloss.Style
	SidebarFocused lipgloss.Style
	Main           lipgloss.Style

	// ==========================================================================
	// SESSION LIST
	// ==========================================================================

	SessionItem         lipgloss.Style
	SessionItemSelected lipgloss.Style
	SessionItemActive   lipgloss.Style
	SessionMeta         lipgloss.Style

	// ==========================================================================
	// TRANSCRIPT
	// ==========================================================================

	UserLabel      lipgloss.Style
	UserText       lipgloss.Style
	AssistantLabel lipgloss.Style
	Timestamp      lipgloss.Style
	Empty          lipgloss.Style

	// ==========================================================================
	// COMPOSER & STATUS
	// ==========================================================================

	Composer        lipgloss.Style
	ComposerFocused lipgloss.Style
	Typing          lipgloss.Style
	ErrorLine       lipgloss.Style
	Hint            lipgloss.Style
	ShortcutKey     lipgloss.Style
	ShortcutDesc    lipgloss.Style
}

// NewTheme builds a theme. ModeAuto asks the terminal for its background.
func NewTheme(mode Mode) *Theme {
	isDark := true
	switch mode {
	case ModeLight:
		isDark = false
	case ModeAuto:
		isDark = lipgloss.HasDarkBackground()
	}

	t := &Theme{IsDark: isDark}
	t.initStyles()
	return t
}

// GlamourStyle names the glamour standard style matching the theme.
func (t *Theme) GlamourStyle() string {
	if t.IsDark {
		return "dark"
	}
	return "light"
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Foreground(Cyan).
		Background(SurfaceDim).
		Padding(0, 1)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.Sidebar = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.SidebarFocused = t.Sidebar.
		BorderForeground(Purple)

	t.Main = lipgloss.NewStyle().
		Padding(0, 1)

	// Session list
	t.SessionItem = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.SessionItemSelected = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Background(SurfaceBright).
		Bold(true)

	t.SessionItemActive = lipgloss.NewStyle().
		Foreground(Purple)

	t.SessionMeta = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Transcript
	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)

	t.UserText = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.AssistantLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.Timestamp = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.Empty = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	// Composer and status
	t.Composer = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay)

	t.ComposerFocused = t.Composer.
		BorderForeground(Cyan)

	t.Typing = lipgloss.NewStyle().
		Foreground(Amber).
		Italic(true)

	t.ErrorLine = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)

	t.Hint = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)
}
