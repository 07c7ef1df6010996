// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/tlchat/internal/logger"
)

// markdownRenderer renders assistant answers, rebuilding the glamour
// renderer only when the wrap width changes.
type markdownRenderer struct {
	style    string
	width    int
	renderer *glamour.TermRenderer
}

func newMarkdownRenderer(style string) *markdownRenderer {
	return &markdownRenderer{style: style}
}

// Render returns content as styled terminal text wrapped to width. It falls
// back to the plain text if glamour fails.
func (r *markdownRenderer) Render(content string, width int) string {
	if content == "" {
		return ""
	}
	if width < 20 {
		width = 20
	}

	if r.renderer == nil || r.width != width {
		tr, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(r.style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			logger.Logger.Debug().Err(err).Msg("MARKDOWN_INIT_FAILED")
			return content
		}
		r.renderer, r.width = tr, width
	}

	out, err := r.renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(out, "\n")
}
