// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles holds the tlchat colour palette and Lip Gloss styles.

Colours are lipgloss.AdaptiveColor values, so the same palette works on light
and dark terminals. A Theme groups the styles the terminal front-ends need:

	Sidebar / SessionItem / SessionItemSelected  - session list
	UserLabel / AssistantLabel / Timestamp       - transcript
	Composer / ComposerFocused                   - input box
	Typing / ErrorLine / Hint                    - status lines

# Usage

	theme := styles.NewTheme(styles.ModeAuto)
	fmt.Println(theme.ErrorLine.Render("Request failed"))
*/
package styles
