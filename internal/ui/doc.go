// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui is the Bubble Tea front-end for tlchat.
//
// The model never owns conversation state. It subscribes to a chat.Engine,
// renders the latest State it has seen and turns key presses into engine
// calls. Blocking calls (Ask, Regenerate, Retry) run inside tea.Cmds.
//
// # Key Types
//
//   - Model: the tea.Model with sidebar, transcript and composer
//   - StateMsg: an engine snapshot delivered to Update
//   - KeyMap: all key bindings with help text
//
// # Usage
//
//	engine := chat.NewEngine(registry, client)
//	if err := ui.Run(engine, ui.Options{Theme: styles.ModeAuto}); err != nil {
//	    return err
//	}
package ui
