// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/tlchat/internal/chat"
)

// StateMsg carries an engine snapshot into Update.
type StateMsg chat.State

// stateBridge hands engine snapshots to the Bubble Tea loop. It holds at
// most one pending snapshot and a newer one replaces it, so the publisher
// never blocks on a slow renderer.
type stateBridge struct {
	ch   chan chat.State
	done chan struct{}
}

func newStateBridge() *stateBridge {
	return &stateBridge{
		ch:   make(chan chat.State, 1),
		done: make(chan struct{}),
	}
}

// push is the engine subscriber.
func (b *stateBridge) push(st chat.State) {
	for {
		select {
		case b.ch <- st:
			return
		default:
		}
		select {
		case old := <-b.ch:
			if old.Version > st.Version {
				st = old
			}
		default:
		}
	}
}

// close unblocks any waiting command.
func (b *stateBridge) close() {
	select {
	case <-b.done:
	default:
		close(b.done)
	}
}

// wait returns a command that delivers the next snapshot.
func (b *stateBridge) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case st := <-b.ch:
			return StateMsg(st)
		case <-b.done:
			return nil
		}
	}
}
