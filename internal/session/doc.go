// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the ordered list of chat sessions and mirrors it to
// a storage.Store.
//
// The registry is the only writer of persisted session state. It does not
// own the active session id: callers hold an *Active and pass it in, so that
// "no session selected" is simply the empty id.
//
// # Key Types
//
//   - Registry: ordered, id-unique session list with persistence
//   - Active: mutex-guarded holder for the active session id
//   - Resetter: remote side asked to drop server state on "new chat"
//
// # Usage
//
//	reg := session.NewRegistry(store, client)
//	reg.Load()
//
//	var active session.Active
//	reg.UpsertFromMessages(active.ID(), messages)
//	msgs, err := reg.SwitchTo(&active, id)
//	newID := reg.StartNew(ctx, &active)
//
// # Ordering
//
// Sessions are sorted by most recent update exactly once, at Load. Later
// updates never move a session; new sessions are prepended.
package session
