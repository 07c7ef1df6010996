// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat sessions and messages.
//
// # Key Types
//
//   - Role: message author (user or assistant)
//   - Message: one chat turn with optional creation time
//   - Session: one conversation thread with its title and history
//
// Values are passed by copy. CloneMessages is used at every hand-off so a
// caller never sees a slice it holds change underneath it.
//
// # Wire Format
//
// Sessions serialise with millisecond timestamps so records written by the
// browser front-end load unchanged:
//
//	{"id":"…","title":"…","messages":[{"role":"user","content":"…","timestamp":1700000000000}],"updatedAt":1700000000000}
package model
