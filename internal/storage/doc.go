// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides local key/value persistence for chat sessions
// and per-session composer drafts.
//
// Two kinds of record exist: the full ordered session list under the fixed
// key "tlc.sessions", and one raw-text draft per session under
// "tlc.draft.<sessionID>".
//
// # Key Types
//
//   - Store: read/write contract shared by every backend
//   - FileStore: one file per key, written atomically
//   - SQLiteStore: single kv table in a pure-Go SQLite database
//   - MemoryStore: map-backed, for tests and ephemeral runs
//
// # Usage
//
//	store, err := storage.Open(storage.BackendFile, dataDir)
//	sessions := store.ReadSessions()
//	err = store.WriteSessions(sessions)
//
// Reads never fail. Missing or corrupt data is logged at debug level and
// reported as "no data".
package storage
