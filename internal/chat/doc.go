// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the request orchestrator behind every front-end.
//
// Engine owns the active session id, the visible message list, the loading
// and typing flags, the error line and the composer draft. All of it sits
// behind one mutex; views read it through Snapshot or Subscribe and never
// share slices with the engine.
//
// # Key Types
//
//   - Engine: ask, regenerate, retry and session navigation
//   - State: immutable view snapshot
//   - Asker: the remote answer service (answer.Client in production)
//   - ValidationError: a query rejected before any network call
//
// # Usage
//
//	reg := session.NewRegistry(store, client)
//	reg.Load()
//	eng := chat.NewEngine(reg, client)
//	defer eng.Close()
//
//	unsubscribe := eng.Subscribe(func(s chat.State) { render(s) })
//	defer unsubscribe()
//
//	if err := eng.Ask(ctx, "What is the speed limit?"); err != nil {
//	    // state already carries the user-facing error text
//	}
//
// # Late Results
//
// Only one request may be in flight. If the user switches away, deletes the
// session or starts a new chat before the answer arrives, the answer is
// written to the originating session's stored history and no reveal starts.
// A deleted session is not recreated.
package chat
