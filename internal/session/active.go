// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "sync"

// Active holds the id of the session currently shown. The zero value means
// no session is active.
type Active struct {
	mu sync.RWMutex
	id string
}

// ID returns the active session id, or "".
func (a *Active) ID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.id
}

// Set replaces the active session id.
func (a *Active) Set(id string) {
	a.mu.Lock()
	a.id = id
	a.mu.Unlock()
}

// Clear marks no session as active.
func (a *Active) Clear() {
	a.Set("")
}

// Is reports whether id is the active session.
func (a *Active) Is(id string) bool {
	return id != "" && a.ID() == id
}
