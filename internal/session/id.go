// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "github.com/google/uuid"

// NewID returns a random RFC 4122 version 4 identifier.
func NewID() string {
	return uuid.NewString()
}
