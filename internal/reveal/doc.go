// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package reveal discloses a finished answer a few runes at a time to
// produce the "assistant is typing" effect.
//
// # State Machine
//
//	Idle ──Start──▶ Revealing ──last chunk──▶ Idle
//	                    │
//	                    ├──Stop──────────────▶ Cancelled
//	                    └──apply false───────▶ Cancelled
//
// Every run carries an epoch. Start and Stop bump it, and each tick checks
// the epoch it was scheduled under before doing anything, so a tick whose
// timer fired late is dropped even if the timer could not be stopped.
//
// The scheduler never holds its own lock while calling apply or the
// completion hook. Owners may therefore call Start, Stop and Current while
// holding their own lock, and take that lock inside apply.
package reveal
