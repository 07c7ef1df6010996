// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the tlchat packages.
//
// # Key Functions
//
// String Utilities:
//   - Normalize: NFC normalisation applied before any length rule
//   - RuneLen: character count of normalised text
//   - TruncateRunes, TruncateRunesNoEllipsis: UTF-8 safe truncation
//   - ClampWidth: terminal-column aware truncation for list views
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// # Usage
//
//	title := util.TruncateRunesNoEllipsis(strings.TrimSpace(in), 50)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
