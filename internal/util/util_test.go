// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// ATOMIC WRITE TESTS
// =============================================================================

func TestAtomicWriteFile_Basic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tlc.sessions.json")

	require.NoError(t, AtomicWriteFile(path, []byte(`[]`), 0o600))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(content))
}

func TestAtomicWriteFile_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdir", "deep", "draft.txt")

	require.NoError(t, AtomicWriteFile(path, []byte("draft"), 0o600))

	_, err := os.Stat(path)
	require.NoError(t, err)
}

func TestAtomicWriteFile_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "record")

	require.NoError(t, AtomicWriteFile(path, []byte("initial"), 0o600))
	require.NoError(t, AtomicWriteFile(path, []byte("updated"), 0o600))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "updated", string(content))
}

func TestAtomicWriteFile_EmptyData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")

	require.NoError(t, AtomicWriteFile(path, []byte{}, 0o600))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestAtomicWriteFile_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 5; i++ {
		require.NoError(t, AtomicWriteFile(filepath.Join(dir, "record"), []byte("x"), 0o600))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "record", entries[0].Name())
}

// =============================================================================
// STRING TESTS
// =============================================================================

func TestNormalize_ComposesDecomposedInput(t *testing.T) {
	decomposed := "e\u0301"
	assert.Equal(t, "\u00e9", Normalize(decomposed))
	assert.Equal(t, 1, RuneLen(decomposed))
	assert.Equal(t, 5, RuneLen("hello"))
}

func TestTruncateRunes(t *testing.T) {
	testCases := []struct {
		input    string
		maxRunes int
		expected string
	}{
		{"hello world", 5, "he..."},
		{"hello", 5, "hello"},
		{"", 5, ""},
		{"hello world", 0, ""},
		{"abcd", 3, "abc"},
		{"日本語のテキスト", 5, "日本..."},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, TruncateRunes(tc.input, tc.maxRunes))
		})
	}
}

func TestTruncateRunesNoEllipsis(t *testing.T) {
	testCases := []struct {
		input    string
		maxRunes int
		expected string
	}{
		{"hello world", 5, "hello"},
		{"hello", 5, "hello"},
		{"", 5, ""},
		{"hello world", 0, ""},
		{"日本語のテキスト", 3, "日本語"},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, TruncateRunesNoEllipsis(tc.input, tc.maxRunes))
		})
	}
}

func TestClampWidth(t *testing.T) {
	assert.Equal(t, "short", ClampWidth("short", 10))
	assert.Equal(t, "", ClampWidth("anything", 0))

	got := ClampWidth("a very long session title", 10)
	assert.LessOrEqual(t, len([]rune(got)), 10)
	assert.Contains(t, got, "…")

	// Each CJK rune is two columns wide.
	wide := ClampWidth("日本語日本語", 6)
	assert.LessOrEqual(t, len([]rune(wide)), 3)
}

func TestPadWidth(t *testing.T) {
	assert.Equal(t, "ab   ", PadWidth("ab", 5))
	assert.Len(t, []rune(PadWidth("abcdefgh", 4)), 4)
}
