// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"testing"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"dark", ModeDark},
		{" Light ", ModeLight},
		{"auto", ModeAuto},
		{"", ModeAuto},
		{"neon", ModeAuto},
	}
	for _, tt := range tests {
		if got := ParseMode(tt.in); got != tt.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewTheme_ExplicitModes(t *testing.T) {
	dark := NewTheme(ModeDark)
	if !dark.IsDark || dark.GlamourStyle() != "dark" {
		t.Errorf("dark theme: IsDark=%v style=%q", dark.IsDark, dark.GlamourStyle())
	}

	light := NewTheme(ModeLight)
	if light.IsDark || light.GlamourStyle() != "light" {
		t.Errorf("light theme: IsDark=%v style=%q", light.IsDark, light.GlamourStyle())
	}
}

func TestThemeStylesRender(t *testing.T) {
	theme := NewTheme(ModeDark)
	for name, s := range map[string]interface{ Render(...string) string }{
		"Header":        theme.Header,
		"SessionItem":   theme.SessionItem,
		"UserLabel":     theme.UserLabel,
		"Typing":        theme.Typing,
		"ErrorLine":     theme.ErrorLine,
		"ComposerFocus": theme.ComposerFocused,
	} {
		if s.Render("test") == "" {
			t.Errorf("%s rendered empty output", name)
		}
	}
}
