// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTheme_ForcedModes(t *testing.T) {
	dark := NewTheme(ModeDark)
	assert.True(t, dark.IsDark)
	assert.Equal(t, "dark", dark.GlamourStyle())

	light := NewTheme(ModeLight)
	assert.False(t, light.IsDark)
	assert.Equal(t, "light", light.GlamourStyle())
}

func TestTheme_StylesRender(t *testing.T) {
	theme := NewTheme(ModeDark)

	assert.Contains(t, theme.Title.Render("General"), "General")
	assert.Contains(t, theme.StatusError.Render("down"), "down")

	// The focused variants keep the border of their base style.
	assert.Equal(t, theme.Sidebar.GetBorderStyle(), theme.SidebarFocused.GetBorderStyle())
	assert.Equal(t, theme.Input.GetBorderStyle(), theme.InputFocused.GetBorderStyle())
}
