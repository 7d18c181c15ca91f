// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the colors and lipgloss styles of the rigchat TUI.

All colors are lipgloss.AdaptiveColor values, so they follow the terminal's
light or dark background. NewTheme detects the background with termenv unless
the configuration forces a mode.

# Usage

	theme := styles.NewTheme(cfg.UI.Theme)
	title := theme.Title.Render(conv.DisplayName())

Status text is paired with StatusIndicators shapes so that states remain
readable without color.
*/
package styles
