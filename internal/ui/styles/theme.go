// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme modes accepted by NewTheme.
const (
	ModeAuto  = "auto"
	ModeDark  = "dark"
	ModeLight = "light"
)

// SidebarWidth is the width of the conversation list, borders included.
const SidebarWidth = 30

// Theme holds the styled components of the TUI.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// LAYOUT
	// ==========================================================================

	Sidebar        lipgloss.Style
	SidebarFocused lipgloss.Style
	Main           lipgloss.Style

	// ==========================================================================
	// HEADER
	// ==========================================================================

	Title    lipgloss.Style
	Subtitle lipgloss.Style

	// ==========================================================================
	// TRANSCRIPT
	// ==========================================================================

	Prompt        lipgloss.Style
	Response      lipgloss.Style
	ResponseLabel lipgloss.Style
	Generating    lipgloss.Style
	FailedReason  lipgloss.Style
	Stats         lipgloss.Style
	Placeholder   lipgloss.Style

	// ==========================================================================
	// INPUT
	// ==========================================================================

	Input         lipgloss.Style
	InputFocused  lipgloss.Style
	InputDisabled lipgloss.Style

	// ==========================================================================
	// STATUS LINE
	// ==========================================================================

	StatusOK      lipgloss.Style
	StatusPending lipgloss.Style
	StatusError   lipgloss.Style
	StatusWarning lipgloss.Style
	Help          lipgloss.Style
	HelpKey       lipgloss.Style

	// ==========================================================================
	// DIALOGS
	// ==========================================================================

	Dialog      lipgloss.Style
	DialogTitle lipgloss.Style
}

// NewTheme creates a theme. mode is "auto", "dark" or "light"; anything else
// is treated as auto, which asks the terminal for its background.
func NewTheme(mode string) *Theme {
	isDark := true
	switch mode {
	case ModeDark:
	case ModeLight:
		isDark = false
	default:
		isDark = termenv.HasDarkBackground()
	}
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{
		IsDark:       isDark,
		ColorProfile: termenv.ColorProfile(),
	}
	t.initStyles()
	return t
}

// GlamourStyle returns the glamour standard style matching the background.
func (t *Theme) GlamourStyle() string {
	if t.IsDark {
		return "dark"
	}
	return "light"
}

func (t *Theme) initStyles() {
	// Layout
	t.Sidebar = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.SidebarFocused = t.Sidebar.
		BorderForeground(Cyan)

	t.Main = lipgloss.NewStyle().
		PaddingLeft(1)

	// Header
	t.Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.Subtitle = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	// Transcript
	t.Prompt = lipgloss.NewStyle().
		Foreground(PromptFg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(PromptBorder).
		PaddingLeft(1)

	t.Response = lipgloss.NewStyle().
		Foreground(ResponseFg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(ResponseBorder).
		PaddingLeft(1)

	t.ResponseLabel = lipgloss.NewStyle().
		Foreground(Purple).
		Bold(true)

	t.Generating = lipgloss.NewStyle().
		Foreground(Amber).
		Italic(true)

	t.FailedReason = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)

	t.Stats = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.Placeholder = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true).
		Align(lipgloss.Center)

	// Input
	t.Input = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay)

	t.InputFocused = t.Input.
		BorderForeground(Cyan)

	t.InputDisabled = t.Input.
		BorderForeground(OverlayDim).
		Foreground(TextMuted)

	// Status line
	t.StatusOK = lipgloss.NewStyle().
		Foreground(Emerald)

	t.StatusPending = lipgloss.NewStyle().
		Foreground(Amber)

	t.StatusError = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)

	t.StatusWarning = lipgloss.NewStyle().
		Foreground(Amber).
		Bold(true)

	t.Help = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.HelpKey = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Bold(true)

	// Dialogs
	t.Dialog = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple).
		Padding(0, 1)

	t.DialogTitle = lipgloss.NewStyle().
		Foreground(Purple).
		Bold(true)
}
