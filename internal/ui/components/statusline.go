// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/ui/styles"
	"github.com/jeranaias/rigchat/internal/util"
)

// =============================================================================
// STATUS
// =============================================================================

// Status is the summarized state shown on the left of the status line.
type Status int

const (
	StatusNone Status = iota
	StatusReady
	StatusChecking
	StatusGenerating
	StatusWarning
	StatusError
)

// Hint is one key binding shown on the right of the status line.
type Hint struct {
	Key  string
	Desc string
}

// StatusLine renders a one-line status bar: an indicator with text on the
// left and key hints on the right. Hints are dropped when space runs out.
type StatusLine struct {
	theme *styles.Theme
	width int

	Status  Status
	Text    string
	Spinner string
	Hints   []Hint
}

// NewStatusLine creates a status line.
func NewStatusLine(theme *styles.Theme) *StatusLine {
	return &StatusLine{theme: theme, width: 80}
}

// SetWidth sets the width in columns.
func (s *StatusLine) SetWidth(width int) {
	s.width = width
}

// View renders the status line.
func (s *StatusLine) View() string {
	left := s.renderStatus()
	right := s.renderHints(s.width - lipgloss.Width(left) - 2)
	if right == "" {
		return util.TruncateWidth(left, s.width)
	}
	gap := s.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func (s *StatusLine) renderStatus() string {
	switch s.Status {
	case StatusReady:
		return s.theme.StatusOK.Render(styles.StatusIndicators.Success + " " + s.Text)
	case StatusChecking, StatusGenerating:
		prefix := s.Spinner
		if prefix == "" {
			prefix = styles.StatusIndicators.Pending
		}
		return s.theme.StatusPending.Render(prefix + " " + s.Text)
	case StatusWarning:
		return s.theme.StatusWarning.Render(styles.StatusIndicators.Warning + " " + s.Text)
	case StatusError:
		return s.theme.StatusError.Render(styles.StatusIndicators.Error + " " + s.Text)
	default:
		return s.theme.Help.Render(s.Text)
	}
}

func (s *StatusLine) renderHints(budget int) string {
	var parts []string
	used := 0
	for _, h := range s.Hints {
		part := s.theme.HelpKey.Render(h.Key) + " " + s.theme.Help.Render(h.Desc)
		w := lipgloss.Width(part)
		if len(parts) > 0 {
			w += 2
		}
		if used+w > budget {
			break
		}
		parts = append(parts, part)
		used += w
	}
	return strings.Join(parts, "  ")
}

// ConnectionStatus maps a connection state to a status and default text.
func ConnectionStatus(state model.ConnectionState) (Status, string) {
	switch state {
	case model.ConnectionChecking:
		return StatusChecking, "Checking connection..."
	case model.ConnectionConnected:
		return StatusReady, "Connected"
	case model.ConnectionError:
		return StatusError, "Connection failed"
	default:
		return StatusNone, ""
	}
}
