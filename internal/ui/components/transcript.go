// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/ui/styles"
)

// StreamingCursor is appended to text that is still arriving.
const StreamingCursor = "▌"

// =============================================================================
// TRANSCRIPT
// =============================================================================

// Transcript renders the messages of one conversation, oldest first. Each
// message is its prompt followed by the response in its current state.
type Transcript struct {
	theme    *styles.Theme
	markdown *Markdown
	width    int

	// Spinner is the current spinner frame, shown for pending responses.
	Spinner string

	offsets map[string]int
}

// NewTranscript creates a transcript renderer. markdown may be nil.
func NewTranscript(theme *styles.Theme, markdown *Markdown) *Transcript {
	return &Transcript{
		theme:    theme,
		markdown: markdown,
		width:    80,
		offsets:  make(map[string]int),
	}
}

// SetWidth sets the available width in columns.
func (t *Transcript) SetWidth(width int) {
	t.width = width
}

// Render renders every message and records where each one starts.
func (t *Transcript) Render(messages []model.Message) string {
	t.offsets = make(map[string]int, len(messages))
	if len(messages) == 0 {
		return t.theme.Placeholder.
			Width(t.width).
			Render("No messages yet. Type a prompt below to start.")
	}

	var b strings.Builder
	line := 0
	for i, msg := range messages {
		if i > 0 {
			b.WriteString("\n\n")
			line += 2
		}
		t.offsets[msg.ID] = line
		block := t.renderMessage(msg)
		b.WriteString(block)
		line += lipgloss.Height(block)
	}
	return b.String()
}

// Offset returns the first line of a message in the last render.
func (t *Transcript) Offset(messageID string) (int, bool) {
	off, ok := t.offsets[messageID]
	return off, ok
}

func (t *Transcript) renderMessage(msg model.Message) string {
	inner := t.innerWidth()
	prompt := t.theme.Prompt.Width(inner).Render(msg.Prompt)
	return lipgloss.JoinVertical(lipgloss.Left, prompt, t.renderResponse(msg, inner))
}

func (t *Transcript) renderResponse(msg model.Message, width int) string {
	resp := msg.Response
	var body string

	switch resp.State {
	case model.ResponsePending:
		body = t.theme.Generating.Render(strings.TrimSpace(t.Spinner + " Generating..."))

	case model.ResponseStreaming:
		body = resp.Text + StreamingCursor

	case model.ResponseComplete:
		body = t.markdown.Render(resp.Text, width)
		if msg.Stats != nil {
			body += "\n" + t.theme.Stats.Render(msg.Stats.Format())
		}

	case model.ResponseFailed:
		failed := t.theme.FailedReason.Render("Failed: " + resp.Reason)
		if resp.Text == "" {
			body = failed
		} else {
			body = resp.Text + "\n" + failed
		}
	}

	return t.theme.Response.Width(width).Render(body)
}

// innerWidth leaves room for the block borders and padding.
func (t *Transcript) innerWidth() int {
	w := t.width - 2
	if w < 10 {
		return 10
	}
	return w
}
