// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// Markdown renders response text with glamour. Renderers are built lazily
// and cached per wrap width, since building one parses the whole style.
type Markdown struct {
	style   string
	enabled bool

	mu        sync.Mutex
	renderers map[int]*glamour.TermRenderer
}

// NewMarkdown creates a renderer using a glamour standard style such as
// "dark" or "light".
func NewMarkdown(style string) *Markdown {
	return &Markdown{
		style:     style,
		enabled:   true,
		renderers: make(map[int]*glamour.TermRenderer),
	}
}

// SetEnabled toggles rendering. Disabled renderers return the text as is.
func (m *Markdown) SetEnabled(enabled bool) {
	m.mu.Lock()
	m.enabled = enabled
	m.mu.Unlock()
}

// Render renders content wrapped to width. It falls back to the raw text if
// glamour fails.
func (m *Markdown) Render(content string, width int) string {
	if m == nil || content == "" {
		return content
	}
	r := m.renderer(width)
	if r == nil {
		return content
	}
	rendered, err := r.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(rendered, "\n")
}

func (m *Markdown) renderer(width int) *glamour.TermRenderer {
	if width < 20 {
		width = 20
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enabled {
		return nil
	}
	if r, ok := m.renderers[width]; ok {
		return r
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	m.renderers[width] = r
	return r
}
