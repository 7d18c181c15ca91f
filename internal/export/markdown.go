// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/rigchat/internal/model"
)

// ErrEmptyTranscript is returned when a Markdown export has no messages.
var ErrEmptyTranscript = errors.New("conversation has no messages")

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports transcripts to Markdown.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a transcript to Markdown. Each message becomes a prompt
// section followed by a response section.
func (e *MarkdownExporter) Export(t *Transcript) ([]byte, error) {
	if t == nil {
		return nil, ErrNilTranscript
	}
	if len(t.Messages) == 0 {
		return nil, ErrEmptyTranscript
	}

	conv := t.Conversation
	modelName := conv.ModelName()
	if modelName == "" {
		modelName = "unknown"
	}

	var sb strings.Builder

	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "title: %s\n", escapeYAML(conv.DisplayName()))
		fmt.Fprintf(&sb, "model: %s\n", escapeYAML(modelName))
		fmt.Fprintf(&sb, "date: %s\n", conv.CreatedAt.Format(time.RFC3339))
		fmt.Fprintf(&sb, "updated: %s\n", conv.UpdatedAt.Format(time.RFC3339))
		fmt.Fprintf(&sb, "messages: %d\n", len(t.Messages))
		fmt.Fprintf(&sb, "exported: %s\n", e.options.now().Format(time.RFC3339))
		sb.WriteString("generator: rigchat\n")
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(conv.DisplayName()))

	if e.options.IncludeMetadata {
		fmt.Fprintf(&sb, "- **Model**: %s\n", modelName)
		fmt.Fprintf(&sb, "- **Created**: %s\n", formatTimestamp(conv.CreatedAt))
		fmt.Fprintf(&sb, "- **Messages**: %d\n\n", len(t.Messages))
	}

	for i, msg := range t.Messages {
		if e.options.IncludeTimestamps {
			fmt.Fprintf(&sb, "### You <sub>%s</sub>\n\n", formatShortTimestamp(msg.CreatedAt))
		} else {
			sb.WriteString("### You\n\n")
		}
		sb.WriteString(strings.TrimSpace(msg.Prompt))
		sb.WriteString("\n\n")

		fmt.Fprintf(&sb, "### %s\n\n", modelName)
		sb.WriteString(e.formatResponse(msg))
		sb.WriteString("\n\n")

		if i < len(t.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

// formatResponse renders the response with its state.
func (e *MarkdownExporter) formatResponse(msg model.Message) string {
	resp := msg.Response
	text := strings.TrimSpace(resp.Text)

	switch resp.State {
	case model.ResponsePending, model.ResponseStreaming:
		if text == "" {
			return "*(no response yet)*"
		}
		return text + "\n\n*(incomplete)*"
	case model.ResponseFailed:
		failed := "> **Failed**: " + resp.Reason
		if text == "" {
			return failed
		}
		return text + "\n\n" + failed
	}

	if e.options.IncludeMetadata && msg.Stats != nil {
		return text + "\n\n<sub>Stats: " + msg.Stats.Format() + "</sub>"
	}
	return text
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// escapeMarkdown escapes special Markdown characters in plain text.
func escapeMarkdown(s string) string {
	// Only characters that would break formatting in headings
	r := strings.NewReplacer(
		"#", "\\#",
		"*", "\\*",
		"_", "\\_",
		"[", "\\[",
		"]", "\\]",
	)
	return r.Replace(s)
}

// escapeYAML quotes a value when it contains YAML special characters.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		s = strings.ReplaceAll(s, "\r", "\\r")
		return fmt.Sprintf("\"%s\"", s)
	}
	return s
}
