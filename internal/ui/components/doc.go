// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package components provides the visual building blocks of the rigchat TUI.

Components are plain renderers: they take data from the chat core and a
styles.Theme and return strings. They hold no reference to the coordinator
and never mutate chat state.

# Key Types

  - Transcript: renders a conversation's messages, prompt above response
  - Markdown: glamour renderer cached per width
  - ConversationItem: list.Item for the sidebar
  - StatusLine: connection and generation status with key hints

# Usage

	md := components.NewMarkdown(theme.GlamourStyle())
	transcript := components.NewTranscript(theme, md)
	transcript.SetWidth(80)
	viewport.SetContent(transcript.Render(coord.Messages()))
*/
package components
