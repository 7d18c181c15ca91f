// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the Bubble Tea chat screen of rigchat.

The screen is a conversation sidebar next to the transcript of the selected
conversation, a status line and the prompt field. All chat rules live in the
core coordinator (package internal/chat, imported here as core); this package
only renders its state and forwards user actions.

# Event Flow

Core callbacks can fire on any goroutine, including inside Update when a
submission appends to the store. They never call tea.Program.Send directly.
Instead they set bits on a signal pump, and a single goroutine delivers the
coalesced bits as one signalMsg. Update then reads the current state from the
coordinator. Transcript redraws are throttled with a rate.Limiter so fast
token streams do not redraw on every fragment.

# Key Bindings

	enter       send prompt / open chat
	alt+enter   newline in prompt
	tab         switch between sidebar and prompt
	ctrl+n      new chat
	ctrl+r      check connection again
	r / d       rename / delete chat (sidebar)
	pgup/pgdn   scroll transcript
	ctrl+c      quit
*/
package chat
