// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the send/stream/scroll core of the client.
//
// The UI binds to a Coordinator. Selecting a conversation resets the
// ConnectionGate, starts a connection check followed by a model fetch, and
// loads the conversation's transcript into the MessageStore. Prompts are
// accepted only while the gate allows input and go to the conversation's
// GenerationController, which streams the response into the store.
// TranscriptScrollSync turns store changes into scroll intents.
//
// # Key Types
//
//   - Coordinator: selection, submission and status queries for the UI
//   - ConnectionGate: reachability and model availability, input gating
//   - MessageStore: the visible transcript, with change notifications
//   - GenerationController: one generation at a time per conversation
//   - TranscriptScrollSync: follows the transcript's tail
//   - Backend: the model server (OllamaBackend wraps the HTTP client)
//   - Persistence: transcript storage (implemented by storage.Store)
//
// # Usage
//
//	coord := chat.New(ctx, chat.NewOllamaBackend(client), store, chat.Options{
//	    ConnectTimeout: 5 * time.Second,
//	})
//	coord.Store().Subscribe(func(c chat.Change) { redraw() })
//	_ = coord.Select(ctx, conv)
//	if coord.IsSendAllowed(prompt) {
//	    _, err := coord.Submit(ctx, prompt)
//	}
//
// Observer callbacks run on the goroutine that caused the change, never
// under a lock of this package. They may query but must not mutate the
// component that called them.
package chat
