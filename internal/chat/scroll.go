// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "sync"

// ScrollIntent asks the transcript view to show the given message.
type ScrollIntent struct {
	ConversationID string
	MessageID      string
}

// TranscriptScrollSync follows the tail of a MessageStore. It emits an
// intent when a transcript is loaded, when a message is appended and when
// the tail's response grows. An empty transcript produces nothing.
type TranscriptScrollSync struct {
	store *MessageStore
	unsub func()

	mu      sync.Mutex
	target  string
	tailLen int

	obs observers[ScrollIntent]
}

// NewTranscriptScrollSync subscribes to store.
func NewTranscriptScrollSync(store *MessageStore) *TranscriptScrollSync {
	s := &TranscriptScrollSync{store: store}
	s.unsub = store.Subscribe(s.handle)
	return s
}

func (s *TranscriptScrollSync) handle(change Change) {
	tail, ok := s.store.Tail()

	s.mu.Lock()
	if !ok {
		s.target = ""
		s.tailLen = 0
		s.mu.Unlock()
		return
	}

	emit := false
	switch change.Kind {
	case ChangeLoaded, ChangeAppended:
		emit = true
	case ChangeUpdated:
		emit = change.Message.ID == tail.ID && tail.Response.Len() != s.tailLen
	}
	s.target = tail.ID
	s.tailLen = tail.Response.Len()
	s.mu.Unlock()

	if emit {
		s.obs.emit(ScrollIntent{ConversationID: change.ConversationID, MessageID: tail.ID})
	}
}

// Target returns the ID of the message the view should show, or false for
// an empty transcript.
func (s *TranscriptScrollSync) Target() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target, s.target != ""
}

// Subscribe registers fn for scroll intents.
func (s *TranscriptScrollSync) Subscribe(fn func(ScrollIntent)) func() {
	return s.obs.add(fn)
}

// Close stops following the store.
func (s *TranscriptScrollSync) Close() {
	s.unsub()
}
