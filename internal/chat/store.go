// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"

	"github.com/jeranaias/rigchat/internal/model"
)

// ChangeKind says what happened to the transcript.
type ChangeKind int

const (
	// ChangeLoaded means the whole transcript was replaced.
	ChangeLoaded ChangeKind = iota
	// ChangeAppended means a message was added at the tail.
	ChangeAppended
	// ChangeUpdated means a visible message's response changed.
	ChangeUpdated
)

// String returns the string representation of the kind.
func (k ChangeKind) String() string {
	switch k {
	case ChangeLoaded:
		return "loaded"
	case ChangeAppended:
		return "appended"
	case ChangeUpdated:
		return "updated"
	default:
		return "unknown"
	}
}

// Change is delivered to store subscribers. Message is set for appends and
// updates.
type Change struct {
	Kind           ChangeKind
	ConversationID string
	Message        model.Message
	Len            int
}

// =============================================================================
// MESSAGE STORE
// =============================================================================

// MessageStore holds the transcript of the conversation on screen.
//
// Messages keep their append order. Only messages of the loaded conversation
// are accepted, so a generation left running in another conversation cannot
// leak into this view. Subscribers are called in mutation order, outside the
// data lock; they may read the store but must not write to it.
type MessageStore struct {
	mu             sync.RWMutex
	conversationID string
	messages       []model.Message
	index          map[string]int

	emitMu sync.Mutex
	obs    observers[Change]
}

// NewMessageStore creates an empty store.
func NewMessageStore() *MessageStore {
	return &MessageStore{index: make(map[string]int)}
}

// Load replaces the transcript. Messages of other conversations are skipped.
func (s *MessageStore) Load(conversationID string, messages []model.Message) {
	s.mu.Lock()
	s.conversationID = conversationID
	s.messages = make([]model.Message, 0, len(messages))
	s.index = make(map[string]int, len(messages))
	for _, m := range messages {
		if m.ConversationID != conversationID {
			continue
		}
		s.index[m.ID] = len(s.messages)
		s.messages = append(s.messages, m.Clone())
	}
	change := Change{Kind: ChangeLoaded, ConversationID: conversationID, Len: len(s.messages)}
	s.publishLocked(change)
}

// Append adds msg at the tail. It returns false when msg belongs to another
// conversation or is already present.
func (s *MessageStore) Append(msg model.Message) bool {
	s.mu.Lock()
	if msg.ConversationID != s.conversationID || s.conversationID == "" {
		s.mu.Unlock()
		return false
	}
	if _, dup := s.index[msg.ID]; dup {
		s.mu.Unlock()
		return false
	}
	s.index[msg.ID] = len(s.messages)
	s.messages = append(s.messages, msg.Clone())
	change := Change{Kind: ChangeAppended, ConversationID: s.conversationID, Message: msg.Clone(), Len: len(s.messages)}
	s.publishLocked(change)
	return true
}

// Update replaces the visible message with msg's ID. It returns false when
// the message is not in the transcript or when msg would move the response
// backwards (a final response never becomes in flight again and streaming
// text never shrinks).
func (s *MessageStore) Update(msg model.Message) bool {
	s.mu.Lock()
	i, ok := s.index[msg.ID]
	if !ok || msg.ConversationID != s.conversationID {
		s.mu.Unlock()
		return false
	}
	cur := s.messages[i].Response
	next := msg.Response
	if (cur.IsFinal() && !next.IsFinal()) || (!next.IsFinal() && next.Len() < cur.Len()) {
		s.mu.Unlock()
		return false
	}
	s.messages[i] = msg.Clone()
	change := Change{Kind: ChangeUpdated, ConversationID: s.conversationID, Message: msg.Clone(), Len: len(s.messages)}
	s.publishLocked(change)
	return true
}

// publishLocked releases the data lock and notifies subscribers, keeping
// notifications in the order the mutations happened.
func (s *MessageStore) publishLocked(change Change) {
	s.emitMu.Lock()
	s.mu.Unlock()
	defer s.emitMu.Unlock()
	s.obs.emit(change)
}

// =============================================================================
// QUERIES
// =============================================================================

// ConversationID returns the loaded conversation, or "" when none is.
func (s *MessageStore) ConversationID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conversationID
}

// Tail returns the last message.
func (s *MessageStore) Tail() (model.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.messages) == 0 {
		return model.Message{}, false
	}
	return s.messages[len(s.messages)-1].Clone(), true
}

// Messages returns a copy of the transcript in append order.
func (s *MessageStore) Messages() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.Clone()
	}
	return out
}

// Get returns a visible message by ID.
func (s *MessageStore) Get(id string) (model.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return model.Message{}, false
	}
	return s.messages[i].Clone(), true
}

// Len returns the number of messages.
func (s *MessageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Subscribe registers fn for changes and returns an unsubscribe func.
func (s *MessageStore) Subscribe(fn func(Change)) func() {
	return s.obs.add(fn)
}
