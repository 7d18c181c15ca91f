// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigchat/internal/model"
)

func TestScrollSync_EmptyTranscript(t *testing.T) {
	store := NewMessageStore()
	scroll := NewTranscriptScrollSync(store)
	defer scroll.Close()

	var intents []ScrollIntent
	scroll.Subscribe(func(i ScrollIntent) { intents = append(intents, i) })

	store.Load("c1", nil)
	assert.Empty(t, intents)
	_, ok := scroll.Target()
	assert.False(t, ok)
}

// After any append or streaming update the target is the store's tail.
func TestScrollSync_TargetsTail(t *testing.T) {
	store := NewMessageStore()
	scroll := NewTranscriptScrollSync(store)
	defer scroll.Close()

	var intents []ScrollIntent
	scroll.Subscribe(func(i ScrollIntent) { intents = append(intents, i) })

	first := completedMessage("c1", "one", "1")
	store.Load("c1", []model.Message{first})
	require.Len(t, intents, 1)
	assert.Equal(t, ScrollIntent{ConversationID: "c1", MessageID: first.ID}, intents[0])

	assertTargetIsTail := func() {
		t.Helper()
		tail, ok := store.Tail()
		require.True(t, ok)
		target, ok := scroll.Target()
		require.True(t, ok)
		assert.Equal(t, tail.ID, target)
	}
	assertTargetIsTail()

	msg := model.NewMessage("c1", "two", nil)
	store.Append(msg)
	assertTargetIsTail()
	require.Len(t, intents, 2)

	for _, fragment := range []string{"a", "bc", "def"} {
		msg.Response = msg.Response.Append(fragment)
		store.Update(msg)
		assertTargetIsTail()
	}
	assert.Len(t, intents, 5)

	// Completion without new text does not move the view.
	msg.Response = msg.Response.Complete()
	store.Update(msg)
	assert.Len(t, intents, 5)
	assertTargetIsTail()
}

func TestScrollSync_IgnoresUpdatesAboveTail(t *testing.T) {
	store := NewMessageStore()
	scroll := NewTranscriptScrollSync(store)
	defer scroll.Close()

	older := model.NewMessage("c1", "older", nil)
	older.Response = older.Response.Append("x")
	tail := model.NewMessage("c1", "tail", nil)
	store.Load("c1", []model.Message{older, tail})

	count := 0
	scroll.Subscribe(func(ScrollIntent) { count++ })

	older.Response = older.Response.Append("yz")
	require.True(t, store.Update(older))
	assert.Equal(t, 0, count)

	target, _ := scroll.Target()
	assert.Equal(t, tail.ID, target)
}

func TestScrollSync_ReloadToEmptyClearsTarget(t *testing.T) {
	store := NewMessageStore()
	scroll := NewTranscriptScrollSync(store)
	defer scroll.Close()

	store.Load("c1", []model.Message{completedMessage("c1", "q", "a")})
	_, ok := scroll.Target()
	require.True(t, ok)

	store.Load("c2", nil)
	_, ok = scroll.Target()
	assert.False(t, ok)
}

func TestScrollSync_Close(t *testing.T) {
	store := NewMessageStore()
	scroll := NewTranscriptScrollSync(store)

	count := 0
	scroll.Subscribe(func(ScrollIntent) { count++ })
	scroll.Close()

	store.Load("c1", []model.Message{completedMessage("c1", "q", "a")})
	assert.Equal(t, 0, count)
}
