// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// RESPONSE TESTS
// =============================================================================

func TestResponse_Lifecycle(t *testing.T) {
	var r Response
	assert.True(t, r.IsAbsent())
	assert.True(t, r.InFlight())

	r = r.Append("")
	assert.Equal(t, ResponsePending, r.State, "empty fragment must not leave pending")

	r = r.Append("Hel").Append("lo")
	assert.Equal(t, ResponseStreaming, r.State)
	assert.Equal(t, "Hello", r.Text)
	assert.False(t, r.IsAbsent())

	r = r.Complete()
	assert.Equal(t, ResponseComplete, r.State)
	assert.True(t, r.IsFinal())

	// final responses ignore further input
	r = r.Append(" world").Fail("late")
	assert.Equal(t, "Hello", r.Text)
	assert.Equal(t, ResponseComplete, r.State)
}

func TestResponse_FailKeepsPartialText(t *testing.T) {
	r := Response{}.Append("par").Fail("connection reset")

	assert.Equal(t, ResponseFailed, r.State)
	assert.Equal(t, "par", r.Text)
	assert.Equal(t, "connection reset", r.Reason)
	assert.False(t, r.InFlight())
}

func TestResponseState_RoundTrip(t *testing.T) {
	for _, s := range []ResponseState{ResponsePending, ResponseStreaming, ResponseComplete, ResponseFailed} {
		got, err := ParseResponseState(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseResponseState("bogus")
	assert.Error(t, err)
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewMessage(t *testing.T) {
	ctx := []int{1, 2, 3}
	msg := NewMessage("conv_1", "hi", ctx)

	assert.True(t, strings.HasPrefix(msg.ID, "msg_"))
	assert.Equal(t, "conv_1", msg.ConversationID)
	assert.Equal(t, "hi", msg.Prompt)
	assert.True(t, msg.InFlight())
	assert.Equal(t, []int{1, 2, 3}, msg.Context)

	ctx[0] = 99
	assert.Equal(t, 1, msg.Context[0], "context must be copied")
}

func TestNewMessage_NilContextIsEmpty(t *testing.T) {
	msg := NewMessage("conv_1", "hi", nil)
	require.NotNil(t, msg.Context)
	assert.Empty(t, msg.Context)
}

func TestMessage_CloneIsDeep(t *testing.T) {
	msg := NewMessage("c", "p", []int{4, 5})
	msg.Stats = &Statistics{CompletionTokens: 3}

	clone := msg.Clone()
	clone.Context[0] = 0
	clone.Stats.CompletionTokens = 9

	assert.Equal(t, 4, msg.Context[0])
	assert.Equal(t, 3, msg.Stats.CompletionTokens)
}

func TestMessage_Preview(t *testing.T) {
	msg := NewMessage("c", "a fairly long prompt", nil)
	assert.Equal(t, "a fair...", msg.Preview(9))
}

func TestStatistics(t *testing.T) {
	s := Statistics{CompletionTokens: 100, EvalDuration: 2e9, TotalDuration: 2500e6}
	assert.InDelta(t, 50.0, s.TokensPerSecond(), 0.001)
	assert.Equal(t, "2.5s | 100 tokens | 50.0 tok/s", s.Format())

	assert.Zero(t, Statistics{}.TokensPerSecond())
}

// =============================================================================
// MODEL TESTS
// =============================================================================

func TestModel_Availability(t *testing.T) {
	var nilModel *Model
	assert.False(t, nilModel.IsAvailable())
	assert.False(t, nilModel.IsNotAvailable())

	m := &Model{Name: "llama3.2", Availability: Available}
	assert.True(t, m.IsAvailable())

	m.Availability = NotAvailable
	assert.True(t, m.IsNotAvailable())
}

func TestMergeAvailability(t *testing.T) {
	known := []Model{{Name: "mistral", Availability: Available}, {Name: "llama3.2"}}
	installed := []Model{{Name: "llama3.2", Size: 10}, {Name: "qwen2.5"}}

	got := MergeAvailability(known, installed)
	require.Len(t, got, 3)

	assert.Equal(t, "llama3.2", got[0].Name)
	assert.Equal(t, Available, got[0].Availability)
	assert.Equal(t, int64(10), got[0].Size)
	assert.Equal(t, "mistral", got[1].Name)
	assert.Equal(t, NotAvailable, got[1].Availability)
	assert.Equal(t, "qwen2.5", got[2].Name)
	assert.Equal(t, Available, got[2].Availability)
}

func TestModel_FormatSize(t *testing.T) {
	assert.Equal(t, "512 B", (&Model{Size: 512}).FormatSize())
	assert.Equal(t, "1.0 KB", (&Model{Size: 1024}).FormatSize())
	assert.Equal(t, "2.0 GB", (&Model{Size: 2 << 30}).FormatSize())
}

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestConversation(t *testing.T) {
	c := NewConversation("", nil)
	assert.True(t, strings.HasPrefix(c.ID, "conv_"))
	assert.Equal(t, DefaultConversationName, c.DisplayName())
	assert.Equal(t, "", c.ModelName())

	c = NewConversation("Ideas", &Model{Name: "llama3.2"})
	assert.Equal(t, "Ideas", c.DisplayName())
	assert.Equal(t, "llama3.2", c.ModelName())
}

func TestConnectionState_BlocksInput(t *testing.T) {
	assert.False(t, ConnectionIdle.BlocksInput())
	assert.True(t, ConnectionChecking.BlocksInput())
	assert.False(t, ConnectionConnected.BlocksInput())
	assert.True(t, ConnectionError.BlocksInput())
}
