// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations, models and messages.
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jeranaias/rigchat/internal/util"
)

// =============================================================================
// RESPONSE STATE
// =============================================================================

// ResponseState tags which variant a Response holds.
type ResponseState int

const (
	// ResponsePending means nothing has arrived yet.
	ResponsePending ResponseState = iota
	// ResponseStreaming means text is arriving.
	ResponseStreaming
	// ResponseComplete means the backend finished the response.
	ResponseComplete
	// ResponseFailed means generation stopped with an error.
	ResponseFailed
)

// String returns the string representation of the state.
func (s ResponseState) String() string {
	switch s {
	case ResponsePending:
		return "pending"
	case ResponseStreaming:
		return "streaming"
	case ResponseComplete:
		return "complete"
	case ResponseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ParseResponseState is the inverse of ResponseState.String.
func ParseResponseState(s string) (ResponseState, error) {
	switch s {
	case "pending":
		return ResponsePending, nil
	case "streaming":
		return ResponseStreaming, nil
	case "complete":
		return ResponseComplete, nil
	case "failed":
		return ResponseFailed, nil
	}
	return ResponsePending, fmt.Errorf("unknown response state %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s ResponseState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ResponseState) UnmarshalText(text []byte) error {
	parsed, err := ParseResponseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// =============================================================================
// RESPONSE
// =============================================================================

// Response is the assistant side of a Message.
//
// Text only grows while the response is Streaming. Once Complete or Failed
// the response is final and every transition below is a no-op.
type Response struct {
	State  ResponseState `json:"state"`
	Text   string        `json:"text,omitempty"`
	Reason string        `json:"reason,omitempty"` // set when Failed
}

// Append adds a streamed fragment. Empty fragments are ignored so that a
// response only leaves Pending once real text has arrived.
func (r Response) Append(fragment string) Response {
	if r.IsFinal() || fragment == "" {
		return r
	}
	r.State = ResponseStreaming
	r.Text += fragment
	return r
}

// Complete fixes the response text.
func (r Response) Complete() Response {
	if r.IsFinal() {
		return r
	}
	r.State = ResponseComplete
	return r
}

// Fail marks the response as failed, keeping any partial text.
func (r Response) Fail(reason string) Response {
	if r.IsFinal() {
		return r
	}
	r.State = ResponseFailed
	r.Reason = reason
	return r
}

// IsAbsent reports whether no text has arrived yet.
func (r Response) IsAbsent() bool {
	return r.State == ResponsePending || (r.State == ResponseFailed && r.Text == "")
}

// InFlight reports whether the backend may still add to the response.
func (r Response) InFlight() bool {
	return r.State == ResponsePending || r.State == ResponseStreaming
}

// IsFinal reports whether the response is Complete or Failed.
func (r Response) IsFinal() bool {
	return r.State == ResponseComplete || r.State == ResponseFailed
}

// Len returns the length of the text received so far.
func (r Response) Len() int {
	return len(r.Text)
}

// =============================================================================
// MESSAGE
// =============================================================================

// Message is one prompt and its response within a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Prompt         string    `json:"prompt"`
	Response       Response  `json:"response"`
	Context        []int     `json:"context,omitempty"`
	CreatedAt      time.Time `json:"created_at"`

	// Stats is only set once the backend reports completion.
	Stats *Statistics `json:"stats,omitempty"`
}

// NewMessage creates a pending message. The context slice is copied.
func NewMessage(conversationID, prompt string, context []int) Message {
	return Message{
		ID:             "msg_" + uuid.New().String(),
		ConversationID: conversationID,
		Prompt:         prompt,
		Response:       Response{State: ResponsePending},
		Context:        cloneInts(context),
		CreatedAt:      time.Now(),
	}
}

// InFlight reports whether the message is still awaiting or streaming its response.
func (m Message) InFlight() bool {
	return m.Response.InFlight()
}

// Clone returns a deep copy that shares no slices or pointers with m.
func (m Message) Clone() Message {
	m.Context = cloneInts(m.Context)
	if m.Stats != nil {
		stats := *m.Stats
		m.Stats = &stats
	}
	return m
}

// Preview returns a truncated preview of the prompt.
// Uses rune-based truncation to handle Unicode correctly.
func (m Message) Preview(maxLen int) string {
	return util.TruncateRunes(m.Prompt, maxLen)
}

// =============================================================================
// STATISTICS
// =============================================================================

// Statistics holds the timing and token counts reported with the final chunk.
type Statistics struct {
	PromptTokens       int           `json:"prompt_tokens,omitempty"`
	CompletionTokens   int           `json:"completion_tokens,omitempty"`
	TotalDuration      time.Duration `json:"total_duration_ns,omitempty"`
	LoadDuration       time.Duration `json:"load_duration_ns,omitempty"`
	PromptEvalDuration time.Duration `json:"prompt_eval_duration_ns,omitempty"`
	EvalDuration       time.Duration `json:"eval_duration_ns,omitempty"`
}

// TokensPerSecond returns the generation speed, or 0 if unknown.
func (s Statistics) TokensPerSecond() float64 {
	if s.EvalDuration <= 0 {
		return 0
	}
	return float64(s.CompletionTokens) / s.EvalDuration.Seconds()
}

// Format returns e.g. "2.5s | 128 tokens | 51.2 tok/s".
func (s Statistics) Format() string {
	total := s.TotalDuration.Seconds()
	var elapsed string
	if total < 1 {
		elapsed = fmt.Sprintf("%dms", s.TotalDuration.Milliseconds())
	} else {
		elapsed = fmt.Sprintf("%.1fs", total)
	}
	return fmt.Sprintf("%s | %d tokens | %.1f tok/s", elapsed, s.CompletionTokens, s.TokensPerSecond())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func cloneInts(in []int) []int {
	if len(in) == 0 {
		return []int{}
	}
	out := make([]int, len(in))
	copy(out, in)
	return out
}
