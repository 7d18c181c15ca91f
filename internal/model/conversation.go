// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations, models and messages.
package model

import (
	"time"

	"github.com/google/uuid"
)

// DefaultConversationName is shown for conversations that were never named.
const DefaultConversationName = "New Chat"

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is a named chat. Its transcript lives in storage and is
// loaded into the chat core when the conversation is selected.
type Conversation struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Model     *Model    `json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewConversation creates a conversation with a generated ID.
func NewConversation(name string, m *Model) Conversation {
	now := time.Now()
	return Conversation{
		ID:        "conv_" + uuid.New().String(),
		Name:      name,
		Model:     m,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// DisplayName returns the name or a default.
func (c Conversation) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return DefaultConversationName
}

// ModelName returns the bound model's name, or "" when none is set.
func (c Conversation) ModelName() string {
	if c.Model == nil {
		return ""
	}
	return c.Model.Name
}

// =============================================================================
// CORE STATES
// =============================================================================

// ConnectionState describes what is known about backend reachability.
type ConnectionState int

const (
	ConnectionIdle ConnectionState = iota
	ConnectionChecking
	ConnectionConnected
	ConnectionError
)

// String returns the string representation of the state.
func (s ConnectionState) String() string {
	switch s {
	case ConnectionIdle:
		return "idle"
	case ConnectionChecking:
		return "checking"
	case ConnectionConnected:
		return "connected"
	case ConnectionError:
		return "error"
	default:
		return "unknown"
	}
}

// BlocksInput reports whether input must be disabled in this state.
func (s ConnectionState) BlocksInput() bool {
	return s == ConnectionChecking || s == ConnectionError
}

// GenerationState is the state of a conversation's generation lifecycle.
type GenerationState int

const (
	GenerationIdle GenerationState = iota
	GenerationGenerating
)

// String returns the string representation of the state.
func (s GenerationState) String() string {
	if s == GenerationGenerating {
		return "generating"
	}
	return "idle"
}
