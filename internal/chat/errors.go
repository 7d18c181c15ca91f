// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

// InterruptedReason is the failure reason of a message whose generation
// ended with the process that ran it.
const InterruptedReason = "interrupted"

var (
	// ErrEmptyPrompt is returned when the prompt is empty after trimming.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrGenerationInFlight is returned when a conversation is still generating.
	ErrGenerationInFlight = errors.New("a response is still being generated")

	// ErrInputNotAllowed wraps the ConnectionError or ModelUnavailableError
	// that currently blocks input.
	ErrInputNotAllowed = errors.New("input is not allowed")

	// ErrNoConversation is returned when nothing is selected.
	ErrNoConversation = errors.New("no conversation selected")

	errNotConnected = errors.New("not connected")
	errChecking     = errors.New("checking connection")
	errStaleCheck   = errors.New("superseded by a newer selection")
	errStreamEnded  = errors.New("response stream ended before completion")
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ConnectionError reports that the backend is unreachable or that listing
// its models failed.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return "cannot connect to Ollama"
	}
	return "cannot connect to Ollama: " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ModelUnavailableError reports that the selected model is not installed.
// Err is the server's answer when a generation found the model missing.
type ModelUnavailableError struct {
	Model string
	Err   error
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("model %s is not available, run `ollama pull %s`", e.Model, e.Model)
}

func (e *ModelUnavailableError) Unwrap() error {
	return e.Err
}

// GenerationError reports a generation that stopped before completion.
// The partial response stays in the transcript.
type GenerationError struct {
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	return "generation failed: " + e.Reason
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

func inputNotAllowed(cause error) error {
	return fmt.Errorf("%w: %w", ErrInputNotAllowed, cause)
}
