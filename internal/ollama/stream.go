// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with the Ollama API.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"
)

// ErrStreamTruncated is returned when the body ends before a done line.
var ErrStreamTruncated = &ClientError{Type: ErrTypeInvalidResponse, Message: "stream ended before completion"}

// =============================================================================
// STREAM READER
// =============================================================================

// StreamReader handles line-by-line JSON parsing of streaming responses.
type StreamReader struct {
	reader *bufio.Reader
	model  string
}

// NewStreamReader creates a new stream reader from an io.Reader.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{reader: bufio.NewReader(r)}
}

// Process reads the stream and calls the callback for each chunk.
// Blocks until the final chunk, an error line, the end of the body, or
// cancellation of ctx. A body that ends without a done line is an error.
func (s *StreamReader) Process(ctx context.Context, callback StreamCallback) error {
	for {
		if err := ctx.Err(); err != nil {
			return classifyTransportError(ctx, err)
		}

		chunk, err := s.readChunk()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrStreamTruncated
			}
			if ctx.Err() != nil {
				return classifyTransportError(ctx, err)
			}
			var ce *ClientError
			if errors.As(err, &ce) {
				return err
			}
			return &ClientError{Type: ErrTypeConnection, Message: "stream interrupted", Cause: err}
		}

		if chunk == nil {
			continue
		}
		callback(*chunk)
		if chunk.Done {
			return nil
		}
	}
}

// readChunk reads and parses a single line from the stream. It returns a nil
// chunk for blank or malformed lines.
func (s *StreamReader) readChunk() (*StreamChunk, error) {
	line, err := s.reader.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return nil, err
	}

	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, nil
	}

	var response GenerateResponse
	if jsonErr := json.Unmarshal(line, &response); jsonErr != nil {
		// Skip malformed lines
		return nil, nil
	}

	if response.Error != "" {
		return nil, &ClientError{Type: ErrTypeServer, Message: response.Error}
	}

	if response.Model != "" {
		s.model = response.Model
	}
	chunk := &StreamChunk{
		Content:    response.Response,
		Done:       response.Done,
		DoneReason: response.DoneReason,
		Model:      s.model,
	}

	if response.Done {
		chunk.Context = response.Context
		chunk.TotalDuration = time.Duration(response.TotalDuration)
		chunk.LoadDuration = time.Duration(response.LoadDuration)
		chunk.PromptEvalDuration = time.Duration(response.PromptEvalDuration)
		chunk.EvalDuration = time.Duration(response.EvalDuration)
		chunk.PromptTokens = response.PromptEvalCount
		chunk.CompletionTokens = response.EvalCount
	}

	return chunk, nil
}
