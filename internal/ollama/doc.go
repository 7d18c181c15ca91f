// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with the Ollama API.
//
// Only the endpoints the chat client needs are implemented: the root probe
// used as a health check, /api/tags for installed models, and streaming
// /api/generate, which threads opaque context tokens from one response into
// the next request.
//
// # Key Types
//
//   - Client: HTTP client for Ollama API communication
//   - GenerateRequest: request body for /api/generate
//   - StreamChunk: one decoded line of a streaming response
//   - StreamReader: line-by-line NDJSON reader
//   - ClientError: categorized error (not running, timeout, model not found...)
//
// # Usage
//
//	client := ollama.NewClient()
//	if err := client.CheckRunning(ctx); err != nil {
//	    return err
//	}
//	err := client.GenerateStream(ctx, ollama.GenerateRequest{
//	    Model:  "llama3.2",
//	    Prompt: "Hello",
//	}, func(chunk ollama.StreamChunk) {
//	    fmt.Print(chunk.Content)
//	})
package ollama
