// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"

	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/ollama"
)

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// Backend is the model server.
type Backend interface {
	// CheckConnection returns nil when the server is reachable.
	CheckConnection(ctx context.Context) error

	// FetchModels lists the installed models, all marked Available.
	FetchModels(ctx context.Context) ([]model.Model, error)

	// Generate starts a streamed generation. The channel yields fragments
	// followed by exactly one terminal event (Done or Err) and is then
	// closed. If ctx ends first the channel may close without a terminal
	// event.
	Generate(ctx context.Context, req GenerateRequest) (<-chan GenerateEvent, error)
}

// GenerateRequest is one prompt plus the continuation tokens of the
// conversation so far.
type GenerateRequest struct {
	Model   string
	Prompt  string
	Context []int
}

// GenerateEvent is one item of a generation stream.
type GenerateEvent struct {
	Fragment string

	// Terminal events
	Done    bool
	Context []int
	Stats   *model.Statistics
	Err     error
}

// Persistence stores transcripts and model availability.
type Persistence interface {
	Messages(ctx context.Context, conversationID string) ([]model.Message, error)
	SaveMessage(ctx context.Context, msg model.Message) error
	SyncModels(ctx context.Context, models []model.Model) error
}

// =============================================================================
// OLLAMA BACKEND
// =============================================================================

// OllamaBackend adapts an *ollama.Client to Backend.
type OllamaBackend struct {
	client *ollama.Client
}

// NewOllamaBackend wraps client.
func NewOllamaBackend(client *ollama.Client) *OllamaBackend {
	return &OllamaBackend{client: client}
}

// Client returns the wrapped client.
func (b *OllamaBackend) Client() *ollama.Client {
	return b.client
}

// CheckConnection probes the server root.
func (b *OllamaBackend) CheckConnection(ctx context.Context) error {
	return b.client.CheckRunning(ctx)
}

// FetchModels lists installed models via /api/tags.
func (b *OllamaBackend) FetchModels(ctx context.Context) ([]model.Model, error) {
	infos, err := b.client.ListModels(ctx)
	if err != nil {
		return nil, err
	}

	models := make([]model.Model, 0, len(infos))
	for _, info := range infos {
		models = append(models, model.Model{
			Name:         info.Name,
			Availability: model.Available,
			Size:         info.Size,
			Family:       info.Details.Family,
			ModifiedAt:   info.ModifiedAt,
		})
	}
	return models, nil
}

// Generate streams /api/generate on a goroutine. Client errors are
// translated so the controller can tell a missing model, a timeout and a
// cancellation apart.
func (b *OllamaBackend) Generate(ctx context.Context, req GenerateRequest) (<-chan GenerateEvent, error) {
	chunks := b.client.GenerateStreamChan(ctx, ollama.GenerateRequest{
		Model:   req.Model,
		Prompt:  req.Prompt,
		Context: req.Context,
	})

	events := make(chan GenerateEvent, 16)
	send := func(ev GenerateEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(events)
		for chunk := range chunks {
			if chunk.Error != nil {
				send(GenerateEvent{Err: generateError(req.Model, chunk.Error)})
				return
			}
			if chunk.Content != "" && !send(GenerateEvent{Fragment: chunk.Content}) {
				return
			}
			if chunk.Done {
				send(GenerateEvent{
					Done:    true,
					Context: chunk.Context,
					Stats: &model.Statistics{
						PromptTokens:       chunk.PromptTokens,
						CompletionTokens:   chunk.CompletionTokens,
						TotalDuration:      chunk.TotalDuration,
						LoadDuration:       chunk.LoadDuration,
						PromptEvalDuration: chunk.PromptEvalDuration,
						EvalDuration:       chunk.EvalDuration,
					},
				})
				return
			}
		}
	}()

	return events, nil
}

// generateError maps a client error from a generation to the core's terms.
func generateError(modelName string, err error) error {
	switch {
	case ollama.IsModelNotFound(err) && modelName != "":
		return &ModelUnavailableError{Model: modelName, Err: err}
	case ollama.IsCanceled(err):
		return fmt.Errorf("%w: %w", context.Canceled, err)
	case ollama.IsTimeout(err):
		return fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	default:
		return err
	}
}
