// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/rigchat/internal/model"
)

// persistTimeout bounds each write of a message.
const persistTimeout = 5 * time.Second

// ControllerConfig holds what a GenerationController needs.
type ControllerConfig struct {
	Backend     Backend
	Gate        *ConnectionGate
	Store       *MessageStore
	Persistence Persistence
	Logger      zerolog.Logger

	// BaseContext outlives conversation switches; cancelling it ends every
	// stream. Defaults to context.Background().
	BaseContext context.Context

	// DefaultModel is used for conversations without a bound model.
	DefaultModel string

	// Timeout bounds a whole generation; 0 means none.
	Timeout time.Duration
}

// =============================================================================
// GENERATION CONTROLLER
// =============================================================================

// GenerationController runs one generation at a time for one conversation.
//
// The controller owns the message being generated. Each change is pushed to
// the store, which ignores it while another conversation is on screen, and
// the final state is always persisted.
type GenerationController struct {
	conversationID string
	cfg            ControllerConfig
	log            zerolog.Logger

	mu      sync.Mutex
	state   model.GenerationState
	pending *model.Message
	latest  *model.Message
	lastErr error

	wg  sync.WaitGroup
	obs observers[model.GenerationState]
}

// NewGenerationController creates an idle controller for conversationID.
func NewGenerationController(conversationID string, cfg ControllerConfig) *GenerationController {
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}
	return &GenerationController{
		conversationID: conversationID,
		cfg:            cfg,
		log: cfg.Logger.With().
			Str("component", "generation").
			Str("conversation", conversationID).
			Logger(),
	}
}

// Submit starts generating a response to prompt and returns the new pending
// message without waiting for the backend.
//
// The prompt must be non-blank, the controller idle and the gate must allow
// input for the conversation's model. The message's context is taken from
// the transcript's tail.
func (c *GenerationController) Submit(ctx context.Context, prompt string, conv model.Conversation) (model.Message, error) {
	if strings.TrimSpace(prompt) == "" {
		return model.Message{}, ErrEmptyPrompt
	}
	if err := ctx.Err(); err != nil {
		return model.Message{}, err
	}
	if conv.ID != c.conversationID || c.cfg.Store.ConversationID() != conv.ID {
		return model.Message{}, ErrNoConversation
	}

	c.mu.Lock()
	if c.state == model.GenerationGenerating {
		c.mu.Unlock()
		return model.Message{}, ErrGenerationInFlight
	}
	if blocker := c.cfg.Gate.InputBlocker(conv.Model); blocker != nil {
		c.mu.Unlock()
		return model.Message{}, inputNotAllowed(blocker)
	}

	var history []int
	if tail, ok := c.cfg.Store.Tail(); ok {
		history = tail.Context
	}
	msg := model.NewMessage(conv.ID, prompt, history)
	pending := msg.Clone()
	c.pending = &pending
	c.latest = &msg
	c.state = model.GenerationGenerating
	c.lastErr = nil
	c.wg.Add(1)
	c.mu.Unlock()

	c.cfg.Store.Append(msg)
	c.persist(msg)
	c.log.Info().Str("message", msg.ID).Int("context_len", len(msg.Context)).Msg("generation started")
	c.obs.emit(model.GenerationGenerating)

	modelName := conv.ModelName()
	if modelName == "" {
		modelName = c.cfg.DefaultModel
	}
	go c.run(GenerateRequest{Model: modelName, Prompt: prompt, Context: msg.Context})

	return msg.Clone(), nil
}

func (c *GenerationController) run(req GenerateRequest) {
	defer c.wg.Done()

	ctx, cancel := c.streamContext()
	defer cancel()

	events, err := c.cfg.Backend.Generate(ctx, req)
	if err != nil {
		c.fail(err)
		return
	}

	for ev := range events {
		switch {
		case ev.Err != nil:
			c.fail(ev.Err)
			return
		case ev.Done:
			c.complete(ev)
			return
		case ev.Fragment != "":
			c.appendFragment(ev.Fragment)
		}
	}

	if err := ctx.Err(); err != nil {
		c.fail(err)
		return
	}
	c.fail(errStreamEnded)
}

// streamContext derives the context of one generation from BaseContext,
// bounded by Timeout when set.
func (c *GenerationController) streamContext() (context.Context, context.CancelFunc) {
	if c.cfg.Timeout > 0 {
		return context.WithTimeout(c.cfg.BaseContext, c.cfg.Timeout)
	}
	return context.WithCancel(c.cfg.BaseContext)
}

func (c *GenerationController) appendFragment(fragment string) {
	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return
	}
	c.pending.Response = c.pending.Response.Append(fragment)
	snapshot := c.pending.Clone()
	c.latest = &snapshot
	c.mu.Unlock()

	c.cfg.Store.Update(snapshot)
}

func (c *GenerationController) complete(ev GenerateEvent) {
	c.finish(func(m *model.Message) {
		m.Response = m.Response.Complete()
		if ev.Context != nil {
			m.Context = append([]int(nil), ev.Context...)
		}
		if ev.Stats != nil {
			stats := *ev.Stats
			m.Stats = &stats
		}
	}, nil)
}

func (c *GenerationController) fail(err error) {
	reason := err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		reason = "timed out"
	case errors.Is(err, context.Canceled):
		reason = context.Canceled.Error()
	}
	var unavailable *ModelUnavailableError
	if errors.As(err, &unavailable) {
		c.cfg.Gate.MarkUnavailable(unavailable.Model)
	}
	c.finish(func(m *model.Message) {
		m.Response = m.Response.Fail(reason)
	}, &GenerationError{Reason: reason, Err: err})
}

// finish applies the final transition, publishes and persists it, and only
// then returns to idle so that the next submission sees the final context.
func (c *GenerationController) finish(apply func(*model.Message), genErr *GenerationError) {
	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return
	}
	apply(c.pending)
	final := c.pending.Clone()
	c.latest = &final
	c.mu.Unlock()

	c.cfg.Store.Update(final)
	c.persist(final)

	c.mu.Lock()
	c.pending = nil
	c.state = model.GenerationIdle
	if genErr != nil {
		c.lastErr = genErr
	}
	c.mu.Unlock()

	if genErr != nil {
		c.log.Warn().Str("message", final.ID).Str("reason", genErr.Reason).Int("partial_len", final.Response.Len()).Msg("generation failed")
	} else {
		c.log.Info().Str("message", final.ID).Int("len", final.Response.Len()).Msg("generation complete")
	}
	c.obs.emit(model.GenerationIdle)
}

func (c *GenerationController) persist(msg model.Message) {
	if c.cfg.Persistence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.cfg.BaseContext), persistTimeout)
	defer cancel()
	if err := c.cfg.Persistence.SaveMessage(ctx, msg); err != nil {
		c.log.Error().Err(err).Str("message", msg.ID).Msg("failed to save message")
	}
}

// =============================================================================
// QUERIES
// =============================================================================

// ConversationID returns the conversation this controller serves.
func (c *GenerationController) ConversationID() string {
	return c.conversationID
}

// State returns the generation state.
func (c *GenerationController) State() model.GenerationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Pending returns the in-flight message while generating.
func (c *GenerationController) Pending() (model.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return model.Message{}, false
	}
	return c.pending.Clone(), true
}

// Latest returns the most recent version of the last submitted message,
// in flight or final.
func (c *GenerationController) Latest() (model.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.latest == nil {
		return model.Message{}, false
	}
	return c.latest.Clone(), true
}

// Reattach pushes the latest version of the last message to the store. It is
// called after the store was reloaded from persistence, which may hold an
// older copy.
func (c *GenerationController) Reattach() {
	if latest, ok := c.Latest(); ok {
		c.cfg.Store.Update(latest)
	}
}

// LastError returns the GenerationError of the last failed generation. It
// is cleared by the next submission.
func (c *GenerationController) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Subscribe registers fn for state changes and returns an unsubscribe func.
func (c *GenerationController) Subscribe(fn func(model.GenerationState)) func() {
	return c.obs.add(fn)
}

// Wait blocks until no generation is running.
func (c *GenerationController) Wait() {
	c.wg.Wait()
}
