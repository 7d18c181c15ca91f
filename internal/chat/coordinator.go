// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/rigchat/internal/model"
)

// Deps are the collaborators of a Coordinator.
type Deps struct {
	Gate        *ConnectionGate
	Store       *MessageStore
	Persistence Persistence

	// NewController creates the controller for a conversation the first
	// time it is selected.
	NewController func(conversationID string) *GenerationController

	Logger zerolog.Logger
}

// Options configure New.
type Options struct {
	Logger zerolog.Logger

	// ConnectTimeout bounds each connection check and model fetch.
	ConnectTimeout time.Duration

	// GenerateTimeout bounds each generation; 0 means none.
	GenerateTimeout time.Duration

	// DefaultModel is used for conversations without a bound model.
	DefaultModel string
}

// NoticeKind classifies the inline status shown above the prompt.
type NoticeKind int

const (
	NoticeNone NoticeKind = iota
	NoticeChecking
	NoticeConnectionError
	NoticeModelUnavailable
	NoticeGenerationFailed
)

// Notice is the inline status line.
type Notice struct {
	Kind NoticeKind
	Text string
}

// GenerationChange reports a generation state change of any conversation.
type GenerationChange struct {
	ConversationID string
	State          model.GenerationState
}

// =============================================================================
// COORDINATOR
// =============================================================================

// Coordinator ties the gate, the store and the per-conversation generation
// controllers to the conversation selected in the UI.
type Coordinator struct {
	ctx     context.Context
	gate    *ConnectionGate
	store   *MessageStore
	scroll  *TranscriptScrollSync
	persist Persistence
	newCtrl func(string) *GenerationController
	log     zerolog.Logger

	mu          sync.Mutex
	token       uint64
	active      *model.Conversation
	controllers map[string]*GenerationController
	unsubs      []func()

	wg        sync.WaitGroup
	focusObs  observers[struct{}]
	statusObs observers[struct{}]
	genObs    observers[GenerationChange]
}

// New builds a coordinator with its own gate, store and controllers on top
// of backend. Cancelling ctx ends all background work.
func New(ctx context.Context, backend Backend, persistence Persistence, opts Options) *Coordinator {
	gate := NewConnectionGate(backend, opts.ConnectTimeout, opts.Logger)
	store := NewMessageStore()
	return NewCoordinator(ctx, Deps{
		Gate:        gate,
		Store:       store,
		Persistence: persistence,
		Logger:      opts.Logger,
		NewController: func(conversationID string) *GenerationController {
			return NewGenerationController(conversationID, ControllerConfig{
				Backend:      backend,
				Gate:         gate,
				Store:        store,
				Persistence:  persistence,
				Logger:       opts.Logger,
				BaseContext:  ctx,
				DefaultModel: opts.DefaultModel,
				Timeout:      opts.GenerateTimeout,
			})
		},
	})
}

// NewCoordinator wires explicit dependencies.
func NewCoordinator(ctx context.Context, deps Deps) *Coordinator {
	if ctx == nil {
		ctx = context.Background()
	}
	c := &Coordinator{
		ctx:         ctx,
		gate:        deps.Gate,
		store:       deps.Store,
		scroll:      NewTranscriptScrollSync(deps.Store),
		persist:     deps.Persistence,
		newCtrl:     deps.NewController,
		log:         deps.Logger.With().Str("component", "coordinator").Logger(),
		controllers: make(map[string]*GenerationController),
	}
	c.unsubs = append(c.unsubs, c.gate.Subscribe(func(model.ConnectionState) {
		c.statusObs.emit(struct{}{})
	}))
	return c
}

// Select makes conv the active conversation.
//
// A failure to read the transcript from persistence is returned, but the
// selection still takes effect with an empty transcript.
//
// The gate is reset and a connection check followed by a model fetch runs in
// the background. The transcript is loaded before Select returns. When the
// user selects again before the check finishes, the older check stops and
// its results are discarded.
func (c *Coordinator) Select(ctx context.Context, conv model.Conversation) error {
	c.mu.Lock()
	c.token++
	token := c.token
	selected := conv
	c.active = &selected
	ctrl := c.controllerLocked(conv.ID)
	c.mu.Unlock()

	c.log.Info().Str("conversation", conv.ID).Str("model", conv.ModelName()).Msg("conversation selected")

	c.gate.Reset()
	if conv.Model != nil {
		c.gate.Track(*conv.Model)
	}
	c.startRefresh(token)

	var (
		msgs    []model.Message
		loadErr error
	)
	if c.persist != nil {
		msgs, loadErr = c.persist.Messages(ctx, conv.ID)
		if loadErr != nil {
			c.log.Error().Err(loadErr).Str("conversation", conv.ID).Msg("failed to load messages")
			loadErr = fmt.Errorf("load messages: %w", loadErr)
		}
	}

	if !c.isCurrent(token) {
		return loadErr
	}
	c.failOrphans(ctrl, msgs)
	c.store.Load(conv.ID, msgs)
	ctrl.Reattach()
	c.focusObs.emit(struct{}{})
	return loadErr
}

// failOrphans marks in-flight messages that ctrl does not own as failed and
// saves them. They were left behind by a process that stopped mid-stream.
func (c *Coordinator) failOrphans(ctrl *GenerationController, msgs []model.Message) {
	var owned string
	if latest, ok := ctrl.Latest(); ok {
		owned = latest.ID
	}
	for i := range msgs {
		if !msgs[i].InFlight() || msgs[i].ID == owned {
			continue
		}
		msgs[i].Response = msgs[i].Response.Fail(InterruptedReason)
		c.log.Warn().Str("conversation", msgs[i].ConversationID).Str("message", msgs[i].ID).Msg("marking interrupted message as failed")
		if c.persist == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.ctx), persistTimeout)
		if err := c.persist.SaveMessage(ctx, msgs[i]); err != nil {
			c.log.Error().Err(err).Str("message", msgs[i].ID).Msg("failed to save message")
		}
		cancel()
	}
}

// Deselect clears the active conversation and the transcript.
func (c *Coordinator) Deselect() {
	c.mu.Lock()
	c.token++
	c.active = nil
	c.mu.Unlock()

	c.gate.Reset()
	c.store.Load("", nil)
}

// UpdateActive replaces the active conversation's metadata (name or model)
// without reloading the transcript. A changed model triggers a re-check.
func (c *Coordinator) UpdateActive(conv model.Conversation) {
	c.mu.Lock()
	if c.active == nil || c.active.ID != conv.ID {
		c.mu.Unlock()
		return
	}
	modelChanged := c.active.ModelName() != conv.ModelName()
	updated := conv
	c.active = &updated
	token := c.token
	c.mu.Unlock()

	if modelChanged {
		if conv.Model != nil {
			c.gate.Track(*conv.Model)
		}
		c.startRefresh(token)
	}
}

// Retry re-checks the connection for the active conversation.
func (c *Coordinator) Retry() {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	c.log.Info().Msg("retrying connection")
	c.startRefresh(token)
}

// Submit sends prompt in the active conversation.
func (c *Coordinator) Submit(ctx context.Context, prompt string) (model.Message, error) {
	c.mu.Lock()
	if c.active == nil {
		c.mu.Unlock()
		return model.Message{}, ErrNoConversation
	}
	conv := *c.active
	ctrl := c.controllerLocked(conv.ID)
	c.mu.Unlock()

	return ctrl.Submit(ctx, prompt, conv)
}

// =============================================================================
// BACKGROUND REFRESH
// =============================================================================

func (c *Coordinator) startRefresh(token uint64) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.refresh(token)
	}()
}

// refresh runs the connection check, then the model fetch. It stops as soon
// as a newer selection has been made.
func (c *Coordinator) refresh(token uint64) {
	if c.gate.CheckConnection(c.ctx) != model.ConnectionConnected {
		return
	}
	if !c.isCurrent(token) {
		return
	}

	models, err := c.gate.FetchModels(c.ctx)
	if err != nil {
		if !errors.Is(err, errStaleCheck) {
			c.log.Warn().Err(err).Msg("model refresh failed")
		}
		return
	}
	if !c.isCurrent(token) {
		return
	}

	if c.persist != nil {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.ctx), persistTimeout)
		if err := c.persist.SyncModels(ctx, models); err != nil {
			c.log.Error().Err(err).Msg("failed to save models")
		}
		cancel()
	}

	c.mu.Lock()
	if c.token == token && c.active != nil && c.active.Model != nil {
		for _, m := range models {
			if m.Name == c.active.Model.Name {
				updated := *c.active
				mcopy := m
				updated.Model = &mcopy
				c.active = &updated
				break
			}
		}
	}
	c.mu.Unlock()

	c.statusObs.emit(struct{}{})
}

// =============================================================================
// QUERIES
// =============================================================================

// Active returns the selected conversation.
func (c *Coordinator) Active() (model.Conversation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return model.Conversation{}, false
	}
	return *c.active, true
}

// ConnectionState returns the gate's state.
func (c *Coordinator) ConnectionState() model.ConnectionState {
	return c.gate.State()
}

// GenerationState returns the active conversation's generation state.
func (c *Coordinator) GenerationState() model.GenerationState {
	if ctrl := c.activeController(); ctrl != nil {
		return ctrl.State()
	}
	return model.GenerationIdle
}

// Messages returns the visible transcript.
func (c *Coordinator) Messages() []model.Message {
	return c.store.Messages()
}

// IsInputAllowed reports whether the prompt field is enabled.
func (c *Coordinator) IsInputAllowed() bool {
	conv, ok := c.Active()
	if !ok {
		return false
	}
	return c.gate.IsInputAllowed(conv.Model)
}

// IsSendAllowed reports whether prompt may be submitted now.
func (c *Coordinator) IsSendAllowed(prompt string) bool {
	conv, ok := c.Active()
	if !ok {
		return false
	}
	return c.gate.IsSendAllowed(prompt, conv.Model, c.GenerationState())
}

// Notice returns the inline status for the active conversation.
func (c *Coordinator) Notice() Notice {
	conv, ok := c.Active()
	if !ok {
		return Notice{}
	}

	switch c.gate.State() {
	case model.ConnectionChecking:
		return Notice{Kind: NoticeChecking, Text: "Checking connection..."}
	case model.ConnectionError:
		text := "Cannot connect to Ollama"
		if err := c.gate.Err(); err != nil {
			text = err.Error()
		}
		return Notice{Kind: NoticeConnectionError, Text: text}
	}

	if conv.Model != nil && !c.gate.IsAvailable(conv.Model) {
		name := modelLabel(conv.Model.Name)
		return Notice{
			Kind: NoticeModelUnavailable,
			Text: (&ModelUnavailableError{Model: name}).Error(),
		}
	}

	if ctrl := c.activeController(); ctrl != nil && ctrl.State() == model.GenerationIdle {
		var genErr *GenerationError
		if errors.As(ctrl.LastError(), &genErr) {
			return Notice{Kind: NoticeGenerationFailed, Text: genErr.Error()}
		}
	}
	return Notice{}
}

// Controller returns the controller of a conversation, if it was ever
// selected.
func (c *Coordinator) Controller(conversationID string) (*GenerationController, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctrl, ok := c.controllers[conversationID]
	return ctrl, ok
}

// Store returns the message store.
func (c *Coordinator) Store() *MessageStore { return c.store }

// Gate returns the connection gate.
func (c *Coordinator) Gate() *ConnectionGate { return c.gate }

// Scroll returns the scroll sync.
func (c *Coordinator) Scroll() *TranscriptScrollSync { return c.scroll }

// =============================================================================
// EVENTS
// =============================================================================

// OnFocus registers fn to be called when the prompt field should take focus:
// after a selection and when the active conversation finishes generating.
func (c *Coordinator) OnFocus(fn func()) func() {
	return c.focusObs.add(func(struct{}) { fn() })
}

// OnStatus registers fn to be called when the connection state or the
// known model availability changes.
func (c *Coordinator) OnStatus(fn func()) func() {
	return c.statusObs.add(func(struct{}) { fn() })
}

// OnGeneration registers fn for generation state changes of every
// conversation.
func (c *Coordinator) OnGeneration(fn func(GenerationChange)) func() {
	return c.genObs.add(fn)
}

// Wait blocks until background checks and every generation have finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()

	c.mu.Lock()
	ctrls := make([]*GenerationController, 0, len(c.controllers))
	for _, ctrl := range c.controllers {
		ctrls = append(ctrls, ctrl)
	}
	c.mu.Unlock()

	for _, ctrl := range ctrls {
		ctrl.Wait()
	}
}

// Close detaches the coordinator's subscriptions.
func (c *Coordinator) Close() {
	c.mu.Lock()
	unsubs := c.unsubs
	c.unsubs = nil
	c.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	c.scroll.Close()
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func (c *Coordinator) isCurrent(token uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token == token
}

func (c *Coordinator) activeController() *GenerationController {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return nil
	}
	return c.controllers[c.active.ID]
}

// controllerLocked returns the controller for id, creating it on first use.
// c.mu must be held.
func (c *Coordinator) controllerLocked(id string) *GenerationController {
	if ctrl, ok := c.controllers[id]; ok {
		return ctrl
	}
	ctrl := c.newCtrl(id)
	c.controllers[id] = ctrl
	c.unsubs = append(c.unsubs, ctrl.Subscribe(func(state model.GenerationState) {
		c.genObs.emit(GenerationChange{ConversationID: id, State: state})
		if state == model.GenerationIdle && c.isActive(id) {
			c.focusObs.emit(struct{}{})
		}
	}))
	return ctrl
}

func (c *Coordinator) isActive(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil && c.active.ID == id
}
