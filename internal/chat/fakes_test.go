// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigchat/internal/model"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// =============================================================================
// FAKE BACKEND
// =============================================================================

// fakeStream is one generation driven by the test.
type fakeStream struct {
	ctx    context.Context
	req    GenerateRequest
	in     chan GenerateEvent
	exited chan struct{}
}

func (s *fakeStream) send(ev GenerateEvent) {
	select {
	case s.in <- ev:
	case <-s.exited:
	}
}

func (s *fakeStream) fragment(text string) {
	s.send(GenerateEvent{Fragment: text})
}

func (s *fakeStream) done(tokens ...int) {
	s.send(GenerateEvent{Done: true, Context: tokens})
}

func (s *fakeStream) fail(err error) {
	s.send(GenerateEvent{Err: err})
}

// hangUp ends the stream without a terminal event.
func (s *fakeStream) hangUp() {
	close(s.in)
}

type fakeBackend struct {
	mu          sync.Mutex
	checkFn     func(ctx context.Context, call int) error
	checkCalls  int
	models      []model.Model
	modelsErr   error
	modelsCalls int
	requests    []GenerateRequest

	streams chan *fakeStream
}

func newFakeBackend(models ...model.Model) *fakeBackend {
	return &fakeBackend{
		models:  models,
		streams: make(chan *fakeStream, 16),
	}
}

func (b *fakeBackend) CheckConnection(ctx context.Context) error {
	b.mu.Lock()
	b.checkCalls++
	call := b.checkCalls
	fn := b.checkFn
	b.mu.Unlock()
	if fn != nil {
		return fn(ctx, call)
	}
	return nil
}

func (b *fakeBackend) FetchModels(ctx context.Context) ([]model.Model, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.modelsCalls++
	if b.modelsErr != nil {
		return nil, b.modelsErr
	}
	return append([]model.Model(nil), b.models...), nil
}

// Generate relays events the test sends until a terminal event, a hang-up
// or the end of ctx.
func (b *fakeBackend) Generate(ctx context.Context, req GenerateRequest) (<-chan GenerateEvent, error) {
	b.mu.Lock()
	b.requests = append(b.requests, req)
	b.mu.Unlock()

	s := &fakeStream{ctx: ctx, req: req, in: make(chan GenerateEvent), exited: make(chan struct{})}
	out := make(chan GenerateEvent)
	go func() {
		defer close(s.exited)
		defer close(out)
		for {
			select {
			case ev, ok := <-s.in:
				if !ok {
					return
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
				if ev.Done || ev.Err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	b.streams <- s
	return out, nil
}

func (b *fakeBackend) setCheck(fn func(ctx context.Context, call int) error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.checkFn = fn
}

func (b *fakeBackend) calls() (checks, fetches int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.checkCalls, b.modelsCalls
}

func (b *fakeBackend) lastRequest() GenerateRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[len(b.requests)-1]
}

func (b *fakeBackend) nextStream(t *testing.T) *fakeStream {
	t.Helper()
	select {
	case s := <-b.streams:
		return s
	case <-time.After(waitFor):
		t.Fatal("no generation was started")
		return nil
	}
}

// =============================================================================
// FAKE PERSISTENCE
// =============================================================================

type fakePersistence struct {
	mu       sync.Mutex
	messages map[string][]model.Message
	models   []model.Model
	saves    int
	loadErr  error
}

func newFakePersistence() *fakePersistence {
	return &fakePersistence{messages: make(map[string][]model.Message)}
}

func (p *fakePersistence) Messages(ctx context.Context, conversationID string) ([]model.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loadErr != nil {
		return nil, p.loadErr
	}
	out := make([]model.Message, 0, len(p.messages[conversationID]))
	for _, m := range p.messages[conversationID] {
		out = append(out, m.Clone())
	}
	return out, nil
}

func (p *fakePersistence) SaveMessage(ctx context.Context, msg model.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saves++
	list := p.messages[msg.ConversationID]
	for i := range list {
		if list[i].ID == msg.ID {
			list[i] = msg.Clone()
			return nil
		}
	}
	p.messages[msg.ConversationID] = append(list, msg.Clone())
	return nil
}

func (p *fakePersistence) SyncModels(ctx context.Context, models []model.Model) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.models = append([]model.Model(nil), models...)
	return nil
}

func (p *fakePersistence) saved(conversationID string) []model.Message {
	msgs, _ := p.Messages(context.Background(), conversationID)
	return msgs
}

func (p *fakePersistence) syncedModels() []model.Model {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.Model(nil), p.models...)
}

// =============================================================================
// HELPERS
// =============================================================================

func installed(name string) model.Model {
	return model.Model{Name: name, Availability: model.Available}
}

func conversation(id, modelName string) model.Conversation {
	conv := model.Conversation{ID: id, Name: id}
	if modelName != "" {
		m := installed(modelName)
		conv.Model = &m
	}
	return conv
}

// connectedGate returns a gate that has completed a check against backend.
func connectedGate(t *testing.T, backend Backend) *ConnectionGate {
	t.Helper()
	gate := NewConnectionGate(backend, time.Second, zerolog.Nop())
	require.Equal(t, model.ConnectionConnected, gate.CheckConnection(context.Background()))
	return gate
}

// newTestController builds a controller for conv with a store showing conv.
func newTestController(t *testing.T, backend *fakeBackend, conv model.Conversation) (*GenerationController, *MessageStore, *fakePersistence) {
	t.Helper()
	store := NewMessageStore()
	store.Load(conv.ID, nil)
	persist := newFakePersistence()
	ctrl := NewGenerationController(conv.ID, ControllerConfig{
		Backend:     backend,
		Gate:        connectedGate(t, backend),
		Store:       store,
		Persistence: persist,
		Logger:      zerolog.Nop(),
	})
	return ctrl, store, persist
}

func tailText(store *MessageStore) string {
	tail, ok := store.Tail()
	if !ok {
		return ""
	}
	return tail.Response.Text
}

func countInFlight(msgs []model.Message) int {
	n := 0
	for _, m := range msgs {
		if m.InFlight() {
			n++
		}
	}
	return n
}
