// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "github.com/jeranaias/rigchat/internal/chat"
	"github.com/jeranaias/rigchat/internal/model"
)

const waitFor = 2 * time.Second

// =============================================================================
// FAKES
// =============================================================================

type fakeBackend struct {
	mu         sync.Mutex
	checkErr   error
	checkGate  chan struct{} // when set, checks block until it is closed
	checkCalls int
	streams    chan chan core.GenerateEvent
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{streams: make(chan chan core.GenerateEvent, 4)}
}

func (b *fakeBackend) CheckConnection(ctx context.Context) error {
	b.mu.Lock()
	b.checkCalls++
	gate, err := b.checkGate, b.checkErr
	b.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (b *fakeBackend) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.checkCalls
}

func (b *fakeBackend) FetchModels(ctx context.Context) ([]model.Model, error) {
	return []model.Model{{Name: "llama3.2:latest", Availability: model.Available}}, nil
}

func (b *fakeBackend) Generate(ctx context.Context, req core.GenerateRequest) (<-chan core.GenerateEvent, error) {
	ch := make(chan core.GenerateEvent, 16)
	b.streams <- ch
	return ch, nil
}

type fakePersistence struct{}

func (fakePersistence) Messages(ctx context.Context, id string) ([]model.Message, error) {
	return nil, nil
}
func (fakePersistence) SaveMessage(ctx context.Context, msg model.Message) error   { return nil }
func (fakePersistence) SyncModels(ctx context.Context, models []model.Model) error { return nil }

type fakeConversations struct {
	mu    sync.Mutex
	convs []model.Conversation
}

func (f *fakeConversations) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Conversation(nil), f.convs...), nil
}

func (f *fakeConversations) CreateConversation(ctx context.Context, name, modelName string) (model.Conversation, error) {
	conv := model.NewConversation(name, &model.Model{Name: modelName, Availability: model.Available})
	f.mu.Lock()
	f.convs = append([]model.Conversation{conv}, f.convs...)
	f.mu.Unlock()
	return conv, nil
}

func (f *fakeConversations) RenameConversation(ctx context.Context, id, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.convs {
		if f.convs[i].ID == id {
			f.convs[i].Name = name
			return nil
		}
	}
	return errors.New("not found")
}

func (f *fakeConversations) DeleteConversation(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.convs {
		if f.convs[i].ID == id {
			f.convs = append(f.convs[:i], f.convs[i+1:]...)
			return nil
		}
	}
	return errors.New("not found")
}

// =============================================================================
// HELPERS
// =============================================================================

type harness struct {
	t       *testing.T
	m       *Model
	coord   *core.Coordinator
	backend *fakeBackend
	convs   *fakeConversations
}

func newHarness(t *testing.T, backend *fakeBackend) *harness {
	t.Helper()
	coord := core.New(context.Background(), backend, fakePersistence{}, core.Options{
		Logger:         zerolog.Nop(),
		ConnectTimeout: time.Second,
	})
	convs := &fakeConversations{convs: []model.Conversation{
		{ID: "c1", Name: "General", Model: &model.Model{Name: "llama3.2", Availability: model.Available}},
		{ID: "c2", Name: "Ideas", Model: &model.Model{Name: "llama3.2", Availability: model.Available}},
	}}
	m := New(context.Background(), coord, convs, Options{Theme: "dark", DefaultModel: "llama3.2"})
	t.Cleanup(func() {
		m.Close()
		coord.Wait()
		coord.Close()
	})

	h := &harness{t: t, m: m, coord: coord, backend: backend, convs: convs}
	h.send(tea.WindowSizeMsg{Width: 120, Height: 40})
	return h
}

// send runs msg through Update and then every command it returns,
// recursively, except ticks that would wait on the clock.
func (h *harness) send(msg tea.Msg) {
	h.t.Helper()
	_, cmd := h.m.Update(msg)
	h.run(cmd)
}

func (h *harness) run(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()

	var msg tea.Msg
	select {
	case msg = <-done:
	case <-time.After(100 * time.Millisecond):
		return // blink and spinner ticks
	}

	switch msg := msg.(type) {
	case tea.BatchMsg:
		for _, c := range msg {
			h.run(c)
		}
	case conversationsLoadedMsg, selectedMsg, signalMsg, renderTickMsg:
		h.send(msg)
	}
}

// settle waits for background core work and delivers pending signals.
func (h *harness) settle() {
	h.coord.Wait()
	if s := h.m.pump.take(); s != 0 {
		h.send(signalMsg(s))
	}
	h.m.refreshTranscript()
}

func (h *harness) typeText(text string) {
	h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func (h *harness) key(t tea.KeyType) {
	h.send(tea.KeyMsg{Type: t})
}

func (h *harness) open(id string) {
	h.t.Helper()
	h.send(conversationsLoadedMsg{convs: h.convs.convs, selectID: id})
	h.settle()
	active, ok := h.coord.Active()
	require.True(h.t, ok)
	require.Equal(h.t, id, active.ID)
}

// =============================================================================
// TESTS
// =============================================================================

func TestModel_NoChatSelected(t *testing.T) {
	h := newHarness(t, newFakeBackend())
	h.run(h.m.Init())

	view := h.m.View()
	assert.Contains(t, view, "No Chat Selected")
	assert.Contains(t, view, "General")
	assert.Contains(t, view, "Ideas")

	// Tab has nothing to focus without a selection.
	h.key(tea.KeyTab)
	assert.Equal(t, focusSidebar, h.m.focus)
}

func TestModel_SelectFocusesPrompt(t *testing.T) {
	h := newHarness(t, newFakeBackend())
	h.open("c1")

	assert.Equal(t, focusInput, h.m.focus)
	assert.True(t, h.coord.IsInputAllowed())

	view := h.m.View()
	assert.Contains(t, view, "General")
	assert.Contains(t, view, "llama3.2")
	assert.NotContains(t, view, "No Chat Selected")
}

func TestModel_EnterInSidebarOpensChat(t *testing.T) {
	h := newHarness(t, newFakeBackend())
	h.run(h.m.Init())

	h.send(tea.KeyMsg{Type: tea.KeyDown})
	h.key(tea.KeyEnter)
	h.settle()

	active, ok := h.coord.Active()
	require.True(t, ok)
	assert.Equal(t, "c2", active.ID)
}

func TestModel_TypingIgnoredWhileChecking(t *testing.T) {
	backend := newFakeBackend()
	backend.checkGate = make(chan struct{})
	h := newHarness(t, backend)

	h.send(conversationsLoadedMsg{convs: h.convs.convs, selectID: "c1"})
	require.Eventually(t, func() bool {
		return h.coord.ConnectionState() == model.ConnectionChecking
	}, waitFor, 5*time.Millisecond)

	h.m.focusInput()
	h.typeText("hello")
	assert.Empty(t, h.m.input.Value())
	assert.Contains(t, h.m.View(), "Checking connection...")

	close(backend.checkGate)
	h.settle()

	h.typeText("hello")
	assert.Equal(t, "hello", h.m.input.Value())
}

func TestModel_ConnectionErrorAndRetry(t *testing.T) {
	backend := newFakeBackend()
	backend.checkErr = errors.New("connection refused")
	h := newHarness(t, backend)
	h.open("c1")

	assert.False(t, h.coord.IsInputAllowed())
	view := h.m.View()
	assert.Contains(t, view, "connection refused")
	assert.Contains(t, view, "check again")

	h.typeText("hello")
	assert.Empty(t, h.m.input.Value())

	before := backend.calls()
	backend.mu.Lock()
	backend.checkErr = nil
	backend.mu.Unlock()

	h.key(tea.KeyCtrlR)
	h.settle()

	assert.Greater(t, backend.calls(), before)
	assert.True(t, h.coord.IsInputAllowed())
}

func TestModel_SubmitClearsPromptAndStreams(t *testing.T) {
	backend := newFakeBackend()
	h := newHarness(t, backend)
	h.open("c1")

	h.typeText("hello")
	h.key(tea.KeyEnter)

	// Cleared before the response arrives.
	assert.Empty(t, h.m.input.Value())
	assert.Equal(t, model.GenerationGenerating, h.coord.GenerationState())

	var stream chan core.GenerateEvent
	select {
	case stream = <-backend.streams:
	case <-time.After(waitFor):
		t.Fatal("generation did not start")
	}

	// A second prompt is not sent while the first is generating.
	h.typeText("again")
	h.key(tea.KeyEnter)
	assert.Equal(t, "again", h.m.input.Value())
	assert.Len(t, h.coord.Messages(), 1)

	stream <- core.GenerateEvent{Fragment: "Hi there"}
	stream <- core.GenerateEvent{Done: true}
	close(stream)
	h.settle()

	assert.Equal(t, model.GenerationIdle, h.coord.GenerationState())
	assert.Equal(t, focusInput, h.m.focus)

	msgs := h.coord.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Prompt)
	assert.Equal(t, "Hi there", msgs[0].Response.Text)
	assert.Contains(t, h.m.viewport.View(), "Hi there")
}

func TestModel_BlankPromptNotSent(t *testing.T) {
	h := newHarness(t, newFakeBackend())
	h.open("c1")

	h.typeText("   ")
	h.key(tea.KeyEnter)
	assert.Empty(t, h.coord.Messages())
	assert.Equal(t, "   ", h.m.input.Value())
}

func TestModel_NewChat(t *testing.T) {
	h := newHarness(t, newFakeBackend())
	h.run(h.m.Init())

	h.key(tea.KeyCtrlN)
	h.settle()

	active, ok := h.coord.Active()
	require.True(t, ok)
	assert.Equal(t, model.DefaultConversationName, active.DisplayName())
	assert.Equal(t, "llama3.2", active.ModelName())
	assert.Len(t, h.m.conversations, 3)
}

func TestModel_RenameActive(t *testing.T) {
	h := newHarness(t, newFakeBackend())
	h.open("c1")
	h.key(tea.KeyTab)
	require.Equal(t, focusSidebar, h.m.focus)

	h.typeText("r")
	require.Equal(t, dialogRename, h.m.dialog)
	h.m.rename.SetValue("Renamed")
	h.key(tea.KeyEnter)

	assert.Equal(t, dialogNone, h.m.dialog)
	active, ok := h.coord.Active()
	require.True(t, ok)
	assert.Equal(t, "Renamed", active.Name)
	assert.Contains(t, h.m.View(), "Renamed")
}

func TestModel_DeleteActive(t *testing.T) {
	h := newHarness(t, newFakeBackend())
	h.open("c1")
	h.key(tea.KeyTab)

	h.typeText("d")
	require.Equal(t, dialogDelete, h.m.dialog)
	h.typeText("n")
	assert.Equal(t, dialogNone, h.m.dialog)
	assert.Len(t, h.m.conversations, 2)

	h.typeText("d")
	h.typeText("y")

	_, ok := h.coord.Active()
	assert.False(t, ok)
	assert.Len(t, h.m.conversations, 1)
	assert.Contains(t, h.m.View(), "No Chat Selected")
}

func TestModel_RenderThrottle(t *testing.T) {
	h := newHarness(t, newFakeBackend())

	// The first redraw uses the limiter's burst and happens at once.
	assert.Nil(t, h.m.scheduleRender())
	assert.False(t, h.m.renderPending)

	// The next one is deferred to a tick, and only one tick is pending.
	assert.NotNil(t, h.m.scheduleRender())
	assert.True(t, h.m.renderPending)
	assert.Nil(t, h.m.scheduleRender())

	h.send(renderTickMsg{})
	assert.False(t, h.m.renderPending)
}

func TestPump_Coalesces(t *testing.T) {
	p := newPump()
	p.raise(sigTranscript)
	p.raise(sigTranscript)
	p.raise(sigFocus)

	got := signalMsg(p.take())
	assert.True(t, got.has(sigTranscript))
	assert.True(t, got.has(sigFocus))
	assert.False(t, got.has(sigStatus))
	assert.Zero(t, p.take())

	var mu sync.Mutex
	var delivered []tea.Msg
	go p.run(func(msg tea.Msg) {
		mu.Lock()
		delivered = append(delivered, msg)
		mu.Unlock()
	})
	p.raise(sigStatus)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(delivered) == 1
	}, waitFor, 5*time.Millisecond)
	p.close()
	p.close()
}
