// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigchat/internal/model"
)

// =============================================================================
// CONNECTION CHECK TESTS
// =============================================================================

func TestGate_CheckConnection(t *testing.T) {
	backend := newFakeBackend()
	gate := NewConnectionGate(backend, time.Second, zerolog.Nop())
	assert.Equal(t, model.ConnectionIdle, gate.State())

	var seen []model.ConnectionState
	var mu sync.Mutex
	gate.Subscribe(func(s model.ConnectionState) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	assert.Equal(t, model.ConnectionConnected, gate.CheckConnection(context.Background()))
	assert.NoError(t, gate.Err())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []model.ConnectionState{model.ConnectionChecking, model.ConnectionConnected}, seen)
}

func TestGate_CheckConnection_Failure(t *testing.T) {
	refused := errors.New("connection refused")
	backend := newFakeBackend()
	backend.setCheck(func(context.Context, int) error { return refused })
	gate := NewConnectionGate(backend, time.Second, zerolog.Nop())

	assert.Equal(t, model.ConnectionError, gate.CheckConnection(context.Background()))

	var connErr *ConnectionError
	require.ErrorAs(t, gate.Err(), &connErr)
	assert.ErrorIs(t, gate.Err(), refused)
}

func TestGate_CheckConnection_Timeout(t *testing.T) {
	backend := newFakeBackend()
	backend.setCheck(func(ctx context.Context, _ int) error {
		<-ctx.Done()
		return ctx.Err()
	})
	gate := NewConnectionGate(backend, 20*time.Millisecond, zerolog.Nop())

	assert.Equal(t, model.ConnectionError, gate.CheckConnection(context.Background()))
	assert.ErrorIs(t, gate.Err(), context.DeadlineExceeded)
}

func TestGate_CheckConnection_Coalesces(t *testing.T) {
	release := make(chan struct{})
	backend := newFakeBackend()
	backend.setCheck(func(context.Context, int) error {
		<-release
		return nil
	})
	gate := NewConnectionGate(backend, 0, zerolog.Nop())

	var wg sync.WaitGroup
	results := make([]model.ConnectionState, 5)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0] = gate.CheckConnection(context.Background())
	}()
	require.Eventually(t, func() bool {
		checks, _ := backend.calls()
		return checks == 1
	}, waitFor, tick)

	for i := 1; i < len(results); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = gate.CheckConnection(context.Background())
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	checks, _ := backend.calls()
	assert.Equal(t, 1, checks)
	for _, r := range results {
		assert.Equal(t, model.ConnectionConnected, r)
	}
}

func TestGate_Reset_DiscardsStaleCheck(t *testing.T) {
	release := make(chan struct{})
	backend := newFakeBackend()
	backend.setCheck(func(context.Context, int) error {
		<-release
		return errors.New("late failure")
	})
	gate := NewConnectionGate(backend, 0, zerolog.Nop())

	done := make(chan model.ConnectionState, 1)
	go func() { done <- gate.CheckConnection(context.Background()) }()
	require.Eventually(t, func() bool { return gate.State() == model.ConnectionChecking }, waitFor, tick)

	gate.Reset()
	close(release)

	assert.Equal(t, model.ConnectionIdle, <-done)
	assert.Equal(t, model.ConnectionIdle, gate.State())
	assert.NoError(t, gate.Err())
}

// =============================================================================
// MODEL FETCH TESTS
// =============================================================================

func TestGate_FetchModels_RequiresConnection(t *testing.T) {
	gate := NewConnectionGate(newFakeBackend(), 0, zerolog.Nop())

	_, err := gate.FetchModels(context.Background())
	var connErr *ConnectionError
	assert.ErrorAs(t, err, &connErr)
}

func TestGate_FetchModels_MarksMissingModels(t *testing.T) {
	backend := newFakeBackend(installed("llama3.2:latest"), installed("qwen2.5:7b"))
	gate := connectedGate(t, backend)
	gate.Track(model.Model{Name: "mistral:latest", Availability: model.Available})

	models, err := gate.FetchModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 3)

	byName := make(map[string]model.Availability)
	for _, m := range models {
		byName[m.Name] = m.Availability
	}
	assert.Equal(t, model.Available, byName["llama3.2:latest"])
	assert.Equal(t, model.Available, byName["qwen2.5:7b"])
	assert.Equal(t, model.NotAvailable, byName["mistral:latest"])
}

func TestGate_FetchModels_FailureIsConnectionError(t *testing.T) {
	listErr := errors.New("500 internal")
	backend := newFakeBackend()
	backend.modelsErr = listErr
	gate := connectedGate(t, backend)

	_, err := gate.FetchModels(context.Background())
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.ErrorIs(t, err, listErr)
	assert.Equal(t, model.ConnectionError, gate.State())
	assert.False(t, gate.IsInputAllowed(nil))
}

func TestGate_FetchModels_EmptyListIsNotAnError(t *testing.T) {
	gate := connectedGate(t, newFakeBackend())

	models, err := gate.FetchModels(context.Background())
	require.NoError(t, err)
	assert.Empty(t, models)
	assert.Equal(t, model.ConnectionConnected, gate.State())
}

func TestGate_IsAvailable_LatestTag(t *testing.T) {
	gate := connectedGate(t, newFakeBackend(installed("llama3.2:latest")))
	_, err := gate.FetchModels(context.Background())
	require.NoError(t, err)

	assert.True(t, gate.IsAvailable(&model.Model{Name: "llama3.2"}))
	assert.True(t, gate.IsAvailable(&model.Model{Name: "Llama3.2:latest"}))
	assert.False(t, gate.IsAvailable(&model.Model{Name: "llama3.2:70b"}))
}

// =============================================================================
// INPUT GATING TESTS
// =============================================================================

func TestGate_IsInputAllowed(t *testing.T) {
	available := &model.Model{Name: "llama3.2", Availability: model.Available}
	missing := &model.Model{Name: "llama3.2", Availability: model.NotAvailable}

	checking := func(t *testing.T) *ConnectionGate {
		release := make(chan struct{})
		t.Cleanup(func() { close(release) })
		backend := newFakeBackend()
		backend.setCheck(func(context.Context, int) error {
			<-release
			return nil
		})
		gate := NewConnectionGate(backend, 0, zerolog.Nop())
		go gate.CheckConnection(context.Background())
		require.Eventually(t, func() bool { return gate.State() == model.ConnectionChecking }, waitFor, tick)
		return gate
	}
	failed := func(t *testing.T) *ConnectionGate {
		backend := newFakeBackend()
		backend.setCheck(func(context.Context, int) error { return errors.New("down") })
		gate := NewConnectionGate(backend, 0, zerolog.Nop())
		gate.CheckConnection(context.Background())
		return gate
	}
	connected := func(t *testing.T) *ConnectionGate {
		return connectedGate(t, newFakeBackend())
	}
	idle := func(t *testing.T) *ConnectionGate {
		return NewConnectionGate(newFakeBackend(), 0, zerolog.Nop())
	}

	tests := []struct {
		name  string
		gate  func(*testing.T) *ConnectionGate
		model *model.Model
		want  bool
	}{
		{"idle without model", idle, nil, true},
		{"connected without model", connected, nil, true},
		{"connected with available model", connected, available, true},
		{"connected with missing model", connected, missing, false},
		{"checking", checking, available, false},
		{"checking without model", checking, nil, false},
		{"error with available model", failed, available, false},
		{"error without model", failed, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := tt.gate(t)
			assert.Equal(t, tt.want, gate.IsInputAllowed(tt.model))
		})
	}
}

// Connection error blocks input regardless of model availability.
func TestScenarioC_ErrorBlocksInput(t *testing.T) {
	backend := newFakeBackend(installed("llama3.2:latest"))
	backend.setCheck(func(context.Context, int) error { return errors.New("refused") })
	gate := NewConnectionGate(backend, 0, zerolog.Nop())
	gate.CheckConnection(context.Background())

	m := &model.Model{Name: "llama3.2:latest", Availability: model.Available}
	assert.False(t, gate.IsInputAllowed(m))
	assert.False(t, gate.IsInputAllowed(nil))

	blocker := gate.InputBlocker(m)
	var connErr *ConnectionError
	assert.ErrorAs(t, blocker, &connErr)
}

// A model the server does not list blocks input while connected.
func TestScenarioE_UnavailableModelBlocksInput(t *testing.T) {
	gate := connectedGate(t, newFakeBackend(installed("qwen2.5:7b")))
	m := &model.Model{Name: "llama3.2:latest", Availability: model.Available}
	gate.Track(*m)

	models, err := gate.FetchModels(context.Background())
	require.NoError(t, err)
	for _, fetched := range models {
		if fetched.Name == m.Name {
			assert.Equal(t, model.NotAvailable, fetched.Availability)
		}
	}

	assert.Equal(t, model.ConnectionConnected, gate.State())
	assert.False(t, gate.IsInputAllowed(m))

	var unavailable *ModelUnavailableError
	require.ErrorAs(t, gate.InputBlocker(m), &unavailable)
	assert.Equal(t, "llama3.2:latest", unavailable.Model)
	assert.Contains(t, unavailable.Error(), "ollama pull llama3.2:latest")
}

func TestGate_IsSendAllowed(t *testing.T) {
	gate := connectedGate(t, newFakeBackend())
	m := &model.Model{Name: "llama3.2", Availability: model.Available}

	assert.True(t, gate.IsSendAllowed("hi", m, model.GenerationIdle))
	assert.False(t, gate.IsSendAllowed("   \n", m, model.GenerationIdle))
	assert.False(t, gate.IsSendAllowed("", m, model.GenerationIdle))
	assert.False(t, gate.IsSendAllowed("hi", m, model.GenerationGenerating))
}

func TestModelLabel(t *testing.T) {
	assert.Equal(t, "llama3.2", modelLabel("llama3.2:latest"))
	assert.Equal(t, "qwen2.5:7b", modelLabel("qwen2.5:7b"))
}
