// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/util"
)

// =============================================================================
// CONNECTION GATE
// =============================================================================

// ConnectionGate tracks backend reachability and which models are installed,
// and decides whether input is allowed.
//
// Concurrent checks are coalesced. Every Reset starts a new epoch; results of
// a check or fetch that began in an earlier epoch are dropped.
type ConnectionGate struct {
	backend Backend
	timeout time.Duration
	log     zerolog.Logger
	flight  singleflight.Group

	mu        sync.RWMutex
	state     model.ConnectionState
	err       error
	epoch     uint64
	fetched   bool
	installed map[string]model.Model
	known     map[string]model.Model

	obs observers[model.ConnectionState]
}

// NewConnectionGate creates a gate in the idle state. A timeout of 0 leaves
// checks bounded only by the caller's context.
func NewConnectionGate(backend Backend, timeout time.Duration, log zerolog.Logger) *ConnectionGate {
	return &ConnectionGate{
		backend: backend,
		timeout: timeout,
		log:     log.With().Str("component", "gate").Logger(),
		known:   make(map[string]model.Model),
	}
}

// CheckConnection probes the backend and returns the resulting state.
// It never fails; the outcome is the state, and Err holds the cause of an
// error state. Calls made while a check of the same epoch is running wait
// for that check instead of starting another.
func (g *ConnectionGate) CheckConnection(ctx context.Context) model.ConnectionState {
	g.mu.Lock()
	epoch := g.epoch
	changed := g.state != model.ConnectionChecking
	g.state = model.ConnectionChecking
	g.mu.Unlock()
	if changed {
		g.log.Debug().Uint64("epoch", epoch).Msg("checking connection")
		g.obs.emit(model.ConnectionChecking)
	}

	v, _, _ := g.flight.Do("check-"+strconv.FormatUint(epoch, 10), func() (any, error) {
		cctx, cancel := g.withTimeout(ctx)
		defer cancel()
		return g.finishCheck(epoch, g.backend.CheckConnection(cctx)), nil
	})
	return v.(model.ConnectionState)
}

func (g *ConnectionGate) finishCheck(epoch uint64, err error) model.ConnectionState {
	g.mu.Lock()
	if g.epoch != epoch {
		state := g.state
		g.mu.Unlock()
		g.log.Debug().Uint64("epoch", epoch).Msg("discarding stale connection check")
		return state
	}

	if err != nil {
		g.state = model.ConnectionError
		g.err = &ConnectionError{Err: err}
	} else {
		g.state = model.ConnectionConnected
		g.err = nil
	}
	state := g.state
	g.mu.Unlock()

	if err != nil {
		g.log.Warn().Err(err).Msg("connection check failed")
	} else {
		g.log.Info().Msg("connected")
	}
	g.obs.emit(state)
	return state
}

// FetchModels lists installed models and updates the availability of every
// known model. It requires the connected state. A failure moves the gate to
// the error state and is returned as a ConnectionError.
func (g *ConnectionGate) FetchModels(ctx context.Context) ([]model.Model, error) {
	g.mu.RLock()
	epoch, state := g.epoch, g.state
	g.mu.RUnlock()
	if state != model.ConnectionConnected {
		return nil, &ConnectionError{Err: errNotConnected}
	}

	v, err, _ := g.flight.Do("models-"+strconv.FormatUint(epoch, 10), func() (any, error) {
		cctx, cancel := g.withTimeout(ctx)
		defer cancel()
		installed, err := g.backend.FetchModels(cctx)
		return g.finishFetch(epoch, installed, err)
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.Model), nil
}

func (g *ConnectionGate) finishFetch(epoch uint64, installed []model.Model, err error) ([]model.Model, error) {
	g.mu.Lock()
	if g.epoch != epoch {
		g.mu.Unlock()
		return nil, &ConnectionError{Err: errStaleCheck}
	}

	if err != nil {
		g.state = model.ConnectionError
		g.err = &ConnectionError{Err: err}
		cerr := g.err
		g.mu.Unlock()
		g.log.Warn().Err(err).Msg("model listing failed")
		g.obs.emit(model.ConnectionError)
		return nil, cerr
	}

	known := make([]model.Model, 0, len(g.known))
	for _, m := range g.known {
		known = append(known, m)
	}
	merged := model.MergeAvailability(known, installed)

	g.installed = make(map[string]model.Model, len(installed))
	for _, m := range installed {
		g.installed[canonicalModelName(m.Name)] = m
	}
	for _, m := range merged {
		if _, ok := g.installed[canonicalModelName(m.Name)]; ok {
			m.Availability = model.Available
		}
		g.known[m.Name] = m
	}
	g.fetched = true

	out := make([]model.Model, 0, len(g.known))
	for _, m := range merged {
		out = append(out, g.known[m.Name])
	}
	g.mu.Unlock()

	g.log.Debug().Int("installed", len(installed)).Msg("models fetched")
	return out, nil
}

// Track registers a model so that FetchModels reports its availability even
// when the server does not list it.
func (g *ConnectionGate) Track(m model.Model) {
	if m.Name == "" {
		return
	}
	g.mu.Lock()
	if _, ok := g.known[m.Name]; !ok {
		g.known[m.Name] = m
	}
	g.mu.Unlock()
}

// MarkUnavailable records that the server no longer has the named model,
// as found by a generation. It lasts until the next model fetch.
func (g *ConnectionGate) MarkUnavailable(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.fetched {
		return
	}
	delete(g.installed, canonicalModelName(name))
	g.log.Info().Str("model", name).Msg("model marked unavailable")
}

// Reset returns the gate to idle and invalidates in-flight checks.
func (g *ConnectionGate) Reset() {
	g.mu.Lock()
	g.epoch++
	changed := g.state != model.ConnectionIdle
	g.state = model.ConnectionIdle
	g.err = nil
	g.fetched = false
	g.installed = nil
	g.mu.Unlock()

	if changed {
		g.obs.emit(model.ConnectionIdle)
	}
}

// =============================================================================
// QUERIES
// =============================================================================

// State returns the current connection state.
func (g *ConnectionGate) State() model.ConnectionState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Err returns the ConnectionError behind the error state, or nil.
func (g *ConnectionGate) Err() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.err
}

// IsAvailable reports whether m may be used. Once models were fetched in the
// current epoch the server's list decides; before that the model's own
// availability does. A nil model is always usable.
func (g *ConnectionGate) IsAvailable(m *model.Model) bool {
	if m == nil {
		return true
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.availableLocked(m)
}

func (g *ConnectionGate) availableLocked(m *model.Model) bool {
	if g.fetched {
		_, ok := g.installed[canonicalModelName(m.Name)]
		return ok
	}
	return m.IsAvailable()
}

// InputBlocker returns the error that currently blocks input for m, or nil.
func (g *ConnectionGate) InputBlocker(m *model.Model) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	switch g.state {
	case model.ConnectionChecking:
		return &ConnectionError{Err: errChecking}
	case model.ConnectionError:
		if g.err != nil {
			return g.err
		}
		return &ConnectionError{}
	}
	if m != nil && !g.availableLocked(m) {
		return &ModelUnavailableError{Model: m.Name}
	}
	return nil
}

// IsInputAllowed reports whether the user may type: the gate is neither
// checking nor in error, and m is nil or available.
func (g *ConnectionGate) IsInputAllowed(m *model.Model) bool {
	return g.InputBlocker(m) == nil
}

// IsSendAllowed additionally requires a non-blank prompt and an idle generation.
func (g *ConnectionGate) IsSendAllowed(prompt string, m *model.Model, gen model.GenerationState) bool {
	return g.IsInputAllowed(m) && strings.TrimSpace(prompt) != "" && gen == model.GenerationIdle
}

// Subscribe registers fn for state changes and returns an unsubscribe func.
func (g *ConnectionGate) Subscribe(fn func(model.ConnectionState)) func() {
	return g.obs.add(fn)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func (g *ConnectionGate) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout > 0 {
		return context.WithTimeout(ctx, g.timeout)
	}
	return context.WithCancel(ctx)
}

// canonicalModelName makes "llama3.2" and "llama3.2:latest" compare equal.
func canonicalModelName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name != "" && !strings.Contains(name, ":") {
		return name + ":latest"
	}
	return name
}

// modelLabel is the short name shown in notices.
func modelLabel(name string) string {
	return util.TruncateRunes(strings.TrimSuffix(name, ":latest"), 40)
}
