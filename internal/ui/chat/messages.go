// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/rigchat/internal/model"
)

// =============================================================================
// CONVERSATION MESSAGES
// =============================================================================

// conversationsLoadedMsg carries the conversation list after a load, create,
// rename or delete. selectID, when set, is opened once the list is shown.
type conversationsLoadedMsg struct {
	convs    []model.Conversation
	selectID string
	err      error
}

// selectedMsg reports that a selection finished loading its transcript.
type selectedMsg struct {
	conv model.Conversation
	err  error
}

// =============================================================================
// CORE SIGNALS
// =============================================================================

// signal is a set of things that changed in the core.
type signal uint8

const (
	sigTranscript signal = 1 << iota
	sigStatus
	sigFocus
	sigScroll
	sigSidebar
)

// signalMsg delivers coalesced core signals to Update.
type signalMsg signal

func (s signalMsg) has(bit signal) bool {
	return signal(s)&bit != 0
}

// renderTickMsg fires when a throttled transcript redraw is due.
type renderTickMsg struct{}

// pump collects core signals from any goroutine and hands them to the
// program one batch at a time. raise never blocks.
type pump struct {
	mu      sync.Mutex
	pending signal

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newPump() *pump {
	return &pump{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (p *pump) raise(s signal) {
	p.mu.Lock()
	p.pending |= s
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// take returns and clears the pending signals.
func (p *pump) take() signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.pending
	p.pending = 0
	return s
}

// run delivers signals with send until close is called.
func (p *pump) run(send func(tea.Msg)) {
	for {
		select {
		case <-p.done:
			return
		case <-p.wake:
		}
		if s := p.take(); s != 0 {
			send(signalMsg(s))
		}
	}
}

func (p *pump) close() {
	p.closeOnce.Do(func() { close(p.done) })
}
