// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	core "github.com/jeranaias/rigchat/internal/chat"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/ui/components"
)

// =============================================================================
// STREAM PRINTER
// =============================================================================

// streamPrinter writes the response of the message being generated in the
// active conversation as it grows. Only the new part of each update is
// written. After the first failed write nothing more is written.
type streamPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	live    bool
	id      string
	printed int
	lastNL  bool
	err     error
}

func newStreamPrinter(out io.Writer, live bool) *streamPrinter {
	return &streamPrinter{out: out, live: live, lastNL: true}
}

// handle is a MessageStore subscriber.
func (p *streamPrinter) handle(change core.Change) {
	if change.Kind != core.ChangeUpdated {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.id == "" {
		p.id = change.Message.ID
	}
	if change.Message.ID != p.id || !p.live || p.err != nil {
		return
	}
	text := change.Message.Response.Text
	if len(text) <= p.printed {
		return
	}
	delta := text[p.printed:]
	if _, err := io.WriteString(p.out, delta); err != nil {
		p.err = fmt.Errorf("write response: %w", err)
		return
	}
	p.printed = len(text)
	p.lastNL = strings.HasSuffix(delta, "\n")
}

// endLine terminates the streamed text with a newline if it lacks one.
func (p *streamPrinter) endLine() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.printed > 0 && !p.lastNL && p.err == nil {
		if _, err := io.WriteString(p.out, "\n"); err != nil {
			p.err = fmt.Errorf("write response: %w", err)
			return
		}
		p.lastNL = true
	}
}

// Err returns the first write error.
func (p *streamPrinter) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// =============================================================================
// PROMPT HELPERS
// =============================================================================

// openConversation selects conv and waits for its connection check. It
// fails with the coordinator's notice when input is not allowed.
func openConversation(ctx context.Context, coord *core.Coordinator, conv model.Conversation) error {
	if err := coord.Select(ctx, conv); err != nil {
		return err
	}
	coord.Wait()

	if !coord.IsInputAllowed() {
		if notice := coord.Notice(); notice.Text != "" {
			return errors.New(notice.Text)
		}
		return core.ErrInputNotAllowed
	}
	return nil
}

// promptOutput says where and how askOnce writes.
type promptOutput struct {
	Out   io.Writer
	Err   io.Writer
	Width int

	// Markdown, when set, renders the final response instead of
	// streaming it.
	Markdown *components.Markdown
}

// askOnce submits prompt in the active conversation, writes the response
// and waits for the generation to end. A failed generation is returned as
// its GenerationError after the partial text was written.
func askOnce(ctx context.Context, coord *core.Coordinator, prompt string, po promptOutput) (model.Message, error) {
	printer := newStreamPrinter(po.Out, po.Markdown == nil)
	unsub := coord.Store().Subscribe(printer.handle)
	defer unsub()

	msg, err := coord.Submit(ctx, prompt)
	if err != nil {
		return model.Message{}, err
	}

	ctrl, ok := coord.Controller(msg.ConversationID)
	if !ok {
		return msg, core.ErrNoConversation
	}
	ctrl.Wait()

	final, _ := ctrl.Latest()
	if po.Markdown != nil {
		if text := final.Response.Text; text != "" {
			if _, err := fmt.Fprintln(po.Out, po.Markdown.Render(text, po.Width)); err != nil {
				return final, fmt.Errorf("write response: %w", err)
			}
		}
	} else {
		printer.endLine()
		if err := printer.Err(); err != nil {
			return final, err
		}
	}

	if final.Response.State == model.ResponseFailed {
		if err := ctrl.LastError(); err != nil {
			return final, err
		}
		return final, &core.GenerationError{Reason: final.Response.Reason}
	}
	if final.Stats != nil && po.Err != nil {
		fmt.Fprintln(po.Err, DimStyle.Render(final.Stats.Format()))
	}
	return final, nil
}
