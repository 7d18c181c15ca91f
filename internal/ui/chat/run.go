// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	core "github.com/jeranaias/rigchat/internal/chat"
)

// Run shows the chat screen until the user quits or ctx is cancelled.
func Run(ctx context.Context, coord *core.Coordinator, convs Conversations, opts Options) error {
	m := New(ctx, coord, convs, opts)
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	go m.pump.run(p.Send)

	if _, err := p.Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
