// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"

	"github.com/spf13/cobra"

	uichat "github.com/jeranaias/rigchat/internal/ui/chat"
)

// runTUI opens the full-screen chat.
func runTUI(cmd *cobra.Command, flags *globalFlags) error {
	if err := RequiresTTY("open the chat screen"); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	e, err := openEnv(ctx, flags, false)
	if err != nil {
		cancel()
		return err
	}
	defer func() {
		cancel()
		e.Close()
	}()

	if w := e.watchConfig(flags); w != nil {
		defer w.Close()
	}

	return uichat.Run(ctx, e.coord, e.store, uichat.Options{
		Theme:          e.cfg.UI.Theme,
		RenderMarkdown: e.cfg.UI.RenderMarkdown,
		DefaultModel:   e.cfg.Ollama.DefaultModel,
		Logger:         e.log.Component("tui"),
	})
}
