// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/util"
)

func newStatusCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the Ollama connection and list installed models",
		Long: `Check that the Ollama server answers and list the models it has installed.

The model list is saved to the local database so chats can show which
models are available.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			e, err := openEnv(ctx, flags, true)
			if err != nil {
				cancel()
				return err
			}
			defer func() {
				cancel()
				e.Close()
			}()
			return runStatus(cmd, e)
		},
	}
}

func runStatus(cmd *cobra.Command, e *env) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	gate := e.coord.Gate()

	fmt.Fprintln(out, TitleStyle.Render("Ollama"))
	fmt.Fprintln(out, RenderField("URL", e.client.BaseURL()))

	if state := gate.CheckConnection(ctx); state != model.ConnectionConnected {
		fmt.Fprintln(out, RenderField("Connection", RenderStatus("error")))
		if err := gate.Err(); err != nil {
			return err
		}
		return fmt.Errorf("ollama connection %s", state)
	}
	fmt.Fprintln(out, RenderField("Connection", RenderStatus("connected")))

	installed, err := gate.FetchModels(ctx)
	if err != nil {
		return err
	}
	if err := e.store.SyncModels(ctx, installed); err != nil {
		e.log.Warn().Err(err).Msg("failed to save model list")
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, TitleStyle.Render(fmt.Sprintf("Models (%d)", len(installed))))
	if len(installed) == 0 {
		fmt.Fprintln(out, DimStyle.Render("No models installed. Try: ollama pull llama3.2"))
		return nil
	}
	for i := range installed {
		m := &installed[i]
		detail := m.Family
		if m.Size > 0 {
			if detail != "" {
				detail += ", "
			}
			detail += m.FormatSize()
		}
		fmt.Fprintln(out, "  "+ValueStyle.Render(util.PadRight(m.Name, 32))+DimStyle.Render(detail))
	}
	return nil
}
