// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/ui/components"
	"github.com/jeranaias/rigchat/internal/ui/styles"
	"github.com/jeranaias/rigchat/internal/util"
)

// chatNameRunes bounds the name of a chat created from a prompt.
const chatNameRunes = 40

// ErrNoModel is returned when a new chat would have no model to talk to.
var ErrNoModel = errors.New("no model given: pass --model or set ollama.default_model in the config")

func newAskCmd(flags *globalFlags) *cobra.Command {
	var (
		chatRef  string
		markdown bool
	)

	cmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Send one prompt and stream the response",
		Long: `Send one prompt and stream the response to stdout.

Without --chat a new chat named after the prompt is created. When no prompt
is given on the command line it is read from stdin.`,
		Example: `  rigchat ask --model llama3.2 "Why is the sky blue?"
  rigchat ask --chat 1 "And at sunset?"
  git diff | rigchat ask -m qwen2.5-coder "Review this change"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := readPrompt(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

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

			conv, err := askConversation(ctx, e, chatRef, prompt)
			if err != nil {
				return err
			}
			if err := openConversation(ctx, e.coord, conv); err != nil {
				return err
			}

			po := promptOutput{
				Out:   cmd.OutOrStdout(),
				Err:   cmd.ErrOrStderr(),
				Width: TerminalWidth(),
			}
			if markdown && IsStdoutTTY() {
				theme := styles.NewTheme(e.cfg.UI.Theme)
				po.Markdown = components.NewMarkdown(theme.GlamourStyle())
			}
			_, err = askOnce(ctx, e.coord, prompt, po)
			return err
		},
	}

	cmd.Flags().StringVarP(&chatRef, "chat", "c", "", "continue a chat (list number, ID or ID prefix)")
	cmd.Flags().BoolVar(&markdown, "markdown", false, "render the finished response as markdown instead of streaming it")
	return cmd
}

// readPrompt joins the arguments, or reads stdin when there are none.
func readPrompt(in io.Reader, args []string) (string, error) {
	prompt := strings.Join(args, " ")
	if len(args) == 0 && !IsTTY() {
		data, err := io.ReadAll(in)
		if err != nil {
			return "", fmt.Errorf("read prompt: %w", err)
		}
		prompt = string(data)
	}
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("no prompt given")
	}
	return prompt, nil
}

// askConversation resolves --chat, or creates a chat named after prompt.
func askConversation(ctx context.Context, e *env, ref, prompt string) (model.Conversation, error) {
	if ref != "" {
		return resolveConversation(ctx, e.store, ref)
	}
	if e.cfg.Ollama.DefaultModel == "" {
		return model.Conversation{}, ErrNoModel
	}
	name := util.TruncateRunes(util.FirstLine(prompt), chatNameRunes)
	return e.store.CreateConversation(ctx, name, e.cfg.Ollama.DefaultModel)
}
