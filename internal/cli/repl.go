// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/model"
)

// replHistoryFile lives in the config directory.
const replHistoryFile = "repl_history"

// replCommands maps each slash command to its help line.
var replCommands = map[string]string{
	"/help":    "show this help",
	"/chats":   "list chats",
	"/new":     "/new [name]  start a chat with the default model",
	"/open":    "/open <chat>  switch to a chat (number, ID or ID prefix)",
	"/rename":  "/rename <name>  rename the current chat",
	"/model":   "/model <name>  bind the current chat to another model",
	"/history": "print the transcript of the current chat",
	"/retry":   "check the connection again",
	"/quit":    "leave (also /exit or ctrl+d)",
	"/exit":    "",
}

func newReplCmd(flags *globalFlags) *cobra.Command {
	var chatRef string

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Chat line by line with history",
		Long: `Chat in a line-edited prompt. Responses stream as they are generated.

The most recent chat is continued unless --chat is given. Lines starting
with / are commands; type /help to list them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := RequiresTTY("start the REPL"); err != nil {
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

			r := &repl{
				e:   e,
				out: cmd.OutOrStdout(),
				po: promptOutput{
					Out:   cmd.OutOrStdout(),
					Err:   cmd.ErrOrStderr(),
					Width: TerminalWidth(),
				},
			}
			return r.run(ctx, chatRef)
		},
	}
	cmd.Flags().StringVarP(&chatRef, "chat", "c", "", "chat to continue (list number, ID or ID prefix)")
	return cmd
}

// =============================================================================
// REPL LOOP
// =============================================================================

type repl struct {
	e    *env
	out  io.Writer
	po   promptOutput
	line *liner.State
}

func (r *repl) run(ctx context.Context, ref string) error {
	conv, err := r.initialConversation(ctx, ref)
	if err != nil {
		return err
	}

	r.line = liner.NewLiner()
	defer r.line.Close()
	r.line.SetCtrlCAborts(true)
	r.line.SetCompleter(completeCommand)

	historyPath := r.historyPath()
	r.loadHistory(historyPath)
	defer r.saveHistory(historyPath)

	fmt.Fprintln(r.out, TitleStyle.Render("rigchat")+DimStyle.Render(" "+Version+"  /help for commands, ctrl+d to leave"))
	r.open(ctx, conv)

	for {
		if ctx.Err() != nil {
			return nil
		}

		input, err := r.line.Prompt("rigchat> ")
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			fmt.Fprintln(r.out)
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		r.line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			quit, err := r.command(ctx, input)
			if err != nil {
				fmt.Fprintln(r.out, ErrorStyle.Render("Error: ")+err.Error())
			}
			if quit {
				return nil
			}
			continue
		}

		r.send(ctx, input)
	}
}

// send submits a prompt in the current chat.
func (r *repl) send(ctx context.Context, prompt string) {
	coord := r.e.coord
	if !coord.IsInputAllowed() {
		r.printNotice()
		return
	}
	fmt.Fprintln(r.out)
	if _, err := askOnce(ctx, coord, prompt, r.po); err != nil {
		fmt.Fprintln(r.out, ErrorStyle.Render(err.Error()))
	}
	fmt.Fprintln(r.out)
}

// command runs a slash command. It reports whether the REPL should end.
func (r *repl) command(ctx context.Context, input string) (bool, error) {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)
	coord := r.e.coord
	store := r.e.store

	switch name {
	case "/quit", "/exit":
		return true, nil

	case "/help":
		r.printHelp()

	case "/chats":
		convs, err := store.ListConversations(ctx)
		if err != nil {
			return false, err
		}
		active, _ := coord.Active()
		printConversations(r.out, convs, active.ID)

	case "/new":
		conv, err := store.CreateConversation(ctx, arg, r.e.cfg.Ollama.DefaultModel)
		if err != nil {
			return false, err
		}
		r.open(ctx, conv)

	case "/open":
		if arg == "" {
			return false, errors.New("usage: /open <chat>")
		}
		conv, err := resolveConversation(ctx, store, arg)
		if err != nil {
			return false, err
		}
		r.open(ctx, conv)

	case "/rename":
		active, ok := coord.Active()
		if !ok || arg == "" {
			return false, errors.New("usage: /rename <name>")
		}
		if err := store.RenameConversation(ctx, active.ID, arg); err != nil {
			return false, err
		}
		return false, r.refreshActive(ctx, active.ID)

	case "/model":
		active, ok := coord.Active()
		if !ok || arg == "" {
			return false, errors.New("usage: /model <name>")
		}
		if err := store.SetConversationModel(ctx, active.ID, arg); err != nil {
			return false, err
		}
		if err := r.refreshActive(ctx, active.ID); err != nil {
			return false, err
		}
		coord.Wait()
		r.printNotice()

	case "/history":
		r.printHistory()

	case "/retry":
		coord.Retry()
		coord.Wait()
		r.printNotice()

	default:
		return false, fmt.Errorf("unknown command %s (try /help)", name)
	}
	return false, nil
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// initialConversation resolves ref, or picks the most recent chat, or
// creates one.
func (r *repl) initialConversation(ctx context.Context, ref string) (model.Conversation, error) {
	store := r.e.store
	if ref != "" {
		return resolveConversation(ctx, store, ref)
	}
	convs, err := store.ListConversations(ctx)
	if err != nil {
		return model.Conversation{}, err
	}
	if len(convs) > 0 {
		return convs[0], nil
	}
	return store.CreateConversation(ctx, "", r.e.cfg.Ollama.DefaultModel)
}

// open selects conv and prints where the user is. Connection problems are
// printed, not returned, so the user can /retry.
func (r *repl) open(ctx context.Context, conv model.Conversation) {
	err := openConversation(ctx, r.e.coord, conv)

	modelName := conv.ModelName()
	if modelName == "" {
		modelName = "no model"
	}
	fmt.Fprintln(r.out, RenderSeparator(r.po.Width))
	fmt.Fprintf(r.out, "%s  %s  %s\n",
		TitleStyle.Render(conv.DisplayName()),
		DimStyle.Render(modelName),
		DimStyle.Render(fmt.Sprintf("%d messages", len(r.e.coord.Messages()))),
	)
	if err != nil {
		fmt.Fprintln(r.out, WarningStyle.Render(err.Error()))
		fmt.Fprintln(r.out, DimStyle.Render("Type /retry to check again."))
	}
}

// refreshActive reloads the active chat's metadata from the database.
func (r *repl) refreshActive(ctx context.Context, id string) error {
	conv, err := r.e.store.Conversation(ctx, id)
	if err != nil {
		return err
	}
	r.e.coord.UpdateActive(conv)
	fmt.Fprintln(r.out, SuccessStyle.Render("Updated")+" "+conv.DisplayName()+DimStyle.Render(" "+conv.ModelName()))
	return nil
}

// =============================================================================
// OUTPUT
// =============================================================================

func (r *repl) printNotice() {
	notice := r.e.coord.Notice()
	if notice.Text == "" {
		fmt.Fprintln(r.out, SuccessStyle.Render("Ready"))
		return
	}
	fmt.Fprintln(r.out, WarningStyle.Render(notice.Text))
}

func (r *repl) printHelp() {
	names := make([]string, 0, len(replCommands))
	for name, help := range replCommands {
		if help != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintln(r.out, "  "+PromptStyle.Render(fmt.Sprintf("%-9s", name))+" "+DimStyle.Render(replCommands[name]))
	}
}

func (r *repl) printHistory() {
	msgs := r.e.coord.Messages()
	if len(msgs) == 0 {
		fmt.Fprintln(r.out, DimStyle.Render("No messages yet."))
		return
	}
	for _, msg := range msgs {
		fmt.Fprintln(r.out, PromptStyle.Render("> ")+msg.Prompt)
		switch msg.Response.State {
		case model.ResponseFailed:
			if msg.Response.Text != "" {
				fmt.Fprintln(r.out, msg.Response.Text)
			}
			fmt.Fprintln(r.out, ErrorStyle.Render("Failed: "+msg.Response.Reason))
		default:
			fmt.Fprintln(r.out, msg.Response.Text)
		}
		fmt.Fprintln(r.out)
	}
}

// =============================================================================
// LINE EDITING
// =============================================================================

// completeCommand completes slash commands.
func completeCommand(line string) []string {
	if !strings.HasPrefix(line, "/") || strings.Contains(line, " ") {
		return nil
	}
	var out []string
	for name := range replCommands {
		if strings.HasPrefix(name, line) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (r *repl) historyPath() string {
	dir, err := config.ConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, replHistoryFile)
}

func (r *repl) loadHistory(path string) {
	if path == "" {
		return
	}
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	if _, err := r.line.ReadHistory(f); err != nil {
		r.e.log.Debug().Err(err).Msg("failed to read repl history")
	}
}

func (r *repl) saveHistory(path string) {
	if path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		r.e.log.Warn().Err(err).Msg("failed to save repl history")
		return
	}
	defer f.Close()
	if _, err := r.line.WriteHistory(f); err != nil {
		r.e.log.Warn().Err(err).Msg("failed to save repl history")
	}
}
