// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigchat/internal/export"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/storage"
	"github.com/jeranaias/rigchat/internal/util"
)

// shortIDLen is how much of a conversation ID is printed in listings.
const shortIDLen = 8

// ErrAmbiguousConversation is returned when a reference matches several chats.
var ErrAmbiguousConversation = errors.New("ambiguous conversation reference")

// =============================================================================
// CHATS COMMAND
// =============================================================================

func newChatsCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "chats",
		Aliases: []string{"chat"},
		Short:   "Manage conversations",
		Long: `List, create, rename, delete and export conversations.

A conversation can be referred to by its number in "rigchat chats list",
by its full ID or by the start of its ID.`,
	}
	cmd.AddCommand(
		newChatsListCmd(flags),
		newChatsNewCmd(flags),
		newChatsRenameCmd(flags),
		newChatsDeleteCmd(flags),
		newChatsExportCmd(flags),
	)
	return cmd
}

// withStore runs fn against the database only; no coordinator is built.
func withStore(cmd *cobra.Command, flags *globalFlags, fn func(ctx context.Context, se *storeEnv) error) error {
	cfg, _, err := loadConfig(flags)
	if err != nil {
		return err
	}
	store, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(cmd.Context(), &storeEnv{store: store, defaultModel: cfg.Ollama.DefaultModel})
}

type storeEnv struct {
	store        *storage.Store
	defaultModel string
}

func newChatsListCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List conversations, most recent first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, flags, func(ctx context.Context, se *storeEnv) error {
				convs, err := se.store.ListConversations(ctx)
				if err != nil {
					return err
				}
				printConversations(cmd.OutOrStdout(), convs, "")
				return nil
			})
		},
	}
}

func newChatsNewCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "new [name]",
		Short: "Create a conversation bound to the default model (see --model)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, flags, func(ctx context.Context, se *storeEnv) error {
				name := ""
				if len(args) == 1 {
					name = args[0]
				}
				conv, err := se.store.CreateConversation(ctx, name, se.defaultModel)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Created")+" "+conv.DisplayName()+" "+DimStyle.Render(conv.ID))
				return nil
			})
		},
	}
}

func newChatsRenameCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <chat> <name>",
		Short: "Rename a conversation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, flags, func(ctx context.Context, se *storeEnv) error {
				conv, err := resolveConversation(ctx, se.store, args[0])
				if err != nil {
					return err
				}
				if err := se.store.RenameConversation(ctx, conv.ID, args[1]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Renamed")+" "+conv.DisplayName()+" -> "+strings.TrimSpace(args[1]))
				return nil
			})
		},
	}
}

func newChatsDeleteCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <chat>",
		Aliases: []string{"rm"},
		Short:   "Delete a conversation and its transcript",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, flags, func(ctx context.Context, se *storeEnv) error {
				conv, err := resolveConversation(ctx, se.store, args[0])
				if err != nil {
					return err
				}
				if err := se.store.DeleteConversation(ctx, conv.ID); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Deleted")+" "+conv.DisplayName())
				return nil
			})
		},
	}
}

func newChatsExportCmd(flags *globalFlags) *cobra.Command {
	var (
		format     string
		outputDir  string
		toStdout   bool
		noMetadata bool
	)
	cmd := &cobra.Command{
		Use:   "export <chat>",
		Short: "Write a conversation to a Markdown or JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, flags, func(ctx context.Context, se *storeEnv) error {
				conv, err := resolveConversation(ctx, se.store, args[0])
				if err != nil {
					return err
				}
				msgs, err := se.store.Messages(ctx, conv.ID)
				if err != nil {
					return err
				}

				opts := export.DefaultOptions()
				opts.OutputDir = outputDir
				opts.IncludeMetadata = !noMetadata
				opts.IncludeTimestamps = !noMetadata
				exporter, err := export.New(format, opts)
				if err != nil {
					return err
				}

				transcript := &export.Transcript{Conversation: conv, Messages: msgs}
				if toStdout {
					data, err := exporter.Export(transcript)
					if err != nil {
						return err
					}
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}

				path, err := export.ExportToFile(transcript, exporter, opts)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Exported")+" "+path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "markdown or json")
	cmd.Flags().StringVarP(&outputDir, "output", "o", ".", "directory to write to")
	cmd.Flags().BoolVar(&toStdout, "stdout", false, "write to stdout instead of a file")
	cmd.Flags().BoolVar(&noMetadata, "no-metadata", false, "leave out frontmatter, timestamps and statistics")
	return cmd
}

// =============================================================================
// HELPERS
// =============================================================================

// conversationLister is the part of the store used to resolve references.
type conversationLister interface {
	ListConversations(ctx context.Context) ([]model.Conversation, error)
}

// resolveConversation finds a conversation by list number, full ID or ID
// prefix. The "conv_" prefix of IDs may be left out.
func resolveConversation(ctx context.Context, store conversationLister, ref string) (model.Conversation, error) {
	ref = strings.TrimSpace(ref)
	convs, err := store.ListConversations(ctx)
	if err != nil {
		return model.Conversation{}, err
	}

	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(convs) {
		return convs[n-1], nil
	}

	var matches []model.Conversation
	for _, c := range convs {
		if c.ID == ref {
			return c, nil
		}
		if ref != "" && (strings.HasPrefix(c.ID, ref) || strings.HasPrefix(shortID(c.ID), ref)) {
			matches = append(matches, c)
		}
	}
	switch len(matches) {
	case 0:
		return model.Conversation{}, fmt.Errorf("%w: %s", storage.ErrConversationNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return model.Conversation{}, fmt.Errorf("%w: %q matches %d chats", ErrAmbiguousConversation, ref, len(matches))
	}
}

// shortID strips the "conv_" prefix and keeps the first few characters.
func shortID(id string) string {
	id = strings.TrimPrefix(id, "conv_")
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

// printConversations prints a numbered listing; activeID is marked.
func printConversations(out io.Writer, convs []model.Conversation, activeID string) {
	if len(convs) == 0 {
		fmt.Fprintln(out, DimStyle.Render("No chats yet. Create one with: rigchat chats new"))
		return
	}
	for i, c := range convs {
		marker := "  "
		if c.ID == activeID {
			marker = "* "
		}
		modelName := c.ModelName()
		if modelName == "" {
			modelName = "no model"
		}
		name := util.PadRight(util.TruncateWidth(c.DisplayName(), 30), 30)
		fmt.Fprintf(out, "%s%3d  %s  %s  %s  %s\n",
			marker,
			i+1,
			DimStyle.Render(shortID(c.ID)),
			ValueStyle.Render(name),
			DimStyle.Render(util.PadRight(modelName, 20)),
			DimStyle.Render(c.UpdatedAt.Local().Format(time.DateTime)),
		)
	}
}
