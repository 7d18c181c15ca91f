// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	core "github.com/jeranaias/rigchat/internal/chat"
	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/logging"
	"github.com/jeranaias/rigchat/internal/ollama"
	"github.com/jeranaias/rigchat/internal/storage"
)

// Version information, set by main.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	url        string
	model      string
	dbPath     string
	logLevel   string
	verbose    bool
}

// =============================================================================
// COMMAND TREE
// =============================================================================

// NewRootCmd builds the rigchat command tree.
func NewRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "rigchat",
		Short: "Chat with local models served by Ollama",
		Long: `rigchat is a terminal chat client for a local Ollama server.

Run without arguments to open the full-screen chat. Conversations and their
transcripts are kept in a local SQLite database.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, flags)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default ~/.rigchat/config.toml)")
	pf.StringVar(&flags.url, "url", "", "Ollama server URL")
	pf.StringVarP(&flags.model, "model", "m", "", "default model for new chats")
	pf.StringVar(&flags.dbPath, "db", "", "database path (default ~/.rigchat/rigchat.db)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "also write logs to stderr")

	root.AddCommand(
		newStatusCmd(flags),
		newChatsCmd(flags),
		newAskCmd(flags),
		newReplCmd(flags),
		newConfigCmd(flags),
	)
	return root
}

// Execute runs the command line. ctx is cancelled on interrupt.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// =============================================================================
// ENVIRONMENT
// =============================================================================

// env is everything a command needs to talk to the chat core.
type env struct {
	cfg     *config.Config
	cfgPath string
	log     *logging.Logger
	store   *storage.Store
	client  *ollama.Client
	coord   *core.Coordinator
}

// loadConfig reads the config file named by the flags (or the default one)
// and applies flag overrides on top.
func loadConfig(flags *globalFlags) (*config.Config, string, error) {
	var (
		cfg  *config.Config
		path = flags.configPath
		err  error
	)
	if path == "" {
		cfg, err = config.Load()
		if p, pathErr := config.ConfigPath(); pathErr == nil {
			path = p
		}
	} else {
		cfg, err = config.LoadFromPath(path)
	}
	if err != nil {
		return nil, "", err
	}

	if flags.url != "" {
		cfg.Ollama.URL = flags.url
	}
	if flags.model != "" {
		cfg.Ollama.DefaultModel = flags.model
	}
	if flags.dbPath != "" {
		cfg.Storage.Path = flags.dbPath
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid config: %w", err)
	}
	return cfg, path, nil
}

// openEnv loads the configuration and opens the log, the database and the
// coordinator. Background work is bound to ctx.
func openEnv(ctx context.Context, flags *globalFlags, consoleLog bool) (*env, error) {
	cfg, path, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}

	log, err := logging.New(logging.Config{
		Path:    cfg.Log.Path,
		Level:   cfg.Log.Level,
		Console: consoleLog && flags.verbose,
		Out:     os.Stderr,
	})
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		log.Close()
		return nil, err
	}

	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:      cfg.Ollama.URL,
		Timeout:      cfg.Ollama.ConnectTimeout.Duration,
		DefaultModel: cfg.Ollama.DefaultModel,
	})
	coord := core.New(ctx, core.NewOllamaBackend(client), store, core.Options{
		Logger:          log.Component("chat"),
		ConnectTimeout:  cfg.Ollama.ConnectTimeout.Duration,
		GenerateTimeout: cfg.Ollama.GenerateTimeout.Duration,
		DefaultModel:    cfg.Ollama.DefaultModel,
	})

	log.Info().
		Str("url", cfg.Ollama.URL).
		Str("db", store.Path()).
		Str("version", Version).
		Msg("rigchat started")

	return &env{
		cfg:     cfg,
		cfgPath: path,
		log:     log,
		store:   store,
		client:  client,
		coord:   coord,
	}, nil
}

// Close waits for generations to finish saving, then releases resources.
// Cancel the context passed to openEnv first to stop them.
func (e *env) Close() {
	e.coord.Wait()
	e.coord.Close()
	if err := e.store.Close(); err != nil {
		e.log.Error().Err(err).Msg("failed to close database")
	}
	e.log.Close()
}

// watchConfig hot-reloads the Ollama URL from the config file. A changed
// URL re-checks the connection of the selected chat.
func (e *env) watchConfig(flags *globalFlags) *config.Watcher {
	if e.cfgPath == "" || flags.url != "" {
		return nil
	}
	if _, err := os.Stat(e.cfgPath); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	w, err := config.Watch(e.cfgPath, func(cfg *config.Config) {
		if cfg.Ollama.URL == e.client.BaseURL() {
			return
		}
		e.log.Info().Str("url", cfg.Ollama.URL).Msg("ollama url changed")
		e.client.SetBaseURL(cfg.Ollama.URL)
		e.coord.Retry()
	}, func(err error) {
		e.log.Warn().Err(err).Msg("config reload failed")
	})
	if err != nil {
		e.log.Warn().Err(err).Msg("config watch unavailable")
		return nil
	}
	return w
}
