// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the rigchat command line, built with cobra.
//
// Every command runs on the same chat core: it loads the configuration,
// opens the log file and the SQLite store, and builds a coordinator bound to
// the Ollama backend. The commands differ only in how they present it.
//
// # Commands
//
//   - rigchat: full-screen chat (Bubble Tea)
//   - rigchat status: connection check and installed models
//   - rigchat chats list|new|rename|delete|export: manage conversations
//   - rigchat ask: one prompt, streamed to stdout
//   - rigchat repl: line-edited chat with history
//   - rigchat config show|path|get|set|init: the configuration file
//
// # Usage
//
//	if err := cli.Execute(ctx); err != nil {
//	    fmt.Fprintln(os.Stderr, err)
//	    os.Exit(1)
//	}
package cli
