// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides conversation persistence for rigchat.
//
// Conversations, the models known to the client and every message are kept
// in a single SQLite database using the pure Go modernc.org/sqlite driver.
//
// # Key Types
//
//   - Store: SQLite-backed store for conversations, models and messages
//   - StoreError: not-found errors, comparable with errors.Is
//
// # Usage
//
//	store, err := storage.Open(storage.DefaultPath())
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	conv, err := store.CreateConversation(ctx, "Ideas", "llama3.2")
//	msgs, err := store.Messages(ctx, conv.ID)
//
// # Storage Location
//
// The database lives at ~/.rigchat/rigchat.db unless configured otherwise.
package storage
