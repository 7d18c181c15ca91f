// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations, models and messages.
//
// These are plain value types shared by the chat core, the storage layer and
// the front-ends. They carry no locks; whoever owns a value is responsible for
// synchronizing access to it.
//
// # Key Types
//
//   - Conversation: a named chat, optionally bound to a Model
//   - Model: an Ollama model and whether it is installed on the server
//   - Message: one prompt/response exchange plus its continuation context
//   - Response: tagged variant (Pending, Streaming, Complete, Failed)
//   - ConnectionState, GenerationState: observable states of the chat core
//
// # Usage
//
//	conv := model.NewConversation("Ideas", &model.Model{Name: "llama3.2"})
//	msg := model.NewMessage(conv.ID, "hi", nil)
//	msg.Response = msg.Response.Append("Hel").Append("lo").Complete()
package model
