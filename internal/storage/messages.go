// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jeranaias/rigchat/internal/model"
)

// Messages returns a conversation's messages in insertion order.
// Unknown conversations yield ErrConversationNotFound.
func (s *Store) Messages(ctx context.Context, conversationID string) ([]model.Message, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM conversations WHERE id = ?`, conversationID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(ErrConversationNotFound, conversationID)
	}
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, prompt, response_state, response_text, response_reason,
		       context, stats, created_at
		FROM messages WHERE conversation_id = ? ORDER BY seq`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	out := []model.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// Message loads a single message.
func (s *Store) Message(ctx context.Context, id string) (model.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, conversation_id, prompt, response_state, response_text, response_reason,
		       context, stats, created_at
		FROM messages WHERE id = ?`, id)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Message{}, notFound(ErrMessageNotFound, id)
	}
	return msg, err
}

// SaveMessage inserts msg or, when its ID is already stored, replaces its
// response, context and statistics. The original position is kept.
func (s *Store) SaveMessage(ctx context.Context, msg model.Message) error {
	ctxJSON, err := json.Marshal(nonNil(msg.Context))
	if err != nil {
		return fmt.Errorf("encode context: %w", err)
	}
	var statsJSON any
	if msg.Stats != nil {
		b, err := json.Marshal(msg.Stats)
		if err != nil {
			return fmt.Errorf("encode stats: %w", err)
		}
		statsJSON = string(b)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM conversations WHERE id = ?`, msg.ConversationID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(ErrConversationNotFound, msg.ConversationID)
	}
	if err != nil {
		return fmt.Errorf("query conversation: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, prompt, response_state, response_text,
		                      response_reason, context, stats, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			response_state = excluded.response_state,
			response_text = excluded.response_text,
			response_reason = excluded.response_reason,
			context = excluded.context,
			stats = excluded.stats`,
		msg.ID, msg.ConversationID, msg.Prompt, msg.Response.State.String(), msg.Response.Text,
		msg.Response.Reason, string(ctxJSON), statsJSON, toUnix(msg.CreatedAt))
	if err != nil {
		return fmt.Errorf("save message %s: %w", msg.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`,
		toUnix(msg.CreatedAt), msg.ConversationID); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}

	return tx.Commit()
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func scanMessage(row rowScanner) (model.Message, error) {
	var (
		msg       model.Message
		state     string
		ctxJSON   string
		statsJSON sql.NullString
		created   int64
	)
	if err := row.Scan(&msg.ID, &msg.ConversationID, &msg.Prompt, &state, &msg.Response.Text,
		&msg.Response.Reason, &ctxJSON, &statsJSON, &created); err != nil {
		return model.Message{}, err
	}

	rs, err := model.ParseResponseState(state)
	if err != nil {
		return model.Message{}, fmt.Errorf("message %s: %w", msg.ID, err)
	}
	msg.Response.State = rs
	msg.CreatedAt = fromUnix(created)

	if err := json.Unmarshal([]byte(ctxJSON), &msg.Context); err != nil {
		return model.Message{}, fmt.Errorf("message %s: decode context: %w", msg.ID, err)
	}
	msg.Context = nonNil(msg.Context)

	if statsJSON.Valid {
		var stats model.Statistics
		if err := json.Unmarshal([]byte(statsJSON.String), &stats); err != nil {
			return model.Message{}, fmt.Errorf("message %s: decode stats: %w", msg.ID, err)
		}
		msg.Stats = &stats
	}

	return msg, nil
}

func nonNil(in []int) []int {
	if in == nil {
		return []int{}
	}
	return in
}
