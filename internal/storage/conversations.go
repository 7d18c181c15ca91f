// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/rigchat/internal/model"
)

const conversationColumns = `
	c.id, c.name, c.created_at, c.updated_at,
	m.name, m.availability, m.size, m.family, m.modified_at`

const conversationFrom = `
	FROM conversations c
	LEFT JOIN models m ON m.name = c.model_name`

// =============================================================================
// CONVERSATION OPERATIONS
// =============================================================================

// CreateConversation stores a new conversation bound to modelName (may be "").
func (s *Store) CreateConversation(ctx context.Context, name, modelName string) (model.Conversation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = model.DefaultConversationName
	}
	conv := model.NewConversation(name, nil)

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Conversation{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var modelArg any
	if modelName != "" {
		if err := ensureModel(ctx, tx, modelName); err != nil {
			return model.Conversation{}, fmt.Errorf("ensure model: %w", err)
		}
		modelArg = modelName
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO conversations (id, name, model_name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		conv.ID, conv.Name, modelArg, toUnix(conv.CreatedAt), toUnix(conv.UpdatedAt))
	if err != nil {
		return model.Conversation{}, fmt.Errorf("insert conversation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Conversation{}, err
	}

	return s.Conversation(ctx, conv.ID)
}

// Conversation loads a conversation with its bound model.
func (s *Store) Conversation(ctx context.Context, id string) (model.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+conversationColumns+conversationFrom+` WHERE c.id = ?`, id)
	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Conversation{}, notFound(ErrConversationNotFound, id)
	}
	return conv, err
}

// ListConversations returns all conversations, most recently updated first.
func (s *Store) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+conversationColumns+conversationFrom+` ORDER BY c.updated_at DESC, c.id`)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var out []model.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, rows.Err()
}

// RenameConversation changes a conversation's name.
func (s *Store) RenameConversation(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		name = model.DefaultConversationName
	}
	return s.updateConversation(ctx, id, `UPDATE conversations SET name = ?, updated_at = ? WHERE id = ?`,
		name, toUnix(time.Now()), id)
}

// SetConversationModel binds the conversation to modelName; "" unbinds it.
func (s *Store) SetConversationModel(ctx context.Context, id, modelName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var modelArg any
	if modelName != "" {
		if err := ensureModel(ctx, tx, modelName); err != nil {
			return fmt.Errorf("ensure model: %w", err)
		}
		modelArg = modelName
	}

	res, err := tx.ExecContext(ctx, `UPDATE conversations SET model_name = ?, updated_at = ? WHERE id = ?`,
		modelArg, toUnix(time.Now()), id)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(ErrConversationNotFound, id)
	}
	return tx.Commit()
}

// DeleteConversation removes a conversation and all of its messages.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	return s.updateConversation(ctx, id, `DELETE FROM conversations WHERE id = ?`, id)
}

func (s *Store) updateConversation(ctx context.Context, id, query string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update conversation %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(ErrConversationNotFound, id)
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (model.Conversation, error) {
	var (
		conv             model.Conversation
		created, updated int64
		mName, mAvail    sql.NullString
		mFamily          sql.NullString
		mSize, mModified sql.NullInt64
	)
	if err := row.Scan(&conv.ID, &conv.Name, &created, &updated,
		&mName, &mAvail, &mSize, &mFamily, &mModified); err != nil {
		return model.Conversation{}, err
	}
	conv.CreatedAt = fromUnix(created)
	conv.UpdatedAt = fromUnix(updated)

	if mName.Valid {
		conv.Model = &model.Model{
			Name:         mName.String,
			Availability: model.Availability(mAvail.String),
			Size:         mSize.Int64,
			Family:       mFamily.String,
			ModifiedAt:   fromUnix(mModified.Int64),
		}
	}
	return conv, nil
}
