// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jeranaias/rigchat/internal/model"
)

// Models returns every known model ordered by name.
func (s *Store) Models(ctx context.Context) ([]model.Model, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, availability, size, family, modified_at FROM models ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query models: %w", err)
	}
	defer rows.Close()

	var out []model.Model
	for rows.Next() {
		var (
			m        model.Model
			avail    string
			modified int64
		)
		if err := rows.Scan(&m.Name, &avail, &m.Size, &m.Family, &modified); err != nil {
			return nil, fmt.Errorf("scan model: %w", err)
		}
		m.Availability = model.Availability(avail)
		m.ModifiedAt = fromUnix(modified)
		out = append(out, m)
	}
	return out, rows.Err()
}

// Model returns a single model, or nil when the name is unknown.
func (s *Store) Model(ctx context.Context, name string) (*model.Model, error) {
	var (
		m        = model.Model{Name: name}
		avail    string
		modified int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT availability, size, family, modified_at FROM models WHERE name = ?`, name).
		Scan(&avail, &m.Size, &m.Family, &modified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query model %s: %w", name, err)
	}
	m.Availability = model.Availability(avail)
	m.ModifiedAt = fromUnix(modified)
	return &m, nil
}

// SyncModels upserts every model with its availability. Models absent from
// the list keep their stored row untouched.
func (s *Store) SyncModels(ctx context.Context, models []model.Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO models (name, availability, size, family, modified_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			availability = excluded.availability,
			size = CASE WHEN excluded.size > 0 THEN excluded.size ELSE models.size END,
			family = CASE WHEN excluded.family != '' THEN excluded.family ELSE models.family END,
			modified_at = CASE WHEN excluded.modified_at > 0 THEN excluded.modified_at ELSE models.modified_at END`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, m := range models {
		avail := m.Availability
		if avail == "" {
			avail = model.NotAvailable
		}
		if _, err := stmt.ExecContext(ctx, m.Name, string(avail), m.Size, m.Family, toUnix(m.ModifiedAt)); err != nil {
			return fmt.Errorf("upsert model %s: %w", m.Name, err)
		}
	}

	return tx.Commit()
}

// ensureModel inserts a placeholder row so a conversation can reference a
// model that was never listed by the server.
func ensureModel(ctx context.Context, tx *sql.Tx, name string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO models (name, availability) VALUES (?, ?)`, name, string(model.NotAvailable))
	return err
}
