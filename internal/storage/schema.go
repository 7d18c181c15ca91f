// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

const (
	// SchemaVersion tracks the database schema version for migrations
	SchemaVersion = 1
)

// Schema is the SQLite schema for the chat store.
const Schema = `
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

-- Models known to the client, installed or not
CREATE TABLE IF NOT EXISTS models (
    name TEXT PRIMARY KEY,
    availability TEXT NOT NULL DEFAULT 'not_available',
    size INTEGER NOT NULL DEFAULT 0,
    family TEXT NOT NULL DEFAULT '',
    modified_at INTEGER NOT NULL DEFAULT 0  -- Unix nanoseconds
);

CREATE TABLE IF NOT EXISTS conversations (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    model_name TEXT,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    FOREIGN KEY(model_name) REFERENCES models(name) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at);

-- seq preserves insertion order; upserts keep the original seq
CREATE TABLE IF NOT EXISTS messages (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    conversation_id TEXT NOT NULL,
    prompt TEXT NOT NULL,
    response_state TEXT NOT NULL,
    response_text TEXT NOT NULL DEFAULT '',
    response_reason TEXT NOT NULL DEFAULT '',
    context TEXT NOT NULL DEFAULT '[]',     -- JSON array of ints
    stats TEXT,                             -- JSON, NULL until complete
    created_at INTEGER NOT NULL,
    FOREIGN KEY(conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq);
`

// InitMetadata seeds the metadata table.
const InitMetadata = `
INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', '1');
`
