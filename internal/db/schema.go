package db

import (
	"fmt"
)

const schemaVersion = 1

const schemaSQL = `
CREATE TABLE IF NOT EXISTS schema_version (
    version    INTEGER NOT NULL,
    applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
);

CREATE TABLE IF NOT EXISTS asks (
    id            TEXT PRIMARY KEY,
    provider      TEXT NOT NULL CHECK(provider IN ('none', 'codex', 'gemini')),
    tools_enabled INTEGER NOT NULL DEFAULT 0 CHECK(tools_enabled IN (0,1)),
    question      TEXT NOT NULL,
    prompt_text   TEXT NOT NULL,
    reply_text    TEXT NOT NULL DEFAULT '',
    insert_text   TEXT NOT NULL DEFAULT '',
    status        TEXT NOT NULL CHECK(status IN ('completed','failed')),
    error_kind    TEXT NOT NULL DEFAULT '',
    error_message TEXT NOT NULL DEFAULT '',
    duration_ms   INTEGER NOT NULL DEFAULT 0,
    created_at    TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
    completed_at  TEXT
);

CREATE INDEX IF NOT EXISTS idx_asks_created ON asks(created_at);

CREATE TABLE IF NOT EXISTS rounds (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    ask_id        TEXT NOT NULL REFERENCES asks(id) ON DELETE CASCADE,
    round         INTEGER NOT NULL CHECK(round IN (1,2)),
    prompt_text   TEXT NOT NULL,
    response_text TEXT NOT NULL DEFAULT '',
    tool_calls    INTEGER NOT NULL DEFAULT 0 CHECK(tool_calls >= 0),
    status        TEXT NOT NULL CHECK(status IN ('completed','failed')),
    error_message TEXT NOT NULL DEFAULT '',
    duration_ms   INTEGER NOT NULL DEFAULT 0,
    UNIQUE(ask_id, round)
);

CREATE INDEX IF NOT EXISTS idx_rounds_ask ON rounds(ask_id);
`

func (s *Store) createSchema() error {
	if _, err := s.Writer.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	var count int
	if err := s.Writer.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count); err != nil {
		return fmt.Errorf("check schema version: %w", err)
	}
	if count == 0 {
		if _, err := s.Writer.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("insert schema version: %w", err)
		}
	}
	return nil
}
