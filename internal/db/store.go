// Package db keeps the history of asked questions in SQLite.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Store holds a single-connection writer and a pooled reader over the same
// WAL-mode database.
type Store struct {
	Writer *sql.DB
	Reader *sql.DB
}

const (
	writerParams = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_synchronous=NORMAL"
	readerParams = "?_busy_timeout=5000&_foreign_keys=on"
)

// Open creates the database and its parent directory if needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	writer, err := sql.Open("sqlite3", "file:"+path+writerParams)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}
	writer.SetMaxOpenConns(1)

	s := &Store{Writer: writer}
	if err := s.createSchema(); err != nil {
		writer.Close()
		return nil, err
	}

	reader, err := sql.Open("sqlite3", "file:"+path+readerParams)
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("open reader: %w", err)
	}
	reader.SetMaxOpenConns(4)
	s.Reader = reader
	return s, nil
}

func (s *Store) Close() error {
	var firstErr error
	if s.Reader != nil {
		if err := s.Reader.Close(); err != nil {
			firstErr = err
		}
	}
	if s.Writer != nil {
		if err := s.Writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
