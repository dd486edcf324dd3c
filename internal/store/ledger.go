// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package store holds the chunk sinks: a SQLite ledger of every chunk the
// pipeline produced and a Qdrant sink that embeds and indexes them.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/the-hive/segmenter/internal/processor"
)

// Event is one processing outcome recorded in the ledger.
type Event struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"` // segmented, failed, skipped
	FileID    string    `json:"file_id"`
	Details   string    `json:"details"`
}

// SQLiteLedger stores chunks per file. Storing a file again replaces its
// previous chunks.
type SQLiteLedger struct {
	db *sql.DB
}

// OpenLedger opens (or creates) the ledger database at path.
func OpenLedger(path string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	db.SetMaxOpenConns(1)

	l := &SQLiteLedger{db: db}
	if err := l.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize ledger schema: %w", err)
	}
	return l, nil
}

func (l *SQLiteLedger) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS documents (
		file_id TEXT PRIMARY KEY,
		chunk_count INTEGER NOT NULL,
		total_sections INTEGER NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS chunks (
		file_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		section_index INTEGER NOT NULL,
		section_header TEXT,
		clause_index INTEGER NOT NULL,
		chunk_type TEXT NOT NULL,
		chunk_tokens INTEGER NOT NULL,
		text TEXT NOT NULL,
		PRIMARY KEY (file_id, seq)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		event_type TEXT NOT NULL,
		file_id TEXT NOT NULL,
		details TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_events_file_id ON events(file_id);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Store implements pipeline.Sink.
func (l *SQLiteLedger) Store(ctx context.Context, fileID string, chunks []processor.Chunk) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE file_id = ?", fileID); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks
		(file_id, seq, section_index, section_header, clause_index, chunk_type, chunk_tokens, text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	sections := 0
	for i, c := range chunks {
		if _, err := stmt.ExecContext(ctx, fileID, i, c.SectionIndex, c.SectionHeader, c.Position, c.Type, c.Tokens, c.Text); err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", i, err)
		}
		if c.TotalSections > sections {
			sections = c.TotalSections
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO documents (file_id, chunk_count, total_sections, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(file_id) DO UPDATE SET chunk_count = excluded.chunk_count,
			total_sections = excluded.total_sections, updated_at = excluded.updated_at`,
		fileID, len(chunks), sections, time.Now()); err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	return tx.Commit()
}

// Chunks returns the stored chunks of fileID in delivery order.
func (l *SQLiteLedger) Chunks(ctx context.Context, fileID string) ([]processor.Chunk, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT c.section_index, c.section_header, c.clause_index, c.chunk_type,
		c.chunk_tokens, c.text, d.total_sections
		FROM chunks c JOIN documents d ON d.file_id = c.file_id
		WHERE c.file_id = ? ORDER BY c.seq`, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []processor.Chunk
	for rows.Next() {
		c := processor.Chunk{Source: fileID}
		var header sql.NullString
		if err := rows.Scan(&c.SectionIndex, &header, &c.Position, &c.Type, &c.Tokens, &c.Text, &c.TotalSections); err != nil {
			return nil, err
		}
		c.SectionHeader = header.String
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// LogEvent records a processing outcome for fileID.
func (l *SQLiteLedger) LogEvent(ctx context.Context, eventType, fileID, details string) error {
	_, err := l.db.ExecContext(ctx,
		"INSERT INTO events (timestamp, event_type, file_id, details) VALUES (?, ?, ?, ?)",
		time.Now(), eventType, fileID, details)
	return err
}

// EventsForFile returns the events of fileID, newest first.
func (l *SQLiteLedger) EventsForFile(ctx context.Context, fileID string) ([]Event, error) {
	rows, err := l.db.QueryContext(ctx,
		"SELECT id, timestamp, event_type, file_id, details FROM events WHERE file_id = ? ORDER BY id DESC",
		fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var details sql.NullString
		if err := rows.Scan(&ev.ID, &ev.Timestamp, &ev.EventType, &ev.FileID, &details); err != nil {
			return nil, err
		}
		ev.Details = details.String
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Close closes the database.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}
