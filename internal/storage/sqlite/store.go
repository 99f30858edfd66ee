// Package sqlite provides a SQLite-backed session store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/partswork/engine/internal/storage"
)

// Store persists session registry entries and event journals in SQLite.
type Store struct {
	sqlDB *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
  id         TEXT PRIMARY KEY,
  energy     REAL NOT NULL,
  part_count INTEGER NOT NULL,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS session_events (
  session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
  seq         INTEGER NOT NULL,
  timestamp   INTEGER NOT NULL,
  kind        TEXT NOT NULL,
  description TEXT NOT NULL,
  part_id     TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (session_id, seq)
);
`

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite session store and ensures the schema exists.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// CreateSession inserts one session registry entry.
func (s *Store) CreateSession(ctx context.Context, record storage.SessionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if record.ID == "" {
		return fmt.Errorf("session id is required")
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	updatedAt := record.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO sessions (id, energy, part_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		record.ID,
		record.Energy,
		record.PartCount,
		toMillis(createdAt),
		toMillis(updatedAt),
	)
	if err != nil {
		if isConstraintErr(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession returns one session registry entry.
func (s *Store) GetSession(ctx context.Context, id string) (storage.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.SessionRecord{}, err
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, energy, part_count, created_at, updated_at FROM sessions WHERE id = ?`,
		id,
	)
	return scanSession(row)
}

// ListSessions returns all registry entries ordered by creation time.
func (s *Store) ListSessions(ctx context.Context) ([]storage.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, energy, part_count, created_at, updated_at FROM sessions ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var records []storage.SessionRecord
	for rows.Next() {
		record, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}
	return records, nil
}

// UpdateSession overwrites an existing registry entry.
func (s *Store) UpdateSession(ctx context.Context, record storage.SessionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	updatedAt := record.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE sessions SET energy = ?, part_count = ?, updated_at = ? WHERE id = ?`,
		record.Energy,
		record.PartCount,
		toMillis(updatedAt),
		record.ID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteSession removes a session and its journal.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// AppendEvent appends one journal event with the next sequence number.
func (s *Store) AppendEvent(ctx context.Context, event storage.EventRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timestamp := event.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}
	result, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO session_events (session_id, seq, timestamp, kind, description, part_id)
		 SELECT id, COALESCE((SELECT MAX(seq) FROM session_events WHERE session_id = ?), 0) + 1, ?, ?, ?, ?
		 FROM sessions WHERE id = ?`,
		event.SessionID,
		toMillis(timestamp),
		event.Kind,
		event.Description,
		event.PartID,
		event.SessionID,
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("append event rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListEvents returns a session's journal in sequence order.
func (s *Store) ListEvents(ctx context.Context, sessionID string) ([]storage.EventRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT session_id, seq, timestamp, kind, description, part_id
		 FROM session_events WHERE session_id = ? ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []storage.EventRecord
	for rows.Next() {
		var event storage.EventRecord
		var millis int64
		if err := rows.Scan(&event.SessionID, &event.Seq, &millis, &event.Kind, &event.Description, &event.PartID); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		event.Timestamp = fromMillis(millis)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}
	return events, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (storage.SessionRecord, error) {
	var record storage.SessionRecord
	var createdAt, updatedAt int64
	err := row.Scan(&record.ID, &record.Energy, &record.PartCount, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.SessionRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.SessionRecord{}, fmt.Errorf("scan session: %w", err)
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

func isConstraintErr(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3lib.SQLITE_CONSTRAINT ||
			code == sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY ||
			code == sqlite3lib.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
