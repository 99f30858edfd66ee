// Package storage defines persistence contracts for session state.
//
// The core simulation is in-memory; stores persist the durable record
// of a session: its registry entry and its append-only event journal.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
	ErrAlreadyExists = errors.New("record already exists")
)

// SessionRecord stores one session registry entry. Energy and PartCount
// are snapshots taken at the last update.
type SessionRecord struct {
	ID        string
	Energy    float64
	PartCount int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EventRecord stores one session log event. Seq orders events within a
// session and is assigned by the store on append.
type EventRecord struct {
	SessionID   string
	Seq         int64
	Timestamp   time.Time
	Kind        string
	Description string
	PartID      string
}

// SessionStore persists session registry entries and event journals.
type SessionStore interface {
	CreateSession(ctx context.Context, record SessionRecord) error
	GetSession(ctx context.Context, id string) (SessionRecord, error)
	ListSessions(ctx context.Context) ([]SessionRecord, error)
	UpdateSession(ctx context.Context, record SessionRecord) error
	DeleteSession(ctx context.Context, id string) error

	AppendEvent(ctx context.Context, event EventRecord) error
	ListEvents(ctx context.Context, sessionID string) ([]EventRecord, error)
}
