// Package memory provides an in-memory session store for tests and
// ephemeral runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/partswork/engine/internal/storage"
)

// Store keeps session records and event journals in process memory.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]storage.SessionRecord
	events   map[string][]storage.EventRecord
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		sessions: make(map[string]storage.SessionRecord),
		events:   make(map[string][]storage.EventRecord),
	}
}

// CreateSession inserts a session registry entry.
func (s *Store) CreateSession(ctx context.Context, record storage.SessionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[record.ID]; ok {
		return storage.ErrAlreadyExists
	}
	s.sessions[record.ID] = record
	return nil
}

// GetSession returns a session registry entry.
func (s *Store) GetSession(ctx context.Context, id string) (storage.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.SessionRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.sessions[id]
	if !ok {
		return storage.SessionRecord{}, storage.ErrNotFound
	}
	return record, nil
}

// ListSessions returns all registry entries ordered by creation time.
func (s *Store) ListSessions(ctx context.Context) ([]storage.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]storage.SessionRecord, 0, len(s.sessions))
	for _, record := range s.sessions {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

// UpdateSession overwrites an existing registry entry.
func (s *Store) UpdateSession(ctx context.Context, record storage.SessionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[record.ID]; !ok {
		return storage.ErrNotFound
	}
	s.sessions[record.ID] = record
	return nil
}

// DeleteSession removes a session and its event journal.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.sessions, id)
	delete(s.events, id)
	return nil
}

// AppendEvent appends one journal event, assigning the next sequence.
func (s *Store) AppendEvent(ctx context.Context, event storage.EventRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[event.SessionID]; !ok {
		return storage.ErrNotFound
	}
	event.Seq = int64(len(s.events[event.SessionID]) + 1)
	s.events[event.SessionID] = append(s.events[event.SessionID], event)
	return nil
}

// ListEvents returns a session's journal in sequence order.
func (s *Store) ListEvents(ctx context.Context, sessionID string) ([]storage.EventRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return nil, storage.ErrNotFound
	}
	return append([]storage.EventRecord(nil), s.events[sessionID]...), nil
}
