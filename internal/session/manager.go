package session

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/partswork/engine/internal/storage"
)

var (
	// ErrSessionNotFound indicates the named session is not registered.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidFraction indicates a blend fraction or override outside
	// the unit interval.
	ErrInvalidFraction = errors.New("blend fraction must be between 0 and 1")
)

// Manager holds the live sessions in a process and hands out handles
// by ID.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	store    storage.SessionStore
	opts     []Option
}

// NewManager returns a manager that applies the given base options to
// every session it creates. The store, when non-nil, is attached to
// each session and receives its journal.
func NewManager(store storage.SessionStore, opts ...Option) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		store:    store,
		opts:     opts,
	}
}

// Create builds and registers a new session.
func (m *Manager) Create(ctx context.Context, opts ...Option) (*Session, error) {
	combined := make([]Option, 0, len(m.opts)+len(opts)+1)
	combined = append(combined, m.opts...)
	combined = append(combined, opts...)
	if m.store != nil {
		combined = append(combined, WithStore(m.store))
	}

	s, err := New(ctx, combined...)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	return s, nil
}

// Get returns a live session by ID.
func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// List returns all live sessions ordered by creation time.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt().Equal(sessions[j].CreatedAt()) {
			return sessions[i].ID() < sessions[j].ID()
		}
		return sessions[i].CreatedAt().Before(sessions[j].CreatedAt())
	})
	return sessions
}

// Delete unregisters a session and removes its durable record.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	_, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	if m.store != nil {
		if err := m.store.DeleteSession(ctx, sessionID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}
	return nil
}
