package session

import (
	"context"
	"errors"
	"sync"
)

// ErrSessionNotFound is returned for unknown or already-closed session ids
var ErrSessionNotFound = errors.New("editor session not found")

// Manager tracks the open editor sessions of this studio process
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates an empty session registry
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// DefaultManager is the registry used by the HTTP controllers
var DefaultManager = NewManager()

// Open creates a session and registers it under its id
func (m *Manager) Open(ctx context.Context, opts Options) (*Session, error) {
	s, err := Open(ctx, opts)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s, nil
}

// Get looks a session up by id
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close tears a session down and forgets it
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	return nil
}
