package session

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// Common errors for storage operations.
var (
	// ErrSessionNotFound is returned when a session doesn't exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrStorageClosed is returned when operating on a closed storage backend.
	ErrStorageClosed = errors.New("storage backend is closed")
)

// StorageBackend abstracts session persistence.
// Implementations must be safe for concurrent use.
type StorageBackend interface {
	// Save creates or replaces a session.
	Save(ctx context.Context, s *Session) error

	// Load retrieves a session by ID.
	// Returns ErrSessionNotFound if the session doesn't exist.
	Load(ctx context.Context, id string) (*Session, error)

	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error

	// List returns the IDs of all stored sessions.
	List(ctx context.Context) ([]string, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the backend.
	Close() error
}

// MemoryBackend implements StorageBackend with an in-process map.
// It is the default backend; sessions do not survive a restart.
type MemoryBackend struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		sessions: make(map[string]*Session),
	}
}

// Save stores a deep copy so later caller mutations cannot leak in.
func (b *MemoryBackend) Save(ctx context.Context, s *Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrStorageClosed
	}
	b.sessions[s.ID] = s.Clone()
	return nil
}

// Load returns a deep copy of the stored session.
func (b *MemoryBackend) Load(ctx context.Context, id string) (*Session, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrStorageClosed
	}
	s, ok := b.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.Clone(), nil
}

// Delete removes a session if present.
func (b *MemoryBackend) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrStorageClosed
	}
	delete(b.sessions, id)
	return nil
}

// List returns all session IDs in sorted order.
func (b *MemoryBackend) List(ctx context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrStorageClosed
	}
	ids := make([]string, 0, len(b.sessions))
	for id := range b.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Ping reports whether the backend accepts operations.
func (b *MemoryBackend) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrStorageClosed
	}
	return nil
}

// Close marks the backend closed and drops all sessions.
func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.sessions = nil
	return nil
}
