package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vinodyk/patient-appointments/pkg/logging"
	"github.com/vinodyk/patient-appointments/pkg/model"
)

// Manager coordinates session access on top of a StorageBackend. It adds
// per-session mutexes so that at most one pipeline run is active per session
// ID, while unrelated sessions proceed in parallel.
type Manager struct {
	backend StorageBackend
	log     logging.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a manager over the given backend.
func NewManager(backend StorageBackend, log logging.Logger) *Manager {
	if log == nil {
		log = logging.NoOp{}
	}
	return &Manager{
		backend: backend,
		log:     log.With("component", "session"),
		locks:   make(map[string]*sync.Mutex),
	}
}

// Lock acquires the per-session mutex for id, creating it on first use.
// Callers must pair every Lock with an Unlock of the same id.
func (m *Manager) Lock(id string) {
	m.mu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	m.mu.Unlock()

	l.Lock()
}

// Unlock releases the per-session mutex for id.
func (m *Manager) Unlock(id string) {
	m.mu.Lock()
	l, ok := m.locks[id]
	m.mu.Unlock()

	if ok {
		l.Unlock()
	}
}

// GetOrCreate loads the session with the given ID, creating it when absent.
// An empty ID always creates a fresh session under a generated UUID. The
// patient ID, when non-empty, is recorded on newly created sessions.
func (m *Manager) GetOrCreate(ctx context.Context, id, patientID string) (*Session, error) {
	if id != "" {
		s, err := m.backend.Load(ctx, id)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, ErrSessionNotFound) {
			return nil, fmt.Errorf("load session %s: %w", id, err)
		}
	}

	s := New(id)
	if patientID != "" {
		s.Patient = &model.PatientProfile{PatientID: patientID}
	}
	if err := m.backend.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("create session %s: %w", s.ID, err)
	}
	m.log.Debug("session created", "session_id", s.ID)
	return s, nil
}

// Get loads an existing session.
// Returns ErrSessionNotFound when the session doesn't exist.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	return m.backend.Load(ctx, id)
}

// Snapshot returns a read-only copy of the session for inspection endpoints.
func (m *Manager) Snapshot(ctx context.Context, id string) (*Session, error) {
	s, err := m.backend.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

// Commit atomically replaces the stored session with the given working copy.
func (m *Manager) Commit(ctx context.Context, s *Session) error {
	s.Touch()
	if err := m.backend.Save(ctx, s); err != nil {
		return fmt.Errorf("commit session %s: %w", s.ID, err)
	}
	return nil
}

// Delete removes a session. Deleting an unknown ID is a no-op.
func (m *Manager) Delete(ctx context.Context, id string) error {
	err := m.backend.Delete(ctx, id)
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// Len reports the number of stored sessions.
func (m *Manager) Len(ctx context.Context) (int, error) {
	ids, err := m.backend.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// List returns the IDs of all stored sessions.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.backend.List(ctx)
}

// Ping checks backend availability.
func (m *Manager) Ping(ctx context.Context) error {
	return m.backend.Ping(ctx)
}

// Close releases the underlying backend.
func (m *Manager) Close() error {
	return m.backend.Close()
}
