package store

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store for tests.
type MemoryStore struct {
	mu      sync.Mutex
	counter Counter
	closed  bool

	// LoadError, if set, is returned by Load.
	LoadError error

	// SaveError, if set, is returned by every Save call.
	SaveError error

	// Saves counts successful Save calls.
	Saves int
}

// NewMemory creates a MemoryStore seeded with c.
func NewMemory(c Counter) *MemoryStore {
	return &MemoryStore{counter: c}
}

// Load returns the stored counter.
func (m *MemoryStore) Load(_ context.Context) (Counter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Counter{}, ErrClosed
	}
	if m.LoadError != nil {
		return Counter{}, m.LoadError
	}
	return m.counter, nil
}

// SaveAccumulated stores ms unless it is lower than the current value.
func (m *MemoryStore) SaveAccumulated(_ context.Context, ms int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writable(); err != nil {
		return err
	}
	if ms > m.counter.AccumulatedMs {
		m.counter.AccumulatedMs = ms
	}
	m.Saves++
	return nil
}

// SaveActivated stores the activated flag.
func (m *MemoryStore) SaveActivated(_ context.Context, activated bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writable(); err != nil {
		return err
	}
	m.counter.Activated = activated
	m.Saves++
	return nil
}

// Counter returns the stored counter without error checks.
func (m *MemoryStore) Counter() Counter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counter
}

// SetSaveError changes SaveError under the lock.
func (m *MemoryStore) SetSaveError(err error) {
	m.mu.Lock()
	m.SaveError = err
	m.mu.Unlock()
}

// Close marks the store closed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) writable() error {
	if m.closed {
		return ErrClosed
	}
	return m.SaveError
}
