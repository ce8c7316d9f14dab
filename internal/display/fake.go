package display

import (
	"errors"
	"sync"
)

// FakeSignal is a test double with a settable display state.
type FakeSignal struct {
	mu     sync.Mutex
	on     bool
	n      notifier
	closed bool

	// ReadError, if set, will be returned by IsAnyDisplayOn.
	ReadError error
}

// NewFakeSignal creates a FakeSignal with the given initial state.
func NewFakeSignal(on bool) *FakeSignal {
	return &FakeSignal{on: on, n: newNotifier()}
}

// Set changes the state and notifies subscribers.
func (f *FakeSignal) Set(on bool) {
	f.mu.Lock()
	f.on = on
	f.mu.Unlock()
	f.n.notify()
}

// IsAnyDisplayOn returns the current scripted state.
func (f *FakeSignal) IsAnyDisplayOn() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false, errors.New("display: signal closed")
	}
	if f.ReadError != nil {
		return false, f.ReadError
	}
	return f.on, nil
}

// Changes returns the notification channel.
func (f *FakeSignal) Changes() <-chan struct{} {
	return f.n.ch
}

// Closed reports whether Close was called.
func (f *FakeSignal) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Close marks the signal as closed.
func (f *FakeSignal) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}
