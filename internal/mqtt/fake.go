package mqtt

import "sync"

// FakePublisher records published messages for test assertions.
// Safe for concurrent use; read results through the accessor methods.
type FakePublisher struct {
	mu             sync.Mutex
	statusEvents   []StatusEvent
	statusPayloads [][]byte
	systemEvents   []SystemEvent
	systemPayloads [][]byte
	closed         bool

	// PublishStatusError, if set, will be returned by PublishStatus.
	PublishStatusError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishStatus records the status message.
func (f *FakePublisher) PublishStatus(event StatusEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishStatusError != nil {
		return f.PublishStatusError
	}

	payload, err := FormatStatusPayload(event)
	if err != nil {
		return err
	}
	f.statusEvents = append(f.statusEvents, event)
	f.statusPayloads = append(f.statusPayloads, payload)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.systemEvents = append(f.systemEvents, event)
	f.systemPayloads = append(f.systemPayloads, payload)
	return nil
}

// Statuses returns the published status messages in order.
func (f *FakePublisher) Statuses() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.statusEvents))
	for i, e := range f.statusEvents {
		out[i] = e.Message
	}
	return out
}

// StatusPayloads returns the JSON payloads for status messages.
func (f *FakePublisher) StatusPayloads() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.statusPayloads...)
}

// SystemEvents returns the published system events in order.
func (f *FakePublisher) SystemEvents() []SystemEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SystemEvent(nil), f.systemEvents...)
}

// SystemPayloads returns the JSON payloads for system events.
func (f *FakePublisher) SystemPayloads() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.systemPayloads...)
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (f *FakePublisher) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// Reset clears recorded messages.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusEvents = nil
	f.statusPayloads = nil
	f.systemEvents = nil
	f.systemPayloads = nil
	f.closed = false
	f.PublishStatusError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
