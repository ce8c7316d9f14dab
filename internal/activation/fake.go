package activation

import (
	"context"
	"sync"
)

// FakeSubmitter records submitted records and returns scripted results.
type FakeSubmitter struct {
	mu      sync.Mutex
	records []Record
	results []error

	// Block, if non-nil, is received from before Submit returns.
	Block chan struct{}

	// Panic, if set, makes Submit panic with this value.
	Panic interface{}
}

// NewFakeSubmitter creates a FakeSubmitter. Each Submit call consumes the next
// result; when results are exhausted the last one repeats. No results means success.
func NewFakeSubmitter(results ...error) *FakeSubmitter {
	return &FakeSubmitter{results: results}
}

// Submit records the record and returns the next scripted result.
func (f *FakeSubmitter) Submit(ctx context.Context, rec Record) error {
	f.mu.Lock()
	f.records = append(f.records, rec)
	n := len(f.records)
	p := f.Panic
	f.mu.Unlock()

	if f.Block != nil {
		select {
		case <-f.Block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if p != nil {
		panic(p)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.results) == 0 {
		return nil
	}
	if n > len(f.results) {
		return f.results[len(f.results)-1]
	}
	return f.results[n-1]
}

// Records returns a copy of all submitted records.
func (f *FakeSubmitter) Records() []Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Record, len(f.records))
	copy(out, f.records)
	return out
}

// Calls returns the number of Submit calls.
func (f *FakeSubmitter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

// StaticDeviceInfo is a DeviceInfoSource returning fixed values.
type StaticDeviceInfo struct {
	Info DeviceInfo
	Err  error
}

// DeviceInfo returns the fixed values.
func (s StaticDeviceInfo) DeviceInfo() (DeviceInfo, error) {
	return s.Info, s.Err
}
