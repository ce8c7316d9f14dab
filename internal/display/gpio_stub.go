//go:build !linux

package display

import (
	"errors"
	"time"
)

// GPIOConfig selects the sense line.
type GPIOConfig struct {
	Chip      string
	Line      int
	ActiveLow bool
	Debounce  time.Duration
}

// GPIOSignal is not available on non-Linux platforms.
type GPIOSignal struct{}

// NewGPIOSignal returns an error on non-Linux platforms.
func NewGPIOSignal(GPIOConfig) (*GPIOSignal, error) {
	return nil, errors.New("display: gpio not supported on this platform (requires Linux)")
}

// IsAnyDisplayOn is not implemented on non-Linux platforms.
func (s *GPIOSignal) IsAnyDisplayOn() (bool, error) {
	return false, errors.New("display: gpio not supported")
}

// Changes returns nil.
func (s *GPIOSignal) Changes() <-chan struct{} {
	return nil
}

// Close is a no-op.
func (s *GPIOSignal) Close() error {
	return nil
}
