//go:build linux

package display

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// GPIOConfig selects the sense line.
type GPIOConfig struct {
	Chip      string
	Line      int
	ActiveLow bool          // raw low = display on
	Debounce  time.Duration // 0 disables kernel debounce
}

// GPIOSignal reads the display state from a GPIO line with edge events.
type GPIOSignal struct {
	line *gpiocdev.Line
	n    notifier
}

// NewGPIOSignal requests the line as an input with both-edge detection.
func NewGPIOSignal(cfg GPIOConfig) (*GPIOSignal, error) {
	if cfg.Chip == "" {
		cfg.Chip = DefaultChip
	}

	s := &GPIOSignal{n: newNotifier()}

	// Pull-down matches the Pi boot default for inputs.
	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithPullDown,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) { s.n.notify() }),
	}
	if cfg.ActiveLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	if cfg.Debounce > 0 {
		opts = append(opts, gpiocdev.WithDebounce(cfg.Debounce))
	}

	line, err := gpiocdev.RequestLine(cfg.Chip, cfg.Line, opts...)
	if err != nil {
		return nil, fmt.Errorf("request display line %s:%d: %w", cfg.Chip, cfg.Line, err)
	}
	s.line = line
	return s, nil
}

// IsAnyDisplayOn returns the logical line value.
func (s *GPIOSignal) IsAnyDisplayOn() (bool, error) {
	v, err := s.line.Value()
	if err != nil {
		return false, fmt.Errorf("read display line: %w", err)
	}
	return v == 1, nil
}

// Changes returns the edge notification channel.
func (s *GPIOSignal) Changes() <-chan struct{} {
	return s.n.ch
}

// Close reconfigures the line to a plain pulled-down input before releasing it.
func (s *GPIOSignal) Close() error {
	var errs []error
	if err := s.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure display line: %w", err))
	}
	if err := s.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close display line: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
