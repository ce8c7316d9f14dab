package display

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
)

// DefaultDRMGlob matches DRM connector directories.
const DefaultDRMGlob = "/sys/class/drm/card*-*"

// DRMConfig configures the sysfs poller.
type DRMConfig struct {
	Glob         string
	PollInterval time.Duration
	Clock        quartz.Clock // nil uses the real clock
}

// DRMSignal derives the display state from DRM connectors: on when any
// connected connector reports dpms "On".
type DRMSignal struct {
	glob   string
	n      notifier
	cancel context.CancelFunc
	loop   quartz.Waiter
	last   bool // only touched by poll
	logger zerolog.Logger
}

// NewDRMSignal starts polling connectors at the configured interval.
func NewDRMSignal(cfg DRMConfig, logger zerolog.Logger) (*DRMSignal, error) {
	if cfg.Glob == "" {
		cfg.Glob = DefaultDRMGlob
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = quartz.NewReal()
	}
	if _, err := filepath.Match(cfg.Glob, ""); err != nil {
		return nil, fmt.Errorf("invalid drm glob %q: %w", cfg.Glob, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &DRMSignal{
		glob:   cfg.Glob,
		n:      newNotifier(),
		cancel: cancel,
		logger: logger.With().Str("component", "display-drm").Logger(),
	}

	last, err := s.IsAnyDisplayOn()
	if err != nil {
		cancel()
		return nil, err
	}
	s.last = last

	s.loop = cfg.Clock.TickerFunc(ctx, cfg.PollInterval, s.poll, "display", "drm")
	return s, nil
}

func (s *DRMSignal) poll() error {
	on, err := s.IsAnyDisplayOn()
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read DRM connector state")
		return nil
	}
	if on != s.last {
		s.last = on
		s.n.notify()
	}
	return nil
}

// IsAnyDisplayOn scans all matching connectors.
func (s *DRMSignal) IsAnyDisplayOn() (bool, error) {
	dirs, err := filepath.Glob(s.glob)
	if err != nil {
		return false, fmt.Errorf("glob drm connectors: %w", err)
	}
	for _, dir := range dirs {
		if connectorOn(dir) {
			return true, nil
		}
	}
	return false, nil
}

func connectorOn(dir string) bool {
	if readAttr(filepath.Join(dir, "status")) != "connected" {
		return false
	}
	// Connectors without a dpms attribute are treated as on while connected.
	dpms := readAttr(filepath.Join(dir, "dpms"))
	return dpms == "" || dpms == "On"
}

func readAttr(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

// Changes returns the notification channel.
func (s *DRMSignal) Changes() <-chan struct{} {
	return s.n.ch
}

// Close stops polling.
func (s *DRMSignal) Close() error {
	s.cancel()
	_ = s.loop.Wait()
	return nil
}
