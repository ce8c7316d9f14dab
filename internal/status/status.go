// Package status delivers progress messages and keeps a thread-safe snapshot
// of daemon state. The snapshot is read by HTTP handlers and MQTT lifecycle
// events.
package status

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sweeney/warranty-activator/internal/logic"
)

// Reporter receives human-readable progress messages. Delivery is
// fire-and-forget; implementations must not block.
type Reporter interface {
	Report(msg string)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(msg string)

// Report calls f(msg).
func (f ReporterFunc) Report(msg string) { f(msg) }

type multi []Reporter

// Multi fans a message out to every non-nil reporter in order.
func Multi(reporters ...Reporter) Reporter {
	var m multi
	for _, r := range reporters {
		if r != nil {
			m = append(m, r)
		}
	}
	return m
}

func (m multi) Report(msg string) {
	for _, r := range m {
		r.Report(msg)
	}
}

// LogReporter writes messages to a zerolog logger at info level.
type LogReporter struct {
	logger zerolog.Logger
}

// NewLogReporter creates a LogReporter.
func NewLogReporter(logger zerolog.Logger) *LogReporter {
	return &LogReporter{logger: logger.With().Str("component", "status").Logger()}
}

// Report logs msg.
func (r *LogReporter) Report(msg string) {
	r.logger.Info().Str("status", msg).Msg("Status")
}

// Config contains daemon configuration for display.
type Config struct {
	ThresholdMs int64
	IntervalMs  int64
	Endpoint    string
	Storage     string
	Display     string
	Broker      string
	HTTPAddr    string
	TopicPrefix string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Phase         logic.Phase
	Usage         logic.Usage
	DisplayOn     bool
	Attempts      int
	LastStatus    string
	LastStatusAt  time.Time
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// TotalMs returns active time including the open session at s.Now.
func (s Snapshot) TotalMs() int64 {
	return s.Usage.TotalMs(s.Now)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Phase:     logic.PhaseTracking,
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// SetClock replaces the time source used to stamp snapshots.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	t.now = now
	t.mu.Unlock()
}

// Update sets phase, accumulator view and the last observed display state.
func (t *Tracker) Update(phase logic.Phase, usage logic.Usage, displayOn bool) {
	t.mu.Lock()
	t.snap.Phase = phase
	t.snap.Usage = usage
	t.snap.DisplayOn = displayOn
	t.mu.Unlock()
}

// AddAttempt counts a dispatched submission.
func (t *Tracker) AddAttempt() {
	t.mu.Lock()
	t.snap.Attempts++
	t.mu.Unlock()
}

// Report records msg as the latest status. Tracker satisfies Reporter.
func (t *Tracker) Report(msg string) {
	t.mu.Lock()
	t.snap.LastStatus = msg
	t.snap.LastStatusAt = t.now()
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	now := t.now
	t.mu.RUnlock()
	s.Now = now()
	return s
}
