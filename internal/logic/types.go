// Package logic contains pure business logic for display active-time tracking.
// This package has NO external dependencies (no GPIO, storage, network, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// Phase is the activation state of the tracker.
type Phase string

const (
	// PhaseTracking means the activated flag is false and time is still being measured.
	PhaseTracking Phase = "TRACKING"
	// PhaseSubmitting means the activated flag is set and a submission is in flight.
	PhaseSubmitting Phase = "SUBMITTING"
	// PhaseActivated is terminal: a submission was confirmed by the endpoint.
	PhaseActivated Phase = "ACTIVATED"
)

// DefaultThreshold is the cumulative active time that triggers activation.
const DefaultThreshold = 5 * time.Minute

// Status messages delivered to reporters.
const (
	StatusActivating = "Activating warranty…"
	StatusActivated  = "Warranty activated"
	StatusFailed     = "Activation failed, will retry"
)

// Fold describes a session closed into the accumulated total.
type Fold struct {
	SessionMs     int64 // contribution of the closed session (never negative)
	AccumulatedMs int64 // accumulated total after the fold
}

// Transition is the result of applying a display edge.
type Transition struct {
	Opened bool
	Closed bool
	Fold   Fold
}

// Usage is a point-in-time view of the accumulator.
type Usage struct {
	AccumulatedMs int64
	SessionOpen   bool
	SessionSince  time.Time
}

// TotalMs returns accumulated time plus the open session's elapsed time at now.
func (u Usage) TotalMs(now time.Time) int64 {
	if !u.SessionOpen {
		return u.AccumulatedMs
	}
	return u.AccumulatedMs + elapsedMs(u.SessionSince, now)
}
