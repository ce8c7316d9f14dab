package logic

import (
	"fmt"
	"time"
)

const msPerMinute = int64(time.Minute / time.Millisecond)

// Progress reports whole minutes active and remaining before the threshold.
type Progress struct {
	ActiveMinutes    int64
	RemainingMinutes int64
}

// String formats progress for the status reporter, e.g. "Active 3m • 2m left".
func (p Progress) String() string {
	return fmt.Sprintf("Active %dm • %dm left", p.ActiveMinutes, p.RemainingMinutes)
}

// Decision is the outcome of a threshold evaluation.
type Decision struct {
	Crossed  bool
	TotalMs  int64
	Progress Progress
}

// Evaluate compares the total active time against the threshold.
func Evaluate(totalMs, thresholdMs int64) Decision {
	if totalMs >= thresholdMs {
		return Decision{Crossed: true, TotalMs: totalMs}
	}
	return Decision{
		TotalMs: totalMs,
		Progress: Progress{
			ActiveMinutes:    totalMs / msPerMinute,
			RemainingMinutes: (thresholdMs - totalMs) / msPerMinute,
		},
	}
}

// ActiveMinutes converts milliseconds to whole minutes.
func ActiveMinutes(totalMs int64) int64 {
	if totalMs < 0 {
		return 0
	}
	return totalMs / msPerMinute
}
