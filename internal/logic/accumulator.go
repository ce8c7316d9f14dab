package logic

import "time"

// Accumulator converts display on/off edges into accumulated active time.
// Not safe for concurrent use — caller must synchronize.
type Accumulator struct {
	accumulatedMs int64
	open          bool
	since         time.Time
	frozen        bool
}

// NewAccumulator creates an accumulator seeded with a persisted total.
// Negative seeds are treated as zero.
func NewAccumulator(accumulatedMs int64) *Accumulator {
	if accumulatedMs < 0 {
		accumulatedMs = 0
	}
	return &Accumulator{accumulatedMs: accumulatedMs}
}

// Edge applies a display state observation.
// off->on opens a session, on->off closes and folds it. Repeated edges in the
// same direction are no-ops.
func (a *Accumulator) Edge(on bool, now time.Time) Transition {
	if on {
		return Transition{Opened: a.Open(now)}
	}
	fold, closed := a.Close(now)
	return Transition{Closed: closed, Fold: fold}
}

// Open starts a session at now. Returns false if one is already open or the
// accumulator is frozen.
func (a *Accumulator) Open(now time.Time) bool {
	if a.open || a.frozen {
		return false
	}
	a.open = true
	a.since = now
	return true
}

// Close ends the open session and folds its duration into the total.
// A negative delta (clock moved backwards) contributes nothing.
func (a *Accumulator) Close(now time.Time) (Fold, bool) {
	if !a.open {
		return Fold{AccumulatedMs: a.accumulatedMs}, false
	}
	ms := elapsedMs(a.since, now)
	a.accumulatedMs += ms
	a.open = false
	a.since = time.Time{}
	return Fold{SessionMs: ms, AccumulatedMs: a.accumulatedMs}, true
}

// Freeze closes any open session and refuses further opens.
// Used once activation is confirmed.
func (a *Accumulator) Freeze(now time.Time) (Fold, bool) {
	fold, closed := a.Close(now)
	a.frozen = true
	return fold, closed
}

// AccumulatedMs returns the total of all closed sessions.
func (a *Accumulator) AccumulatedMs() int64 {
	return a.accumulatedMs
}

// TotalMs returns accumulated time plus the open session's elapsed time.
func (a *Accumulator) TotalMs(now time.Time) int64 {
	return a.Usage().TotalMs(now)
}

// Usage returns a copy of the accumulator state.
func (a *Accumulator) Usage() Usage {
	return Usage{
		AccumulatedMs: a.accumulatedMs,
		SessionOpen:   a.open,
		SessionSince:  a.since,
	}
}

func elapsedMs(since, now time.Time) int64 {
	d := now.Sub(since)
	if d < 0 {
		return 0
	}
	return d.Milliseconds()
}
