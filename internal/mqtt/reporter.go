package mqtt

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultReportQueue is the number of status messages held for the sender
// goroutine.
const DefaultReportQueue = 16

// StatusReporter forwards progress messages to a Publisher. Report only
// enqueues; a single goroutine publishes in order. When the queue is full the
// oldest message is dropped. Publish errors are logged and dropped.
type StatusReporter struct {
	pub    Publisher
	logger zerolog.Logger
	now    func() time.Time

	mu     sync.Mutex
	queue  chan StatusEvent
	closed bool
	done   chan struct{}
}

// NewStatusReporter creates a StatusReporter and starts its sender. Call
// Close to flush and stop it.
func NewStatusReporter(pub Publisher, logger zerolog.Logger) *StatusReporter {
	r := &StatusReporter{
		pub:    pub,
		logger: logger.With().Str("component", "mqtt").Logger(),
		now:    time.Now,
		queue:  make(chan StatusEvent, DefaultReportQueue),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

// Report queues msg for the status topic. It never blocks on the broker.
func (r *StatusReporter) Report(msg string) {
	ev := StatusEvent{Timestamp: r.now(), Message: msg}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	for {
		select {
		case r.queue <- ev:
			return
		default:
		}
		select {
		case old := <-r.queue:
			r.logger.Warn().Str("status", old.Message).Msg("Status queue full, dropping oldest")
		default:
		}
	}
}

func (r *StatusReporter) run() {
	defer close(r.done)
	for ev := range r.queue {
		if err := r.pub.PublishStatus(ev); err != nil {
			r.logger.Warn().Err(err).Str("status", ev.Message).Msg("Failed to publish status")
		}
	}
}

// Close publishes anything still queued and stops the sender. Reports after
// Close are discarded.
func (r *StatusReporter) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	<-r.done
}
