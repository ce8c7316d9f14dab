// Package monitor measures cumulative display-on time and triggers the
// one-time activation submission once the threshold is reached.
//
// All mutable state (accumulator, phase, in-flight submission) lives behind a
// single mutex. Display edges, periodic evaluation and submission results are
// applied one at a time.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/sweeney/warranty-activator/internal/activation"
	"github.com/sweeney/warranty-activator/internal/display"
	"github.com/sweeney/warranty-activator/internal/logic"
	"github.com/sweeney/warranty-activator/internal/metrics"
	"github.com/sweeney/warranty-activator/internal/status"
	"github.com/sweeney/warranty-activator/internal/store"
)

// DefaultEvaluateInterval is how often the threshold is re-checked while the
// display stays on.
const DefaultEvaluateInterval = 10 * time.Second

// Persistence retry defaults.
const (
	DefaultPersistRetries = 3
	DefaultPersistBackoff = 50 * time.Millisecond
	storeOpTimeout        = 5 * time.Second
)

// errActivated stops the periodic loop.
var errActivated = errors.New("monitor: activated")

// Config holds tuning values. Zero values select defaults.
type Config struct {
	Threshold        time.Duration
	EvaluateInterval time.Duration
	// Location renders activatedAt. Defaults to UTC.
	Location       *time.Location
	PersistRetries uint64
	PersistBackoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = logic.DefaultThreshold
	}
	if c.EvaluateInterval <= 0 {
		c.EvaluateInterval = DefaultEvaluateInterval
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.PersistRetries == 0 {
		c.PersistRetries = DefaultPersistRetries
	}
	if c.PersistBackoff <= 0 {
		c.PersistBackoff = DefaultPersistBackoff
	}
	return c
}

// Deps are the monitor's collaborators. Tracker and Metrics are optional.
type Deps struct {
	Store     store.Store
	Signal    display.Signal
	Submitter activation.Submitter
	Device    activation.DeviceInfoSource
	Reporter  status.Reporter
	Tracker   *status.Tracker
	Metrics   *metrics.Metrics
	Clock     quartz.Clock
	Logger    zerolog.Logger
}

// Monitor is the session accumulator and threshold monitor.
type Monitor struct {
	cfg       Config
	store     store.Store
	signal    display.Signal
	submitter activation.Submitter
	device    activation.DeviceInfoSource
	reporter  status.Reporter
	tracker   *status.Tracker
	metrics   *metrics.Metrics
	clock     quartz.Clock
	logger    zerolog.Logger

	mu         sync.Mutex
	acc        *logic.Accumulator
	phase      logic.Phase
	displayOn  bool
	submitting bool
	started    bool
	resumed    bool // activation was already persisted at Start
	stopped    bool
	cancel     context.CancelFunc
	loop       quartz.Waiter
	watchDone  chan struct{}

	done     chan struct{}
	doneOnce sync.Once
	inflight sync.WaitGroup
}

// New creates a Monitor. Call Start to load state and begin tracking.
func New(cfg Config, deps Deps) *Monitor {
	if deps.Clock == nil {
		deps.Clock = quartz.NewReal()
	}
	if deps.Reporter == nil {
		deps.Reporter = status.ReporterFunc(func(string) {})
	}
	return &Monitor{
		cfg:       cfg.withDefaults(),
		store:     deps.Store,
		signal:    deps.Signal,
		submitter: deps.Submitter,
		device:    deps.Device,
		reporter:  deps.Reporter,
		tracker:   deps.Tracker,
		metrics:   deps.Metrics,
		clock:     deps.Clock,
		logger:    deps.Logger.With().Str("component", "monitor").Logger(),
		acc:       logic.NewAccumulator(0),
		phase:     logic.PhaseTracking,
		done:      make(chan struct{}),
	}
}

// Start loads the persisted counter and begins tracking. A second call is a
// no-op. If activation was already persisted the monitor is terminal and Done
// is closed immediately.
//
// The periodic loop and the signal watcher stop when ctx is cancelled, when
// Shutdown is called, or once activation is confirmed.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return nil
	}

	loadCtx, cancelLoad := context.WithTimeout(ctx, storeOpTimeout)
	c, err := m.store.Load(loadCtx)
	cancelLoad()
	if err != nil {
		return fmt.Errorf("load counter: %w", err)
	}
	m.started = true

	now := m.clock.Now()
	m.acc = logic.NewAccumulator(c.AccumulatedMs)

	if c.Activated {
		m.acc.Freeze(now)
		m.phase = logic.PhaseActivated
		m.resumed = true
		m.logger.Info().Int64("accumulated_ms", c.AccumulatedMs).Msg("Activation already recorded; not tracking")
		m.publishLocked(now)
		m.closeDone()
		return nil
	}

	on, err := m.signal.IsAnyDisplayOn()
	if err != nil {
		m.logger.Warn().Err(err).Msg("Failed to read display state at startup; assuming off")
		on = false
	}
	m.displayOn = on
	if on {
		m.acc.Open(now)
	}
	m.logger.Info().
		Int64("accumulated_ms", c.AccumulatedMs).
		Bool("display_on", on).
		Dur("threshold", m.cfg.Threshold).
		Msg("Tracking started")

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.evaluateLocked(now)

	m.watchDone = make(chan struct{})
	go m.watch(loopCtx)
	m.loop = m.clock.TickerFunc(loopCtx, m.cfg.EvaluateInterval, m.tick, "monitor", "evaluate")
	return nil
}

// HandleDisplay applies a display state observation. A closed session is
// persisted before HandleDisplay returns, and every off edge re-evaluates the
// threshold.
func (m *Monitor) HandleDisplay(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started || m.stopped {
		return
	}

	now := m.clock.Now()
	m.displayOn = on

	tr := m.acc.Edge(on, now)
	if tr.Opened {
		m.logger.Debug().Msg("Session opened")
	}
	if tr.Closed {
		m.logger.Debug().
			Int64("session_ms", tr.Fold.SessionMs).
			Int64("accumulated_ms", tr.Fold.AccumulatedMs).
			Msg("Session closed")
		m.metrics.SessionClosed()
		m.persistAccumulatedLocked(tr.Fold.AccumulatedMs)
	}

	if !on {
		m.evaluateLocked(now)
		return
	}
	m.publishLocked(now)
}

// Evaluate checks the threshold now. It is a no-op unless the phase is
// TRACKING.
func (m *Monitor) Evaluate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started || m.stopped {
		return
	}
	m.evaluateLocked(m.clock.Now())
}

// TotalActiveMs returns accumulated time plus the open session's elapsed time.
func (m *Monitor) TotalActiveMs() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acc.TotalMs(m.clock.Now())
}

// Phase returns the current activation phase.
func (m *Monitor) Phase() logic.Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// ActivatedAtStart reports whether Start found activation already persisted.
func (m *Monitor) ActivatedAtStart() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resumed
}

// Done is closed once activation is confirmed or found already persisted.
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

// Shutdown stops the loop and watcher, folds an open session, and waits for
// an in-flight submission until ctx expires. The submission itself is not
// cancelled.
func (m *Monitor) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if !m.started || m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true

	now := m.clock.Now()
	if fold, closed := m.acc.Close(now); closed {
		m.logger.Info().
			Int64("session_ms", fold.SessionMs).
			Int64("accumulated_ms", fold.AccumulatedMs).
			Msg("Folded open session on shutdown")
		m.metrics.SessionClosed()
		m.persistAccumulatedLocked(fold.AccumulatedMs)
	}
	m.publishLocked(now)

	cancel, loop, watchDone := m.cancel, m.loop, m.watchDone
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if watchDone != nil {
		<-watchDone
	}
	if loop != nil {
		_ = loop.Wait()
	}

	idle := make(chan struct{})
	go func() {
		m.inflight.Wait()
		close(idle)
	}()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		m.logger.Warn().Msg("Shutdown deadline reached with submission in flight")
		return ctx.Err()
	}
}

func (m *Monitor) tick() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase == logic.PhaseActivated {
		return errActivated
	}
	if m.stopped {
		return nil
	}
	m.evaluateLocked(m.clock.Now())
	return nil
}

func (m *Monitor) watch(ctx context.Context) {
	defer close(m.watchDone)
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.signal.Changes():
			on, err := m.signal.IsAnyDisplayOn()
			if err != nil {
				m.logger.Warn().Err(err).Msg("Failed to read display state")
				continue
			}
			m.HandleDisplay(on)
		}
	}
}

func (m *Monitor) evaluateLocked(now time.Time) {
	defer m.publishLocked(now)

	if m.phase != logic.PhaseTracking {
		return
	}

	d := logic.Evaluate(m.acc.TotalMs(now), m.cfg.Threshold.Milliseconds())
	if !d.Crossed {
		m.reporter.Report(d.Progress.String())
		return
	}

	m.logger.Info().Int64("total_ms", d.TotalMs).Msg("Threshold reached; activating")
	m.phase = logic.PhaseSubmitting
	m.persistActivatedLocked(true)
	m.reporter.Report(logic.StatusActivating)
	m.dispatchLocked(d.TotalMs)
}

// dispatchLocked starts the submission goroutine. At most one is in flight.
func (m *Monitor) dispatchLocked(totalMs int64) {
	if m.submitting {
		return
	}
	m.submitting = true
	if m.tracker != nil {
		m.tracker.AddAttempt()
	}

	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()
		m.finish(m.attempt(totalMs))
	}()
}

func (m *Monitor) attempt(totalMs int64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("submission panicked: %v", r)
		}
	}()

	info, err := m.device.DeviceInfo()
	if err != nil {
		return fmt.Errorf("device info: %w", err)
	}
	rec := activation.NewRecord(info, totalMs, m.clock.Now(), m.cfg.Location)
	return m.submitter.Submit(context.Background(), rec)
}

func (m *Monitor) finish(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	m.submitting = false
	m.metrics.Attempt(err == nil)

	if err != nil {
		m.logger.Warn().Err(err).Msg("Activation attempt failed")
		m.persistActivatedLocked(false)
		m.phase = logic.PhaseTracking
		m.reporter.Report(logic.StatusFailed)
		m.publishLocked(now)
		return
	}

	if fold, closed := m.acc.Freeze(now); closed {
		m.metrics.SessionClosed()
		m.persistAccumulatedLocked(fold.AccumulatedMs)
	}
	m.phase = logic.PhaseActivated
	m.logger.Info().Int64("accumulated_ms", m.acc.AccumulatedMs()).Msg("Activation confirmed")
	m.reporter.Report(logic.StatusActivated)
	m.publishLocked(now)

	if m.cancel != nil {
		m.cancel()
	}
	m.closeDone()
}

func (m *Monitor) closeDone() {
	m.doneOnce.Do(func() { close(m.done) })
}

func (m *Monitor) publishLocked(now time.Time) {
	usage := m.acc.Usage()
	if m.tracker != nil {
		m.tracker.Update(m.phase, usage, m.displayOn)
	}
	m.metrics.ObserveUsage(usage.AccumulatedMs, usage.TotalMs(now))
	m.metrics.SetActivated(m.phase == logic.PhaseActivated)
}

func (m *Monitor) persistAccumulatedLocked(ms int64) {
	m.persist("accumulated_ms", func(ctx context.Context) error {
		return m.store.SaveAccumulated(ctx, ms)
	})
}

func (m *Monitor) persistActivatedLocked(activated bool) {
	m.persist("activated", func(ctx context.Context) error {
		return m.store.SaveActivated(ctx, activated)
	})
}

// persist retries a store write with bounded exponential backoff. Failure is
// logged and counted, never fatal.
func (m *Monitor) persist(key string, write func(ctx context.Context) error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.cfg.PersistBackoff
	b.MaxInterval = 20 * m.cfg.PersistBackoff
	b.MaxElapsedTime = 0

	op := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
		defer cancel()
		err := write(ctx)
		if errors.Is(err, store.ErrClosed) {
			return backoff.Permanent(err)
		}
		return err
	}

	if err := backoff.Retry(op, backoff.WithMaxRetries(b, m.cfg.PersistRetries)); err != nil {
		m.logger.Error().Err(err).Str("key", key).Msg("Failed to persist counter")
		m.metrics.PersistError()
	}
}
