package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coder/quartz"
	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sweeney/warranty-activator/internal/activation"
	"github.com/sweeney/warranty-activator/internal/config"
	"github.com/sweeney/warranty-activator/internal/display"
	"github.com/sweeney/warranty-activator/internal/metrics"
	"github.com/sweeney/warranty-activator/internal/monitor"
	"github.com/sweeney/warranty-activator/internal/mqtt"
	"github.com/sweeney/warranty-activator/internal/status"
	"github.com/sweeney/warranty-activator/internal/store"
	"github.com/sweeney/warranty-activator/internal/web"
)

// shutdownMargin is added to the submitter timeout when waiting for an
// in-flight submission at shutdown.
const shutdownMargin = 5 * time.Second

// shutdownTimeout outlasts the slowest submission so its result, including
// the flag revert on failure, is persisted before exit.
func shutdownTimeout(sub *activation.HTTPSubmitter) time.Duration {
	return sub.Timeout() + shutdownMargin
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging)

	// Single instance per state directory
	lockPath := cfg.LockPath()
	if err := store.EnsureDir(lockPath); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", lockPath, err)
	}
	if !locked {
		logger.Info().Str("lock", lockPath).Msg("Another instance is already tracking; exiting")
		return nil
	}
	defer lock.Unlock()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	sig, err := openSignal(cfg, logger)
	if err != nil {
		return err
	}
	defer sig.Close()

	m := metrics.New()
	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	reporters := []status.Reporter{status.NewLogReporter(logger), tracker}

	var publisher mqtt.Publisher
	if cfg.MQTT.Broker != "" {
		pub, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:             cfg.MQTT.Broker,
			ClientID:           cfg.MQTT.ClientID,
			TopicPrefix:        cfg.MQTT.TopicPrefix,
			BufferSize:         cfg.MQTT.BufferSize,
			OnConnectionChange: tracker.SetMQTTConnected,
		}, logger)
		if err != nil {
			logger.Warn().Err(err).Str("broker", cfg.MQTT.Broker).Msg("MQTT disabled")
		} else {
			defer pub.Close()
			publisher = pub
			rep := mqtt.NewStatusReporter(pub, logger)
			defer rep.Close()
			reporters = append(reporters, rep)
		}
	}

	device := activation.NewHostInfo(cfg.Activation.Brand, cfg.Activation.Model)
	device.DMIDir = cfg.Activation.DMIDir
	submitter := activation.NewHTTPSubmitter(activation.HTTPConfig{
		Endpoint:       cfg.Activation.Endpoint,
		ConnectTimeout: cfg.Activation.ConnectTimeout,
		ReadTimeout:    cfg.Activation.ReadTimeout,
	})

	mon := monitor.New(monitor.Config{
		Threshold:        cfg.Activation.Threshold,
		EvaluateInterval: cfg.Activation.EvaluateInterval,
		Location:         cfg.Location(),
	}, monitor.Deps{
		Store:     st,
		Signal:    sig,
		Submitter: submitter,
		Device:    device,
		Reporter:  status.Multi(reporters...),
		Tracker:   tracker,
		Metrics:   m,
		Clock:     quartz.NewReal(),
		Logger:    logger,
	})

	// Registered before Start so a signal during startup still gets the
	// teardown fold.
	sigCh, stopSignals := notifyShutdown()
	defer stopSignals()

	if err := mon.Start(cmd.Context()); err != nil {
		return fmt.Errorf("start monitor: %w", err)
	}
	if !announce(mon, publisher, tracker, logger) {
		return mon.Shutdown(context.Background())
	}

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, m.Handler())
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("HTTP server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Info().Str("addr", cfg.HTTP.Addr).Msg("HTTP status server listening")
	}

	logger.Info().
		Str("version", version).
		Str("storage", cfg.Storage.Type).
		Str("display", cfg.Display.Source).
		Str("endpoint", cfg.Activation.Endpoint).
		Dur("threshold", cfg.Activation.Threshold).
		Msg("Started")

	return runLoop(mon, publisher, tracker, logger, sigCh, shutdownTimeout(submitter))
}

// announce publishes STARTUP and reports true, unless activation was already
// recorded. Then it publishes nothing, so the retained ACTIVATED event from
// the run that activated stays in place.
func announce(mon lifecycle, publisher mqtt.Publisher, tracker *status.Tracker, logger zerolog.Logger) bool {
	if mon.ActivatedAtStart() {
		logger.Info().Msg("Warranty already activated; exiting")
		return false
	}
	publishSystem(publisher, tracker, logger, mqtt.EventStartup, "")
	return true
}

// notifyShutdown routes SIGINT and SIGTERM to the returned channel.
func notifyShutdown() (<-chan os.Signal, func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	return ch, func() { signal.Stop(ch) }
}

// lifecycle is the part of the monitor the run loop drives.
type lifecycle interface {
	ActivatedAtStart() bool
	Done() <-chan struct{}
	Shutdown(ctx context.Context) error
}

// runLoop blocks until a termination signal arrives or activation completes,
// then shuts the monitor down and publishes the matching lifecycle event.
func runLoop(mon lifecycle, publisher mqtt.Publisher, tracker *status.Tracker, logger zerolog.Logger, sig <-chan os.Signal, timeout time.Duration) error {
	var event, reason string

	select {
	case s := <-sig:
		reason = signalName(s)
		event = mqtt.EventShutdown
		logger.Info().Str("signal", reason).Msg("Shutting down")
	case <-mon.Done():
		event = mqtt.EventActivated
		logger.Info().Msg("Warranty activated; exiting")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := mon.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("Shutdown did not complete cleanly")
	}

	publishSystem(publisher, tracker, logger, event, reason)
	return nil
}

func publishSystem(publisher mqtt.Publisher, tracker *status.Tracker, logger zerolog.Logger, event, reason string) {
	if publisher == nil {
		return
	}
	if cs, ok := publisher.(mqtt.ConnectionStatus); ok {
		tracker.SetMQTTConnected(cs.IsConnected())
	}
	snap := tracker.Snapshot()
	err := publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		logger.Warn().Err(err).Str("event", event).Msg("Failed to publish system event")
		return
	}
	logger.Debug().Str("event", event).Msg("Published system event")
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Storage.Type {
	case "redis":
		return store.OpenRedis(store.RedisConfig{
			Addr:        cfg.Storage.Redis.Addr,
			Password:    cfg.Storage.Redis.Password,
			DB:          cfg.Storage.Redis.DB,
			DialTimeout: cfg.Storage.Redis.DialTimeout,
		}, cfg.Storage.Namespace)
	default:
		return store.OpenBolt(cfg.Storage.Path, cfg.Storage.Namespace)
	}
}

func openSignal(cfg *config.Config, logger zerolog.Logger) (display.Signal, error) {
	switch cfg.Display.Source {
	case "gpio":
		s, err := display.NewGPIOSignal(display.GPIOConfig{
			Chip:      cfg.Display.GPIO.Chip,
			Line:      cfg.Display.GPIO.Line,
			ActiveLow: cfg.Display.GPIO.ActiveLow,
			Debounce:  cfg.Display.GPIO.Debounce,
		})
		if err != nil {
			return nil, fmt.Errorf("init gpio: %w", err)
		}
		return s, nil
	default:
		s, err := display.NewDRMSignal(display.DRMConfig{
			Glob:         cfg.Display.DRM.Glob,
			PollInterval: cfg.Display.DRM.PollInterval,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("init drm: %w", err)
		}
		return s, nil
	}
}

func statusConfig(cfg *config.Config) status.Config {
	return status.Config{
		ThresholdMs: cfg.Activation.Threshold.Milliseconds(),
		IntervalMs:  cfg.Activation.EvaluateInterval.Milliseconds(),
		Endpoint:    cfg.Activation.Endpoint,
		Storage:     cfg.Storage.Type,
		Display:     cfg.Display.Source,
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTP.Addr,
		TopicPrefix: cfg.MQTT.TopicPrefix,
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
