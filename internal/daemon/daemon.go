package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"

	"git.home.luguber.info/inful/harvestcycle/internal/config"
	"git.home.luguber.info/inful/harvestcycle/internal/cycle"
	ferrors "git.home.luguber.info/inful/harvestcycle/internal/foundation/errors"
	"git.home.luguber.info/inful/harvestcycle/internal/logfields"
	"git.home.luguber.info/inful/harvestcycle/internal/metrics"
	"git.home.luguber.info/inful/harvestcycle/internal/retry"
)

// Daemon keeps an overview open, saves its changes periodically and on
// shutdown, and optionally serves Prometheus metrics. Saves are skipped while
// the overview is unchanged, so edits made to the file by other commands
// survive as long as the daemon itself holds no changes.
type Daemon struct {
	config    *config.Config
	store     *cycle.Store
	scheduler *Scheduler
	policy    retry.Policy
	recorder  metrics.Recorder
	registry  *prom.Registry
	logger    *slog.Logger

	mu         sync.Mutex
	running    bool
	httpServer *http.Server
	listener   net.Listener
}

// StoreOptions maps the state section of the configuration to store options.
func StoreOptions(cfg config.StateConfig, extra ...cycle.Option) []cycle.Option {
	var opts []cycle.Option
	if f := cfg.StateFormat(); f != "" {
		opts = append(opts, cycle.WithFormat(cycle.Format(f)))
	}
	return append(opts, extra...)
}

// New opens the configured state file and prepares the daemon.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, ferrors.DaemonError("configuration is required").Build()
	}
	if logger == nil {
		logger = slog.Default()
	}

	policy := retry.FromConfig(cfg.Retry)
	if err := policy.Validate(); err != nil {
		return nil, ferrors.ConfigError("invalid retry policy").WithCause(err).Build()
	}

	var (
		recorder metrics.Recorder = metrics.NoopRecorder{}
		registry *prom.Registry
	)
	if cfg.Metrics.Enabled {
		registry = prom.NewRegistry()
		registry.MustRegister(promcollect.NewGoCollector(), promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}))
		recorder = metrics.NewPrometheusRecorder(registry)
	}

	store, err := cycle.Open(cfg.State.Path, StoreOptions(cfg.State,
		cycle.WithRecorder(recorder),
		cycle.WithLogger(logger))...)
	if err != nil {
		return nil, err
	}

	scheduler, err := NewScheduler(policy, recorder)
	if err != nil {
		return nil, ferrors.DaemonError("failed to create scheduler").WithCause(err).Build()
	}

	return &Daemon{
		config:    cfg,
		store:     store,
		scheduler: scheduler,
		policy:    policy,
		recorder:  recorder,
		registry:  registry,
		logger:    logger,
	}, nil
}

// Store returns the overview the daemon keeps open.
func (d *Daemon) Store() *cycle.Store { return d.store }

// MetricsAddr returns the address the metrics server listens on, or "" when it is not running.
func (d *Daemon) MetricsAddr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listener == nil {
		return ""
	}
	return d.listener.Addr().String()
}

// Start launches autosave and the metrics server.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return ferrors.DaemonError("daemon already running").Build()
	}

	if interval := d.config.AutoSave.Interval; interval > 0 {
		id, err := d.scheduler.ScheduleAutoSave(ctx, interval, d.store)
		if err != nil {
			return ferrors.DaemonError("failed to schedule autosave").WithCause(err).Build()
		}
		d.logger.Info("Autosave scheduled", logfields.JobID(id), slog.Duration("interval", interval))
	}
	d.scheduler.Start(ctx)

	if d.config.Metrics.Enabled {
		if err := d.startMetricsServer(); err != nil {
			_ = d.scheduler.Stop(ctx)
			return err
		}
	}

	d.running = true
	d.logger.Info("Daemon started",
		logfields.Path(d.store.Path()),
		logfields.Count(d.store.Len()))
	return nil
}

func (d *Daemon) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle(d.config.Metrics.Path, metrics.HTTPHandler(d.registry))

	ln, err := net.Listen("tcp", d.config.Metrics.Address)
	if err != nil {
		return ferrors.DaemonError("failed to listen for metrics").
			WithCause(err).
			WithContext("address", d.config.Metrics.Address).
			Build()
	}
	d.listener = ln
	d.httpServer = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := d.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Error("Metrics server stopped", logfields.Error(err))
		}
	}()
	d.logger.Info("Metrics server listening", slog.String("address", ln.Addr().String()), logfields.Path(d.config.Metrics.Path))
	return nil
}

// Stop halts autosave, saves pending changes and shuts the metrics server down.
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}
	d.running = false

	var errs []error
	if err := d.scheduler.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
	}

	saveErr := d.policy.Do(ctx, func(ctx context.Context) error {
		_, err := d.store.SaveChanged(ctx)
		return err
	}, func(int, error) { d.recorder.IncSaveRetry() })
	if saveErr != nil {
		d.logger.Error("Final save failed", logfields.Path(d.store.Path()), logfields.Error(saveErr))
		errs = append(errs, saveErr)
	}

	if d.httpServer != nil {
		if err := d.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop metrics server: %w", err))
		}
		d.httpServer = nil
		d.listener = nil
	}

	d.logger.Info("Daemon stopped")
	if saveErr != nil && len(errs) == 1 {
		return saveErr
	}
	return errors.Join(errs...)
}

// Run starts the daemon and blocks until ctx is done, then stops it.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return d.Stop(stopCtx)
}
