package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"pixora/internal/api"
	"pixora/internal/artifacts"
	"pixora/internal/config"
	"pixora/internal/events"
	"pixora/internal/inference"
	"pixora/internal/journal"
	"pixora/internal/logging"
	"pixora/internal/modelstore"
	"pixora/internal/pipeline"
	"pixora/internal/staging"
)

const eventBuffer = 64

// Options configures a Daemon.
type Options struct {
	Config     *config.Config
	Logger     *slog.Logger
	Journal    *journal.Store
	Runtime    inference.Runtime
	SessionID  string
	HTTPClient *http.Client
}

// Daemon is the application state shared by every API request.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	sessionID string

	registry     *artifacts.Registry
	provisioner  *modelstore.Provisioner
	engine       *inference.Engine
	orchestrator *pipeline.Orchestrator
	hub          *events.Hub
	journal      *journal.Store

	lockPath string
	lock     *flock.Flock

	mu          sync.Mutex
	running     atomic.Bool
	startedAt   time.Time
	api         *apiServer
	cleanupDone chan struct{}
}

// New constructs a daemon with initialized dependencies. Nothing touches the
// network or the model until the first request needs it.
func New(opts Options) (*Daemon, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if opts.Runtime == nil {
		return nil, errors.New("daemon requires an inference runtime")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	hub := events.NewHub(eventBuffer)
	provisioner := modelstore.New(modelstore.Options{
		Path:     cfg.ModelPath(),
		BaseURL:  cfg.Model.BaseURL,
		Key:      cfg.Model.Key,
		Timeout:  cfg.DownloadTimeout(),
		Client:   opts.HTTPClient,
		Observer: hub,
		Logger:   logger,
	})
	engine := inference.NewEngine(inference.Options{
		Runtime:    opts.Runtime,
		Models:     provisioner,
		Resolution: cfg.Model.Resolution,
		Logger:     logger,
	})
	registry := artifacts.NewRegistry(cfg.Paths.TempDir, logger)

	pipeOpts := pipeline.Options{
		Remover:        engine,
		Artifacts:      registry,
		Workers:        cfg.Pipeline.Workers,
		DefaultQuality: cfg.Pipeline.DefaultQuality,
		Logger:         logger,
	}
	if opts.Journal != nil {
		pipeOpts.Journal = opts.Journal
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:          cfg,
		logger:       logging.NewComponentLogger(logger, "daemon"),
		sessionID:    opts.SessionID,
		registry:     registry,
		provisioner:  provisioner,
		engine:       engine,
		orchestrator: pipeline.New(pipeOpts),
		hub:          hub,
		journal:      opts.Journal,
		lockPath:     lockPath,
		lock:         flock.New(lockPath),
	}, nil
}

// Start acquires the single-instance lock, sweeps artifacts left behind by
// earlier processes and starts the API server.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if d.engine.State() == inference.StateClosed {
		return errors.New("daemon was stopped; construct a new one to restart")
	}

	if err := os.MkdirAll(d.cfg.Paths.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another pixora daemon instance is already running")
	}

	sweep := staging.CleanStale(ctx, d.cfg.Paths.TempDir, os.Getpid(), d.cfg.StaleArtifactAge(), d.logger)
	if len(sweep.Removed) > 0 {
		d.logger.Info("stale artifacts removed",
			logging.Int("count", len(sweep.Removed)),
			logging.String(logging.FieldEventType, "stale_artifacts_removed"),
		)
	}

	srv := newAPIServer(d.cfg, d, d.logger)
	if err := srv.start(ctx); err != nil {
		_ = d.lock.Unlock()
		return err
	}
	d.api = srv
	d.startedAt = time.Now().UTC()
	d.cleanupDone = nil
	d.running.Store(true)
	d.logger.Info("pixora daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", srv.address()),
		logging.Int("workers", d.orchestrator.Workers()),
	)
	return nil
}

// Stop shuts the API server down, releases the inference session and the
// lock, and starts removing this session's artifacts in the background.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	d.api.stop()
	d.api = nil
	if err := d.engine.Close(); err != nil {
		logging.WarnWithContext(d.logger, "inference session close failed", "engine_close_failed",
			logging.Error(err),
		)
	}

	done := make(chan struct{})
	d.cleanupDone = done
	go func() {
		defer close(done)
		if err := d.registry.DeleteAll(); err != nil {
			logging.WarnWithContext(d.logger, "artifact cleanup failed", "artifact_cleanup_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "files remain until the next start sweeps them"),
			)
		}
	}()

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("pixora daemon stopped")
}

// WaitCleanup blocks until teardown cleanup finishes or timeout elapses. It
// reports whether cleanup completed.
func (d *Daemon) WaitCleanup(timeout time.Duration) bool {
	d.mu.Lock()
	done := d.cleanupDone
	d.mu.Unlock()
	if done == nil {
		return true
	}
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Close stops the daemon and releases the journal.
func (d *Daemon) Close() error {
	d.Stop()
	if d.journal != nil {
		return d.journal.Close()
	}
	return nil
}

// Address returns the bound API address, or "" when the server is not
// listening.
func (d *Daemon) Address() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.api.address()
}

// Handler returns the API handler without starting a listener.
func (d *Daemon) Handler() http.Handler {
	return newRouter(d, d.cfg.Paths.APIToken, d.logger)
}

// Registry exposes the artifact registry.
func (d *Daemon) Registry() *artifacts.Registry {
	return d.registry
}

// Events exposes the notification hub.
func (d *Daemon) Events() *events.Hub {
	return d.hub
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	d.mu.Lock()
	startedAt := d.startedAt
	d.mu.Unlock()

	status := api.DaemonStatus{
		Running:          d.running.Load(),
		PID:              os.Getpid(),
		SessionID:        d.sessionID,
		Workers:          d.orchestrator.Workers(),
		TempDir:          d.registry.Dir(),
		TrackedArtifacts: d.registry.Len(),
		Engine: api.EngineStatus{
			State:    d.engine.State().String(),
			InFlight: d.engine.InFlight(),
			Loads:    d.engine.Loads(),
		},
		LockFilePath:     d.lockPath,
		EventSubscribers: d.hub.Subscribers(),
		EventsDropped:    d.hub.Dropped(),
	}
	if status.Running {
		status.StartedAt = api.FormatTime(startedAt)
	}
	if usage, err := staging.DirUsage(d.registry.Dir()); err == nil {
		status.TempUsage = usage
	}
	if model, err := d.provisioner.Status(); err == nil {
		status.Model = model
	} else {
		logging.WithContext(ctx, d.logger).Debug("model status unavailable", logging.Error(err))
	}
	if d.journal != nil {
		status.JournalPath = d.journal.Path()
	}
	return status
}
