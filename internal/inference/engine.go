package inference

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"pixora/internal/imaging"
	"pixora/internal/logging"
	"pixora/internal/services"
)

// DefaultResolution is the square input size of the segmentation model.
const DefaultResolution = 1024

// State is the session lifecycle.
type State int32

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "uninitialized"
	}
}

// Session is a loaded model graph.
type Session interface {
	Run(input Tensor) (Tensor, error)
	Close() error
}

// Runtime loads model files into sessions.
type Runtime interface {
	Load(modelPath string) (Session, error)
}

// ModelSource yields the local model path, fetching it if needed.
type ModelSource interface {
	Ensure(ctx context.Context) (string, error)
}

// Options configures an Engine.
type Options struct {
	Runtime    Runtime
	Models     ModelSource
	Resolution int
	Logger     *slog.Logger
}

// Engine removes image backgrounds with a lazily created, cached session.
type Engine struct {
	runtime    Runtime
	models     ModelSource
	resolution int
	logger     *slog.Logger

	// mu is held for writing while the session is created or closed and for
	// reading while a run uses it.
	mu       sync.RWMutex
	session  Session
	state    atomic.Int32
	inFlight atomic.Int64
	loads    atomic.Int64
}

// NewEngine constructs an Engine. No model is loaded until first use.
func NewEngine(opts Options) *Engine {
	res := opts.Resolution
	if res <= 0 {
		res = DefaultResolution
	}
	return &Engine{
		runtime:    opts.Runtime,
		models:     opts.Models,
		resolution: res,
		logger:     logging.NewComponentLogger(opts.Logger, "inference"),
	}
}

// State reports the current session state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// InFlight reports how many runs currently hold the session.
func (e *Engine) InFlight() int64 {
	return e.inFlight.Load()
}

// Loads reports how many sessions have been created.
func (e *Engine) Loads() int64 {
	return e.loads.Load()
}

// Warm creates the session without running it.
func (e *Engine) Warm(ctx context.Context) error {
	_, release, err := e.acquire(ctx)
	if err != nil {
		return err
	}
	release()
	return nil
}

// RemoveBackground returns a copy of r whose alpha channel is the model's
// foreground mask. The output has r's dimensions and an RGBA layout.
func (e *Engine) RemoveBackground(ctx context.Context, r *imaging.Raster) (*imaging.Raster, error) {
	if r == nil || r.Width() == 0 || r.Height() == 0 {
		return nil, services.Wrap(services.ErrInference, "inference", "remove background", "empty input", nil)
	}
	session, release, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	origW, origH := r.Width(), r.Height()
	scaled := imaging.ResampleLinear(r.WithAlpha(), e.resolution, e.resolution)

	out, err := session.Run(newInputTensor(scaled))
	if err != nil {
		return nil, services.Wrap(services.ErrInference, "inference", "run", "session run failed", err)
	}
	m, err := resolveMask(out)
	if err != nil {
		return nil, err
	}
	if err := applyMask(scaled, m); err != nil {
		return nil, err
	}
	result := imaging.ResampleLinear(scaled, origW, origH)
	result.Layout = imaging.LayoutRGBA

	logging.WithContext(ctx, e.logger).Debug("background removed",
		logging.Int("width", origW),
		logging.Int("height", origH),
		logging.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

// acquire returns the session, creating it on first use, with a release
// function that must be called when the caller is done with it.
func (e *Engine) acquire(ctx context.Context) (Session, func(), error) {
	e.mu.RLock()
	if e.session != nil {
		return e.session, e.hold(), nil
	}
	e.mu.RUnlock()

	if err := e.create(ctx); err != nil {
		return nil, nil, err
	}

	e.mu.RLock()
	if e.session == nil {
		e.mu.RUnlock()
		return nil, nil, services.Wrap(services.ErrInference, "inference", "acquire", "engine closed", nil)
	}
	return e.session, e.hold(), nil
}

// hold registers an in-flight run. The caller holds the read lock.
func (e *Engine) hold() func() {
	e.inFlight.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			e.inFlight.Add(-1)
			e.mu.RUnlock()
		})
	}
}

func (e *Engine) create(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		return nil
	}
	if e.State() == StateClosed {
		return services.Wrap(services.ErrInference, "inference", "create session", "engine closed", nil)
	}
	if e.runtime == nil || e.models == nil {
		return services.Wrap(services.ErrInference, "inference", "create session", "no runtime configured", nil)
	}

	e.state.Store(int32(StateLoading))
	start := time.Now()
	path, err := e.models.Ensure(ctx)
	if err != nil {
		e.state.Store(int32(StateUninitialized))
		return markInference(err, "provision model")
	}
	session, err := e.runtime.Load(path)
	if err != nil {
		e.state.Store(int32(StateUninitialized))
		logging.ErrorWithContext(e.logger, "model session creation failed", "session_create_failed",
			logging.String("model", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check model.runtime_library and the downloaded model file"),
		)
		return services.Wrap(services.ErrInference, "inference", "create session", path, err)
	}
	e.session = session
	e.loads.Add(1)
	e.state.Store(int32(StateReady))
	e.logger.Info("model session ready",
		logging.String("model", path),
		logging.Duration("elapsed", time.Since(start)),
		logging.String(logging.FieldEventType, "session_ready"),
	)
	return nil
}

// Close waits for in-flight runs, then releases the session. Later calls fail.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Store(int32(StateClosed))
	if e.session == nil {
		return nil
	}
	err := e.session.Close()
	e.session = nil
	if err != nil {
		return services.Wrap(services.ErrInference, "inference", "close session", "", err)
	}
	return nil
}

// markInference keeps classified provisioning errors as they are and tags
// everything else as an inference failure.
func markInference(err error, operation string) error {
	for _, marker := range []error{services.ErrIntegrity, services.ErrIO, services.ErrInference} {
		if errors.Is(err, marker) {
			return err
		}
	}
	return services.Wrap(services.ErrInference, "inference", operation, "", err)
}
