package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"pixora/internal/artifacts"
	"pixora/internal/imaging"
	"pixora/internal/journal"
	"pixora/internal/logging"
	"pixora/internal/services"
)

const defaultQuality = 85

// BackgroundRemover replaces the alpha channel of a raster with a foreground
// mask.
type BackgroundRemover interface {
	RemoveBackground(ctx context.Context, r *imaging.Raster) (*imaging.Raster, error)
}

// ArtifactWriter allocates, writes and tracks an output file.
type ArtifactWriter interface {
	Create(format imaging.Format, data []byte) (artifacts.Artifact, error)
}

// Recorder appends processing history.
type Recorder interface {
	Record(ctx context.Context, run journal.Run) (journal.Run, error)
}

// Options configures an Orchestrator.
type Options struct {
	Remover        BackgroundRemover
	Artifacts      ArtifactWriter
	Journal        Recorder
	Workers        int
	DefaultQuality int
	Logger         *slog.Logger
}

// Result describes a processed artifact.
type Result struct {
	Path         string         `json:"outputPath"`
	Width        int            `json:"width"`
	Height       int            `json:"height"`
	SizeBytes    int64          `json:"sizeBytes"`
	Format       imaging.Format `json:"format"`
	FormatForced bool           `json:"formatForced"`
	RequestID    string         `json:"requestId"`
}

// Orchestrator runs processing requests on a bounded worker pool.
type Orchestrator struct {
	remover        BackgroundRemover
	artifacts      ArtifactWriter
	journal        Recorder
	defaultQuality int
	workers        int
	pool           *semaphore.Weighted
	logger         *slog.Logger
}

// New constructs an Orchestrator. Artifacts is required; Remover and Journal
// are optional.
func New(opts Options) *Orchestrator {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	quality := opts.DefaultQuality
	if quality <= 0 {
		quality = defaultQuality
	}
	return &Orchestrator{
		remover:        opts.Remover,
		artifacts:      opts.Artifacts,
		journal:        opts.Journal,
		defaultQuality: quality,
		workers:        workers,
		pool:           semaphore.NewWeighted(int64(workers)),
		logger:         logging.NewComponentLogger(opts.Logger, "pipeline"),
	}
}

// Workers returns the pool size.
func (o *Orchestrator) Workers() int {
	return o.workers
}

// Do runs fn on a pool slot. Waiting for the slot honours ctx; fn itself is
// not interrupted.
func (o *Orchestrator) Do(ctx context.Context, fn func() error) error {
	if err := o.pool.Acquire(ctx, 1); err != nil {
		return services.Wrap(services.ErrIO, "pipeline", "acquire worker", "request cancelled while queued", err)
	}
	defer o.pool.Release(1)
	return fn()
}

// Process decodes blob, applies the requested stages and writes the encoded
// output to a new tracked artifact.
func (o *Orchestrator) Process(ctx context.Context, blob imaging.Blob, settings Settings) (Result, error) {
	requestID, ok := services.RequestIDFromContext(ctx)
	if !ok {
		requestID = uuid.NewString()
		ctx = services.WithRequestID(ctx, requestID)
	}
	logger := logging.WithContext(ctx, o.logger)

	p, err := settings.resolve(o.defaultQuality)
	if err != nil {
		return Result{}, err
	}
	if o.artifacts == nil {
		return Result{}, services.Wrap(services.ErrIO, "pipeline", "process", "artifact registry unavailable", nil)
	}

	start := time.Now()
	var (
		result Result
		source string
	)
	err = o.Do(ctx, func() error {
		var runErr error
		result, source, runErr = o.run(ctx, blob, p)
		return runErr
	})
	result.RequestID = requestID
	elapsed := time.Since(start)
	o.record(ctx, result, source, p, elapsed, err)

	if err != nil {
		logging.WarnWithContext(logger, "process failed", "process_failed",
			logging.String("error_kind", services.Kind(err)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the input image and settings"),
		)
		return Result{}, err
	}
	logger.Info("image processed",
		logging.String(logging.FieldEventType, "process_complete"),
		logging.String(logging.FieldArtifact, result.Path),
		logging.String("format", string(result.Format)),
		logging.Bool("format_forced", result.FormatForced),
		logging.Int("width", result.Width),
		logging.Int("height", result.Height),
		logging.Int64("bytes", result.SizeBytes),
		logging.Duration("elapsed", elapsed),
	)
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, blob imaging.Blob, p plan) (Result, string, error) {
	r, source, err := imaging.Decode(blob.Data, blob.Hint)
	if err != nil {
		return Result{}, "", err
	}

	if p.maxW > 0 {
		r = imaging.FitWithin(r, p.maxW, p.maxH)
	}

	if p.removeBg {
		if o.remover == nil {
			return Result{}, source, services.Wrap(services.ErrInference, "pipeline", "remove background", "no inference engine configured", nil)
		}
		r, err = o.remover.RemoveBackground(services.WithStage(ctx, "remove_background"), r)
		if err != nil {
			return Result{}, source, err
		}
	}

	data, err := imaging.Encode(r, p.format, p.quality)
	if err != nil {
		return Result{}, source, err
	}
	art, err := o.artifacts.Create(p.format, data)
	if err != nil {
		return Result{}, source, err
	}
	return Result{
		Path:         art.Path,
		Width:        r.Width(),
		Height:       r.Height(),
		SizeBytes:    art.SizeBytes,
		Format:       p.format,
		FormatForced: p.formatForced,
	}, source, nil
}

// RemoveBackground runs background removal alone and returns the result as a
// png data URL with the source dimensions.
func (o *Orchestrator) RemoveBackground(ctx context.Context, blob imaging.Blob) (string, error) {
	if o.remover == nil {
		return "", services.Wrap(services.ErrInference, "pipeline", "remove background", "no inference engine configured", nil)
	}
	var out string
	err := o.Do(ctx, func() error {
		r, _, err := imaging.Decode(blob.Data, blob.Hint)
		if err != nil {
			return err
		}
		masked, err := o.remover.RemoveBackground(services.WithStage(ctx, "remove_background"), r)
		if err != nil {
			return err
		}
		data, err := imaging.Encode(masked, imaging.FormatPNG, 0)
		if err != nil {
			return err
		}
		out = imaging.FormatDataURL(data, imaging.FormatPNG)
		return nil
	})
	return out, err
}

// Resize runs a standalone resize on a pool slot.
func (o *Orchestrator) Resize(ctx context.Context, blob imaging.Blob, opts imaging.ResizeOptions) (imaging.ResizeResult, error) {
	var out imaging.ResizeResult
	err := o.Do(ctx, func() error {
		var err error
		out, err = imaging.ResizeBlob(blob, opts)
		return err
	})
	return out, err
}

// Compress runs a standalone re-encode on a pool slot.
func (o *Orchestrator) Compress(ctx context.Context, blob imaging.Blob, opts imaging.CompressOptions) (imaging.CompressResult, error) {
	var out imaging.CompressResult
	err := o.Do(ctx, func() error {
		var err error
		out, err = imaging.CompressBlob(blob, opts)
		return err
	})
	return out, err
}

func (o *Orchestrator) record(ctx context.Context, result Result, source string, p plan, elapsed time.Duration, runErr error) {
	if o.journal == nil {
		return
	}
	run := journal.Run{
		RequestID:    result.RequestID,
		SourceFormat: source,
		OutputFormat: string(p.format),
		Width:        result.Width,
		Height:       result.Height,
		SizeBytes:    result.SizeBytes,
		RemoveBg:     p.removeBg,
		DurationMS:   elapsed.Milliseconds(),
		OutputPath:   result.Path,
		Status:       journal.StatusSucceeded,
	}
	if runErr != nil {
		run.Status = journal.StatusFailed
		run.ErrorMessage = runErr.Error()
	}
	// History is best effort; the request outcome does not depend on it.
	recordCtx := context.WithoutCancel(ctx)
	if _, err := o.journal.Record(recordCtx, run); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, o.logger), "journal write failed", "journal_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, fmt.Sprintf("request %s missing from history", result.RequestID)),
		)
	}
}
