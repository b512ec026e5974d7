// Package daemonrun wires configuration, logging, the journal and the ONNX
// runtime into a daemon and runs it until the process is signalled.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"pixora/internal/config"
	"pixora/internal/daemon"
	"pixora/internal/fileutil"
	"pixora/internal/inference"
	"pixora/internal/journal"
	"pixora/internal/logging"
	"pixora/internal/preflight"
)

const (
	// cleanupGrace bounds how long shutdown waits for artifact removal.
	cleanupGrace = 5 * time.Second
	// currentLogName always points at the newest run log.
	currentLogName = "pixora.log"
)

// Options tunes the daemon process. Empty fields fall back to config.
type Options struct {
	LogLevel    string
	Development bool
	// Diagnostic adds a debug-level JSON log under <log_dir>/debug.
	Diagnostic bool
}

// Run starts the pixora daemon and blocks until ctx is cancelled or the
// process receives SIGINT or SIGTERM.
func Run(ctx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	sessionID := uuid.NewString()
	logger, closeLogs, err := openLogs(cfg, opts)
	if err != nil {
		return err
	}
	defer closeLogs()
	logger = logging.WithSessionID(logger, sessionID)

	logRuntimeSnapshot(logger, cfg)
	logPreflight(ctx, logger, cfg)

	pidPath := cfg.PIDPath()
	pid := strconv.Itoa(os.Getpid()) + "\n"
	if err := fileutil.WriteFileAtomic(pidPath, []byte(pid), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := journal.Open(ctx, cfg.JournalPath())
	if err != nil {
		logging.ErrorWithContext(logger, "journal unavailable", "journal_open_failed",
			logging.Error(err),
			logging.String("path", cfg.JournalPath()),
		)
		return err
	}
	pruneHistory(ctx, logger, store, cfg.Pipeline.HistoryRetentionDays)

	runtime := &inference.ONNXRuntime{
		LibraryPath:    cfg.Model.RuntimeLibrary,
		IntraOpThreads: cfg.Model.IntraOpThreads,
	}
	defer func() {
		if err := runtime.Shutdown(); err != nil {
			logger.Warn("onnxruntime shutdown failed", logging.Error(err))
		}
	}()

	d, err := daemon.New(daemon.Options{
		Config:    cfg,
		Logger:    logger,
		Journal:   store,
		Runtime:   runtime,
		SessionID: sessionID,
	})
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.api_bind and whether another pixora daemon is running"),
		)
		return err
	}

	<-ctx.Done()
	logger.Info("pixora daemon shutting down")
	d.Stop()
	if !d.WaitCleanup(cleanupGrace) {
		logging.WarnWithContext(logger, "artifact cleanup still running at exit", "artifact_cleanup_incomplete",
			logging.Duration("waited", cleanupGrace),
			logging.String(logging.FieldImpact, "leftover artifacts are swept on the next start"),
		)
	}
	return nil
}

// openLogs builds the process logger. Each run writes its own
// pixora-<stamp>.log, pixora.log is repointed at it and run logs older than
// the retention window are pruned.
func openLogs(cfg *config.Config, opts Options) (*slog.Logger, func(), error) {
	stamp := time.Now().UTC().Format("20060102-150405")
	runLog := filepath.Join(cfg.Paths.LogDir, "pixora-"+stamp+".log")

	level := strings.TrimSpace(opts.LogLevel)
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", runLog},
		ErrorOutputPaths: []string{"stderr", runLog},
		Development:      opts.Development,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}

	var closers []io.Closer
	debugDir := filepath.Join(cfg.Paths.LogDir, "debug")
	if opts.Diagnostic {
		debugLog := filepath.Join(debugDir, "pixora-"+stamp+".log")
		if handler, file, err := logging.NewFileHandler(debugLog); err != nil {
			fmt.Fprintf(os.Stderr, "warn: diagnostic log disabled: %v\n", err)
		} else {
			closers = append(closers, file)
			logger = logging.TeeLogger(logger, handler)
			logger.Info("diagnostic mode enabled",
				logging.String(logging.FieldEventType, "diagnostic_mode_enabled"),
				logging.String("debug_log_path", debugLog),
			)
		}
	}

	if err := pointCurrentLog(filepath.Join(cfg.Paths.LogDir, currentLogName), runLog); err != nil {
		logging.WarnWithContext(logger, "current log link not updated", "log_link_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "pixora logs may show an older run"),
		)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "pixora-*.log", Exclude: []string{runLog}},
		logging.RetentionTarget{Dir: debugDir, Pattern: "pixora-*.log"},
	)

	closeAll := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}
	return logger, closeAll, nil
}

// pointCurrentLog swaps link to refer to target by renaming a fresh symlink
// over it, falling back to a hard link where symlinks are unsupported.
func pointCurrentLog(link, target string) error {
	staged := link + ".next"
	_ = os.Remove(staged)
	if err := os.Symlink(filepath.Base(target), staged); err != nil {
		if err := os.Link(target, staged); err != nil {
			return fmt.Errorf("link %s: %w", filepath.Base(link), err)
		}
	}
	if err := os.Rename(staged, link); err != nil {
		_ = os.Remove(staged)
		return fmt.Errorf("replace %s: %w", filepath.Base(link), err)
	}
	return nil
}

func pruneHistory(ctx context.Context, logger *slog.Logger, store *journal.Store, days int) {
	if days <= 0 {
		return
	}
	removed, err := store.Prune(ctx, time.Now().AddDate(0, 0, -days))
	switch {
	case err != nil:
		logging.WarnWithContext(logger, "history prune failed", "history_prune_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "old runs remain in the journal"),
		)
	case removed > 0:
		logger.Info("history pruned",
			logging.Int64("removed", removed),
			logging.Int("retention_days", days),
			logging.String(logging.FieldEventType, "history_pruned"),
		)
	}
}

func logRuntimeSnapshot(logger *slog.Logger, cfg *config.Config) {
	_, modelErr := os.Stat(cfg.ModelPath())
	logger.Info("runtime snapshot",
		logging.String(logging.FieldEventType, "runtime_snapshot"),
		logging.String("api_bind", cfg.Paths.APIBind),
		logging.Bool("api_token_set", cfg.Paths.APIToken != ""),
		logging.String("temp_dir", cfg.Paths.TempDir),
		logging.String("model_path", cfg.ModelPath()),
		logging.Bool("model_present", modelErr == nil),
		logging.String("runtime_library", cfg.Model.RuntimeLibrary),
		logging.Int("workers", cfg.Pipeline.Workers),
	)
}

// logPreflight records failing offline checks; none of them stop the daemon.
func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, result := range preflight.Failed(preflight.RunAll(ctx, cfg, preflight.Options{})) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
		)
	}
}
