package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"pixora/internal/artifacts"
	"pixora/internal/config"
	"pixora/internal/events"
	"pixora/internal/imaging"
	"pixora/internal/inference"
	"pixora/internal/journal"
	"pixora/internal/logging"
	"pixora/internal/modelstore"
	"pixora/internal/pipeline"
)

type processOutput struct {
	Input  string          `json:"input"`
	Output string          `json:"output"`
	Result pipeline.Result `json:"result"`
}

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var (
		output   string
		settings pipeline.Settings
		maxPx    int
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Run the processing pipeline on one image without the daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			input, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			if maxPx > 0 {
				settings.ResizeEnabled = true
				settings.ResizeMaxPx = maxPx
			}

			res, err := processFile(cmd, cfg, input, settings)
			if err != nil {
				return err
			}
			defer res.cleanup()
			dest := strings.TrimSpace(output)
			if dest == "" {
				dest = defaultOutputPath(input, res.result.Format)
			}
			if dest, err = config.ExpandPath(dest); err != nil {
				return err
			}
			if _, err := res.registry.Persist(res.result.Path, dest); err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, processOutput{Input: input, Output: dest, Result: res.result})
			}
			printProcessSummary(cmd.OutOrStdout(), dest, res.result)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: <input>.pixora.<ext>)")
	cmd.Flags().StringVarP(&settings.Format, "format", "f", "", "Output format: jpeg, png or webp")
	cmd.Flags().IntVarP(&settings.Quality, "quality", "q", 0, "Encoder quality 1-100 (default pipeline.default_quality)")
	cmd.Flags().IntVar(&maxPx, "max", 0, "Fit within this many pixels on each side")
	cmd.Flags().IntVar(&settings.ResizeCustomH, "max-height", 0, "Separate height bound used with --max")
	cmd.Flags().BoolVar(&settings.RemoveBgEnabled, "remove-bg", false, "Remove the background (forces png for jpeg output)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

type processRun struct {
	result   pipeline.Result
	registry *artifacts.Registry
	cleanup  func()
}

// processFile runs the pipeline in a private artifact directory under the
// system temp dir. The caller
// must invoke cleanup once the result has been copied out. The run is also
// recorded in the journal.
func processFile(cmd *cobra.Command, cfg *config.Config, input string, settings pipeline.Settings) (processRun, error) {
	data, err := os.ReadFile(input)
	if err != nil {
		return processRun{}, fmt.Errorf("read input: %w", err)
	}
	hint, _ := imaging.FormatFromExtension(filepath.Ext(input))
	blob := imaging.NewBlob(data, hint)

	logger, err := cliLogger(cfg)
	if err != nil {
		return processRun{}, err
	}

	// Not under paths.temp_dir, which a stopping daemon removes wholesale.
	workDir, err := os.MkdirTemp("", "pixora-process-")
	if err != nil {
		return processRun{}, fmt.Errorf("create work directory: %w", err)
	}
	registry := artifacts.NewRegistry(workDir, logger)
	cleanup := func() {
		_ = registry.DeleteAll()
	}

	opts := pipeline.Options{
		Artifacts:      registry,
		Workers:        1,
		DefaultQuality: cfg.Pipeline.DefaultQuality,
		Logger:         logger,
	}
	if store, err := journal.Open(cmd.Context(), cfg.JournalPath()); err == nil {
		defer store.Close()
		opts.Journal = store
	} else {
		logging.WarnWithContext(logger, "journal unavailable", "journal_open_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "this run is not recorded in history"),
		)
	}
	if settings.RemoveBgEnabled {
		engine, shutdown := newLocalEngine(cfg, logger, cmd.ErrOrStderr())
		defer shutdown()
		opts.Remover = engine
	}

	result, err := pipeline.New(opts).Process(cmd.Context(), blob, settings)
	if err != nil {
		cleanup()
		return processRun{}, err
	}
	return processRun{result: result, registry: registry, cleanup: cleanup}, nil
}

// newLocalEngine builds an inference engine for a one-shot CLI run. Model
// download notifications are echoed to progress.
func newLocalEngine(cfg *config.Config, logger *slog.Logger, progress io.Writer) (*inference.Engine, func()) {
	provisioner := newProvisioner(cfg, logger, progress)
	runtime := &inference.ONNXRuntime{
		LibraryPath:    cfg.Model.RuntimeLibrary,
		IntraOpThreads: cfg.Model.IntraOpThreads,
	}
	engine := inference.NewEngine(inference.Options{
		Runtime:    runtime,
		Models:     provisioner,
		Resolution: cfg.Model.Resolution,
		Logger:     logger,
	})
	return engine, func() {
		_ = engine.Close()
		_ = runtime.Shutdown()
	}
}

func newProvisioner(cfg *config.Config, logger *slog.Logger, progress io.Writer) *modelstore.Provisioner {
	return modelstore.New(modelstore.Options{
		Path:    cfg.ModelPath(),
		BaseURL: cfg.Model.BaseURL,
		Key:     cfg.Model.Key,
		Timeout: cfg.DownloadTimeout(),
		Observer: events.ObserverFunc(func(name string, _ any) {
			switch name {
			case events.ModelDownloading:
				fmt.Fprintln(progress, "Downloading background removal model...")
			case events.ModelDownloaded:
				fmt.Fprintln(progress, "Model download complete")
			}
		}),
		Logger: logger,
	})
}

// cliLogger logs warnings and errors to stderr so stdout stays parseable.
func cliLogger(cfg *config.Config) (*slog.Logger, error) {
	return logging.New(logging.Options{
		Level:            "warn",
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
}

func defaultOutputPath(input string, format imaging.Format) string {
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + ".pixora." + format.Extension()
}

func printProcessSummary(out io.Writer, dest string, result pipeline.Result) {
	fmt.Fprintf(out, "Wrote %s\n", dest)
	format := string(result.Format)
	if result.FormatForced {
		format += " (forced for transparency)"
	}
	fmt.Fprintf(out, "  %-10s %s\n", "Format:", format)
	fmt.Fprintf(out, "  %-10s %dx%d\n", "Size:", result.Width, result.Height)
	fmt.Fprintf(out, "  %-10s %s\n", "Bytes:", formatBytes(result.SizeBytes))
}
