package preflight

import (
	"context"
	"net/http"

	"pixora/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Optional bool   `json:"optional,omitempty"`
	Detail   string `json:"detail"`
}

// Severity classifies r as "ok", "warn" or "error".
func (r Result) Severity() string {
	switch {
	case r.Passed:
		return "ok"
	case r.Optional:
		return "warn"
	default:
		return "error"
	}
}

// Options selects which checks RunAll performs.
type Options struct {
	// Network enables the model source probe.
	Network bool
	Client  *http.Client
}

// RunAll executes the checks that apply to cfg.
func RunAll(ctx context.Context, cfg *config.Config, opts Options) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Temp directory", cfg.Paths.TempDir),
		CheckDirectoryAccess("Model directory", cfg.Paths.ModelDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckRuntimeLibrary(cfg.Model.RuntimeLibrary),
	}

	model := CheckModel(cfg.ModelPath())
	results = append(results, model)
	if opts.Network && !model.Passed {
		results = append(results, CheckModelSource(ctx, opts.Client, cfg.ManifestURL()))
	}
	return results
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			failed = append(failed, r)
		}
	}
	return failed
}
