package testsupport

import (
	"path/filepath"
	"strings"
	"testing"

	"pixora/internal/config"
)

// ConfigOption adjusts a test configuration after the defaults are applied.
type ConfigOption func(*config.Config)

// NewConfig returns a configuration whose directories all live under a
// fresh t.TempDir. The API binds an ephemeral loopback port.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(root, "data")
	cfg.Paths.ModelDir = filepath.Join(root, "models")
	cfg.Paths.TempDir = filepath.Join(root, "tmp", "pixora")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Pipeline.Workers = 2
	cfg.Logging.Format = "json"
	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// BaseDir returns the temp directory NewConfig rooted cfg in.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}

// WithModelBaseURL points model downloads at url, typically an
// httptest server.
func WithModelBaseURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		if url != "" && !strings.HasSuffix(url, "/") {
			url += "/"
		}
		cfg.Model.BaseURL = url
	}
}

func WithWorkers(n int) ConfigOption {
	return func(cfg *config.Config) { cfg.Pipeline.Workers = n }
}

func WithModelResolution(res int) ConfigOption {
	return func(cfg *config.Config) { cfg.Model.Resolution = res }
}
