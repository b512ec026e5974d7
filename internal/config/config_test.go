package config_test

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"pixora/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("PIXORA_ORT_LIBRARY", "")
	t.Setenv("PIXORA_API_BIND", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "pixora")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.ModelDir != wantData {
		t.Fatalf("expected model dir to default to data dir, got %q", cfg.Paths.ModelDir)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7491" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.ModelPath() != filepath.Join(wantData, "isnet_quint8.onnx") {
		t.Fatalf("unexpected model path: %q", cfg.ModelPath())
	}
	if !strings.HasSuffix(cfg.ManifestURL(), "/dist/resources.json") {
		t.Fatalf("unexpected manifest url: %q", cfg.ManifestURL())
	}
	if cfg.Pipeline.Workers != runtime.NumCPU() {
		t.Fatalf("expected workers to default to NumCPU, got %d", cfg.Pipeline.Workers)
	}
	if cfg.Model.Resolution != 1024 {
		t.Fatalf("unexpected resolution: %d", cfg.Model.Resolution)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
}

func TestLoadCustomConfigFile(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("PIXORA_API_BIND", "")

	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `
[paths]
data_dir = "~/pixora-data"
temp_dir = "~/pixora-tmp"

[model]
base_url = "http://127.0.0.1:9000/dist"

[pipeline]
workers = 3
default_quality = 70

[logging]
format = "JSON"
level = "DEBUG"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("unexpected resolution: %q exists=%v", resolved, exists)
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "pixora-data") {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	if cfg.Paths.TempDir != filepath.Join(tempHome, "pixora-tmp") {
		t.Fatalf("unexpected temp dir: %q", cfg.Paths.TempDir)
	}
	if cfg.Model.BaseURL != "http://127.0.0.1:9000/dist/" {
		t.Fatalf("expected trailing slash on base url, got %q", cfg.Model.BaseURL)
	}
	if cfg.Pipeline.Workers != 3 || cfg.Pipeline.DefaultQuality != 70 {
		t.Fatalf("unexpected pipeline config: %+v", cfg.Pipeline)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PIXORA_API_BIND", "127.0.0.1:9911")
	t.Setenv("PIXORA_ORT_LIBRARY", "/opt/ort/libonnxruntime.so")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.APIBind != "127.0.0.1:9911" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Model.RuntimeLibrary != "/opt/ort/libonnxruntime.so" {
		t.Fatalf("unexpected runtime library: %q", cfg.Model.RuntimeLibrary)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"quality", func(c *config.Config) { c.Pipeline.DefaultQuality = 101 }, "pipeline.default_quality"},
		{"bind", func(c *config.Config) { c.Paths.APIBind = "localhost" }, "paths.api_bind"},
		{"base url", func(c *config.Config) { c.Model.BaseURL = "not-a-url/" }, "model.base_url"},
		{"key", func(c *config.Config) { c.Model.Key = "models/isnet" }, "model.key"},
		{"file name", func(c *config.Config) { c.Model.FileName = "../evil.onnx" }, "model.file_name"},
		{"level", func(c *config.Config) { c.Logging.Level = "verbose" }, "logging.level"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in %v", tc.want, err)
			}
		})
	}
}

func TestEnsureDirectoriesCreatesPaths(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.ModelDir = filepath.Join(base, "models")
	cfg.Paths.TempDir = filepath.Join(base, "tmp")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.ModelDir, cfg.Paths.TempDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}

func TestCreateSampleIsValidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("sample config is not valid TOML: %v", err)
	}
	if cfg.Model.Key != "/models/isnet_quint8" {
		t.Fatalf("unexpected sample model key: %q", cfg.Model.Key)
	}
}

func TestLoadReportsParseErrorLocation(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "broken.toml")
	if err := os.WriteFile(path, []byte("[pipeline]\nworkers = = 2\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, _, _, err := config.Load(path)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), path+":2:") {
		t.Fatalf("expected line number in error, got %v", err)
	}
}

func TestLoadPrefersProjectFileWithoutUserConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PIXORA_API_BIND", "")
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, "pixora.toml"), []byte("[paths]\napi_bind = \"127.0.0.1:7000\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || filepath.Base(resolved) != "pixora.toml" {
		t.Fatalf("unexpected resolution %q exists=%v", resolved, exists)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7000" {
		t.Fatalf("api bind = %q", cfg.Paths.APIBind)
	}
}
