package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pixora/internal/config"
	"pixora/internal/daemon"
	"pixora/internal/inference"
	"pixora/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

// setupCLITestEnv writes a config rooted in a temp directory and isolates
// the process environment from the developer's own settings.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("PIXORA_API_BIND", "")
	t.Setenv("PIXORA_API_TOKEN", "")

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()

	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if configPath != "" {
		args = append([]string{"--config", configPath}, args...)
	}
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q\noutput:\n%s", needle, haystack)
	}
}

type nopRuntime struct{}

func (nopRuntime) Load(string) (inference.Session, error) {
	return nil, os.ErrNotExist
}

// startTestDaemon serves a daemon's API from an httptest server without
// taking the daemon lock.
func startTestDaemon(t *testing.T, env *cliTestEnv) (*daemon.Daemon, string) {
	t.Helper()
	d, err := daemon.New(daemon.Options{
		Config:    env.cfg,
		Runtime:   nopRuntime{},
		SessionID: "cli-test",
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	srv := httptest.NewServer(d.Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = d.Close()
		_ = d.Registry().DeleteAll()
	})
	return d, srv.URL
}

func writeJPEG(t *testing.T, dir string, w, h int) string {
	t.Helper()
	path := filepath.Join(dir, "photo.jpg")
	if err := os.WriteFile(path, testsupport.EncodeJPEG(t, testsupport.Gradient(w, h)), 0o644); err != nil {
		t.Fatalf("write jpeg: %v", err)
	}
	return path
}
