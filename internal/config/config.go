package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Paths locates on-disk state and the API listener.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	ModelDir string `toml:"model_dir"`
	TempDir  string `toml:"temp_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Model selects the segmentation model, where it is downloaded from and
// which ONNX Runtime library executes it.
type Model struct {
	BaseURL         string `toml:"base_url"`
	Key             string `toml:"key"`
	FileName        string `toml:"file_name"`
	Resolution      int    `toml:"resolution"`
	DownloadTimeout int    `toml:"download_timeout"` // seconds
	RuntimeLibrary  string `toml:"runtime_library"`
	IntraOpThreads  int    `toml:"intra_op_threads"`
}

type Pipeline struct {
	Workers              int `toml:"workers"`
	DefaultQuality       int `toml:"default_quality"`
	StaleArtifactMinutes int `toml:"stale_artifact_minutes"`
	HistoryRetentionDays int `toml:"history_retention_days"`
}

type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config is the full daemon and CLI configuration, one TOML table per
// section.
type Config struct {
	Paths    Paths    `toml:"paths"`
	Model    Model    `toml:"model"`
	Pipeline Pipeline `toml:"pipeline"`
	Logging  Logging  `toml:"logging"`
}

// ModelPath is where the segmentation model is stored.
func (c *Config) ModelPath() string { return filepath.Join(c.Paths.ModelDir, c.Model.FileName) }

// ManifestURL is the chunk manifest published next to the model chunks.
func (c *Config) ManifestURL() string { return c.Model.BaseURL + "resources.json" }

func (c *Config) JournalPath() string { return filepath.Join(c.Paths.DataDir, "journal.db") }
func (c *Config) LockPath() string    { return filepath.Join(c.Paths.DataDir, "pixora.lock") }
func (c *Config) PIDPath() string     { return filepath.Join(c.Paths.DataDir, "pixora.pid") }

func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Model.DownloadTimeout) * time.Second
}

// StaleArtifactAge is how old an orphaned artifact must be before the
// startup sweep removes it.
func (c *Config) StaleArtifactAge() time.Duration {
	return time.Duration(c.Pipeline.StaleArtifactMinutes) * time.Minute
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
