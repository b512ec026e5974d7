package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeModel(); err != nil {
		return err
	}
	c.normalizePipeline()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value := strings.TrimSpace(os.Getenv("PIXORA_API_BIND")); value != "" {
		c.Paths.APIBind = value
	}
	if value := strings.TrimSpace(os.Getenv("PIXORA_API_TOKEN")); value != "" {
		c.Paths.APIToken = value
	}

	// Order matters: model_dir falls back to the already expanded data_dir.
	dirs := []struct {
		key      string
		value    *string
		fallback func() string
	}{
		{"paths.data_dir", &c.Paths.DataDir, func() string { return defaultDataDir }},
		{"paths.model_dir", &c.Paths.ModelDir, func() string { return c.Paths.DataDir }},
		{"paths.temp_dir", &c.Paths.TempDir, defaultTempDir},
		{"paths.log_dir", &c.Paths.LogDir, func() string { return defaultLogDir }},
	}
	for _, dir := range dirs {
		if strings.TrimSpace(*dir.value) == "" {
			*dir.value = dir.fallback()
		}
		expanded, err := ExpandPath(*dir.value)
		if err != nil {
			return fmt.Errorf("%s: %w", dir.key, err)
		}
		*dir.value = expanded
	}

	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeModel() error {
	c.Model.BaseURL = strings.TrimSpace(c.Model.BaseURL)
	if c.Model.BaseURL == "" {
		c.Model.BaseURL = defaultModelBaseURL
	}
	if !strings.HasSuffix(c.Model.BaseURL, "/") {
		c.Model.BaseURL += "/"
	}
	c.Model.Key = strings.TrimSpace(c.Model.Key)
	if c.Model.Key == "" {
		c.Model.Key = defaultModelKey
	}
	c.Model.FileName = strings.TrimSpace(c.Model.FileName)
	if c.Model.FileName == "" {
		c.Model.FileName = defaultModelFileName
	}
	if c.Model.Resolution == 0 {
		c.Model.Resolution = defaultModelResolution
	}
	if c.Model.DownloadTimeout == 0 {
		c.Model.DownloadTimeout = defaultModelDownloadTimeout
	}
	c.Model.RuntimeLibrary = strings.TrimSpace(c.Model.RuntimeLibrary)
	if c.Model.RuntimeLibrary == "" {
		if value, ok := os.LookupEnv("PIXORA_ORT_LIBRARY"); ok {
			c.Model.RuntimeLibrary = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("ONNXRUNTIME_LIB"); ok {
			c.Model.RuntimeLibrary = strings.TrimSpace(value)
		}
	}
	if c.Model.RuntimeLibrary != "" {
		expanded, err := ExpandPath(c.Model.RuntimeLibrary)
		if err != nil {
			return fmt.Errorf("model.runtime_library: %w", err)
		}
		c.Model.RuntimeLibrary = expanded
	}
	return nil
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.Workers <= 0 {
		c.Pipeline.Workers = runtime.NumCPU()
	}
	if c.Pipeline.DefaultQuality == 0 {
		c.Pipeline.DefaultQuality = defaultQuality
	}
	if c.Pipeline.StaleArtifactMinutes < 0 {
		c.Pipeline.StaleArtifactMinutes = 0
	}
	if c.Pipeline.HistoryRetentionDays < 0 {
		c.Pipeline.HistoryRetentionDays = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
