package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateModel(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.TempDir) == "" {
		return errors.New("paths.temp_dir must be set")
	}
	if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
		return fmt.Errorf("paths.api_bind must be host:port: %w", err)
	}
	return nil
}

func (c *Config) validateModel() error {
	parsed, err := url.Parse(c.Model.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("model.base_url must be an absolute URL, got %q", c.Model.BaseURL)
	}
	if !strings.HasPrefix(c.Model.Key, "/") {
		return errors.New("model.key must start with '/'")
	}
	if strings.ContainsAny(c.Model.FileName, `/\`) {
		return errors.New("model.file_name must be a bare file name")
	}
	if c.Model.Resolution <= 0 {
		return errors.New("model.resolution must be positive")
	}
	if c.Model.DownloadTimeout <= 0 {
		return errors.New("model.download_timeout must be positive (seconds)")
	}
	if c.Model.IntraOpThreads < 0 {
		return errors.New("model.intra_op_threads must not be negative")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.DefaultQuality < 1 || c.Pipeline.DefaultQuality > 100 {
		return errors.New("pipeline.default_quality must be between 1 and 100")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
}
