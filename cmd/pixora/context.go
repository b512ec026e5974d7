package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"pixora/internal/api"
	"pixora/internal/config"
)

const apiTimeout = 2 * time.Minute

// skipConfigAnnotation marks commands that must run without a loadable
// configuration file.
const skipConfigAnnotation = "skipConfigLoad"

// commandContext carries global flag values and the lazily loaded
// configuration shared by every subcommand.
type commandContext struct {
	apiAddr  string
	confPath string

	loadConfig func() (*config.Config, error)
}

func newCommandContext() *commandContext {
	c := &commandContext{}
	c.loadConfig = sync.OnceValues(func() (*config.Config, error) {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			return nil, err
		}
		if err := cfg.EnsureDirectories(); err != nil {
			return nil, err
		}
		return cfg, nil
	})
	return c
}

func (c *commandContext) bindFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&c.apiAddr, "api", "", "Daemon API address (overrides paths.api_bind)")
	cmd.PersistentFlags().StringVarP(&c.confPath, "config", "c", "", "Configuration file path")
}

// ensureConfig loads the configuration once per process.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	return c.loadConfig()
}

func (c *commandContext) configPath() string  { return strings.TrimSpace(c.confPath) }
func (c *commandContext) apiOverride() string { return strings.TrimSpace(c.apiAddr) }

// apiBind returns --api when given, otherwise the configured bind.
func (c *commandContext) apiBind() string {
	if addr := c.apiOverride(); addr != "" {
		return addr
	}
	if cfg, err := c.ensureConfig(); err == nil {
		return cfg.Paths.APIBind
	}
	return ""
}

// withClient runs fn against the daemon API and rewrites transport failures
// into messages that tell the user what to do.
func (c *commandContext) withClient(fn func(*api.Client) error) error {
	var token string
	if cfg, err := c.ensureConfig(); err == nil {
		token = cfg.Paths.APIToken
	}
	bind := c.apiBind()
	client, err := api.NewClient(bind, token, apiTimeout)
	if err != nil {
		return fmt.Errorf("api client: %w", err)
	}
	if client == nil {
		return errors.New("no daemon address: set paths.api_bind or pass --api")
	}
	if err := fn(client); err != nil {
		return explainAPIError(err, bind)
	}
	return nil
}

func explainAPIError(err error, bind string) error {
	if api.IsUnavailable(err) {
		return fmt.Errorf("connect to daemon: nothing is listening on %s; start the daemon with `pixora serve`", bind)
	}
	var statusErr *api.StatusError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusUnauthorized {
		return errors.New("daemon rejected the request: set paths.api_token or PIXORA_API_TOKEN to match the daemon")
	}
	return err
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for ; cmd != nil; cmd = cmd.Parent() {
		if cmd.Annotations[skipConfigAnnotation] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
