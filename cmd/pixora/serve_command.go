package main

import (
	"github.com/spf13/cobra"

	"pixora/internal/daemonrun"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var (
		diagnostic  bool
		development bool
		logLevel    string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the pixora daemon in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if bind := ctx.apiOverride(); bind != "" {
				cfg.Paths.APIBind = bind
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
				Diagnostic:  diagnostic,
			})
		},
	}
	cmd.Flags().BoolVar(&diagnostic, "diagnostic", false, "Also write DEBUG logs to logs/debug")
	cmd.Flags().BoolVar(&development, "dev", false, "Include source locations in log output")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level")
	return cmd
}
