package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pixora/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and scaffold configuration",
	}
	cmd.AddCommand(newConfigInitCommand(), newConfigShowCommand(ctx), newConfigValidateCommand(ctx))
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		dest      string
		overwrite bool
	)
	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write an annotated sample configuration",
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, err := initTarget(dest)
			if err != nil {
				return err
			}
			if !overwrite {
				if _, err := os.Lstat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check %s: %w", target, err)
				}
			}
			if err := config.CreateSample(target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dest, "path", "p", "", "Where to write the file (default ~/.config/pixora/config.toml)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

// initTarget expands dest, or picks the per-user location when it is empty.
func initTarget(dest string) (string, error) {
	if dest == "" {
		return config.DefaultConfigPath()
	}
	return config.ExpandPath(dest)
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as TOML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			data, err := cfg.Encode()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Load the configuration and report problems",
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, resolved, exists, err := config.Load(ctx.configPath())
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			source := resolved
			if !exists {
				source += " (not found, using defaults)"
			}
			p := newStatusPrinter(cmd.OutOrStdout())
			p.section("Configuration")
			p.line("Config path", statusInfo, source)
			p.line("API bind", statusInfo, cfg.Paths.APIBind)
			p.line("Model path", statusInfo, cfg.ModelPath())
			p.line("Result", statusOK, "Configuration valid")
			return nil
		},
	}
}
