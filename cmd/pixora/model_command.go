package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pixora/internal/modelstore"
)

func newModelCommand(ctx *commandContext) *cobra.Command {
	modelCmd := &cobra.Command{
		Use:   "model",
		Short: "Inspect or download the background removal model",
	}
	modelCmd.AddCommand(newModelStatusCommand(ctx))
	modelCmd.AddCommand(newModelFetchCommand(ctx))
	return modelCmd
}

func newModelStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the local model file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := cliLogger(cfg)
			if err != nil {
				return err
			}
			status, err := newProvisioner(cfg, logger, cmd.ErrOrStderr()).Status()
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, status)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderModelStatus(status, cfg.ManifestURL()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the status as JSON")
	return cmd
}

func newModelFetchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Download the model now instead of on first use",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := cliLogger(cfg)
			if err != nil {
				return err
			}
			provisioner := newProvisioner(cfg, logger, cmd.ErrOrStderr())
			path, err := provisioner.Ensure(cmd.Context())
			if err != nil {
				return err
			}
			status, err := provisioner.Status()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Model ready at %s (%s)\n", path, formatBytes(status.SizeBytes))
			return nil
		},
	}
}

func renderModelStatus(status modelstore.Status, manifestURL string) string {
	modified := "-"
	if !status.ModTime.IsZero() {
		modified = formatTimestamp(status.ModTime)
	}
	digest := status.Digest
	if digest == "" {
		digest = "-"
	}
	rows := [][]string{
		{"Path", status.Path},
		{"Present", yesNo(status.Present)},
		{"Size", formatBytes(status.SizeBytes)},
		{"Modified", modified},
		{"BLAKE3", digest},
		{"Downloading", yesNo(status.Downloading)},
		{"Manifest", manifestURL},
	}
	return tableView{headers: []string{"Field", "Value"}, rows: rows}.render()
}
