package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pixora/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var (
		offline bool
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, the ONNX Runtime library and the model",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg, preflight.Options{Network: !offline})
			if asJSON {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else {
				p := newStatusPrinter(cmd.OutOrStdout())
				p.section("Preflight")
				for _, r := range results {
					p.line(r.Name, statusKindFromSeverity(r.Severity()), r.Detail)
				}
			}
			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d required check(s) failed", len(failed))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the model source probe")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	return cmd
}

func statusKindFromSeverity(severity string) statusKind {
	switch severity {
	case "ok":
		return statusOK
	case "warn":
		return statusWarn
	case "error":
		return statusError
	default:
		return statusInfo
	}
}
