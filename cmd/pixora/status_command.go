package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pixora/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of the running daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *api.Client) error {
				status, err := client.Status(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, status)
				}
				printDaemonStatus(newStatusPrinter(cmd.OutOrStdout()), status)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw status as JSON")
	return cmd
}

func printDaemonStatus(p *statusPrinter, status api.DaemonStatus) {
	p.section("Daemon")
	if status.Running {
		p.line("State", statusOK, fmt.Sprintf("running (pid %d)", status.PID))
	} else {
		p.line("State", statusWarn, "stopped")
	}
	if status.StartedAt != "" {
		p.line("Started", statusInfo, status.StartedAt)
	}
	p.line("Workers", statusInfo, fmt.Sprintf("%d", status.Workers))
	p.line("Event subscribers", statusInfo, fmt.Sprintf("%d (%d dropped)", status.EventSubscribers, status.EventsDropped))

	p.section("Model")
	switch {
	case status.Model.Downloading:
		p.line("Model file", statusWarn, "downloading")
	case status.Model.Present:
		p.line("Model file", statusOK, fmt.Sprintf("%s (%s)", status.Model.Path, formatBytes(status.Model.SizeBytes)))
	default:
		p.line("Model file", statusWarn, "not downloaded; fetched on first background removal")
	}
	engineKind := statusInfo
	if status.Engine.State == "ready" {
		engineKind = statusOK
	}
	p.line("Session", engineKind, fmt.Sprintf("%s, %d in flight", status.Engine.State, status.Engine.InFlight))

	p.section("Artifacts")
	p.line("Tracked", statusInfo, fmt.Sprintf("%d", status.TrackedArtifacts))
	p.line("Temp dir", statusInfo, fmt.Sprintf("%s (%d files, %s)", status.TempDir, status.TempUsage.Files, formatBytes(status.TempUsage.Bytes)))
}
