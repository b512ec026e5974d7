package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pixora/internal/journal"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent processing runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := journal.Open(cmd.Context(), cfg.JournalPath())
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, runs)
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			fmt.Fprintln(out, renderHistoryTable(runs))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", journal.DefaultRecentLimit, "Number of runs to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print runs as JSON")
	return cmd
}

func renderHistoryTable(runs []journal.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		output := run.OutputFormat
		if run.RemoveBg {
			output += " +bg"
		}
		size := "-"
		if run.Width > 0 {
			size = fmt.Sprintf("%dx%d", run.Width, run.Height)
		}
		status := string(run.Status)
		if run.ErrorMessage != "" {
			status = fmt.Sprintf("%s: %s", status, truncate(run.ErrorMessage, 48))
		}
		rows = append(rows, []string{
			formatTimestamp(run.CreatedAt),
			strings.ToUpper(run.SourceFormat),
			output,
			size,
			formatBytes(run.SizeBytes),
			(time.Duration(run.DurationMS) * time.Millisecond).String(),
			status,
		})
	}
	return tableView{
		headers: []string{"Time", "Source", "Output", "Size", "Bytes", "Took", "Status"},
		rows:    rows,
		right:   []int{3, 4, 5},
	}.render()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
