package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pixora/internal/sysinfo"
)

func newSystemCommand(_ *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:         "system",
		Short:       "Show CPU and memory usage of this host",
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			info, err := sysinfo.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, info)
			}
			p := newStatusPrinter(cmd.OutOrStdout())
			p.section("System")
			p.line("CPUs", statusInfo, formatCount(int64(info.CPUCount)))
			p.line("CPU usage", usageKind(info.CPUUsage), fmt.Sprintf("%.1f%%", info.CPUUsage))
			if info.MemoryTotalMB > 0 {
				pct := float64(info.MemoryUsedMB) / float64(info.MemoryTotalMB) * 100
				p.line("Memory", usageKind(pct), fmt.Sprintf("%s / %s MB", formatCount(int64(info.MemoryUsedMB)), formatCount(int64(info.MemoryTotalMB))))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the snapshot as JSON")
	return cmd
}

func usageKind(pct float64) statusKind {
	switch {
	case pct >= 90:
		return statusError
	case pct >= 70:
		return statusWarn
	default:
		return statusOK
	}
}
