package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"pixora/internal/api"
	"pixora/internal/artifacts"
)

func newArtifactsCommand(ctx *commandContext) *cobra.Command {
	artifactsCmd := &cobra.Command{
		Use:     "artifacts",
		Aliases: []string{"artifact"},
		Short:   "Manage temporary artifacts held by the daemon",
	}
	artifactsCmd.AddCommand(newArtifactsListCommand(ctx))
	artifactsCmd.AddCommand(newArtifactsDeleteCommand(ctx))
	artifactsCmd.AddCommand(newArtifactsCleanCommand(ctx))
	return artifactsCmd
}

func newArtifactsListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked artifacts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *api.Client) error {
				items, err := client.Artifacts(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, api.ArtifactListResponse{Artifacts: items})
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "No tracked artifacts")
					return nil
				}
				fmt.Fprintln(out, renderArtifactTable(items))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the list as JSON")
	return cmd
}

func newArtifactsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <path>...",
		Short: "Discard specific artifacts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				removed, err := client.DeleteArtifacts(cmd.Context(), args)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d of %d artifacts\n", removed, len(args))
				return nil
			})
		},
	}
}

func newArtifactsCleanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Discard every tracked artifact",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *api.Client) error {
				if err := client.DeleteAllArtifacts(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "All artifacts removed")
				return nil
			})
		},
	}
}

func renderArtifactTable(items []artifacts.Artifact) string {
	rows := make([][]string, 0, len(items))
	var total int64
	for _, item := range items {
		total += item.SizeBytes
		rows = append(rows, []string{
			filepath.Base(item.Path),
			formatBytes(item.SizeBytes),
			formatTimestamp(item.CreatedAt),
			item.Path,
		})
	}
	return tableView{
		headers: []string{"Name", "Size", "Created", "Path"},
		rows:    rows,
		footer:  []string{fmt.Sprintf("%d files", len(items)), formatBytes(total)},
		right:   []int{1},
	}.render()
}
