package main

import (
	"encoding/json"
	"sort"

	"github.com/dshills/prdforge/internal/domain"
	"github.com/spf13/cobra"
)

func newStatsCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print usage analytics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := a.artifacts.Summary(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}

			printf(out, "Artifacts:        %d\n", summary.TotalArtifacts)
			printf(out, "Generations:      %d\n", summary.TotalGenerations)
			printf(out, "Exports:          %d\n", summary.TotalExports)
			printf(out, "Avg generation:   %dms\n", summary.AvgGenerationTimeMs)

			tools := make([]string, 0, len(summary.ByTool))
			for t := range summary.ByTool {
				tools = append(tools, string(t))
			}
			sort.Strings(tools)
			for _, t := range tools {
				printf(out, "  %-20s %d\n", domain.ToolType(t).Label(), summary.ByTool[domain.ToolType(t)])
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
