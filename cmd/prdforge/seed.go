package main

import (
	"github.com/spf13/cobra"
)

func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load sample PRDs into an empty database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.artifacts.Seed(cmd.Context())
			if err != nil {
				return err
			}
			if n == 0 {
				printf(cmd.OutOrStdout(), "Database already has artifacts, nothing seeded\n")
				return nil
			}
			printf(cmd.OutOrStdout(), "Seeded %d sample PRDs\n", n)
			return nil
		},
	}
}
