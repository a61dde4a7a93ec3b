package cmd

import (
	"stackctl/internal/app"

	"github.com/spf13/cobra"
)

func newPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show the changes deploy would make",
		Long: `Runs the deploy checks and computes a plan of the resource graph without
applying it. The plan file is removed afterwards.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApplication(cmd, newAppConfig(), app.ModePlan)
		},
	}
}
