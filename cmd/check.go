package cmd

import (
	"stackctl/internal/app"

	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify that required tools and credentials are available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApplication(cmd, newAppConfig(), app.ModeCheck)
		},
	}
}
