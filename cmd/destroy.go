package cmd

import (
	"stackctl/internal/app"

	"github.com/spf13/cobra"
)

func newDestroyCmd() *cobra.Command {
	var approvals approvalFlags

	cmd := &cobra.Command{
		Use:     "destroy",
		Aliases: []string{"teardown", "down"},
		Short:   "Back up and delete the workloads, then destroy the environment",
		Long: `Tears the environment down in two confirmed steps.

After the first confirmation the workload namespaces are backed up to the
backup directory (best effort) and deleted from the cluster. A destroy plan
is then computed and shown; after the second confirmation the resource graph
is destroyed one module at a time, dependents before their dependencies.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gates, err := approvals.gates()
			if err != nil {
				return err
			}
			cfg := newAppConfig()
			cfg.AutoApprove = approvals.autoApprove
			cfg.Approvals = gates
			return runApplication(cmd, cfg, app.ModeTeardown)
		},
	}
	approvals.register(cmd, "namespace-delete, destroy")
	return cmd
}
