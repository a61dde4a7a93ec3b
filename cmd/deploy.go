package cmd

import (
	"stackctl/internal/app"

	"github.com/spf13/cobra"
)

func newDeployCmd() *cobra.Command {
	var approvals approvalFlags
	var copySummary bool

	cmd := &cobra.Command{
		Use:     "deploy",
		Aliases: []string{"provision", "up"},
		Short:   "Provision the environment and deploy its workloads",
		Long: `Checks prerequisites, initializes the Terraform working directory, validates
the variable file and plans the resource graph. After the plan is approved it
is applied, the cluster credentials are fetched and the Kubernetes manifests
are applied stage by stage. The command waits for the workloads to roll out
and prints a summary of the environment's endpoints.

Re-running deploy on an up-to-date environment applies nothing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gates, err := approvals.gates()
			if err != nil {
				return err
			}
			cfg := newAppConfig()
			cfg.AutoApprove = approvals.autoApprove
			cfg.Approvals = gates
			cfg.CopySummary = copySummary
			return runApplication(cmd, cfg, app.ModeProvision)
		},
	}
	approvals.register(cmd, "apply")
	cmd.Flags().BoolVar(&copySummary, "copy-summary", false, "copy the endpoint summary to the clipboard")
	return cmd
}
