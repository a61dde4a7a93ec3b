package cmd

import (
	"stackctl/internal/gate"

	"github.com/spf13/cobra"
)

type approvalFlags struct {
	autoApprove bool
	approve     []string
}

func (f *approvalFlags) register(cmd *cobra.Command, gates string) {
	cmd.Flags().BoolVar(&f.autoApprove, "auto-approve", false, "approve every confirmation gate without prompting")
	cmd.Flags().StringSliceVar(&f.approve, "approve", nil, "pre-approve a single gate ("+gates+"), may be repeated")
}

func (f *approvalFlags) gates() ([]gate.ID, error) {
	out := make([]gate.ID, 0, len(f.approve))
	for _, s := range f.approve {
		id, err := gate.ParseID(s)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
