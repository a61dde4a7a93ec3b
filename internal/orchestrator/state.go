package orchestrator

import (
	"io"

	"stackctl/internal/backup"
	"stackctl/internal/kube"
	"stackctl/internal/manifest"
	"stackctl/internal/plan"
	"stackctl/internal/readiness"
	"stackctl/internal/variables"
)

// Endpoints are the resource graph outputs shown in the summary. They are
// passed through without interpretation.
type Endpoints struct {
	ClusterName        string
	ClusterEndpoint    string
	DatabaseEndpoint   string
	CacheEndpoint      string
	DistributionDomain string

	// Sensitive lists the fields whose output was marked sensitive.
	Sensitive map[string]bool
}

// State is threaded through every stage of one run. Stages only read what
// earlier stages wrote.
type State struct {
	Environment string
	Out         io.Writer

	Vars        *variables.Set
	Plan        *plan.Plan
	DestroyPlan *plan.Plan
	Endpoints   *Endpoints

	Cluster   *kube.ClusterHandle
	Manifests *manifest.Set
	Deployed  *manifest.DeployReport
	Readiness *readiness.Report
	Backups   []backup.Artifact

	// summaryReady is set once there is something worth summarising.
	summaryReady bool
	run          *Run
}

// NewState creates the state for one run.
func NewState(environment string, out io.Writer) *State {
	if out == nil {
		out = io.Discard
	}
	return &State{Environment: environment, Out: out}
}
