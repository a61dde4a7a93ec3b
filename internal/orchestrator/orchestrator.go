package orchestrator

import (
	"context"
	"io"
	"time"

	"stackctl/internal/backup"
	"stackctl/internal/config"
	"stackctl/internal/engine"
	"stackctl/internal/gate"
	"stackctl/internal/graph"
	"stackctl/internal/kube"
	"stackctl/internal/reporting"
	"stackctl/internal/variables"
	"stackctl/internal/workspace"

	"k8s.io/apimachinery/pkg/runtime/schema"
)

// PrerequisiteChecker is implemented by prereq.Checker.
type PrerequisiteChecker interface {
	Check(ctx context.Context) error
}

// Initializer is implemented by workspace.Workspace.
type Initializer interface {
	Prepare(ctx context.Context) (*workspace.Result, error)
}

// Confirmer is implemented by gate.Gate.
type Confirmer interface {
	Await(ctx context.Context, req gate.Request) error
}

// ClusterConnector is implemented by kube.Connector.
type ClusterConnector interface {
	Connect(ctx context.Context, ref kube.ClusterRef) (*kube.ClusterHandle, error)
}

// Options wires the components of a run. Everything environment specific
// travels through here; stages never read ambient state.
type Options struct {
	Environment string
	Out         io.Writer
	Reporter    reporting.Reporter

	Graph         *graph.Graph
	Engine        engine.Engine
	Prerequisites PrerequisiteChecker
	Workspace     Initializer
	Gate          Confirmer
	Connector     ClusterConnector

	VariableRules   variables.Rules
	RegionVariable  string
	PlanFile        string
	DestroyPlanFile string

	Outputs     config.OutputMapping
	ClusterNode string

	ManifestsDir  string
	ManifestFiles map[string][]string
	Namespaces    []string

	CoreTimeout            time.Duration
	AuxiliaryTimeout       time.Duration
	PollInterval           time.Duration
	NamespaceDeleteTimeout time.Duration

	BackupStore          backup.Store
	BackupResources      []schema.GroupVersionResource
	BackupIncludeSecrets bool
	BackupConcurrency    int

	// RemoveContext deletes the kubeconfig context after teardown. Nil
	// leaves the kubeconfig alone.
	RemoveContext func(kubeconfig, name string) error

	Now func() time.Time
}

// Orchestrator builds and runs the lifecycle pipelines.
type Orchestrator struct {
	opts Options
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Reporter == nil {
		opts.Reporter = reporting.NopReporter
	}
	return &Orchestrator{opts: opts}
}

func (o *Orchestrator) execute(ctx context.Context, p *Pipeline) *Run {
	st := NewState(o.opts.Environment, o.opts.Out)
	return p.Execute(ctx, st, o.opts.Reporter)
}

// Provision creates or updates the environment and deploys the workloads.
func (o *Orchestrator) Provision(ctx context.Context) *Run {
	return o.execute(ctx, o.ProvisionPipeline())
}

// Teardown backs up and deletes the workloads, then destroys the resource
// graph.
func (o *Orchestrator) Teardown(ctx context.Context) *Run {
	return o.execute(ctx, o.TeardownPipeline())
}

// Plan reviews the changes a provision run would make without applying them.
func (o *Orchestrator) Plan(ctx context.Context) *Run {
	return o.execute(ctx, o.PlanPipeline())
}

// Check only verifies prerequisites.
func (o *Orchestrator) Check(ctx context.Context) *Run {
	return o.execute(ctx, o.CheckPipeline())
}

// ProvisionPipeline returns the provisioning stages.
func (o *Orchestrator) ProvisionPipeline() *Pipeline {
	return &Pipeline{Name: "provision", Stages: []Stage{
		{Name: "prerequisites", Run: o.checkPrerequisites},
		{Name: "initialize", Run: o.initialize},
		{Name: "validate", Run: o.validate},
		{Name: "plan", Run: o.plan},
		{Name: "confirm-apply", Run: o.confirmApply},
		{Name: "apply", Run: o.apply},
		{Name: "outputs", Run: o.outputs},
		{Name: "connect", Run: o.connect},
		{Name: "deploy-manifests", Run: o.deployManifests},
		{Name: "await-rollout", Run: o.awaitRollout},
		{Name: "summary", Run: o.summary, Always: true},
	}}
}

// TeardownPipeline returns the teardown stages.
func (o *Orchestrator) TeardownPipeline() *Pipeline {
	return &Pipeline{Name: "teardown", Stages: []Stage{
		{Name: "prerequisites", Run: o.checkPrerequisites},
		{Name: "initialize", Run: o.initialize},
		{Name: "confirm-namespace-delete", Run: o.confirmNamespaceDelete},
		{Name: "outputs", Run: o.teardownOutputs},
		{Name: "connect", Run: o.teardownConnect},
		{Name: "backup", Run: o.backup},
		{Name: "delete-cluster-objects", Run: o.deleteClusterObjects},
		{Name: "destroy-plan", Run: o.destroyPlan},
		{Name: "confirm-destroy", Run: o.confirmDestroy},
		{Name: "destroy", Run: o.destroy},
		{Name: "cleanup", Run: o.cleanup, Always: true},
		{Name: "summary", Run: o.summary, Always: true},
	}}
}

// PlanPipeline returns the review-only stages.
func (o *Orchestrator) PlanPipeline() *Pipeline {
	return &Pipeline{Name: "plan", Stages: []Stage{
		{Name: "prerequisites", Run: o.checkPrerequisites},
		{Name: "initialize", Run: o.initialize},
		{Name: "validate", Run: o.validate},
		{Name: "plan", Run: o.reviewPlan},
		{Name: "summary", Run: o.summary, Always: true},
	}}
}

// CheckPipeline returns the prerequisites-only pipeline.
func (o *Orchestrator) CheckPipeline() *Pipeline {
	return &Pipeline{Name: "check", Stages: []Stage{
		{Name: "prerequisites", Run: o.checkPrerequisites},
	}}
}
