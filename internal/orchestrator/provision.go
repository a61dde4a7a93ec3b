package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"stackctl/internal/engine"
	"stackctl/internal/gate"
	"stackctl/internal/kube"
	"stackctl/internal/manifest"
	"stackctl/internal/plan"
	"stackctl/internal/readiness"
	"stackctl/internal/reporting"
	"stackctl/internal/workspace"
	"stackctl/pkg/logging"
)

func (o *Orchestrator) checkPrerequisites(ctx context.Context, _ *State) (Outcome, error) {
	if err := o.opts.Prerequisites.Check(ctx); err != nil {
		return Outcome{}, stageErr(KindPrerequisiteMissing, err)
	}
	return success("all prerequisites present"), nil
}

func (o *Orchestrator) initialize(ctx context.Context, st *State) (Outcome, error) {
	res, err := o.opts.Workspace.Prepare(ctx)
	if err != nil {
		var absent *workspace.ConfigurationAbsentError
		if errors.As(err, &absent) {
			return Outcome{}, &StageError{Kind: KindConfigurationAbsent, Resource: absent.Path, Err: err}
		}
		return Outcome{}, stageErr(KindInitializationFailure, err)
	}
	st.Vars = res.Vars
	if res.Warning != nil {
		return warning([]string{res.Warning.Error()}, "working directory ready"), nil
	}
	return success("working directory initialized"), nil
}

func (o *Orchestrator) validate(ctx context.Context, st *State) (Outcome, error) {
	if err := o.opts.Graph.Validate(); err != nil {
		return Outcome{}, stageErr(KindValidationFailure, err)
	}
	if err := st.Vars.Validate(o.opts.VariableRules); err != nil {
		return Outcome{}, stageErr(KindValidationFailure, err)
	}
	if err := o.opts.Engine.Validate(ctx); err != nil {
		return Outcome{}, stageErr(KindValidationFailure, err)
	}
	return success("%d resource nodes, %d variables", len(o.opts.Graph.Nodes()), len(st.Vars.Names())), nil
}

func (o *Orchestrator) plan(ctx context.Context, st *State) (Outcome, error) {
	p, err := o.opts.Engine.Plan(ctx, engine.PlanRequest{Out: o.opts.PlanFile})
	if err != nil {
		return Outcome{}, stageErr(KindPlanGenerationFailure, err)
	}
	st.Plan = p
	if !p.HasChanges() {
		return success("no changes, infrastructure is up to date"), nil
	}
	return success("%s", p.Summary()), nil
}

func (o *Orchestrator) reviewPlan(ctx context.Context, st *State) (Outcome, error) {
	out, err := o.plan(ctx, st)
	if err != nil {
		return out, err
	}
	st.summaryReady = true
	if st.Plan.HasChanges() {
		fmt.Fprintln(st.Out, describeChanges(st.Plan))
	}
	return out, nil
}

func (o *Orchestrator) confirmApply(ctx context.Context, st *State) (Outcome, error) {
	if !st.Plan.HasChanges() {
		return skipped("nothing to apply"), nil
	}
	req := gate.Request{
		Gate:   gate.Apply,
		Title:  fmt.Sprintf("Apply %s to environment %s?", st.Plan.Summary(), st.Environment),
		Detail: describeChanges(st.Plan),
	}
	if err := o.opts.Gate.Await(ctx, req); err != nil {
		return Outcome{}, stageErr(KindUserDeclined, err)
	}
	st.Plan.Approve(string(gate.Apply))
	return success("approved"), nil
}

func (o *Orchestrator) apply(ctx context.Context, st *State) (Outcome, error) {
	if !st.Plan.HasChanges() {
		o.markAllAvailable()
		return skipped("nothing to apply"), nil
	}
	if err := st.Plan.Consume(); err != nil {
		return Outcome{}, stageErr(KindApplyFailure, err)
	}
	defer disposePlan(st.Plan)

	if err := o.opts.Engine.Apply(ctx, st.Plan); err != nil {
		se := stageErr(KindApplyFailure, err)
		var ae *engine.ApplyError
		if errors.As(err, &ae) {
			se.Resource = ae.Resource
		}
		if engine.IsInterrupted(err) {
			se.Kind = KindInterrupted
			logging.Warn("Stage-apply", "Apply was interrupted; resources may be partially created and are not cleaned up")
		}
		return Outcome{}, se
	}
	o.markAllAvailable()
	return success("%s", st.Plan.Summary()), nil
}

func (o *Orchestrator) markAllAvailable() {
	for _, n := range o.opts.Graph.Nodes() {
		_ = o.opts.Graph.MarkAvailable(n.ID)
	}
}

// resolveEndpoints reads the engine outputs named in the output mapping.
func (o *Orchestrator) resolveEndpoints(ctx context.Context) (*Endpoints, error) {
	outs, err := o.opts.Engine.Outputs(ctx)
	if err != nil {
		return nil, err
	}
	ep := &Endpoints{Sensitive: map[string]bool{}}
	get := func(field, name string) string {
		if name == "" {
			return ""
		}
		out, ok := outs[name]
		if !ok {
			logging.Debug("Outputs", "Output %s (%s) is not defined", name, field)
			return ""
		}
		if out.Sensitive {
			ep.Sensitive[field] = true
		}
		return out.Value
	}
	m := o.opts.Outputs
	ep.ClusterName = get("ClusterName", m.ClusterName)
	ep.ClusterEndpoint = get("ClusterEndpoint", m.ClusterEndpoint)
	ep.DatabaseEndpoint = get("DatabaseEndpoint", m.DatabaseEndpoint)
	ep.CacheEndpoint = get("CacheEndpoint", m.CacheEndpoint)
	ep.DistributionDomain = get("DistributionDomain", m.DistributionDomain)

	if ep.ClusterName == "" {
		return ep, fmt.Errorf("output %q is missing or empty", m.ClusterName)
	}
	return ep, nil
}

func (o *Orchestrator) outputs(ctx context.Context, st *State) (Outcome, error) {
	ep, err := o.resolveEndpoints(ctx)
	if err != nil {
		return Outcome{}, stageErr(KindOutputsUnavailable, err)
	}
	st.Endpoints = ep
	st.summaryReady = true
	return success("cluster %s", ep.ClusterName), nil
}

func (o *Orchestrator) clusterRef(st *State) kube.ClusterRef {
	ref := kube.ClusterRef{Name: st.Endpoints.ClusterName, Endpoint: st.Endpoints.ClusterEndpoint}
	if o.opts.RegionVariable != "" && st.Vars != nil {
		if region, ok := st.Vars.String(o.opts.RegionVariable); ok {
			ref.Region = region
		}
	}
	return ref
}

func (o *Orchestrator) connect(ctx context.Context, st *State) (Outcome, error) {
	if !o.opts.Graph.IsAvailable(o.opts.ClusterNode) {
		return Outcome{}, &StageError{Kind: KindConnectorFailure, Resource: o.opts.ClusterNode, Err: errors.New("cluster node is not available")}
	}
	handle, err := o.opts.Connector.Connect(ctx, o.clusterRef(st))
	if err != nil {
		return Outcome{}, &StageError{Kind: KindConnectorFailure, Resource: st.Endpoints.ClusterName, Err: err}
	}
	st.Cluster = handle
	return success("connected to %s (%s)", handle.Name, handle.Version), nil
}

func (o *Orchestrator) deployer(st *State) *manifest.Deployer {
	return &manifest.Deployer{
		API:                    st.Cluster.API,
		NamespaceDeleteTimeout: o.opts.NamespaceDeleteTimeout,
		PollInterval:           o.opts.PollInterval,
	}
}

func (o *Orchestrator) deployManifests(ctx context.Context, st *State) (Outcome, error) {
	set, err := manifest.Load(o.opts.ManifestsDir, o.opts.ManifestFiles)
	if err != nil {
		return Outcome{}, stageErr(KindManifestApplyFailure, err)
	}
	st.Manifests = set

	report, err := o.deployer(st).Deploy(ctx, set)
	st.Deployed = report
	if err != nil {
		se := stageErr(KindManifestApplyFailure, err)
		var ae *manifest.ApplyError
		if errors.As(err, &ae) {
			se.Resource = ae.Object.String()
		}
		return Outcome{}, se
	}

	applied := 0
	for _, s := range report.Stages {
		applied += len(s.Applied)
	}
	return warning(report.Warnings(), "%d objects applied", applied), nil
}

func (o *Orchestrator) awaitRollout(ctx context.Context, st *State) (Outcome, error) {
	targets := st.Manifests.Workloads()
	if len(targets) == 0 {
		return skipped("no workloads to wait for"), nil
	}
	w := &readiness.Waiter{
		API:              st.Cluster.API,
		CoreTimeout:      o.opts.CoreTimeout,
		AuxiliaryTimeout: o.opts.AuxiliaryTimeout,
		PollInterval:     o.opts.PollInterval,
	}
	report, err := w.Wait(ctx, targets)
	st.Readiness = report

	var warnings []string
	for _, r := range report.Failed(false) {
		warnings = append(warnings, fmt.Sprintf("%s not ready: %v", r.Target.Ref, r.Err))
	}
	ready := len(report.Results) - len(report.Failed(true)) - len(report.Failed(false))
	out := warning(warnings, "%d/%d workloads ready", ready, len(report.Results))

	if err != nil {
		// Auxiliary warnings ride along; the core failure decides the status.
		out.Status = reporting.StatusFatal
		se := stageErr(KindReadinessTimeout, err)
		var te *readiness.TimeoutError
		if errors.As(err, &te) && len(te.Failed) > 0 {
			se.Resource = te.Failed[0].Target.Ref.String()
		}
		return out, se
	}
	return out, nil
}

func describeChanges(p *plan.Plan) string {
	symbols := map[plan.Action]string{
		plan.ActionCreate:  "+",
		plan.ActionUpdate:  "~",
		plan.ActionDelete:  "-",
		plan.ActionReplace: "-/+",
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Plan: %s\n", p.Summary())
	for _, c := range p.Changes {
		if !c.Action.Mutating() {
			continue
		}
		fmt.Fprintf(&b, "  %-3s %s\n", symbols[c.Action], c.Address)
	}
	return strings.TrimRight(b.String(), "\n")
}

func disposePlan(p *plan.Plan) {
	if p == nil {
		return
	}
	if err := p.Dispose(); err != nil {
		logging.Warn("Pipeline", "Failed to remove plan file %s: %v", p.Path, err)
	}
}
