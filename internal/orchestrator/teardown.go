package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"stackctl/internal/backup"
	"stackctl/internal/engine"
	"stackctl/internal/gate"
	"stackctl/internal/manifest"
	"stackctl/pkg/logging"
)

func (o *Orchestrator) confirmNamespaceDelete(ctx context.Context, st *State) (Outcome, error) {
	req := gate.Request{
		Gate:   gate.NamespaceDelete,
		Title:  fmt.Sprintf("Delete namespaces %s in environment %s?", strings.Join(o.opts.Namespaces, ", "), st.Environment),
		Detail: "Objects in these namespaces are backed up (best effort) and then deleted from the cluster.",
	}
	if err := o.opts.Gate.Await(ctx, req); err != nil {
		return Outcome{}, stageErr(KindUserDeclined, err)
	}
	st.summaryReady = true
	return success("approved"), nil
}

func (o *Orchestrator) teardownOutputs(ctx context.Context, st *State) (Outcome, error) {
	ep, err := o.resolveEndpoints(ctx)
	if err != nil {
		return warning([]string{"cluster outputs unavailable, cluster steps are skipped"}, "outputs unavailable"),
			stageErr(KindOutputsUnavailable, err)
	}
	st.Endpoints = ep
	return success("cluster %s", ep.ClusterName), nil
}

func (o *Orchestrator) teardownConnect(ctx context.Context, st *State) (Outcome, error) {
	if st.Endpoints == nil {
		return skipped("no cluster outputs"), nil
	}
	handle, err := o.opts.Connector.Connect(ctx, o.clusterRef(st))
	if err != nil {
		return warning([]string{"cluster unreachable, backup and object deletion are skipped"}, "cluster unreachable"),
			&StageError{Kind: KindConnectorFailure, Resource: st.Endpoints.ClusterName, Err: err}
	}
	st.Cluster = handle
	return success("connected to %s", handle.Name), nil
}

// backup never fails the run: a missing backup is a warning.
func (o *Orchestrator) backup(ctx context.Context, st *State) (Outcome, error) {
	if st.Cluster == nil {
		return skipped("cluster not connected"), nil
	}
	agent := &backup.Agent{
		API:            st.Cluster.API,
		Store:          o.opts.BackupStore,
		Environment:    st.Environment,
		Resources:      o.opts.BackupResources,
		IncludeSecrets: o.opts.BackupIncludeSecrets,
		Concurrency:    o.opts.BackupConcurrency,
		Now:            o.opts.Now,
	}
	artifacts, err := agent.Backup(ctx, o.opts.Namespaces)
	st.Backups = artifacts
	if err != nil {
		return warning([]string{"backup incomplete: " + err.Error()}, "%d of %d namespaces backed up", len(artifacts), len(o.opts.Namespaces)),
			stageErr(KindBackupFailure, err)
	}
	return success("%d namespaces backed up", len(artifacts)), nil
}

func (o *Orchestrator) deleteClusterObjects(ctx context.Context, st *State) (Outcome, error) {
	if st.Cluster == nil {
		return skipped("cluster not connected"), nil
	}
	set, err := manifest.Load(o.opts.ManifestsDir, o.opts.ManifestFiles)
	if err != nil {
		logging.Warn("Stage-delete-cluster-objects", "Manifests unavailable, deleting namespaces only: %v", err)
		set = nil
	}
	report, err := o.deployer(st).Delete(ctx, set, o.opts.Namespaces)
	if err != nil {
		return Outcome{}, stageErr(KindClusterObjectDeletionFailure, err)
	}
	var warnings []string
	for _, ns := range report.Terminating {
		warnings = append(warnings, fmt.Sprintf("namespace %s still terminating", ns))
	}
	return warning(warnings, "%d objects deleted", len(report.Deleted)), nil
}

func (o *Orchestrator) destroyPlan(ctx context.Context, st *State) (Outcome, error) {
	p, err := o.opts.Engine.Plan(ctx, engine.PlanRequest{Out: o.opts.DestroyPlanFile, Destroy: true})
	if err != nil {
		return Outcome{}, stageErr(KindDestroyPlanFailure, err)
	}
	st.DestroyPlan = p
	if !p.HasChanges() {
		return success("nothing to destroy"), nil
	}
	return success("%s", p.Summary()), nil
}

func (o *Orchestrator) confirmDestroy(ctx context.Context, st *State) (Outcome, error) {
	if !st.DestroyPlan.HasChanges() {
		return skipped("nothing to destroy"), nil
	}
	req := gate.Request{
		Gate:   gate.Destroy,
		Title:  fmt.Sprintf("Destroy environment %s (%s)?", st.Environment, st.DestroyPlan.Summary()),
		Detail: describeChanges(st.DestroyPlan),
	}
	if err := o.opts.Gate.Await(ctx, req); err != nil {
		return Outcome{}, stageErr(KindUserDeclined, err)
	}
	st.DestroyPlan.Approve(string(gate.Destroy))
	return success("approved"), nil
}

func (o *Orchestrator) destroy(ctx context.Context, st *State) (Outcome, error) {
	if !st.DestroyPlan.HasChanges() {
		return skipped("nothing to destroy"), nil
	}
	d := &Destroyer{Engine: o.opts.Engine, Graph: o.opts.Graph, PlanFile: o.opts.DestroyPlanFile}
	destroyed, err := d.Destroy(ctx, st.DestroyPlan)
	if err != nil {
		se := stageErr(KindDestroyFailure, err)
		var de *DestroyError
		if errors.As(err, &de) {
			se.Resource = de.Target()
		}
		if engine.IsInterrupted(err) {
			se.Kind = KindInterrupted
			logging.Warn("Stage-destroy", "Destroy was interrupted; resources may be partially deleted and are not cleaned up")
		}
		return Outcome{}, se
	}
	return success("destroyed %s", strings.Join(destroyed, ", ")), nil
}

// cleanup disposes plan files and, after a successful destroy, removes the
// kubeconfig context.
func (o *Orchestrator) cleanup(_ context.Context, st *State) (Outcome, error) {
	disposePlan(st.Plan)
	disposePlan(st.DestroyPlan)

	if st.run.Err != nil || o.opts.RemoveContext == nil || st.Cluster == nil || st.Cluster.Context == "" {
		return skipped("kubeconfig left unchanged"), nil
	}
	if err := o.opts.RemoveContext(st.Cluster.Kubeconfig, st.Cluster.Context); err != nil {
		return warning([]string{fmt.Sprintf("failed to remove context %s: %v", st.Cluster.Context, err)}, "kubeconfig cleanup failed"), nil
	}
	return success("removed context %s", st.Cluster.Context), nil
}
