package orchestrator

import (
	"context"

	"stackctl/internal/reporting"
)

const sensitiveMask = "(sensitive)"

// summary prints the run report. It is suppressed when the run never got as
// far as having resources to report.
func (o *Orchestrator) summary(_ context.Context, st *State) (Outcome, error) {
	disposePlan(st.Plan)
	disposePlan(st.DestroyPlan)

	if !st.summaryReady {
		return skipped("no resources available"), nil
	}
	s := BuildSummary(st)
	reporting.RenderSummary(st.Out, s)
	st.run.Summary = &s
	return success("printed"), nil
}

// BuildSummary assembles the summary from the run so far.
func BuildSummary(st *State) reporting.Summary {
	run := st.run
	s := reporting.Summary{
		RunID:       run.ID,
		Pipeline:    run.Pipeline,
		Environment: st.Environment,
		Warnings:    run.Warnings(),
		Failed:      run.Failed(),
	}
	for _, r := range run.Results {
		msg := r.Message
		if r.Status == reporting.StatusFatal && r.Err != nil {
			msg = r.Err.Error()
		}
		s.Stages = append(s.Stages, reporting.StageLine{Name: r.Stage, Status: r.Status, Message: msg, Duration: r.Duration})
	}

	if ep := st.Endpoints; ep != nil && run.Pipeline == "provision" {
		value := func(field, v string) string {
			if ep.Sensitive[field] {
				return sensitiveMask
			}
			return v
		}
		s.Endpoints = []reporting.Endpoint{
			{Label: "Cluster name", Value: value("ClusterName", ep.ClusterName)},
			{Label: "Cluster endpoint", Value: value("ClusterEndpoint", ep.ClusterEndpoint)},
			{Label: "Database endpoint", Value: value("DatabaseEndpoint", ep.DatabaseEndpoint)},
			{Label: "Cache endpoint", Value: value("CacheEndpoint", ep.CacheEndpoint)},
			{Label: "Distribution domain", Value: value("DistributionDomain", ep.DistributionDomain)},
		}
	}
	for _, b := range st.Backups {
		s.Endpoints = append(s.Endpoints, reporting.Endpoint{Label: "Backup " + b.Namespace, Value: b.Path})
	}
	return s
}
