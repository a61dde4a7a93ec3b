package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stackctl/internal/reporting"
	"stackctl/pkg/logging"

	"github.com/google/uuid"
)

// Outcome is what a stage reports besides its error.
type Outcome struct {
	Status   reporting.Status
	Message  string
	Warnings []string
}

func success(format string, args ...interface{}) Outcome {
	return Outcome{Status: reporting.StatusSuccess, Message: fmt.Sprintf(format, args...)}
}

func skipped(format string, args ...interface{}) Outcome {
	return Outcome{Status: reporting.StatusSkipped, Message: fmt.Sprintf(format, args...)}
}

// warning builds a Warning outcome. With no warnings it is a success.
func warning(warnings []string, format string, args ...interface{}) Outcome {
	if len(warnings) == 0 {
		return success(format, args...)
	}
	return Outcome{Status: reporting.StatusWarning, Message: fmt.Sprintf(format, args...), Warnings: warnings}
}

// StageFunc runs one stage. A non-nil error is fatal unless the outcome is a
// Warning, in which case the error is recorded and the pipeline continues.
type StageFunc func(ctx context.Context, st *State) (Outcome, error)

// Stage is one named step of a pipeline.
type Stage struct {
	Name string
	Run  StageFunc

	// Always stages run even after a fatal stage.
	Always bool
}

// StageResult records how a stage ended.
type StageResult struct {
	Stage    string
	Status   reporting.Status
	Message  string
	Warnings []string
	Err      error
	Duration time.Duration
}

// Run is one execution of a pipeline.
type Run struct {
	ID          string
	Pipeline    string
	Environment string
	StartedAt   time.Time
	Results     []StageResult

	// Err is the first fatal stage error.
	Err error

	// Summary is set when the summary stage rendered one.
	Summary *reporting.Summary
}

// Failed reports whether a stage was fatal.
func (r *Run) Failed() bool {
	return r.Err != nil
}

// Result returns the result of the named stage.
func (r *Run) Result(stage string) (StageResult, bool) {
	for _, res := range r.Results {
		if res.Stage == stage {
			return res, true
		}
	}
	return StageResult{}, false
}

// Warnings collects every stage warning in order.
func (r *Run) Warnings() []string {
	var out []string
	for _, res := range r.Results {
		for _, w := range res.Warnings {
			out = append(out, fmt.Sprintf("%s: %s", res.Stage, w))
		}
	}
	return out
}

// Pipeline is an ordered list of stages executed strictly in sequence.
type Pipeline struct {
	Name   string
	Stages []Stage
}

// Execute runs the stages in order over st. Execution stops at the first
// fatal stage; Always stages still run. Cancellation is checked before every
// stage. Run.Err holds the first fatal stage error.
func (p *Pipeline) Execute(ctx context.Context, st *State, rep reporting.Reporter) *Run {
	if rep == nil {
		rep = reporting.NopReporter
	}
	run := &Run{
		ID:          uuid.NewString(),
		Pipeline:    p.Name,
		Environment: st.Environment,
		StartedAt:   time.Now(),
	}
	st.run = run
	logging.Info("Pipeline", "Starting %s run %s for environment %s", p.Name, run.ID, st.Environment)

	for _, stage := range p.Stages {
		if run.Err != nil && !stage.Always {
			continue
		}
		if run.Err == nil {
			if err := ctx.Err(); err != nil {
				se := &StageError{Kind: KindInterrupted, Stage: stage.Name, Err: err}
				p.record(rep, run, StageResult{Stage: stage.Name, Status: reporting.StatusFatal, Err: se})
				run.Err = se
				continue
			}
		}

		rep.Report(reporting.StageUpdate{Timestamp: time.Now(), RunID: run.ID, Pipeline: p.Name, Stage: stage.Name, Status: reporting.StatusRunning})
		start := time.Now()
		outcome, err := stage.Run(ctx, st)
		res := StageResult{
			Stage:    stage.Name,
			Status:   outcome.Status,
			Message:  outcome.Message,
			Warnings: outcome.Warnings,
			Duration: time.Since(start),
		}

		if err != nil {
			se := classify(ctx, stage.Name, err)
			res.Err = se
			if outcome.Status == reporting.StatusWarning {
				if len(res.Warnings) == 0 {
					res.Warnings = []string{err.Error()}
				}
			} else {
				res.Status = reporting.StatusFatal
				if run.Err == nil {
					run.Err = se
				}
			}
		} else if res.Status == "" || res.Status == reporting.StatusFatal {
			res.Status = reporting.StatusSuccess
		}
		p.record(rep, run, res)
	}

	if run.Err != nil {
		logging.Error("Pipeline", run.Err, "%s run %s failed", p.Name, run.ID)
	} else {
		logging.Info("Pipeline", "%s run %s completed in %s", p.Name, run.ID, time.Since(run.StartedAt).Round(time.Millisecond))
	}
	return run
}

func (p *Pipeline) record(rep reporting.Reporter, run *Run, res StageResult) {
	run.Results = append(run.Results, res)
	rep.Report(reporting.StageUpdate{
		Timestamp: time.Now(),
		RunID:     run.ID,
		Pipeline:  p.Name,
		Stage:     res.Stage,
		Status:    res.Status,
		Message:   res.Message,
		Warnings:  res.Warnings,
		Err:       res.Err,
		Duration:  res.Duration,
	})
}

// classify makes sure every stage error is a *StageError carrying the stage
// name. Cancellation surfaces as Interrupted unless a more specific kind was
// already assigned.
func classify(ctx context.Context, stage string, err error) *StageError {
	var se *StageError
	if errors.As(err, &se) {
		cp := *se
		if cp.Stage == "" {
			cp.Stage = stage
		}
		if ctx.Err() != nil && interrupted(err) && cp.Kind != KindUserDeclined {
			cp.Kind = KindInterrupted
		}
		return &cp
	}
	kind := KindInterrupted
	if !interrupted(err) {
		kind = kindUnknown
	}
	return &StageError{Kind: kind, Stage: stage, Err: err}
}
