// Package engine is the boundary to the external provisioning engine. The
// engine owns reconciliation and the internal ordering of resource creation;
// stackctl only plans, applies reviewed plans and reads outputs.
package engine

import (
	"context"
	"errors"
	"fmt"

	"stackctl/internal/plan"
)

// PlanRequest describes one plan computation.
type PlanRequest struct {
	Out     string   // plan file to write
	Destroy bool     // compute a destroy plan
	Targets []string // module addresses to restrict the plan to
}

// Output is one resolved engine output, passed through as an opaque string.
type Output struct {
	Value     string
	Sensitive bool
}

// Engine is implemented by Terraform and by test fakes.
type Engine interface {
	Initialized() bool
	Init(ctx context.Context) error
	Validate(ctx context.Context) error
	Plan(ctx context.Context, req PlanRequest) (*plan.Plan, error)
	// Apply executes a consumed plan. It refuses plans that were not
	// consumed.
	Apply(ctx context.Context, p *plan.Plan) error
	Outputs(ctx context.Context) (map[string]Output, error)
}

// ApplyError names the resource the engine reported as failing.
type ApplyError struct {
	Resource string
	Err      error
}

func (e *ApplyError) Error() string {
	if e.Resource == "" {
		return fmt.Sprintf("apply failed: %v", e.Err)
	}
	return fmt.Sprintf("apply failed at %s: %v", e.Resource, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// ErrNoOutputs is returned when the engine state has no outputs at all.
var ErrNoOutputs = errors.New("engine state has no outputs")
