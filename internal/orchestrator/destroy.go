package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"stackctl/internal/engine"
	"stackctl/internal/graph"
	"stackctl/internal/plan"
	"stackctl/pkg/logging"
)

// DestroyError names the node (and resource, when the engine reported one)
// where destruction stopped.
type DestroyError struct {
	Node     string
	Resource string
	Err      error
}

func (e *DestroyError) Error() string {
	return fmt.Sprintf("destroying %s: %v", e.Target(), e.Err)
}

func (e *DestroyError) Unwrap() error { return e.Err }

// Target is the most precise name known for the failure.
func (e *DestroyError) Target() string {
	switch {
	case e.Resource != "":
		return e.Resource
	case e.Node != "":
		return "node " + e.Node
	default:
		return "unassigned resources"
	}
}

// Destroyer is the DestructionExecutor. It destroys the resource graph leaf
// to root, one node at a time, never applying a change that the approved
// destroy plan does not contain.
type Destroyer struct {
	Engine   engine.Engine
	Graph    *graph.Graph
	PlanFile string
}

// Destroy consumes the approved plan and returns the destroyed node ids in
// order.
func (d *Destroyer) Destroy(ctx context.Context, approved *plan.Plan) ([]string, error) {
	if approved.Kind != plan.KindDestroy {
		return nil, fmt.Errorf("expected a destroy plan, got %s", approved.Kind)
	}
	if err := approved.Consume(); err != nil {
		return nil, err
	}
	order, err := d.Graph.ReverseOrder()
	if err != nil {
		return nil, err
	}

	pending := map[string]int{}
	for _, c := range approved.Changes {
		if !c.Action.Mutating() {
			continue
		}
		id, _ := d.Graph.NodeForAddress(c.Address)
		pending[id]++
	}

	var destroyed []string
	for _, id := range order {
		if pending[id] == 0 {
			_ = d.Graph.MarkDestroyed(id)
			continue
		}
		node, _ := d.Graph.Node(id)
		logging.Info("Destroyer", "Destroying %s (%d resources)", id, pending[id])
		if err := d.applySlice(ctx, approved, id, []string{node.Module}); err != nil {
			return destroyed, err
		}
		_ = d.Graph.MarkDestroyed(id)
		destroyed = append(destroyed, id)
	}

	if pending[""] > 0 {
		logging.Info("Destroyer", "Destroying %d resources outside any node", pending[""])
		if err := d.applySlice(ctx, approved, "", nil); err != nil {
			return destroyed, err
		}
	}
	return destroyed, nil
}

func (d *Destroyer) applySlice(ctx context.Context, approved *plan.Plan, node string, targets []string) error {
	out := d.PlanFile + ".all"
	if node != "" {
		out = d.PlanFile + "." + node
	}
	slice, err := d.Engine.Plan(ctx, engine.PlanRequest{Out: out, Destroy: true, Targets: targets})
	if err != nil {
		return &DestroyError{Node: node, Err: err}
	}
	defer disposePlan(slice)

	if err := approved.Slice(slice); err != nil {
		return &DestroyError{Node: node, Err: err}
	}
	if !slice.HasChanges() {
		return nil
	}
	if err := slice.Consume(); err != nil {
		return &DestroyError{Node: node, Err: err}
	}
	if err := d.Engine.Apply(ctx, slice); err != nil {
		de := &DestroyError{Node: node, Err: err}
		var ae *engine.ApplyError
		if errors.As(err, &ae) {
			de.Resource = ae.Resource
		}
		return de
	}
	return nil
}
