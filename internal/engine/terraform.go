package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"stackctl/internal/plan"
	"stackctl/internal/utils"
	"stackctl/pkg/logging"

	tfjson "github.com/hashicorp/terraform-json"
)

const subsystem = "Terraform"

// Terraform drives the terraform CLI.
type Terraform struct {
	Binary      string
	Dir         string // root module
	VarsFile    string
	Parallelism int
	Runner      utils.Runner
}

var _ Engine = (*Terraform)(nil)

// NewTerraform returns a Terraform engine using the exec runner.
func NewTerraform(binary, dir, varsFile string, parallelism int) *Terraform {
	return &Terraform{
		Binary:      binary,
		Dir:         dir,
		VarsFile:    varsFile,
		Parallelism: parallelism,
		Runner:      utils.NewExecRunner(),
	}
}

func (t *Terraform) command(stream bool, args ...string) utils.Command {
	c := utils.Command{
		Name: t.Binary,
		Args: args,
		Dir:  t.Dir,
		Env:  []string{"TF_IN_AUTOMATION=1", "TF_INPUT=0"},
	}
	if stream {
		c.Subsystem = subsystem
	}
	return c
}

// Initialized reports whether the working directory has been initialised.
func (t *Terraform) Initialized() bool {
	info, err := os.Stat(filepath.Join(t.Dir, ".terraform"))
	return err == nil && info.IsDir()
}

// Init runs terraform init.
func (t *Terraform) Init(ctx context.Context) error {
	logging.Info(subsystem, "Initializing %s", t.Dir)
	if _, err := t.Runner.Run(ctx, t.command(true, "init", "-input=false", "-no-color")); err != nil {
		return fmt.Errorf("terraform init: %w", err)
	}
	return nil
}

// Validate runs terraform validate against the root module.
func (t *Terraform) Validate(ctx context.Context) error {
	if _, err := t.Runner.Run(ctx, t.command(false, "validate", "-no-color")); err != nil {
		return fmt.Errorf("terraform validate: %w", err)
	}
	return nil
}

// Plan writes a plan file and returns it as an unapproved artifact.
func (t *Terraform) Plan(ctx context.Context, req PlanRequest) (*plan.Plan, error) {
	args := []string{"plan", "-input=false", "-no-color", "-detailed-exitcode", "-out=" + req.Out}
	if t.VarsFile != "" {
		args = append(args, "-var-file="+t.VarsFile)
	}
	if t.Parallelism > 0 {
		args = append(args, "-parallelism="+strconv.Itoa(t.Parallelism))
	}
	kind := plan.KindApply
	if req.Destroy {
		args = append(args, "-destroy")
		kind = plan.KindDestroy
	}
	for _, target := range req.Targets {
		args = append(args, "-target="+target)
	}

	// -detailed-exitcode: 0 no changes, 1 error, 2 changes present.
	res, err := t.Runner.Run(ctx, t.command(true, args...))
	if err != nil && (ctx.Err() != nil || res.ExitCode != 2) {
		return nil, fmt.Errorf("terraform plan: %w", err)
	}

	changes, err := t.show(ctx, req.Out)
	if err != nil {
		return nil, err
	}
	p, err := plan.New(kind, req.Out, changes, req.Targets)
	if err != nil {
		return nil, err
	}
	logging.Info(subsystem, "Plan %s: %s", p.ID, p.Summary())
	return p, nil
}

func (t *Terraform) show(ctx context.Context, planFile string) ([]plan.ResourceChange, error) {
	res, err := t.Runner.Run(ctx, t.command(false, "show", "-json", "-no-color", planFile))
	if err != nil {
		return nil, fmt.Errorf("terraform show: %w", err)
	}
	changes, err := ParsePlanJSON([]byte(res.Stdout))
	if err != nil {
		return nil, fmt.Errorf("terraform show: %w", err)
	}
	return changes, nil
}

// Apply applies a consumed plan file.
func (t *Terraform) Apply(ctx context.Context, p *plan.Plan) error {
	if !p.Consumed() {
		return plan.ErrNotConsumed
	}
	args := []string{"apply", "-input=false", "-no-color"}
	if t.Parallelism > 0 {
		args = append(args, "-parallelism="+strconv.Itoa(t.Parallelism))
	}
	args = append(args, p.Path)

	res, err := t.Runner.Run(ctx, t.command(true, args...))
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("terraform apply interrupted: %w", err)
		}
		return &ApplyError{Resource: FailingResource(res.Stderr), Err: err}
	}
	return nil
}

// Outputs reads the root module outputs.
func (t *Terraform) Outputs(ctx context.Context) (map[string]Output, error) {
	res, err := t.Runner.Run(ctx, t.command(false, "output", "-json", "-no-color"))
	if err != nil {
		return nil, fmt.Errorf("terraform output: %w", err)
	}
	outputs, err := ParseOutputsJSON([]byte(res.Stdout))
	if err != nil {
		return nil, fmt.Errorf("terraform output: %w", err)
	}
	if len(outputs) == 0 {
		return nil, ErrNoOutputs
	}
	return outputs, nil
}

// ParsePlanJSON extracts resource changes from `terraform show -json` output.
func ParsePlanJSON(data []byte) ([]plan.ResourceChange, error) {
	var doc tfjson.Plan
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding plan JSON: %w", err)
	}
	changes := make([]plan.ResourceChange, 0, len(doc.ResourceChanges))
	for _, rc := range doc.ResourceChanges {
		if rc == nil {
			continue
		}
		var actions tfjson.Actions
		if rc.Change != nil {
			actions = rc.Change.Actions
		}
		changes = append(changes, plan.ResourceChange{
			Address:       rc.Address,
			ModuleAddress: rc.ModuleAddress,
			Action:        actionFor(actions),
		})
	}
	return changes, nil
}

func actionFor(actions tfjson.Actions) plan.Action {
	switch {
	case actions.Replace():
		return plan.ActionReplace
	case actions.Create():
		return plan.ActionCreate
	case actions.Update():
		return plan.ActionUpdate
	case actions.Delete():
		return plan.ActionDelete
	case actions.Read():
		return plan.ActionRead
	}
	return plan.ActionNoop
}

// ParseOutputsJSON flattens `terraform output -json`. String values are
// returned verbatim; anything else is returned as compact JSON.
func ParseOutputsJSON(data []byte) (map[string]Output, error) {
	var raw map[string]*tfjson.StateOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding outputs JSON: %w", err)
	}
	out := make(map[string]Output, len(raw))
	for name, v := range raw {
		if v == nil {
			continue
		}
		s, ok := v.Value.(string)
		if !ok {
			b, err := json.Marshal(v.Value)
			if err != nil {
				return nil, fmt.Errorf("encoding output %s: %w", name, err)
			}
			s = string(b)
		}
		out[name] = Output{Value: s, Sensitive: v.Sensitive}
	}
	return out, nil
}

var withAddress = regexp.MustCompile(`(?m)with ([A-Za-z0-9_\-.\[\]"]+),\s*$`)

// FailingResource finds the first resource address in terraform diagnostics.
func FailingResource(stderr string) string {
	m := withAddress.FindStringSubmatch(stderr)
	if m == nil {
		return ""
	}
	return m[1]
}

// IsInterrupted reports whether err came from a cancelled context.
func IsInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
