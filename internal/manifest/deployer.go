package manifest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stackctl/internal/kube"
	"stackctl/pkg/logging"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/util/wait"
)

const (
	defaultDeleteTimeout = 5 * time.Minute
	defaultPollInterval  = 2 * time.Second
)

var namespaceGVK = schema.GroupVersionKind{Version: "v1", Kind: "Namespace"}

// ApplyError is a failed apply in a critical stage.
type ApplyError struct {
	Stage  string
	Object kube.ObjectRef
	Err    error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("stage %s: failed to apply %s: %v", e.Stage, e.Object, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// AppliedObject records one successful apply.
type AppliedObject struct {
	Ref    kube.ObjectRef
	Result kube.ApplyResult
}

// StageReport is the outcome of one stage.
type StageReport struct {
	Stage   Stage
	Applied []AppliedObject
	Skipped string
	Err     error
}

// DeployReport collects the per-stage outcomes of Deploy.
type DeployReport struct {
	Stages []StageReport
}

// Warnings returns the auxiliary stage failures and skips.
func (r *DeployReport) Warnings() []string {
	var out []string
	for _, s := range r.Stages {
		switch {
		case s.Err != nil && !s.Stage.Critical:
			out = append(out, s.Err.Error())
		case s.Skipped != "":
			out = append(out, fmt.Sprintf("stage %s skipped: %s", s.Stage.Name, s.Skipped))
		}
	}
	return out
}

// Deployer is the ManifestDeployer.
type Deployer struct {
	API kube.ControlPlane

	NamespaceDeleteTimeout time.Duration
	PollInterval           time.Duration
}

// Deploy applies the set stage by stage. A failure in a critical stage stops
// deployment and is returned as *ApplyError; a failure in an auxiliary stage
// is recorded in the report and the next stage runs.
func (d *Deployer) Deploy(ctx context.Context, set *Set) (*DeployReport, error) {
	report := &DeployReport{}
	for _, st := range set.Stages {
		sr := StageReport{Stage: st.Stage, Skipped: st.SkipReason}
		if st.Skipped() {
			report.Stages = append(report.Stages, sr)
			continue
		}

		for _, obj := range st.Objects {
			if err := ctx.Err(); err != nil {
				report.Stages = append(report.Stages, sr)
				return report, err
			}
			ref := kube.RefFor(obj)
			res, err := d.API.Apply(ctx, obj)
			if err != nil {
				sr.Err = &ApplyError{Stage: st.Stage.Name, Object: ref, Err: err}
				break
			}
			logging.Info("ManifestDeployer", "%s %s", ref, res)
			sr.Applied = append(sr.Applied, AppliedObject{Ref: ref, Result: res})
		}
		report.Stages = append(report.Stages, sr)

		if sr.Err != nil {
			if st.Stage.Critical {
				return report, sr.Err
			}
			logging.Warn("ManifestDeployer", "Auxiliary stage %s failed, continuing: %v", st.Stage.Name, sr.Err)
		}
	}
	return report, nil
}

// DeleteReport lists what Delete removed.
type DeleteReport struct {
	Deleted []kube.ObjectRef

	// Terminating holds namespaces still present when the wait ran out.
	Terminating []string
}

// Delete removes the set's objects in reverse stage order, then the
// namespaces, and waits for the namespaces to terminate. Namespaces that are
// still terminating when the timeout expires are reported, not failed.
func (d *Deployer) Delete(ctx context.Context, set *Set, namespaces []string) (*DeleteReport, error) {
	report := &DeleteReport{}

	if set != nil {
		for i := len(set.Stages) - 1; i >= 0; i-- {
			objs := set.Stages[i].Objects
			for j := len(objs) - 1; j >= 0; j-- {
				if objs[j].GetKind() == "Namespace" {
					continue
				}
				ref := kube.RefFor(objs[j])
				if err := d.API.Delete(ctx, ref); err != nil {
					return report, err
				}
				report.Deleted = append(report.Deleted, ref)
			}
		}
		namespaces = mergeNames(namespaces, set.Namespaces())
	}

	for _, ns := range namespaces {
		ref := kube.ObjectRef{GVK: namespaceGVK, Name: ns}
		if err := d.API.Delete(ctx, ref); err != nil {
			return report, err
		}
		report.Deleted = append(report.Deleted, ref)
		logging.Info("ManifestDeployer", "Deleted namespace %s", ns)
	}

	for _, ns := range namespaces {
		gone, err := d.waitNamespaceGone(ctx, ns)
		if err != nil {
			return report, err
		}
		if !gone {
			logging.Warn("ManifestDeployer", "Namespace %s is still terminating", ns)
			report.Terminating = append(report.Terminating, ns)
		}
	}
	return report, nil
}

func (d *Deployer) waitNamespaceGone(ctx context.Context, ns string) (bool, error) {
	timeout := d.NamespaceDeleteTimeout
	if timeout <= 0 {
		timeout = defaultDeleteTimeout
	}
	interval := d.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	ref := kube.ObjectRef{GVK: namespaceGVK, Name: ns}
	err := wait.PollUntilContextTimeout(ctx, interval, timeout, true, func(ctx context.Context) (bool, error) {
		_, err := d.API.Get(ctx, ref)
		if apierrors.IsNotFound(err) {
			return true, nil
		}
		if err != nil {
			logging.Debug("ManifestDeployer", "Checking namespace %s: %v", ns, err)
		}
		return false, nil
	})
	switch {
	case err == nil:
		return true, nil
	case ctx.Err() != nil:
		return false, ctx.Err()
	case wait.Interrupted(err):
		return false, nil
	default:
		return false, errors.Join(fmt.Errorf("waiting for namespace %s", ns), err)
	}
}

func mergeNames(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string(nil), a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
