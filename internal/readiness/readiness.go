package readiness

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"stackctl/internal/kube"
	"stackctl/internal/manifest"
	"stackctl/pkg/logging"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/util/wait"
)

const (
	DefaultCoreTimeout      = 5 * time.Minute
	DefaultAuxiliaryTimeout = 3 * time.Minute
	DefaultPollInterval     = 5 * time.Second
)

// Result is the outcome for one target.
type Result struct {
	Target  manifest.Target
	Ready   bool
	Message string // last observed rollout message
	Err     error
	Elapsed time.Duration
}

// Report lists every target's outcome in target order.
type Report struct {
	Results []Result
}

// Failed returns the targets that did not become ready, filtered by
// criticality.
func (r *Report) Failed(critical bool) []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.Ready && res.Target.Critical == critical {
			out = append(out, res)
		}
	}
	return out
}

// TimeoutError is returned when at least one core workload did not become
// ready.
type TimeoutError struct {
	Failed []Result
}

func (e *TimeoutError) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for _, r := range e.Failed {
		parts = append(parts, fmt.Sprintf("%s: %v", r.Target.Ref, r.Err))
	}
	return "core workloads not ready: " + strings.Join(parts, "; ")
}

// Waiter is the ReadinessWaiter.
type Waiter struct {
	API              kube.ControlPlane
	CoreTimeout      time.Duration
	AuxiliaryTimeout time.Duration
	PollInterval     time.Duration
}

// Wait polls every target concurrently until it is rolled out, fails
// permanently or runs out of time. All targets are evaluated; the error is
// non-nil only when a core target failed or ctx was cancelled.
func (w *Waiter) Wait(ctx context.Context, targets []manifest.Target) (*Report, error) {
	report := &Report{Results: make([]Result, len(targets))}

	var wg sync.WaitGroup
	for i, t := range targets {
		wg.Add(1)
		go func(i int, t manifest.Target) {
			defer wg.Done()
			report.Results[i] = w.waitOne(ctx, t)
		}(i, t)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return report, err
	}
	for _, r := range report.Failed(false) {
		logging.Warn("ReadinessWaiter", "Auxiliary workload %s not ready: %v", r.Target.Ref, r.Err)
	}
	if failed := report.Failed(true); len(failed) > 0 {
		return report, &TimeoutError{Failed: failed}
	}
	return report, nil
}

func (w *Waiter) timeoutFor(t manifest.Target) time.Duration {
	if t.Critical {
		if w.CoreTimeout > 0 {
			return w.CoreTimeout
		}
		return DefaultCoreTimeout
	}
	if w.AuxiliaryTimeout > 0 {
		return w.AuxiliaryTimeout
	}
	return DefaultAuxiliaryTimeout
}

func (w *Waiter) waitOne(ctx context.Context, t manifest.Target) Result {
	interval := w.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	timeout := w.timeoutFor(t)
	start := time.Now()
	res := Result{Target: t}

	err := wait.PollUntilContextTimeout(ctx, interval, timeout, true, func(ctx context.Context) (bool, error) {
		status, err := w.API.RolloutStatus(ctx, t.Ref)
		if err != nil {
			var failed *kube.RolloutFailedError
			if errors.As(err, &failed) {
				return false, err
			}
			if apierrors.IsNotFound(err) {
				res.Message = "not found"
			} else {
				res.Message = err.Error()
			}
			logging.Debug("ReadinessWaiter", "%s: %s", t.Ref, res.Message)
			return false, nil
		}
		res.Message = status.Message
		if !status.Done {
			logging.Debug("ReadinessWaiter", "%s: %s", t.Ref, status.Message)
		}
		return status.Done, nil
	})
	res.Elapsed = time.Since(start).Round(time.Second)

	switch {
	case err == nil:
		res.Ready = true
		logging.Info("ReadinessWaiter", "%s is ready (%s)", t.Ref, res.Message)
	case ctx.Err() != nil:
		res.Err = ctx.Err()
	case wait.Interrupted(err):
		res.Err = fmt.Errorf("not ready after %s: %s", timeout, res.Message)
	default:
		res.Err = err
	}
	return res
}
