package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"stackctl/internal/orchestrator"
	"stackctl/pkg/logging"

	"github.com/atotto/clipboard"
)

// Mode selects the lifecycle operation.
type Mode string

const (
	ModeProvision Mode = "provision"
	ModeTeardown  Mode = "teardown"
	ModePlan      Mode = "plan"
	ModeCheck     Mode = "check"
)

// copyToClipboard is swapped in tests.
var copyToClipboard = clipboard.WriteAll

// runMode executes one pipeline. The first SIGINT or SIGTERM cancels the run;
// the running engine command gets the grace period to release its state lock.
func runMode(ctx context.Context, mode Mode, config *Config, services *Services) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	run, err := execute(ctx, mode, services.Orchestrator)
	if err != nil {
		return err
	}

	if config.CopySummary && run.Summary != nil {
		if err := copyToClipboard(run.Summary.PlainText()); err != nil {
			logging.Warn("CLI", "Could not copy the summary to the clipboard: %v", err)
		} else {
			logging.Info("CLI", "Summary copied to the clipboard")
		}
	}
	return run.Err
}

func execute(ctx context.Context, mode Mode, o *orchestrator.Orchestrator) (*orchestrator.Run, error) {
	switch mode {
	case ModeProvision:
		return o.Provision(ctx), nil
	case ModeTeardown:
		return o.Teardown(ctx), nil
	case ModePlan:
		return o.Plan(ctx), nil
	case ModeCheck:
		return o.Check(ctx), nil
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
}
