package reporting

import (
	"fmt"
	"io"
	"sync"
	"time"

	"stackctl/internal/color"
	"stackctl/pkg/logging"
)

// ConsoleReporter logs stage updates through pkg/logging and prints one
// styled status line per finished stage.
type ConsoleReporter struct {
	mu         sync.Mutex
	out        io.Writer
	stateStore *StateStore
}

// NewConsoleReporter creates a ConsoleReporter writing status lines to out.
// A nil out only logs.
func NewConsoleReporter(out io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: out, stateStore: NewStateStore()}
}

// Report processes a StageUpdate.
func (c *ConsoleReporter) Report(update StageUpdate) {
	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now()
	}

	// Only act on actual state changes to reduce noise.
	if !c.stateStore.SetStageState(update) && update.Err == nil {
		return
	}

	subsystem := "Stage-" + update.Stage
	switch update.Status {
	case StatusFatal:
		logging.Error(subsystem, update.Err, "%s", nonEmpty(update.Message, "failed"))
	case StatusWarning:
		logging.Warn(subsystem, "%s", nonEmpty(update.Message, "completed with warnings"))
		for _, w := range update.Warnings {
			logging.Warn(subsystem, "%s", w)
		}
	case StatusRunning:
		logging.Debug(subsystem, "Starting")
	case StatusSkipped:
		logging.Debug(subsystem, "Skipped: %s", update.Message)
	default:
		logging.Info(subsystem, "%s", nonEmpty(update.Message, "done"))
	}

	if c.out == nil || !update.Status.Terminal() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, StatusLine(update))
}

// GetStateStore returns the underlying state store.
func (c *ConsoleReporter) GetStateStore() *StateStore {
	return c.stateStore
}

// StatusLine renders "<icon> <stage>  <message> (<duration>)".
func StatusLine(update StageUpdate) string {
	icon, style := StatusIcon(update.Status)
	line := style.Render(icon) + " " + color.LabelStyle.Render(update.Stage)
	msg := update.Message
	if msg == "" && update.Err != nil {
		msg = update.Err.Error()
	}
	if msg != "" {
		line += "  " + msg
	}
	if update.Duration >= time.Second {
		line += " " + color.MutedStyle.Render(fmt.Sprintf("(%s)", update.Duration.Round(time.Second)))
	}
	return line
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
