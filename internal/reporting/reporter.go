package reporting

import (
	"fmt"
	"time"
)

// Status is the outcome of a pipeline stage.
type Status string

const (
	StatusRunning Status = "Running"
	StatusSuccess Status = "Success"
	StatusWarning Status = "Warning"
	StatusFatal   Status = "Fatal"
	StatusSkipped Status = "Skipped"
)

// String makes Status satisfy the fmt.Stringer interface.
func (s Status) String() string {
	return string(s)
}

// Terminal reports whether the stage has finished.
func (s Status) Terminal() bool {
	return s != StatusRunning
}

// StageUpdate carries the status of one stage of one run.
type StageUpdate struct {
	Timestamp time.Time

	RunID    string
	Pipeline string
	Stage    string

	Status  Status
	Message string
	// Warnings are non-fatal problems recorded by the stage.
	Warnings []string
	Err      error
	Duration time.Duration
}

// String provides a simple string representation for debugging the update itself.
func (u StageUpdate) String() string {
	return fmt.Sprintf("Update(TS: %s, Run: %s, Stage: %s/%s, Status: %s, Msg: '%s', Err: %v, Took: %s)",
		u.Timestamp.Format(time.RFC3339), u.RunID, u.Pipeline, u.Stage, u.Status, u.Message, u.Err, u.Duration)
}

// Reporter receives stage updates. Implementations must be safe for
// concurrent use.
type Reporter interface {
	Report(update StageUpdate)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(update StageUpdate)

// Report calls f.
func (f ReporterFunc) Report(update StageUpdate) { f(update) }

// NopReporter discards updates.
var NopReporter Reporter = ReporterFunc(func(StageUpdate) {})
