package orchestrator

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a stage failure.
type Kind string

const (
	KindPrerequisiteMissing          Kind = "PrerequisiteMissing"
	KindConfigurationAbsent          Kind = "ConfigurationAbsent"
	KindInitializationFailure        Kind = "InitializationFailure"
	KindValidationFailure            Kind = "ValidationFailure"
	KindPlanGenerationFailure        Kind = "PlanGenerationFailure"
	KindUserDeclined                 Kind = "UserDeclined"
	KindApplyFailure                 Kind = "ApplyFailure"
	KindOutputsUnavailable           Kind = "OutputsUnavailable"
	KindConnectorFailure             Kind = "ConnectorFailure"
	KindManifestApplyFailure         Kind = "ManifestApplyFailure"
	KindReadinessTimeout             Kind = "ReadinessTimeout"
	KindBackupFailure                Kind = "BackupFailure"
	KindClusterObjectDeletionFailure Kind = "ClusterObjectDeletionFailure"
	KindDestroyPlanFailure           Kind = "DestroyPlanFailure"
	KindDestroyFailure               Kind = "DestroyFailure"
	KindInterrupted                  Kind = "Interrupted"

	kindUnknown Kind = "Unknown"
)

// StageError is the typed failure of one stage. Resource names the failing
// resource or object when one is known.
type StageError struct {
	Kind     Kind
	Stage    string
	Resource string
	Err      error
}

func (e *StageError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Stage, e.Kind)
	if e.Resource != "" {
		msg += fmt.Sprintf(" (%s)", e.Resource)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StageError) Unwrap() error { return e.Err }

// IsKind reports whether err is, or wraps, a StageError of the given kind.
func IsKind(err error, kind Kind) bool {
	var se *StageError
	return errors.As(err, &se) && se.Kind == kind
}

// KindOf returns the kind of the first StageError in err's chain.
func KindOf(err error) (Kind, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return "", false
}

func stageErr(kind Kind, err error) *StageError {
	return &StageError{Kind: kind, Err: err}
}

func interrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
