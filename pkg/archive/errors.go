package archive

import (
	"errors"
	"fmt"
)

var (
	// ErrNotArchivable is returned when the workflow does not allow the
	// archive transition for a record.
	ErrNotArchivable = errors.New("record is not archivable")

	// ErrArchiveDisabled is returned while the archive configuration is
	// not active.
	ErrArchiveDisabled = errors.New("archiving is disabled")
)

// Steps of the archive sequence.
const (
	StepGuard      = "guard"
	StepDependents = "dependents"
	StepMark       = "mark"
	StepExport     = "export"
	StepStub       = "stub"
	StepDelete     = "delete"
)

// StepError is returned when a step of the archive sequence fails for a
// record.
type StepError struct {
	UID   string
	Step  string
	Cause error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("archive %s: %s: %v", e.UID, e.Step, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *StepError) Unwrap() error {
	return e.Cause
}

// NewStepError creates a new StepError.
func NewStepError(uid, step string, cause error) *StepError {
	return &StepError{UID: uid, Step: step, Cause: cause}
}

// FailedStep returns the step of the outermost StepError in err, or "".
func FailedStep(err error) string {
	var e *StepError
	if errors.As(err, &e) {
		return e.Step
	}
	return ""
}
