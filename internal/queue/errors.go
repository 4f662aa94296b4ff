package queue

import (
	"errors"
	"fmt"
)

var (
	// ErrHalted matches any *HaltError.
	ErrHalted = errors.New("queue halted")

	errNilElement = errors.New("nil element handle")
	errStepFailed = errors.New("step failed")
)

// StepError is handed to the error handler when a step fails.
type StepError struct {
	Index  int
	Kind   Kind
	Target string
	Err    error
}

func (e *StepError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("step %d (%s): %v", e.Index, e.Kind, e.Err)
	}
	return fmt.Sprintf("step %d (%s %s): %v", e.Index, e.Kind, e.Target, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// HaltError ends a run whose error handler returned without resuming.
type HaltError struct {
	Step *StepError
}

func (e *HaltError) Error() string {
	return fmt.Sprintf("queue halted at %v", e.Step)
}

func (e *HaltError) Unwrap() error { return e.Step }

func (e *HaltError) Is(target error) bool { return target == ErrHalted }
