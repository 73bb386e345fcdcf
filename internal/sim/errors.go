package sim

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned by New for structurally invalid input.
	ErrInvalidConfig = errors.New("sim: invalid configuration")

	// ErrInvalidTime is returned by Step for a NaN or infinite end time, or
	// one that would need more than maxSubsteps sub-steps.
	ErrInvalidTime = errors.New("sim: invalid end time")
)

// StepError wraps a kernel or boundary failure with the sub-step that
// raised it. The simulation state is undefined afterwards.
type StepError struct {
	Substep int
	Time    float64
	Stage   string
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("sim: %s failed in sub-step %d at t=%g: %v", e.Stage, e.Substep, e.Time, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}
