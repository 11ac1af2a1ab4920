package research

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks a request rejected before any step ran.
	ErrInvalidInput = errors.New("invalid input")
	// ErrCapabilityFailure marks a reasoning or search call that failed mid-step.
	ErrCapabilityFailure = errors.New("capability failure")
	// ErrPipelineIncomplete marks a run that ended without a final report.
	ErrPipelineIncomplete = errors.New("pipeline incomplete")
	// ErrPersistenceFailure marks a storage failure after a successful run.
	ErrPersistenceFailure = errors.New("persistence failure")
)

// StepError is returned by a step whose capability call failed. Nothing the
// step gathered before the failure is committed to the state.
type StepError struct {
	Step  Agent
	Phase string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s step: %s: %v", e.Step, e.Phase, e.Err)
}

func (e *StepError) Unwrap() []error {
	return []error{ErrCapabilityFailure, e.Err}
}

// RunError is returned by RunResearch when the pipeline stopped early. Partial
// holds the topic records committed before the failure.
type RunError struct {
	Stage   Agent
	Partial map[Topic]TopicRecord
	Err     error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("research run stopped at %s: %v", e.Stage, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }
