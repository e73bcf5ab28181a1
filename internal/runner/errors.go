package runner

import (
	"fmt"

	"github.com/woxQAQ/wasm-jit-loader/internal/artifact"
)

// StepError reports which pipeline step failed for which artifact.
type StepError struct {
	Artifact string
	Step     string
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("artifact '%s': %s: %v", e.Artifact, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func stepError(a *artifact.Artifact, step string, err error) error {
	return &StepError{Artifact: a.Name(), Step: step, Err: err}
}
