// Package flow defines the immutable step graph that drives scripted conversations.
package flow

import (
	"errors"
	"fmt"
)

// UnknownStepError indicates a referenced step id does not exist in the flow.
// During validation it is fatal; during a live transition it indicates a
// stale or foreign session and is recovered with a reset prompt.
type UnknownStepError struct {
	StepID string
}

func (e *UnknownStepError) Error() string {
	return fmt.Sprintf("unknown step id %q", e.StepID)
}

// IsUnknownStep reports whether err is an UnknownStepError.
func IsUnknownStep(err error) bool {
	var use *UnknownStepError
	return errors.As(err, &use)
}

// GraphError describes a single load-time validation failure in a flow
// definition. A flow with any graph errors must not be used.
type GraphError struct {
	StepID string // offending step, empty for flow-level problems
	Detail string
}

func (e *GraphError) Error() string {
	if e.StepID == "" {
		return fmt.Sprintf("flow graph: %s", e.Detail)
	}
	return fmt.Sprintf("flow graph: step %q: %s", e.StepID, e.Detail)
}

// joinGraphErrors folds a list of graph errors into a single error value.
func joinGraphErrors(errs []*GraphError) error {
	if len(errs) == 0 {
		return nil
	}
	joined := make([]error, len(errs))
	for i, ge := range errs {
		joined[i] = ge
	}
	return fmt.Errorf("invalid flow definition: %w", errors.Join(joined...))
}
