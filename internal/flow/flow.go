// Package flow defines the immutable step graph that drives scripted conversations.
//
// A Flow is constructed once at startup, validated in full, and never mutated
// afterwards. The engine consults it to resolve steps and transitions.
package flow

import (
	"log/slog"
	"sort"

	"github.com/menuflow/menuflow/internal/models"
)

// Flow is a named, validated directed graph of steps.
type Flow struct {
	name    string
	startID string
	intents map[string]bool
	steps   map[string]models.Step
	order   []string // declaration order, for observability output
}

// New builds a Flow from its declared parts and validates the whole graph.
// Any accumulated GraphError makes construction fail; a flow that loads is
// guaranteed internally consistent.
func New(name, startID string, intents []string, steps []models.Step) (*Flow, error) {
	f := &Flow{
		name:    name,
		startID: startID,
		intents: make(map[string]bool, len(intents)),
		steps:   make(map[string]models.Step, len(steps)),
		order:   make([]string, 0, len(steps)),
	}
	for _, tag := range intents {
		f.intents[tag] = true
	}

	var errs []*GraphError
	for _, step := range steps {
		if step.ID == "" {
			errs = append(errs, &GraphError{Detail: "step with empty id"})
			continue
		}
		if _, dup := f.steps[step.ID]; dup {
			errs = append(errs, &GraphError{StepID: step.ID, Detail: "duplicate step id"})
			continue
		}
		f.steps[step.ID] = step
		f.order = append(f.order, step.ID)
	}

	errs = append(errs, f.validate()...)
	if err := joinGraphErrors(errs); err != nil {
		slog.Error("Flow validation failed", "flow", name, "errors", len(errs))
		return nil, err
	}

	slog.Debug("Flow constructed", "flow", name, "steps", len(f.steps), "start", startID)
	return f, nil
}

// MustNew is like New but panics on validation failure. Intended for
// compiled-in flows that are covered by tests.
func MustNew(name, startID string, intents []string, steps []models.Step) *Flow {
	f, err := New(name, startID, intents, steps)
	if err != nil {
		panic(err)
	}
	return f
}

// validate checks the structural invariants of the graph. It runs once at
// construction; the engine never re-checks these per message.
func (f *Flow) validate() []*GraphError {
	var errs []*GraphError

	if f.startID == "" {
		errs = append(errs, &GraphError{Detail: "no start step declared"})
	} else if _, ok := f.steps[f.startID]; !ok {
		errs = append(errs, &GraphError{Detail: "start step " + f.startID + " does not exist"})
	}

	endSteps := 0
	for _, id := range f.order {
		step := f.steps[id]

		if !models.IsValidStepKind(step.Kind) {
			errs = append(errs, &GraphError{StepID: id, Detail: "unknown step kind " + string(step.Kind)})
			continue
		}
		if len(step.Text) > models.MaxStepTextLength {
			errs = append(errs, &GraphError{StepID: id, Detail: "step text exceeds maximum length"})
		}
		if step.Kind != models.StepKindButton && len(step.Options) > 0 {
			errs = append(errs, &GraphError{StepID: id, Detail: "options are only allowed on button steps"})
		}
		if step.Kind != models.StepKindButton && len(step.Transitions) > 0 {
			errs = append(errs, &GraphError{StepID: id, Detail: "transition mapping is only allowed on button steps"})
		}
		if (step.Kind == models.StepKindMessage || step.Kind == models.StepKindEnd) && step.StoreKey != "" {
			errs = append(errs, &GraphError{StepID: id, Detail: "store key is not allowed on " + string(step.Kind) + " steps"})
		}

		switch step.Kind {
		case models.StepKindMessage, models.StepKindInput:
			if step.Next == "" {
				errs = append(errs, &GraphError{StepID: id, Detail: "missing next step"})
			} else if _, ok := f.steps[step.Next]; !ok {
				errs = append(errs, &GraphError{StepID: id, Detail: "next step " + step.Next + " does not exist"})
			}
		case models.StepKindButton:
			if step.Next != "" {
				errs = append(errs, &GraphError{StepID: id, Detail: "button steps use a transition mapping, not next"})
			}
			if len(step.Options) == 0 {
				errs = append(errs, &GraphError{StepID: id, Detail: "button step has no options"})
			}
			if len(step.Options) > models.MaxOptionsCount {
				errs = append(errs, &GraphError{StepID: id, Detail: "too many options"})
			}
			optionIDs := make(map[string]bool, len(step.Options))
			for _, opt := range step.Options {
				if opt.ID == "" {
					errs = append(errs, &GraphError{StepID: id, Detail: "option with empty id"})
					continue
				}
				if optionIDs[opt.ID] {
					errs = append(errs, &GraphError{StepID: id, Detail: "duplicate option id " + opt.ID})
				}
				optionIDs[opt.ID] = true
				if len(opt.Label) > models.MaxOptionLabelLength {
					errs = append(errs, &GraphError{StepID: id, Detail: "option label exceeds maximum length"})
				}
			}
			// An option without a mapping is a deliberate invalid-choice case,
			// but every mapping key must be a declared option.
			for optID, target := range step.Transitions {
				if !optionIDs[optID] {
					errs = append(errs, &GraphError{StepID: id, Detail: "transition for undeclared option " + optID})
				}
				if _, ok := f.steps[target]; !ok {
					errs = append(errs, &GraphError{StepID: id, Detail: "transition target " + target + " does not exist"})
				}
			}
		case models.StepKindEnd:
			endSteps++
			if step.Next != "" {
				errs = append(errs, &GraphError{StepID: id, Detail: "end steps have no outgoing transition"})
			}
		}
	}

	if len(f.order) > 0 && endSteps == 0 {
		errs = append(errs, &GraphError{Detail: "flow has no end step"})
	}

	return errs
}

// Name returns the flow's declared name.
func (f *Flow) Name() string { return f.name }

// StartStepID returns the id of the designated start step.
func (f *Flow) StartStepID() string { return f.startID }

// Start returns the designated start step. Its existence is guaranteed by
// construction-time validation.
func (f *Flow) Start() models.Step { return f.steps[f.startID] }

// ResolveStep looks up a step by its exact id. Callers must treat a miss as
// fatal for the current message rather than silently continuing.
func (f *Flow) ResolveStep(stepID string) (models.Step, error) {
	step, ok := f.steps[stepID]
	if !ok {
		return models.Step{}, &UnknownStepError{StepID: stepID}
	}
	return step, nil
}

// HasIntent reports whether tag is one of the flow's reserved top-level
// intent tags.
func (f *Flow) HasIntent(tag string) bool { return f.intents[tag] }

// Intents returns the reserved intent tags in sorted order.
func (f *Flow) Intents() []string {
	tags := make([]string, 0, len(f.intents))
	for tag := range f.intents {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// StepIDs returns all step ids in declaration order.
func (f *Flow) StepIDs() []string {
	ids := make([]string, len(f.order))
	copy(ids, f.order)
	return ids
}

// Len returns the number of steps in the flow.
func (f *Flow) Len() int { return len(f.steps) }
