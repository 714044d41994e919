// Package wire models the declarative workflow document consumed by an
// external runtime and converts it to and from JSON and an indented text
// rendering.
package wire

import (
	"github.com/meikuraledutech/flowgraph/expr"
)

// SchemaURI identifies documents produced by this module.
const SchemaURI = "urn:flowgraph:wire:v1"

// Limits enforced by the validator.
const (
	MaxNameLength        = 256
	MaxDescriptionLength = 4096
)

// Document is a point-in-time workflow description. It is built fresh by
// every export and import and not mutated afterwards.
type Document struct {
	Schema      string
	Name        string
	Description string
	InputSchema map[string]any
	BatchSchema map[string]any
	Steps       []Step
	Output      expr.Expr
}

// Step is one unit of work.
type Step struct {
	ID          string
	Component   string
	Input       expr.Object
	OnError     *ErrorHandler
	MustExecute bool
	Metadata    map[string]any
}

// Error handler types.
const (
	OnErrorRetry   = "retry"
	OnErrorDefault = "default"
	OnErrorFail    = "fail"
)

// ErrorHandler is the wire shape {type, max_attempts, value}. The legacy
// shape {action, max_retries} is accepted on decode.
type ErrorHandler struct {
	Type        string
	MaxAttempts int
	Value       any
	HasValue    bool
}

// Step returns the step with the given id.
func (d *Document) Step(id string) (*Step, bool) {
	for i := range d.Steps {
		if d.Steps[i].ID == id {
			return &d.Steps[i], true
		}
	}
	return nil, false
}

// StepIDs returns the set of step ids.
func (d *Document) StepIDs() map[string]bool {
	ids := make(map[string]bool, len(d.Steps))
	for _, s := range d.Steps {
		ids[s.ID] = true
	}
	return ids
}

// References returns the step ids referenced from the step's input.
func (s *Step) References() []string {
	return expr.StepReferences(s.Input)
}
