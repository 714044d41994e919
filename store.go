package flowgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrCycleDetected        = errors.New("flowgraph: cycle detected, graph is not acyclic")
	ErrWorkflowNotFound     = errors.New("flowgraph: workflow not found")
	ErrUnsupportedNodeType  = errors.New("flowgraph: unsupported node type")
	ErrUnsupportedComponent = errors.New("flowgraph: unsupported component")
)

// CycleError names a node that sits on a detected cycle.
type CycleError struct {
	NodeID string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("flowgraph: cycle detected involving node %q", e.NodeID)
}

func (e *CycleError) Unwrap() error { return ErrCycleDetected }

// UnsupportedNodeTypeError is returned when no converter exists for a node.
type UnsupportedNodeTypeError struct {
	NodeID string
	Type   NodeType
}

func (e *UnsupportedNodeTypeError) Error() string {
	return fmt.Sprintf("flowgraph: node %q has unsupported type %q", e.NodeID, e.Type)
}

func (e *UnsupportedNodeTypeError) Unwrap() error { return ErrUnsupportedNodeType }

// UnsupportedComponentError is returned when a step cannot become a node.
type UnsupportedComponentError struct {
	StepID    string
	Component string
}

func (e *UnsupportedComponentError) Error() string {
	return fmt.Sprintf("flowgraph: step %q uses component %q which has no graph node equivalent", e.StepID, e.Component)
}

func (e *UnsupportedComponentError) Unwrap() error { return ErrUnsupportedComponent }

// Store defines the contract for persisting and retrieving workflow graphs.
type Store interface {
	// Schema
	CreateSchema(ctx context.Context) error
	DropSchema(ctx context.Context) error

	// CreateWorkflow saves a full graph. Workflows and edges without IDs get
	// generated ones. Graphs containing a cycle are rejected.
	CreateWorkflow(ctx context.Context, w *Workflow) (*Workflow, error)
	// GetWorkflow returns nil, nil when the workflow does not exist.
	GetWorkflow(ctx context.Context, id string) (*Workflow, error)
	// UpdateWorkflow replaces nodes, edges and variables of an existing workflow.
	UpdateWorkflow(ctx context.Context, w *Workflow) error
	DeleteWorkflow(ctx context.Context, id string) error
	ListWorkflows(ctx context.Context) ([]Summary, error)
}

// Summary is the listing view of a stored workflow.
type Summary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	NodeCount int    `json:"nodeCount"`
	EdgeCount int    `json:"edgeCount"`
}

// Summarize builds the listing view of w.
func Summarize(w *Workflow) Summary {
	return Summary{ID: w.ID, Name: w.Name, NodeCount: len(w.Nodes), EdgeCount: len(w.Edges)}
}

// PrepareForSave fills in a missing workflow id and missing edge ids and
// rejects graphs that contain a cycle. Stores call it before persisting.
func PrepareForSave(w *Workflow) error {
	if w == nil {
		return errors.New("flowgraph: workflow is required")
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	for i := range w.Edges {
		if w.Edges[i].ID == "" {
			w.Edges[i].ID = uuid.NewString()
		}
	}
	return ValidateAcyclic(w)
}

// Clone returns a deep copy of w made through its JSON form.
func Clone(w *Workflow) (*Workflow, error) {
	b, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("flowgraph: encode workflow: %w", err)
	}
	out := &Workflow{}
	if err := json.Unmarshal(b, out); err != nil {
		return nil, fmt.Errorf("flowgraph: decode workflow: %w", err)
	}
	return out, nil
}
