// Package memory keeps workflow graphs in process memory. It backs tests,
// the example program and servers started without a database.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/meikuraledutech/flowgraph"
)

// Store implements flowgraph.Store over a map guarded by a mutex. Workflows
// are copied on the way in and out.
type Store struct {
	mu        sync.RWMutex
	workflows map[string]*flowgraph.Workflow
	order     []string
	now       func() time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		workflows: make(map[string]*flowgraph.Workflow),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateSchema is a no-op.
func (s *Store) CreateSchema(ctx context.Context) error { return nil }

// DropSchema removes every stored workflow.
func (s *Store) DropSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows = make(map[string]*flowgraph.Workflow)
	s.order = nil
	return nil
}

func (s *Store) CreateWorkflow(ctx context.Context, w *flowgraph.Workflow) (*flowgraph.Workflow, error) {
	if err := flowgraph.PrepareForSave(w); err != nil {
		return nil, err
	}
	now := s.now()
	w.CreatedAt, w.UpdatedAt = now, now
	stored, err := flowgraph.Clone(w)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workflows[w.ID]; !ok {
		s.order = append(s.order, w.ID)
	}
	s.workflows[w.ID] = stored
	return w, nil
}

// GetWorkflow returns nil, nil if the workflow does not exist.
func (s *Store) GetWorkflow(ctx context.Context, id string) (*flowgraph.Workflow, error) {
	s.mu.RLock()
	w, ok := s.workflows[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return flowgraph.Clone(w)
}

func (s *Store) UpdateWorkflow(ctx context.Context, w *flowgraph.Workflow) error {
	if w == nil || w.ID == "" {
		return flowgraph.ErrWorkflowNotFound
	}
	if err := flowgraph.PrepareForSave(w); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.workflows[w.ID]
	if !ok {
		return flowgraph.ErrWorkflowNotFound
	}
	w.CreatedAt = old.CreatedAt
	w.UpdatedAt = s.now()
	stored, err := flowgraph.Clone(w)
	if err != nil {
		return err
	}
	s.workflows[w.ID] = stored
	return nil
}

func (s *Store) DeleteWorkflow(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workflows[id]; !ok {
		return flowgraph.ErrWorkflowNotFound
	}
	delete(s.workflows, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// ListWorkflows returns summaries in creation order.
func (s *Store) ListWorkflows(ctx context.Context) ([]flowgraph.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]flowgraph.Summary, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, flowgraph.Summarize(s.workflows[id]))
	}
	return out, nil
}

var _ flowgraph.Store = (*Store)(nil)
