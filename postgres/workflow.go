package postgres

import (
	"context"
	"fmt"

	"github.com/meikuraledutech/flowgraph"
)

// CreateWorkflow saves the workflow with its nodes and edges in a single
// transaction and returns it with ids and timestamps filled in.
func (s *PGStore) CreateWorkflow(ctx context.Context, w *flowgraph.Workflow) (*flowgraph.Workflow, error) {
	if err := flowgraph.PrepareForSave(w); err != nil {
		return nil, err
	}
	vars, err := marshalVariables(w.Variables)
	if err != nil {
		return nil, fmt.Errorf("postgres: encode variables: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO workflows (id, name, variables) VALUES ($1, $2, $3)
		 RETURNING created_at, updated_at`,
		w.ID, w.Name, vars,
	).Scan(&w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("postgres: insert workflow: %w", err)
	}
	if err := insertNodes(ctx, tx, w.ID, w.Nodes); err != nil {
		return nil, err
	}
	if err := insertEdges(ctx, tx, w.ID, w.Edges); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("postgres: commit: %w", err)
	}
	return w, nil
}

// GetWorkflow loads the full graph. Returns nil, nil if not found.
func (s *PGStore) GetWorkflow(ctx context.Context, id string) (*flowgraph.Workflow, error) {
	w := &flowgraph.Workflow{}
	var vars []byte
	err := s.db.QueryRow(ctx,
		`SELECT id, name, variables, created_at, updated_at FROM workflows WHERE id = $1`,
		id,
	).Scan(&w.ID, &w.Name, &vars, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: get workflow: %w", err)
	}
	if w.Variables, err = unmarshalVariables(vars); err != nil {
		return nil, fmt.Errorf("postgres: decode variables: %w", err)
	}

	if w.Nodes, err = s.loadNodes(ctx, id); err != nil {
		return nil, err
	}
	if w.Edges, err = s.loadEdges(ctx, id); err != nil {
		return nil, err
	}
	return w, nil
}

// UpdateWorkflow replaces the name, variables, nodes and edges of an
// existing workflow.
func (s *PGStore) UpdateWorkflow(ctx context.Context, w *flowgraph.Workflow) error {
	if w == nil || w.ID == "" {
		return flowgraph.ErrWorkflowNotFound
	}
	if err := flowgraph.PrepareForSave(w); err != nil {
		return err
	}
	vars, err := marshalVariables(w.Variables)
	if err != nil {
		return fmt.Errorf("postgres: encode variables: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`UPDATE workflows SET name = $2, variables = $3, updated_at = NOW()
		 WHERE id = $1 RETURNING created_at, updated_at`,
		w.ID, w.Name, vars,
	).Scan(&w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return flowgraph.ErrWorkflowNotFound
		}
		return fmt.Errorf("postgres: update workflow: %w", err)
	}

	// Edges reference nodes, so they go first.
	if _, err := tx.Exec(ctx, `DELETE FROM workflow_edges WHERE workflow_id = $1`, w.ID); err != nil {
		return fmt.Errorf("postgres: delete edges: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM workflow_nodes WHERE workflow_id = $1`, w.ID); err != nil {
		return fmt.Errorf("postgres: delete nodes: %w", err)
	}
	if err := insertNodes(ctx, tx, w.ID, w.Nodes); err != nil {
		return err
	}
	if err := insertEdges(ctx, tx, w.ID, w.Edges); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// DeleteWorkflow removes the workflow. Nodes and edges cascade.
func (s *PGStore) DeleteWorkflow(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete workflow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return flowgraph.ErrWorkflowNotFound
	}
	return nil
}

// ListWorkflows returns a summary of every stored workflow, oldest first.
func (s *PGStore) ListWorkflows(ctx context.Context) ([]flowgraph.Summary, error) {
	rows, err := s.db.Query(ctx, `
		SELECT w.id, w.name,
		       (SELECT COUNT(*) FROM workflow_nodes n WHERE n.workflow_id = w.id),
		       (SELECT COUNT(*) FROM workflow_edges e WHERE e.workflow_id = w.id)
		FROM workflows w
		ORDER BY w.created_at, w.id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list workflows: %w", err)
	}
	defer rows.Close()

	out := []flowgraph.Summary{}
	for rows.Next() {
		var sum flowgraph.Summary
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.NodeCount, &sum.EdgeCount); err != nil {
			return nil, fmt.Errorf("postgres: scan workflow: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

var _ flowgraph.Store = (*PGStore)(nil)
