package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/meikuraledutech/flowgraph"
)

func insertEdges(ctx context.Context, tx pgx.Tx, workflowID string, edges []flowgraph.Edge) error {
	for i, e := range edges {
		_, err := tx.Exec(ctx,
			`INSERT INTO workflow_edges (workflow_id, id, seq, source, target, source_handle, target_handle)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			workflowID, e.ID, i, e.Source, e.Target, e.SourceHandle, e.TargetHandle,
		)
		if err != nil {
			return fmt.Errorf("postgres: insert edge %s: %w", e.ID, err)
		}
	}
	return nil
}

func (s *PGStore) loadEdges(ctx context.Context, workflowID string) ([]flowgraph.Edge, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, source, target, source_handle, target_handle
		 FROM workflow_edges WHERE workflow_id = $1 ORDER BY seq`,
		workflowID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: get edges: %w", err)
	}
	defer rows.Close()

	edges := []flowgraph.Edge{}
	for rows.Next() {
		var e flowgraph.Edge
		if err := rows.Scan(&e.ID, &e.Source, &e.Target, &e.SourceHandle, &e.TargetHandle); err != nil {
			return nil, fmt.Errorf("postgres: scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}
