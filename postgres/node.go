package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/meikuraledutech/flowgraph"
)

func insertNodes(ctx context.Context, tx pgx.Tx, workflowID string, nodes []flowgraph.Node) error {
	for i, n := range nodes {
		data, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("postgres: encode node %s: %w", n.ID, err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO workflow_nodes (workflow_id, id, seq, type, data) VALUES ($1, $2, $3, $4, $5)`,
			workflowID, n.ID, i, string(n.Type), data,
		)
		if err != nil {
			return fmt.Errorf("postgres: insert node %s: %w", n.ID, err)
		}
	}
	return nil
}

func (s *PGStore) loadNodes(ctx context.Context, workflowID string) ([]flowgraph.Node, error) {
	rows, err := s.db.Query(ctx,
		`SELECT data FROM workflow_nodes WHERE workflow_id = $1 ORDER BY seq`,
		workflowID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: get nodes: %w", err)
	}
	defer rows.Close()

	nodes := []flowgraph.Node{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("postgres: scan node: %w", err)
		}
		var n flowgraph.Node
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, fmt.Errorf("postgres: decode node: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}
