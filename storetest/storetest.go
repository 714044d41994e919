// Package storetest runs the same behavioural checks against every
// flowgraph.Store implementation.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/flowgraph"
)

// Sample returns a small valid workflow: input -> prompt -> output.
func Sample(name string) *flowgraph.Workflow {
	temp := 0.2
	return &flowgraph.Workflow{
		Name: name,
		Nodes: []flowgraph.Node{
			{ID: "in1", Type: flowgraph.NodeInput, Position: flowgraph.Position{X: 10, Y: 20},
				Data: flowgraph.NodeData{Label: "Topic", Config: &flowgraph.InputConfig{InputType: "string", Required: true}}},
			{ID: "p1", Type: flowgraph.NodePrompt, Position: flowgraph.Position{X: 10, Y: 170},
				Data: flowgraph.NodeData{Label: "Write", Config: &flowgraph.PromptConfig{
					Model: "gpt-4o", UserPrompt: "Write about {{nodes.in1.output}}", Temperature: &temp,
				}}},
			{ID: "out1", Type: flowgraph.NodeOutput, Position: flowgraph.Position{X: 10, Y: 320},
				Data: flowgraph.NodeData{Label: "Result", Config: &flowgraph.OutputConfig{Format: "text"}}},
		},
		Edges: []flowgraph.Edge{
			{Source: "in1", Target: "p1"},
			{ID: "e2", Source: "p1", Target: "out1"},
		},
		Variables: map[string]any{"tone": "dry"},
	}
}

// Run exercises s. The store must be empty when Run starts.
func Run(t *testing.T, s flowgraph.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateSchema(ctx))

	t.Run("create and get", func(t *testing.T) {
		w, err := s.CreateWorkflow(ctx, Sample("create"))
		require.NoError(t, err)
		require.NotEmpty(t, w.ID)
		assert.NotEmpty(t, w.Edges[0].ID)
		assert.Equal(t, "e2", w.Edges[1].ID)
		assert.False(t, w.CreatedAt.IsZero())

		got, err := s.GetWorkflow(ctx, w.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, w.Name, got.Name)
		assert.Equal(t, w.Nodes, got.Nodes)
		assert.Equal(t, w.Edges, got.Edges)
		assert.Equal(t, w.Variables, got.Variables)
	})

	t.Run("missing", func(t *testing.T) {
		got, err := s.GetWorkflow(ctx, "does-not-exist")
		require.NoError(t, err)
		assert.Nil(t, got)

		err = s.UpdateWorkflow(ctx, &flowgraph.Workflow{ID: "does-not-exist"})
		assert.ErrorIs(t, err, flowgraph.ErrWorkflowNotFound)
		assert.ErrorIs(t, s.DeleteWorkflow(ctx, "does-not-exist"), flowgraph.ErrWorkflowNotFound)
	})

	t.Run("cycle rejected", func(t *testing.T) {
		w := Sample("cycle")
		w.Edges = append(w.Edges, flowgraph.Edge{Source: "out1", Target: "in1"})
		_, err := s.CreateWorkflow(ctx, w)
		require.Error(t, err)
		assert.True(t, errors.Is(err, flowgraph.ErrCycleDetected))
	})

	t.Run("update replaces graph", func(t *testing.T) {
		w, err := s.CreateWorkflow(ctx, Sample("before"))
		require.NoError(t, err)

		w.Name = "after"
		w.Nodes = w.Nodes[:2]
		w.Edges = w.Edges[:1]
		w.Variables = nil
		require.NoError(t, s.UpdateWorkflow(ctx, w))

		got, err := s.GetWorkflow(ctx, w.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "after", got.Name)
		assert.Len(t, got.Nodes, 2)
		assert.Len(t, got.Edges, 1)
		assert.Nil(t, got.Variables)
		assert.False(t, got.UpdatedAt.Before(got.CreatedAt))

		w.Edges = append(w.Edges, flowgraph.Edge{Source: "p1", Target: "in1"})
		assert.ErrorIs(t, s.UpdateWorkflow(ctx, w), flowgraph.ErrCycleDetected)
	})

	t.Run("list and delete", func(t *testing.T) {
		require.NoError(t, s.DropSchema(ctx))
		require.NoError(t, s.CreateSchema(ctx))

		a, err := s.CreateWorkflow(ctx, Sample("a"))
		require.NoError(t, err)
		b, err := s.CreateWorkflow(ctx, Sample("b"))
		require.NoError(t, err)

		list, err := s.ListWorkflows(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.ElementsMatch(t, []string{a.ID, b.ID}, []string{list[0].ID, list[1].ID})
		assert.Equal(t, 3, list[0].NodeCount)
		assert.Equal(t, 2, list[0].EdgeCount)

		require.NoError(t, s.DeleteWorkflow(ctx, a.ID))
		got, err := s.GetWorkflow(ctx, a.ID)
		require.NoError(t, err)
		assert.Nil(t, got)

		list, err = s.ListWorkflows(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, b.ID, list[0].ID)
	})

	t.Run("concurrent creates", func(t *testing.T) {
		require.NoError(t, s.DropSchema(ctx))
		require.NoError(t, s.CreateSchema(ctx))

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.CreateWorkflow(ctx, Sample("parallel"))
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		list, err := s.ListWorkflows(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 20)
	})
}
