package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/flowgraph/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, New())
}

func TestStoreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	w, err := s.CreateWorkflow(ctx, storetest.Sample("copy"))
	require.NoError(t, err)

	w.Nodes[0].Data.Label = "changed after save"
	got, err := s.GetWorkflow(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "Topic", got.Nodes[0].Data.Label)

	got.Name = "changed after load"
	again, err := s.GetWorkflow(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "copy", again.Name)
}

func TestListOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	var ids []string
	for _, name := range []string{"c", "a", "b"} {
		w, err := s.CreateWorkflow(ctx, storetest.Sample(name))
		require.NoError(t, err)
		ids = append(ids, w.ID)
	}
	list, err := s.ListWorkflows(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, sum := range list {
		assert.Equal(t, ids[i], sum.ID)
	}
}
