package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/flowgraph/storetest"
)

func setupTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestStore(t *testing.T) {
	_, client := setupTestRedis(t)
	storetest.Run(t, New(client, "test:"))
}

func TestKeyLayout(t *testing.T) {
	mr, client := setupTestRedis(t)
	s := New(client, "")
	w, err := s.CreateWorkflow(context.Background(), storetest.Sample("keys"))
	require.NoError(t, err)

	assert.True(t, mr.Exists("flowgraph:wf:"+w.ID))
	members, err := mr.ZMembers("flowgraph:idx:all")
	require.NoError(t, err)
	assert.Equal(t, []string{w.ID}, members)
}

func TestListSkipsMissingPayload(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()
	s := New(client, "p:")
	a, err := s.CreateWorkflow(ctx, storetest.Sample("a"))
	require.NoError(t, err)
	_, err = s.CreateWorkflow(ctx, storetest.Sample("b"))
	require.NoError(t, err)

	mr.Del("p:wf:" + a.ID)
	list, err := s.ListWorkflows(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].Name)
}

func TestNewFromURL(t *testing.T) {
	mr, _ := setupTestRedis(t)
	s, err := NewFromURL("redis://"+mr.Addr(), "")
	require.NoError(t, err)
	defer s.Close()
	assert.NoError(t, s.CreateSchema(context.Background()))

	_, err = NewFromURL("not a url", "")
	assert.Error(t, err)
}
