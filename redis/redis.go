// Package redis stores workflow graphs in Redis.
//
// Key layout:
//
//	<prefix>wf:<id>   => JSON-encoded workflow
//	<prefix>idx:all   => ZSET of workflow ids scored by creation time
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meikuraledutech/flowgraph"
)

// DefaultPrefix namespaces keys when no prefix is given.
const DefaultPrefix = "flowgraph:"

// Store implements flowgraph.Store on a go-redis client.
type Store struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

var _ flowgraph.Store = (*Store)(nil)

// New creates a Store. prefix defaults to DefaultPrefix.
func New(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{
		client: client,
		prefix: prefix,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// NewFromURL parses a redis:// URL and creates a Store on a new client.
func NewFromURL(url, prefix string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	return New(redis.NewClient(opts), prefix), nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) keyWorkflow(id string) string {
	return s.prefix + "wf:" + id
}

func (s *Store) keyAll() string {
	return s.prefix + "idx:all"
}

// CreateSchema checks the connection; Redis needs no schema.
func (s *Store) CreateSchema(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// DropSchema removes every workflow under the prefix.
func (s *Store) DropSchema(ctx context.Context) error {
	ids, err := s.client.ZRange(ctx, s.keyAll(), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis: list workflows: %w", err)
	}
	keys := []string{s.keyAll()}
	for _, id := range ids {
		keys = append(keys, s.keyWorkflow(id))
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis: drop: %w", err)
	}
	return nil
}

func (s *Store) CreateWorkflow(ctx context.Context, w *flowgraph.Workflow) (*flowgraph.Workflow, error) {
	if err := flowgraph.PrepareForSave(w); err != nil {
		return nil, err
	}
	now := s.now()
	w.CreatedAt, w.UpdatedAt = now, now
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("redis: encode workflow %s: %w", w.ID, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.keyWorkflow(w.ID), data, 0)
		pipe.ZAdd(ctx, s.keyAll(), redis.Z{Score: float64(now.UnixNano()), Member: w.ID})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis: save workflow %s: %w", w.ID, err)
	}
	return w, nil
}

// GetWorkflow returns nil, nil if the workflow does not exist.
func (s *Store) GetWorkflow(ctx context.Context, id string) (*flowgraph.Workflow, error) {
	data, err := s.client.Get(ctx, s.keyWorkflow(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get workflow %s: %w", id, err)
	}
	w := &flowgraph.Workflow{}
	if err := json.Unmarshal(data, w); err != nil {
		return nil, fmt.Errorf("redis: decode workflow %s: %w", id, err)
	}
	return w, nil
}

func (s *Store) UpdateWorkflow(ctx context.Context, w *flowgraph.Workflow) error {
	if w == nil || w.ID == "" {
		return flowgraph.ErrWorkflowNotFound
	}
	if err := flowgraph.PrepareForSave(w); err != nil {
		return err
	}
	old, err := s.GetWorkflow(ctx, w.ID)
	if err != nil {
		return err
	}
	if old == nil {
		return flowgraph.ErrWorkflowNotFound
	}
	w.CreatedAt = old.CreatedAt
	w.UpdatedAt = s.now()
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("redis: encode workflow %s: %w", w.ID, err)
	}
	ok, err := s.client.SetXX(ctx, s.keyWorkflow(w.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("redis: update workflow %s: %w", w.ID, err)
	}
	if !ok {
		return flowgraph.ErrWorkflowNotFound
	}
	return nil
}

func (s *Store) DeleteWorkflow(ctx context.Context, id string) error {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.keyWorkflow(id))
		pipe.ZRem(ctx, s.keyAll(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: delete workflow %s: %w", id, err)
	}
	if del.Val() == 0 {
		return flowgraph.ErrWorkflowNotFound
	}
	return nil
}

// ListWorkflows returns summaries in creation order. Index entries whose
// payload has gone missing are skipped.
func (s *Store) ListWorkflows(ctx context.Context) ([]flowgraph.Summary, error) {
	ids, err := s.client.ZRange(ctx, s.keyAll(), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: list workflows: %w", err)
	}
	out := make([]flowgraph.Summary, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.keyWorkflow(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: load workflows: %w", err)
	}
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		w := &flowgraph.Workflow{}
		if err := json.Unmarshal([]byte(raw), w); err != nil {
			return nil, fmt.Errorf("redis: decode workflow %s: %w", ids[i], err)
		}
		out = append(out, flowgraph.Summarize(w))
	}
	return out, nil
}
