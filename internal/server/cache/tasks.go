// Package cache puts a Redis read-through cache in front of the task
// repository. List and Stats results are cached per owner; any successful
// write by that owner bumps a generation counter, which orphans every entry
// cached under the previous generation. Redis failures never fail a call.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/dmitrijs2005/taskkeeper/internal/logging"
	"github.com/dmitrijs2005/taskkeeper/internal/server/models"
	"github.com/dmitrijs2005/taskkeeper/internal/server/repositories/tasks"
	"github.com/redis/go-redis/v9"
)

// TaskRepository decorates a tasks.Repository with Redis caching.
type TaskRepository struct {
	base  tasks.Repository
	redis *redis.Client
	ttl   time.Duration
	log   logging.Logger
}

var _ tasks.Repository = (*TaskRepository)(nil)

// NewTaskRepository wraps base. A nil client or non-positive ttl turns the
// decorator into a pass-through.
func NewTaskRepository(base tasks.Repository, client *redis.Client, ttl time.Duration, log logging.Logger) *TaskRepository {
	if base == nil {
		panic("cache.NewTaskRepository: base repository is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &TaskRepository{base: base, redis: client, ttl: ttl, log: log.With("module", "cache")}
}

func (c *TaskRepository) enabled() bool {
	return c.redis != nil && c.ttl > 0
}

func (c *TaskRepository) List(ctx context.Context, ownerID string, filter models.TaskFilter) ([]models.Task, error) {
	if !c.enabled() {
		return c.base.List(ctx, ownerID, filter)
	}

	gen, ok := c.generation(ctx, ownerID)
	if !ok {
		return c.base.List(ctx, ownerID, filter)
	}
	key := listKey(ownerID, gen, filter)

	var cached []models.Task
	if c.load(ctx, key, &cached) {
		return cached, nil
	}

	result, err := c.base.List(ctx, ownerID, filter)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, result)
	return result, nil
}

func (c *TaskRepository) Stats(ctx context.Context, ownerID string) (*models.Stats, error) {
	if !c.enabled() {
		return c.base.Stats(ctx, ownerID)
	}

	gen, ok := c.generation(ctx, ownerID)
	if !ok {
		return c.base.Stats(ctx, ownerID)
	}
	key := statsKey(ownerID, gen)

	cached := &models.Stats{}
	if c.load(ctx, key, cached) {
		return cached, nil
	}

	s, err := c.base.Stats(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, s)
	return s, nil
}

func (c *TaskRepository) Get(ctx context.Context, ownerID, id string) (*models.Task, error) {
	return c.base.Get(ctx, ownerID, id)
}

func (c *TaskRepository) Create(ctx context.Context, task *models.Task) (*models.Task, error) {
	created, err := c.base.Create(ctx, task)
	if err != nil {
		return nil, err
	}
	c.evict(ctx, task.Owner)
	return created, nil
}

func (c *TaskRepository) Update(ctx context.Context, ownerID, id string, patch models.TaskPatch) (*models.Task, error) {
	updated, err := c.base.Update(ctx, ownerID, id, patch)
	if err != nil {
		return nil, err
	}
	c.evict(ctx, ownerID)
	return updated, nil
}

func (c *TaskRepository) Delete(ctx context.Context, ownerID, id string) error {
	if err := c.base.Delete(ctx, ownerID, id); err != nil {
		return err
	}
	c.evict(ctx, ownerID)
	return nil
}

// generation returns the owner's current cache generation. A missing
// counter is generation 0; any other Redis error disables caching for the
// call.
func (c *TaskRepository) generation(ctx context.Context, ownerID string) (int64, bool) {
	gen, err := c.redis.Get(ctx, genKey(ownerID)).Int64()
	switch {
	case err == nil:
		return gen, true
	case errors.Is(err, redis.Nil):
		return 0, true
	default:
		c.log.Warn(ctx, "cache generation lookup failed", "owner", ownerID, "error", err)
		return 0, false
	}
}

func (c *TaskRepository) load(ctx context.Context, key string, dst any) bool {
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn(ctx, "cache read failed", "key", key, "error", err)
		}
		return false
	}
	if err := sonic.Unmarshal(data, dst); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return false
	}
	c.log.Debug(ctx, "cache hit", "key", key)
	return true
}

func (c *TaskRepository) store(ctx context.Context, key string, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Warn(ctx, "cache write failed", "key", key, "error", err)
	}
}

func (c *TaskRepository) evict(ctx context.Context, ownerID string) {
	if c.redis == nil {
		return
	}
	if err := c.redis.Incr(ctx, genKey(ownerID)).Err(); err != nil {
		c.log.Error(ctx, "cache eviction failed", "owner", ownerID, "error", err)
	}
}

func genKey(ownerID string) string {
	return "tasks:gen:" + ownerID
}

func listKey(ownerID string, gen int64, f models.TaskFilter) string {
	return fmt.Sprintf("tasks:%s:v%d:%s", ownerID, gen, f.Key())
}

func statsKey(ownerID string, gen int64) string {
	return fmt.Sprintf("stats:%s:v%d", ownerID, gen)
}
