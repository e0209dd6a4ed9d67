package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"argus-api/domain"
)

type backend interface {
	FetchActiveTasks(ctx context.Context) ([]domain.Task, error)
	FetchArchivedTasks(ctx context.Context) ([]domain.Task, error)
	GetTask(ctx context.Context, id string) (domain.Task, error)
	CreateTask(ctx context.Context, task domain.Task) (domain.Task, error)
	UpdateTask(ctx context.Context, task domain.Task) (domain.Task, error)
	ArchiveTask(ctx context.Context, id string, now time.Time) (domain.Task, error)
	RestoreTask(ctx context.Context, id string, now time.Time) (domain.Task, error)
	DeleteTask(ctx context.Context, id string) error
	EnqueueEvents(ctx context.Context, events []domain.BoardEvent) error
}

// Cache wraps a Storage instance with Redis-backed caching of the active
// board. Every write path evicts, so voice sessions and HTTP readers see a
// fresh board on their next fetch.
type Cache struct {
	*Storage
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Storage wrapper using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}

	c := &Cache{
		base:  base,
		redis: client,
		ttl:   ttl,
	}
	if s, ok := base.(*Storage); ok {
		c.Storage = s
	}
	return c
}

func (c *Cache) FetchActiveTasks(ctx context.Context) ([]domain.Task, error) {
	if tasks, ok := c.loadFromCache(ctx); ok {
		return tasks, nil
	}

	tasks, err := c.base.FetchActiveTasks(ctx)
	if err != nil {
		return nil, err
	}

	c.store(ctx, tasks)
	return tasks, nil
}

// FetchArchivedTasks always goes to the backing store; the archive is read
// rarely enough that caching it buys nothing.
func (c *Cache) FetchArchivedTasks(ctx context.Context) ([]domain.Task, error) {
	return c.base.FetchArchivedTasks(ctx)
}

func (c *Cache) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return c.base.GetTask(ctx, id)
}

func (c *Cache) CreateTask(ctx context.Context, task domain.Task) (domain.Task, error) {
	created, err := c.base.CreateTask(ctx, task)
	if err != nil {
		return domain.Task{}, err
	}
	c.evict(ctx)
	return created, nil
}

func (c *Cache) UpdateTask(ctx context.Context, task domain.Task) (domain.Task, error) {
	updated, err := c.base.UpdateTask(ctx, task)
	if err != nil {
		return domain.Task{}, err
	}
	c.evict(ctx)
	return updated, nil
}

func (c *Cache) ArchiveTask(ctx context.Context, id string, now time.Time) (domain.Task, error) {
	task, err := c.base.ArchiveTask(ctx, id, now)
	if err != nil {
		return domain.Task{}, err
	}
	c.evict(ctx)
	return task, nil
}

func (c *Cache) RestoreTask(ctx context.Context, id string, now time.Time) (domain.Task, error) {
	task, err := c.base.RestoreTask(ctx, id, now)
	if err != nil {
		return domain.Task{}, err
	}
	c.evict(ctx)
	return task, nil
}

func (c *Cache) DeleteTask(ctx context.Context, id string) error {
	if err := c.base.DeleteTask(ctx, id); err != nil {
		return err
	}
	c.evict(ctx)
	return nil
}

func (c *Cache) EnqueueEvents(ctx context.Context, events []domain.BoardEvent) error {
	return c.base.EnqueueEvents(ctx, events)
}

func (c *Cache) loadFromCache(ctx context.Context) ([]domain.Task, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, activeTasksKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, activeTasksKey).Err()
		}
		return nil, false
	}
	var tasks []domain.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, activeTasksKey).Err()
		return nil, false
	}
	return tasks, true
}

func (c *Cache) store(ctx context.Context, tasks []domain.Task) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, activeTasksKey, data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, activeTasksKey).Result()
}

const activeTasksKey = "tasks:" + boardPartition
