package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// FailureCounter tracks failed step-up attempts per admin within a window
type FailureCounter interface {
	Failures(ctx context.Context, adminID string) (int, error)
	Increment(ctx context.Context, adminID string, window time.Duration) (int, error)
	Reset(ctx context.Context, adminID string) error
}

const failureKeyPrefix = "admin:reauth:failures:"

type redisCounter struct {
	client *redis.Client
}

// NewRedisCounter stores failure counts in Redis so lockouts hold across instances
func NewRedisCounter(client *redis.Client) FailureCounter {
	return &redisCounter{client: client}
}

func (c *redisCounter) Failures(ctx context.Context, adminID string) (int, error) {
	n, err := c.client.Get(ctx, failureKeyPrefix+adminID).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read failure counter: %w", err)
	}
	return n, nil
}

func (c *redisCounter) Increment(ctx context.Context, adminID string, window time.Duration) (int, error) {
	key := failureKeyPrefix + adminID
	var incr *redis.IntCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("increment failure counter: %w", err)
	}
	return int(incr.Val()), nil
}

func (c *redisCounter) Reset(ctx context.Context, adminID string) error {
	return c.client.Del(ctx, failureKeyPrefix+adminID).Err()
}

type memoryEntry struct {
	count   int
	expires time.Time
}

type memoryCounter struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCounter keeps failure counts in process memory. Used when Redis is not configured.
func NewMemoryCounter() FailureCounter {
	return &memoryCounter{entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *memoryCounter) Failures(_ context.Context, adminID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[adminID]
	if !ok || !c.now().Before(e.expires) {
		delete(c.entries, adminID)
		return 0, nil
	}
	return e.count, nil
}

func (c *memoryCounter) Increment(_ context.Context, adminID string, window time.Duration) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	e, ok := c.entries[adminID]
	if !ok || !now.Before(e.expires) {
		e = memoryEntry{expires: now.Add(window)}
	}
	e.count++
	c.entries[adminID] = e
	return e.count, nil
}

func (c *memoryCounter) Reset(_ context.Context, adminID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, adminID)
	return nil
}
