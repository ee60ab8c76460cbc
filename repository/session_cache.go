package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jpkontreras/cw-sub006/models"
)

// SessionCache is the redis hot cache for session summaries, plus the
// idempotency-token storage for command retries.
type SessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionCache creates a cache with the given entry TTL.
func NewSessionCache(client *redis.Client, ttl time.Duration) *SessionCache {
	return &SessionCache{client: client, ttl: ttl}
}

func (c *SessionCache) getKey(id uuid.UUID) string {
	return fmt.Sprintf("session:summary:%s", id)
}

// GetSession returns the cached summary, or nil on a miss.
func (c *SessionCache) GetSession(ctx context.Context, id uuid.UUID) (*models.SessionView, error) {
	data, err := c.client.Get(ctx, c.getKey(id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var view models.SessionView
	if err := json.Unmarshal([]byte(data), &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// SaveSession stores the summary with the cache TTL.
func (c *SessionCache) SaveSession(ctx context.Context, view *models.SessionView) error {
	data, err := json.Marshal(view)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.getKey(view.ID), data, c.ttl).Err()
}

// DeleteSession drops the cached summary.
func (c *SessionCache) DeleteSession(ctx context.Context, id uuid.UUID) error {
	return c.client.Del(ctx, c.getKey(id)).Err()
}

// Idempotency helpers
func (c *SessionCache) getIdemKey(key string) string {
	return "idem:command:" + key
}

// GetIdempotency returns the recorded response for a retry token, or ""
// when the token has not been seen.
func (c *SessionCache) GetIdempotency(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, c.getIdemKey(key)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// SetIdempotency records a completed command's response for replay.
func (c *SessionCache) SetIdempotency(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, c.getIdemKey(key), value, ttl).Err()
}
