// Package feedcache is the redis read-through cache for profiles and trending lists.
package feedcache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oblivion-social/oblivion-api/internal/metrics"
	"github.com/oblivion-social/oblivion-api/internal/model"
)

// Cache wraps a redis client. A nil client disables caching: every lookup misses.
type Cache struct {
	client *redis.Client
	ttl    time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

func New(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

func UserKey(id string) string { return fmt.Sprintf("user:%s", id) }

func TrendingPostsKey(limit int) string { return fmt.Sprintf("trending:posts:%d", limit) }

func TrendingTagsKey(limit int) string { return fmt.Sprintf("trending:tags:%d", limit) }

func (c *Cache) Enabled() bool { return c != nil && c.client != nil }

// GetJSON decodes key into dst; false on miss or decode failure.
func (c *Cache) GetJSON(ctx context.Context, key string, dst interface{}) bool {
	if !c.Enabled() {
		return false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		c.miss()
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.miss()
		return false
	}
	c.hit()
	return true
}

func (c *Cache) SetJSON(ctx context.Context, key string, v interface{}) {
	if !c.Enabled() {
		return
	}
	if payload, err := json.Marshal(v); err == nil {
		_ = c.client.Set(ctx, key, payload, c.ttl).Err()
	}
}

func (c *Cache) Delete(ctx context.Context, keys ...string) {
	if !c.Enabled() || len(keys) == 0 {
		return
	}
	_ = c.client.Del(ctx, keys...).Err()
}

// Fetch returns the cached value for key or loads, stores and returns it.
func Fetch[T any](ctx context.Context, c *Cache, key string, load func(context.Context) (T, error)) (T, error) {
	var out T
	if c.GetJSON(ctx, key, &out) {
		return out, nil
	}
	out, err := load(ctx)
	if err != nil {
		return out, err
	}
	c.SetJSON(ctx, key, out)
	return out, nil
}

// Refresh reloads key unconditionally.
func Refresh[T any](ctx context.Context, c *Cache, key string, load func(context.Context) (T, error)) (T, error) {
	out, err := load(ctx)
	if err != nil {
		return out, err
	}
	c.SetJSON(ctx, key, out)
	return out, nil
}

// LoadUsers resolves ids through MGET and loads only the missing profiles.
// The result keeps the order of ids; unknown ids are dropped.
func (c *Cache) LoadUsers(ctx context.Context, ids []string, load func(ctx context.Context, missing []string) ([]*model.User, error)) ([]*model.User, error) {
	if len(ids) == 0 {
		return []*model.User{}, nil
	}

	cached := make(map[string]*model.User, len(ids))
	if c.Enabled() {
		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = UserKey(id)
		}
		if vals, err := c.client.MGet(ctx, keys...).Result(); err == nil {
			for i, v := range vals {
				str, ok := v.(string)
				if !ok {
					continue
				}
				var u model.User
				if uErr := json.Unmarshal([]byte(str), &u); uErr == nil {
					cached[ids[i]] = &u
				}
			}
		}
	}

	missing := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := cached[id]; !ok {
			missing = append(missing, id)
		}
	}
	if c.Enabled() {
		c.hits.Add(int64(len(ids) - len(missing)))
		c.misses.Add(int64(len(missing)))
		metrics.CacheLookups.WithLabelValues("hit").Add(float64(len(ids) - len(missing)))
		metrics.CacheLookups.WithLabelValues("miss").Add(float64(len(missing)))
	}

	if len(missing) > 0 {
		users, err := load(ctx, missing)
		if err != nil {
			return nil, err
		}
		var pipe redis.Pipeliner
		if c.Enabled() {
			pipe = c.client.Pipeline()
		}
		for _, u := range users {
			cached[u.ID] = u
			if pipe != nil {
				if payload, err := json.Marshal(u); err == nil {
					pipe.Set(ctx, UserKey(u.ID), payload, c.ttl)
				}
			}
		}
		if pipe != nil {
			_, _ = pipe.Exec(ctx)
		}
	}

	result := make([]*model.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := cached[id]; ok {
			result = append(result, u)
		}
	}
	return result, nil
}

func (c *Cache) hit() {
	c.hits.Add(1)
	metrics.CacheLookups.WithLabelValues("hit").Inc()
}

func (c *Cache) miss() {
	c.misses.Add(1)
	metrics.CacheLookups.WithLabelValues("miss").Inc()
}

// Counters reports lookups since start or the last ResetCounters.
func (c *Cache) Counters() Counters {
	return Counters{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

func (c *Cache) ResetCounters() {
	c.hits.Store(0)
	c.misses.Store(0)
}

// Counters summarises cache effectiveness.
type Counters struct {
	Hits   int64
	Misses int64
}
