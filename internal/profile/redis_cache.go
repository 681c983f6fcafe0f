package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache keeps bootstrap output across process restarts so a fresh
// run can reuse a still-valid profile instead of opening a browser.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(addr string) *RedisCache {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	return &RedisCache{client: rdb}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func profileKey(source string) string {
	return fmt.Sprintf("profile:%s", source)
}

func (c *RedisCache) Load(ctx context.Context, source string) (*AccessProfile, error) {
	raw, err := c.client.Get(ctx, profileKey(source)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p AccessProfile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *RedisCache) Save(ctx context.Context, p *AccessProfile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	ttl := time.Until(p.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, profileKey(p.Source), raw, ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, source string) error {
	return c.client.Del(ctx, profileKey(source)).Err()
}
