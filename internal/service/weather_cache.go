package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// WeatherCache stores reports keyed by rounded coordinates. A miss is (nil, nil).
type WeatherCache interface {
	Get(ctx context.Context, key string) (*WeatherReport, error)
	Set(ctx context.Context, key string, report *WeatherReport, ttl time.Duration) error
}

type memoryWeatherEntry struct {
	report  WeatherReport
	expires time.Time
}

// MemoryWeatherCache is the single-process default.
type MemoryWeatherCache struct {
	mu      sync.Mutex
	entries map[string]memoryWeatherEntry
	now     func() time.Time
}

func NewMemoryWeatherCache() *MemoryWeatherCache {
	return &MemoryWeatherCache{entries: make(map[string]memoryWeatherEntry), now: time.Now}
}

func (c *MemoryWeatherCache) Get(_ context.Context, key string) (*WeatherReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	if !c.now().Before(entry.expires) {
		delete(c.entries, key)
		return nil, nil
	}
	report := entry.report
	return &report, nil
}

func (c *MemoryWeatherCache) Set(_ context.Context, key string, report *WeatherReport, ttl time.Duration) error {
	if report == nil || ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryWeatherEntry{report: *report, expires: c.now().Add(ttl)}
	return nil
}

// RedisWeatherCache shares reports between server instances.
type RedisWeatherCache struct {
	client redis.Cmdable
	prefix string
}

func NewRedisWeatherCache(client redis.Cmdable) *RedisWeatherCache {
	return &RedisWeatherCache{client: client, prefix: "closet:weather:"}
}

func (c *RedisWeatherCache) Get(ctx context.Context, key string) (*WeatherReport, error) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get weather: %w", err)
	}
	var report WeatherReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("decode cached weather: %w", err)
	}
	return &report, nil
}

func (c *RedisWeatherCache) Set(ctx context.Context, key string, report *WeatherReport, ttl time.Duration) error {
	if report == nil || ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode weather: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set weather: %w", err)
	}
	return nil
}
