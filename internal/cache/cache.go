// Package cache stores completed generation results keyed by request
// content. It supports an in-memory backend for single instances and Redis
// for distributed deployments. Streamed requests are never cached.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/draftforge/genroute/internal/domain"
)

// Cache is the interface for result caching backends.
type Cache interface {
	Get(ctx context.Context, key string) (*domain.GenerateResult, bool)
	Set(ctx context.Context, key string, res *domain.GenerateResult, ttl time.Duration) error
}

// Key derives a cache key from the request fields that determine the
// output. Two requests with the same subject and sampling knobs share a key.
func Key(req domain.GenerateRequest) string {
	data, _ := json.Marshal(struct {
		Subject     string  `json:"subject"`
		Style       string  `json:"style,omitempty"`
		Language    string  `json:"language,omitempty"`
		MaxTokens   int     `json:"max_tokens,omitempty"`
		Temperature *float64 `json:"temperature,omitempty"`
		TopP        *float64 `json:"top_p,omitempty"`
	}{
		Subject:     req.Subject,
		Style:       req.Style,
		Language:    req.Language,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	})

	hash := sha256.Sum256(data)
	return "genroute:result:" + hex.EncodeToString(hash[:])
}

type InMemory struct {
	mu    sync.RWMutex
	items map[string]*item
}

type item struct {
	result    *domain.GenerateResult
	expiresAt time.Time
}

func NewInMemory() *InMemory {
	c := &InMemory{
		items: make(map[string]*item),
	}
	go c.cleanup()
	return c
}

func (c *InMemory) Get(ctx context.Context, key string) (*domain.GenerateResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	it, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(it.expiresAt) {
		return nil, false
	}
	return it.result, true
}

func (c *InMemory) Set(ctx context.Context, key string, res *domain.GenerateResult, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = &item{
		result:    res,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

func (c *InMemory) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		now := time.Now()
		for key, it := range c.items {
			if now.After(it.expiresAt) {
				delete(c.items, key)
			}
		}
		c.mu.Unlock()
	}
}

type Redis struct {
	client *redis.Client
}

func NewRedis(redisURL string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Redis{client: client}, nil
}

func (c *Redis) Get(ctx context.Context, key string) (*domain.GenerateResult, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}

	var res domain.GenerateResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, false
	}
	return &res, true
}

func (c *Redis) Set(ctx context.Context, key string, res *domain.GenerateResult, ttl time.Duration) error {
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *Redis) Close() error {
	return c.client.Close()
}
