package iam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SigningKeyTTL is how long a fetched signing key is trusted
const SigningKeyTTL = 24 * time.Hour

// JWK is an RSA JSON Web Key
type JWK struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Use string `json:"use,omitempty"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// KeyCache stores signing keys by key ID
type KeyCache interface {
	Get(ctx context.Context, kid string) (*JWK, bool, error)
	Set(ctx context.Context, kid string, key JWK, ttl time.Duration) error
}

type cachedKey struct {
	key     JWK
	expires time.Time
}

// MemoryKeyCache is a process-local KeyCache
type MemoryKeyCache struct {
	mu   sync.RWMutex
	keys map[string]cachedKey
	now  func() time.Time
}

func NewMemoryKeyCache() *MemoryKeyCache {
	return &MemoryKeyCache{keys: map[string]cachedKey{}, now: time.Now}
}

func (c *MemoryKeyCache) Get(_ context.Context, kid string) (*JWK, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.keys[kid]
	if !ok || c.now().After(entry.expires) {
		return nil, false, nil
	}
	key := entry.key
	return &key, true, nil
}

func (c *MemoryKeyCache) Set(_ context.Context, kid string, key JWK, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[kid] = cachedKey{key: key, expires: c.now().Add(ttl)}
	return nil
}

// RedisKeyCache shares signing keys between processes
type RedisKeyCache struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisKeyCache(client redis.UniversalClient, prefix string) *RedisKeyCache {
	if prefix == "" {
		prefix = "sirius:jwk:"
	}
	return &RedisKeyCache{client: client, prefix: prefix}
}

// NewRedisKeyCacheFromURL connects with a redis:// URL
func NewRedisKeyCacheFromURL(redisURL string) (*RedisKeyCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewRedisKeyCache(redis.NewClient(opts), ""), nil
}

func (c *RedisKeyCache) Get(ctx context.Context, kid string) (*JWK, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+kid).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read signing key %s: %w", kid, err)
	}

	var key JWK
	if err := json.Unmarshal(raw, &key); err != nil {
		return nil, false, fmt.Errorf("failed to decode signing key %s: %w", kid, err)
	}
	return &key, true, nil
}

func (c *RedisKeyCache) Set(ctx context.Context, kid string, key JWK, ttl time.Duration) error {
	raw, err := json.Marshal(key)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.prefix+kid, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache signing key %s: %w", kid, err)
	}
	return nil
}
