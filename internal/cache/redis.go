package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"wpcom-shopping-cart/internal/logging"
	"wpcom-shopping-cart/internal/model"
)

// setIfNewerScript stores a cart unless Redis already holds a snapshot
// generated later. Two cartd instances racing on one cart can then never
// replace a newer snapshot with an older one.
var setIfNewerScript = redis.NewScript(`
	local current = redis.call("HGET", KEYS[1], "generated")
	if current and tonumber(current) > tonumber(ARGV[2]) then
		return 0
	end
	redis.call("HSET", KEYS[1], "cart", ARGV[1], "generated", ARGV[2])
	redis.call("PEXPIRE", KEYS[1], ARGV[3])
	return 1
`)

// RedisConfig holds configuration for the Redis cart cache.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisCache implements CartCache on Redis hashes.
type RedisCache struct {
	client    redis.UniversalClient
	keyPrefix string
	log       *logrus.Entry

	hits   atomic.Int64
	misses atomic.Int64

	closeOnce sync.Once
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     20,
		MinIdleConns: 5,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	c := NewRedisCacheWithClient(client, cfg.KeyPrefix)
	c.log.WithFields(logrus.Fields{"db": cfg.DB, "prefix": c.keyPrefix}).Info("Connected")
	return c, nil
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(client redis.UniversalClient, keyPrefix string) *RedisCache {
	if keyPrefix == "" {
		keyPrefix = "wpcom:cart"
	}
	return &RedisCache{
		client:    client,
		keyPrefix: keyPrefix,
		log:       logging.New("RedisCache"),
	}
}

func (c *RedisCache) cartKey(key model.CartKey) string {
	return c.keyPrefix + ":" + string(key)
}

// Get returns a cached cart.
func (c *RedisCache) Get(ctx context.Context, key model.CartKey) (*model.ResponseCart, error) {
	data, err := c.client.HGet(ctx, c.cartKey(key), "cart").Bytes()
	if errors.Is(err, redis.Nil) {
		c.misses.Add(1)
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart from redis: %w", err)
	}
	c.hits.Add(1)

	var cart model.ResponseCart
	if err := json.Unmarshal(data, &cart); err != nil {
		// A snapshot we cannot decode is as good as missing.
		c.log.WithError(err).WithField("cart_key", string(key)).Warn("Dropping undecodable snapshot")
		c.client.Del(ctx, c.cartKey(key))
		return nil, ErrCacheMiss
	}
	return &cart, nil
}

// Set stores a cart unless a newer snapshot is already cached.
func (c *RedisCache) Set(ctx context.Context, cart *model.ResponseCart, ttl time.Duration) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}

	stored, err := setIfNewerScript.Run(ctx, c.client,
		[]string{c.cartKey(cart.CartKey)},
		data, cart.GeneratedAtTimestamp, ttl.Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("failed to set cart in redis: %w", err)
	}
	if stored == 0 {
		c.log.WithField("cart_key", string(cart.CartKey)).Debug("Kept newer cached snapshot")
	}
	return nil
}

// Delete removes carts by key.
func (c *RedisCache) Delete(ctx context.Context, keys ...model.CartKey) error {
	if len(keys) == 0 {
		return nil
	}
	redisKeys := make([]string, 0, len(keys))
	for _, key := range keys {
		redisKeys = append(redisKeys, c.cartKey(key))
	}
	if err := c.client.Del(ctx, redisKeys...).Err(); err != nil {
		return fmt.Errorf("failed to delete carts from redis: %w", err)
	}
	return nil
}

// GetOrLoad returns a cached cart or loads and stores it if missing.
// A failing cache write is logged and the loaded cart still returned.
func (c *RedisCache) GetOrLoad(ctx context.Context, key model.CartKey, ttl time.Duration, fn func() (*model.ResponseCart, error)) (*model.ResponseCart, error) {
	cart, err := c.Get(ctx, key)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.log.WithError(err).Warn("Cache read failed, loading from store")
	}

	cart, err = fn()
	if err != nil {
		return nil, err
	}
	if err := c.Set(ctx, cart, ttl); err != nil {
		c.log.WithError(err).Warn("Cache write failed")
	}
	return cart, nil
}

// Stats counts cached carts with SCAN.
func (c *RedisCache) Stats(ctx context.Context) (Stats, error) {
	var entries int64
	iter := c.client.Scan(ctx, 0, c.keyPrefix+":*", 500).Iterator()
	for iter.Next(ctx) {
		entries++
	}
	if err := iter.Err(); err != nil {
		return Stats{}, fmt.Errorf("failed to scan redis: %w", err)
	}
	return Stats{
		Type:    "redis",
		Entries: entries,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.client.Close()
	})
	return err
}

var _ CartCache = (*RedisCache)(nil)
