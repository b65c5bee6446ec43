// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ManuGH/seitokai/internal/log"
	"github.com/ManuGH/seitokai/internal/metrics"
	"github.com/ManuGH/seitokai/internal/model"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const redisKeyPrefix = "seitokai:msg:"

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string // host:port
	Password string
	DB       int
	TTL      time.Duration
}

// RedisCache shares cached messages between bot processes. Values are the
// JSON encoding of model.Message.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger

	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
}

// NewRedisCache connects and pings Redis.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	if cfg.Addr == "" {
		return nil, errors.New("cache: redis address required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger := log.WithComponent("cache")
	logger.Info().
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Msg("connected to Redis cache")

	return newRedisCache(client, cfg.TTL, logger), nil
}

func newRedisCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

func redisKey(id uuid.UUID) string {
	return redisKeyPrefix + id.String()
}

func (c *RedisCache) Get(ctx context.Context, id uuid.UUID) (model.Message, bool) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	val, err := c.client.Get(ctx, redisKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Str(log.FieldMessageID, id.String()).Msg("redis get failed")
		}
		c.miss()
		return model.Message{}, false
	}

	var msg model.Message
	if err := json.Unmarshal(val, &msg); err != nil {
		c.logger.Warn().Err(err).Str(log.FieldMessageID, id.String()).Msg("json unmarshal failed")
		c.miss()
		return model.Message{}, false
	}

	c.hits.Add(1)
	metrics.RecordCacheLookup("redis", true)
	return msg, true
}

func (c *RedisCache) miss() {
	c.misses.Add(1)
	metrics.RecordCacheLookup("redis", false)
}

func (c *RedisCache) Set(ctx context.Context, msg model.Message) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Warn().Err(err).Str(log.FieldMessageID, msg.ID.String()).Msg("json marshal failed")
		return
	}
	if err := c.client.Set(ctx, redisKey(msg.ID), data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str(log.FieldMessageID, msg.ID.String()).Msg("redis set failed")
		return
	}
	c.sets.Add(1)
}

func (c *RedisCache) Delete(ctx context.Context, id uuid.UUID) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.client.Del(ctx, redisKey(id)).Err(); err != nil {
		c.logger.Warn().Err(err).Str(log.FieldMessageID, id.String()).Msg("redis delete failed")
	}
}

// Stats counts keys under the message prefix; expiry is handled by Redis so
// Evictions stays zero.
func (c *RedisCache) Stats(ctx context.Context) Stats {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	size := 0
	iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		size++
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn().Err(err).Msg("redis scan failed")
	}

	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Sets:        c.sets.Load(),
		CurrentSize: size,
	}
}

// Close closes the Redis connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// HealthCheck pings Redis.
func (c *RedisCache) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
