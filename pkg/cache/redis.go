// Package cache keeps decoded store objects in Redis.
//
// Keys are "<prefix><collection>:<oid>", values are the JSON form of
// store.Object with a TTL. Every Redis call goes through a circuit breaker:
// while it is open the cache reports a miss and the store reads SQL directly.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ruslano69/eavsql/pkg/resilience"
	"github.com/ruslano69/eavsql/pkg/store"
)

// DefaultPrefix - префикс ключей по умолчанию
const DefaultPrefix = "eav:obj:"

// Config - параметры кэша
type Config struct {
	Prefix  string
	TTL     time.Duration
	Breaker resilience.Config
}

// Redis реализует store.ObjectCache
type Redis struct {
	rdb     redis.UniversalClient
	prefix  string
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	logger  zerolog.Logger
}

// New создает кэш поверх готового клиента
func New(rdb redis.UniversalClient, cfg Config, logger zerolog.Logger) (*Redis, error) {
	if rdb == nil {
		return nil, errors.New("cache: redis client is required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.Breaker.MaxFailures == 0 {
		cfg.Breaker = resilience.DefaultConfig("redis-cache")
	}
	if cfg.Breaker.OnStateChange == nil {
		cfg.Breaker.OnStateChange = func(name string, from, to resilience.State) {
			logger.Warn().Str("breaker", name).Stringer("from", from).Stringer("to", to).Msg("cache circuit state changed")
		}
	}

	breaker, err := resilience.New(cfg.Breaker)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	return &Redis{rdb: rdb, prefix: cfg.Prefix, ttl: cfg.TTL, breaker: breaker, logger: logger}, nil
}

// Dial подключается к Redis по адресу и проверяет соединение
func Dial(ctx context.Context, addr, password string, db int, cfg Config, logger zerolog.Logger) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("cache: redis ping %s: %w", addr, err)
	}
	return New(rdb, cfg, logger)
}

// Key возвращает ключ Redis объекта
func (c *Redis) Key(collection, id string) string {
	return c.prefix + collection + ":" + id
}

// Get возвращает объект из кэша; недоступный Redis - промах без ошибки
func (c *Redis) Get(ctx context.Context, collection, id string) (store.Object, bool, error) {
	var payload []byte
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		b, err := c.rdb.Get(ctx, c.Key(collection, id)).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		payload = b
		return err
	})
	if resilience.IsRejected(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get %s/%s: %w", collection, id, err)
	}
	if payload == nil {
		return nil, false, nil
	}

	obj := store.Object{}
	if err := json.Unmarshal(payload, &obj); err != nil {
		// битая запись удаляется, объект читается из БД
		c.logger.Warn().Err(err).Str("collection", collection).Str("oid", id).Msg("dropping undecodable cache entry")
		_ = c.Invalidate(ctx, collection, id)
		return nil, false, nil
	}
	return obj, true, nil
}

// Set сохраняет объект с TTL
func (c *Redis) Set(ctx context.Context, collection, id string, obj store.Object) error {
	payload, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("cache: encode %s/%s: %w", collection, id, err)
	}
	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.rdb.Set(ctx, c.Key(collection, id), payload, c.ttl).Err()
	})
	if resilience.IsRejected(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cache: set %s/%s: %w", collection, id, err)
	}
	return nil
}

// Invalidate удаляет объект из кэша
// Отклоненный breaker'ом вызов возвращает ошибку: запись может остаться устаревшей до TTL
func (c *Redis) Invalidate(ctx context.Context, collection, id string) error {
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.rdb.Del(ctx, c.Key(collection, id)).Err()
	})
	if err != nil {
		return fmt.Errorf("cache: invalidate %s/%s: %w", collection, id, err)
	}
	return nil
}

// Breaker возвращает circuit breaker кэша
func (c *Redis) Breaker() *resilience.CircuitBreaker {
	return c.breaker
}

// Close закрывает клиент Redis
func (c *Redis) Close() error {
	return c.rdb.Close()
}

var _ store.ObjectCache = (*Redis)(nil)
