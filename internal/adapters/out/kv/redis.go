package kv

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/suchimauz/clinic-appointment-engine/internal/config"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/ports/out"
)

// RedisKeyValueAdapter - redis-реализация KeyValuePort, в проде
// за ним живут счетчики AbuseGuard и бутстрап настроек
type RedisKeyValueAdapter struct {
	client *redis.Client
	logger out.LoggerPort
}

func NewRedisKeyValueAdapter(cfg *config.Config, logger out.LoggerPort) *RedisKeyValueAdapter {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	return &RedisKeyValueAdapter{
		client: client,
		logger: logger.WithModule("RedisKeyValueAdapter"),
	}
}

// NewRedisKeyValueAdapterWithClient используется в тестах с miniredis
func NewRedisKeyValueAdapterWithClient(client *redis.Client, logger out.LoggerPort) *RedisKeyValueAdapter {
	return &RedisKeyValueAdapter{
		client: client,
		logger: logger.WithModule("RedisKeyValueAdapter"),
	}
}

func (r *RedisKeyValueAdapter) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		r.logger.Warn("kv.get.failed", out.LogFields{
			"key":   key,
			"error": err.Error(),
		})
		return nil, false, err
	}

	return value, true, nil
}

func (r *RedisKeyValueAdapter) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.logger.Warn("kv.set.failed", out.LogFields{
			"key":   key,
			"error": err.Error(),
		})
		return err
	}
	return nil
}

func (r *RedisKeyValueAdapter) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.logger.Warn("kv.delete.failed", out.LogFields{
			"key":   key,
			"error": err.Error(),
		})
		return err
	}
	return nil
}

func (r *RedisKeyValueAdapter) Close() error {
	return r.client.Close()
}
