package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/suchimauz/clinic-appointment-engine/internal/config"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/ports/out"
)

type cacheEntry struct {
	value    interface{}
	storedAt time.Time
	ttl      time.Duration
}

// flight - загрузка в полете для single-flight.
// gen фиксирует поколение ключа на момент старта: если Invalidate или Set
// подняли поколение, результат загрузки не сохраняется
type flight struct {
	gen    uint64
	done   chan struct{}
	value  interface{}
	err    error
	cancel context.CancelFunc
}

type CacheAdapter struct {
	mu      sync.Mutex
	entries *lru.Cache[string, *cacheEntry]
	flights map[string]*flight
	gens    map[string]uint64
	logger  out.LoggerPort

	// nowFn подменяется в тестах
	nowFn func() time.Time
}

func NewCacheAdapter(cfg *config.Config, logger out.LoggerPort) (*CacheAdapter, error) {
	size := cfg.Cache.Size
	if size <= 0 {
		size = 500
	}

	entries, err := lru.New[string, *cacheEntry](size)
	if err != nil {
		logger.Error("cache.init.failed", out.LogFields{
			"error": err.Error(),
			"size":  size,
		})
		return nil, err
	}

	return &CacheAdapter{
		entries: entries,
		flights: make(map[string]*flight),
		gens:    make(map[string]uint64),
		logger:  logger.WithModule("CacheAdapter"),
		nowFn:   time.Now,
	}, nil
}

func (c *CacheAdapter) Get(ctx context.Context, key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.getLocked(key)
}

func (c *CacheAdapter) getLocked(key string) (interface{}, bool) {
	entry, exists := c.entries.Get(key)
	if !exists {
		return nil, false
	}

	// Запись старше TTL считается отсутствующей
	if c.nowFn().Sub(entry.storedAt) > entry.ttl {
		c.entries.Remove(key)
		c.logger.Debug("cache.get.expired", out.LogFields{
			"key": key,
		})
		return nil, false
	}

	return entry.value, true
}

func (c *CacheAdapter) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Явная запись - самое свежее состояние, загрузка в полете устаревает
	c.bumpLocked(key)
	c.storeLocked(key, value, ttl)
}

func (c *CacheAdapter) storeLocked(key string, value interface{}, ttl time.Duration) {
	c.entries.Add(key, &cacheEntry{
		value:    value,
		storedAt: c.nowFn(),
		ttl:      ttl,
	})
}

// bumpLocked поднимает поколение ключа и отменяет загрузку в полете
func (c *CacheAdapter) bumpLocked(key string) {
	c.gens[key]++
	if f, exists := c.flights[key]; exists {
		f.cancel()
		delete(c.flights, key)
	}
}

func (c *CacheAdapter) Invalidate(ctx context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.invalidateLocked(key)
}

func (c *CacheAdapter) invalidateLocked(key string) {
	c.entries.Remove(key)
	c.bumpLocked(key)

	c.logger.Debug("cache.invalidate", out.LogFields{
		"key": key,
	})
}

func (c *CacheAdapter) InvalidatePrefix(ctx context.Context, prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0)
	for _, key := range c.entries.Keys() {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	for key := range c.flights {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}

	for _, key := range keys {
		c.invalidateLocked(key)
	}

	c.logger.Debug("cache.invalidate_prefix", out.LogFields{
		"prefix": prefix,
		"count":  len(keys),
	})
}

// GetOrLoad - read-through с single-flight: конкурентные вызовы по одному ключу
// ждут одну загрузку. Если Invalidate поднял поколение, пока загрузка шла,
// ее результат не сохраняется, а прерванные ожидающие пробуют заново.
// Ошибки загрузки не кэшируются
func (c *CacheAdapter) GetOrLoad(ctx context.Context, key string, ttl time.Duration, loader out.LoaderFunc) (interface{}, error) {
	for {
		c.mu.Lock()
		if value, exists := c.getLocked(key); exists {
			c.mu.Unlock()
			return value, nil
		}

		if f, exists := c.flights[key]; exists {
			c.mu.Unlock()
			select {
			case <-f.done:
				if f.err != nil {
					// Вытесненная загрузка: пробуем заново против нового поколения
					if errors.Is(f.err, context.Canceled) {
						continue
					}
					return nil, f.err
				}
				return f.value, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		// Контекст загрузки отвязан от вызывающего: загрузку делят несколько
		// ожидающих, отменяет ее только вытеснение по ключу
		loadCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f := &flight{
			gen:    c.gens[key],
			done:   make(chan struct{}),
			cancel: cancel,
		}
		c.flights[key] = f
		c.mu.Unlock()

		value, err := loader(loadCtx)
		cancel()

		c.mu.Lock()
		if c.flights[key] == f {
			delete(c.flights, key)
		}
		superseded := c.gens[key] != f.gen
		if err == nil && !superseded {
			c.storeLocked(key, value, ttl)
		}
		c.mu.Unlock()

		if err == nil && superseded {
			c.logger.Debug("cache.load.superseded", out.LogFields{
				"key": key,
			})
		}

		f.value, f.err = value, err
		close(f.done)

		if err != nil {
			if errors.Is(err, context.Canceled) && superseded {
				continue
			}
			return nil, err
		}
		return value, nil
	}
}

// Len возвращает текущее число записей, записи старше TTL тоже считаются
func (c *CacheAdapter) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.entries.Len()
}
