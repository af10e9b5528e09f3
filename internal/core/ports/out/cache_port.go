package out

import (
	"context"
	"time"
)

// LoaderFunc загружает значение для read-through кэша
type LoaderFunc func(ctx context.Context) (interface{}, error)

// CachePort - TTL-кэш с read-through загрузкой.
// Запись старше своего TTL считается отсутствующей и не отдается.
// Кэш сам не заводит таймеры, срок проверяется при чтении
type CachePort interface {
	Get(ctx context.Context, key string) (interface{}, bool)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
	Invalidate(ctx context.Context, key string)
	InvalidatePrefix(ctx context.Context, prefix string)

	// GetOrLoad - read-through с single-flight: конкурентные вызовы по одному
	// ключу ждут одну загрузку. Invalidate по ключу отменяет загрузку в полете,
	// ее результат не сохраняется
	GetOrLoad(ctx context.Context, key string, ttl time.Duration, loader LoaderFunc) (interface{}, error)
}
