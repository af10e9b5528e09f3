package out

import (
	"context"
	"time"
)

// KeyValuePort - локальное key-value хранилище для счетчиков AbuseGuard
// и бутстрапа настроек. В тестах in-memory, в проде redis
type KeyValuePort interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
