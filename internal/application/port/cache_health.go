package port

import (
	"context"
	"time"
)

// CacheHealthChecker - минимальный контракт кэша для health-проверки
type CacheHealthChecker interface {
	// Ping возвращает время ответа кэша
	Ping(ctx context.Context) (time.Duration, error)
}
