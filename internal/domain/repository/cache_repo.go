package repository

import (
	"context"
	"time"
)

// CacheRepository определяет методы для работы с кешем (JSON-снимки с TTL)
type CacheRepository interface {
	Delete(ctx context.Context, keys ...string) error
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	GetJSON(ctx context.Context, key string, dest interface{}) error
}
