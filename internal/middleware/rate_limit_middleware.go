package middleware

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

// RateLimitConfig содержит настройки rate limiting
type RateLimitConfig struct {
	// MaxRequests — максимальное количество запросов за Window
	MaxRequests int
	// Window — временное окно для подсчёта запросов
	Window time.Duration
	// KeyPrefix — префикс для ключей в Redis
	KeyPrefix string
}

// AdvanceRateLimitConfig возвращает конфигурацию для ручного продвижения раундов
func AdvanceRateLimitConfig(maxRequests int, window time.Duration) RateLimitConfig {
	return RateLimitConfig{
		MaxRequests: maxRequests,
		Window:      window,
		KeyPrefix:   "rl:contest:advance",
	}
}

// WindowCounter считает запросы в фиксированном окне
type WindowCounter interface {
	// Hit увеличивает счётчик key и возвращает новое значение и время до сброса окна
	Hit(ctx context.Context, key string, window time.Duration) (count int64, resetIn time.Duration, err error)
}

// RedisWindowCounter - WindowCounter на Redis INCR + EXPIRE
type RedisWindowCounter struct {
	client redis.UniversalClient
}

// NewRedisWindowCounter создает счётчик на Redis
func NewRedisWindowCounter(client redis.UniversalClient) *RedisWindowCounter {
	return &RedisWindowCounter{client: client}
}

// Hit реализует WindowCounter
func (r *RedisWindowCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	// Первый запрос в окне устанавливает TTL
	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			log.Printf("[RateLimiter] Failed to set TTL for key %s: %v", key, err)
		}
	}
	ttl, err := r.client.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = window
	}
	return count, ttl, nil
}

// RateLimiter создаёт middleware для rate limiting
type RateLimiter struct {
	counter WindowCounter
}

// NewRateLimiter создает новый RateLimiter
func NewRateLimiter(counter WindowCounter) *RateLimiter {
	return &RateLimiter{counter: counter}
}

// Limit возвращает Gin middleware с заданной конфигурацией.
// Ключ формируется из актора (или IP, если актора нет) и маршрута с ID конкурса.
func (rl *RateLimiter) Limit(cfg RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := ActorFromContext(c)
		if subject == "" {
			subject = c.ClientIP()
		}
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		key := fmt.Sprintf("%s:%s:%s:%s", cfg.KeyPrefix, subject, path, c.Param("id"))

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		count, resetIn, err := rl.counter.Hit(ctx, key, cfg.Window)
		if err != nil {
			// При ошибке Redis пропускаем запрос (fail-open), но логируем
			log.Printf("[RateLimiter] Redis error for key %s: %v. Allowing request (fail-open).", key, err)
			c.Next()
			return
		}

		remaining := cfg.MaxRequests - int(count)
		if remaining < 0 {
			remaining = 0
		}
		retryAfter := int(resetIn.Seconds())

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", cfg.MaxRequests))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", retryAfter))

		if int(count) > cfg.MaxRequests {
			log.Printf("[RateLimiter] Rate limit exceeded for %s path=%s. Count=%d, Limit=%d",
				subject, path, count, cfg.MaxRequests)

			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too many requests. Please try again later.",
				"error_type":  "rate_limited",
				"retry_after": retryAfter,
			})
			return
		}

		c.Next()
	}
}
