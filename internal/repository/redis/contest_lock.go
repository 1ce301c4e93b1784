package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// releaseScript удаляет ключ только если он всё ещё принадлежит владельцу токена
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ContestLocker - распределённая блокировка раундов конкурса между инстансами
type ContestLocker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewContestLocker создает блокировку с префиксом ключей и TTL
func NewContestLocker(client redis.UniversalClient, prefix string, ttl time.Duration) (*ContestLocker, error) {
	if client == nil {
		return nil, fmt.Errorf("Redis client cannot be nil for ContestLocker")
	}
	if prefix == "" {
		prefix = "contest:round-lock:"
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &ContestLocker{client: client, prefix: prefix, ttl: ttl}, nil
}

// TryLock пытается захватить блокировку конкурса.
// Возвращает функцию освобождения; acquired=false, если блокировку держит другой инстанс.
func (l *ContestLocker) TryLock(ctx context.Context, contestID uint) (release func(), acquired bool, err error) {
	key := fmt.Sprintf("%s%d", l.prefix, contestID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire round lock for contest #%d: %w", contestID, err)
	}
	if !ok {
		return nil, false, nil
	}

	release = func() {
		// Освобождаем с отдельным таймаутом: контекст вызова мог уже истечь
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			log.Printf("[ContestLocker] Ошибка освобождения блокировки конкурса #%d: %v", contestID, err)
		}
	}
	return release, true, nil
}
