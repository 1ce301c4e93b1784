package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/yourusername/contest-api/internal/config"
)

const redisPingTimeout = 5 * time.Second

// RedisOptions строит опции универсального клиента и возвращает выбранный режим.
// Поддерживаются режимы single, sentinel, cluster.
func RedisOptions(cfg config.RedisConfig) (*redis.UniversalOptions, string, error) {
	addresses := cfg.Addrs
	if len(addresses) == 0 {
		if cfg.Addr == "" {
			return nil, "", fmt.Errorf("redis configuration error: Addrs or Addr must be provided")
		}
		addresses = []string{cfg.Addr}
	}

	options := &redis.UniversalOptions{
		Addrs:    addresses,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.MaxRetries != 0 {
		options.MaxRetries = cfg.MaxRetries
	}
	if cfg.MinRetryBackoff != 0 {
		options.MinRetryBackoff = time.Duration(cfg.MinRetryBackoff) * time.Millisecond
	}
	if cfg.MaxRetryBackoff != 0 {
		options.MaxRetryBackoff = time.Duration(cfg.MaxRetryBackoff) * time.Millisecond
	}

	mode := cfg.Mode
	if mode == "" {
		mode = "single"
	}
	switch mode {
	case "sentinel":
		if cfg.MasterName == "" {
			return nil, "", fmt.Errorf("redis sentinel mode requires MasterName")
		}
		// NewUniversalClient выбирает FailoverClient по MasterName
		options.MasterName = cfg.MasterName
	case "cluster":
		if len(addresses) < 2 {
			log.Printf("[Redis] cluster mode with a single address %v, client will run as single node", addresses)
		}
	case "single":
		// DB игнорируется кластером, поэтому single с одним адресом
		options.Addrs = addresses[:1]
	default:
		return nil, "", fmt.Errorf("unsupported redis mode: %s", mode)
	}
	return options, mode, nil
}

// NewUniversalRedisClient создает клиент Redis и проверяет подключение
func NewUniversalRedisClient(ctx context.Context, cfg config.RedisConfig) (redis.UniversalClient, error) {
	options, mode, err := RedisOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewUniversalClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis (mode: %s, addrs: %v): %w", mode, options.Addrs, err)
	}

	log.Printf("[Redis] connected (mode: %s, addrs: %v)", mode, options.Addrs)
	return client, nil
}
