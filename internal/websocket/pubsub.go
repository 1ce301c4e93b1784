package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/yourusername/contest-api/internal/config"
)

// PubSubProvider определяет интерфейс для провайдеров публикации/подписки
type PubSubProvider interface {
	// Publish публикует сообщение в указанный канал
	Publish(ctx context.Context, channel string, message []byte) error

	// Subscribe подписывается на канал и возвращает канал для сообщений.
	// Канал закрывается после отмены ctx.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)

	// Close освобождает ресурсы провайдера
	Close() error
}

// ClusterMessage представляет событие конкурса, передаваемое между экземплярами
type ClusterMessage struct {
	// InstanceID отправителя, чтобы не доставлять событие дважды
	InstanceID string          `json:"instance_id"`
	ContestID  uint            `json:"contest_id"`
	Payload    json.RawMessage `json:"payload"`
	Timestamp  time.Time       `json:"timestamp"`
}

// NoOpPubSub используется, когда кластерный режим отключен
type NoOpPubSub struct{}

// Publish ничего не делает
func (p *NoOpPubSub) Publish(ctx context.Context, channel string, message []byte) error {
	return nil
}

// Subscribe возвращает канал, который закрывается вместе с ctx
func (p *NoOpPubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	msgCh := make(chan []byte)
	go func() {
		<-ctx.Done()
		close(msgCh)
	}()
	return msgCh, nil
}

// Close ничего не делает
func (p *NoOpPubSub) Close() error {
	return nil
}

// ClusterHub пересылает события конкурсов между экземплярами через Pub/Sub
type ClusterHub struct {
	config   config.ClusterConfig
	provider PubSubProvider
	deliver  func(contestID uint, payload []byte) int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewClusterHub создает ClusterHub. deliver вызывается для событий от других экземпляров.
func NewClusterHub(cfg config.ClusterConfig, provider PubSubProvider, deliver func(contestID uint, payload []byte) int) *ClusterHub {
	if cfg.InstanceID == "" {
		cfg.InstanceID = "instance_" + uuid.New().String()
		log.Printf("[ClusterHub] Instance ID не задан, сгенерирован: %s", cfg.InstanceID)
	}
	if cfg.BroadcastChannel == "" {
		cfg.BroadcastChannel = "contest:ws:broadcast"
	}
	if provider == nil {
		provider = &NoOpPubSub{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ClusterHub{
		config:   cfg,
		provider: provider,
		deliver:  deliver,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// InstanceID возвращает идентификатор экземпляра
func (ch *ClusterHub) InstanceID() string {
	return ch.config.InstanceID
}

// Start подписывается на канал кластера
func (ch *ClusterHub) Start() error {
	if !ch.config.Enabled {
		log.Println("[ClusterHub] кластерный режим отключен, работаем в автономном режиме")
		return nil
	}

	msgCh, err := ch.provider.Subscribe(ch.ctx, ch.config.BroadcastChannel)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", ch.config.BroadcastChannel, err)
	}
	log.Printf("[ClusterHub] запуск кластерного режима, ID экземпляра: %s", ch.config.InstanceID)

	ch.wg.Add(1)
	go func() {
		defer ch.wg.Done()
		ch.handleMessages(msgCh)
	}()
	return nil
}

// Stop останавливает обработку сообщений кластера
func (ch *ClusterHub) Stop() {
	ch.cancel()
	ch.wg.Wait()
}

// Publish рассылает событие конкурса остальным экземплярам
func (ch *ClusterHub) Publish(contestID uint, payload []byte) error {
	if !ch.config.Enabled {
		return nil
	}
	msg := ClusterMessage{
		InstanceID: ch.config.InstanceID,
		ContestID:  contestID,
		Payload:    payload,
		Timestamp:  time.Now(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal cluster message: %w", err)
	}
	return ch.provider.Publish(ch.ctx, ch.config.BroadcastChannel, data)
}

func (ch *ClusterHub) handleMessages(msgCh <-chan []byte) {
	for {
		select {
		case <-ch.ctx.Done():
			return
		case raw, ok := <-msgCh:
			if !ok {
				return
			}
			var msg ClusterMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				log.Printf("[ClusterHub] Ошибка разбора сообщения кластера: %v", err)
				continue
			}
			if msg.InstanceID == ch.config.InstanceID {
				continue
			}
			if ch.deliver != nil {
				ch.deliver(msg.ContestID, msg.Payload)
			}
		}
	}
}

// RedisPubSub реализует PubSubProvider поверх Redis Pub/Sub
type RedisPubSub struct {
	client redis.UniversalClient

	mu   sync.Mutex
	subs []*redis.PubSub
}

// NewRedisPubSub создает провайдер, используя существующий клиент
func NewRedisPubSub(ctx context.Context, client redis.UniversalClient) (*RedisPubSub, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil for RedisPubSub")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("provided redis client failed ping check: %w", err)
	}
	return &RedisPubSub{client: client}, nil
}

// Publish публикует сообщение в канал
func (p *RedisPubSub) Publish(ctx context.Context, channel string, message []byte) error {
	if err := p.client.Publish(ctx, channel, message).Err(); err != nil {
		return fmt.Errorf("failed to publish to Redis channel %s: %w", channel, err)
	}
	return nil
}

// Subscribe подписывается на канал Redis
func (p *RedisPubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	pubsub := p.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to Redis channel %s: %w", channel, err)
	}

	p.mu.Lock()
	p.subs = append(p.subs, pubsub)
	p.mu.Unlock()

	msgCh := make(chan []byte, 100)
	go func() {
		defer func() {
			pubsub.Close()
			close(msgCh)
		}()
		redisCh := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-redisCh:
				if !ok {
					return
				}
				select {
				case msgCh <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return msgCh, nil
}

// Close закрывает активные подписки. Клиент Redis принадлежит вызывающей стороне.
func (p *RedisPubSub) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var lastErr error
	for _, s := range p.subs {
		if err := s.Close(); err != nil {
			lastErr = err
		}
	}
	p.subs = nil
	return lastErr
}
