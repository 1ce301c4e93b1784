package websocket

import (
	"bytes"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/yourusername/contest-api/internal/config"
)

const (
	// Время, которое разрешено писать сообщение клиенту.
	writeWait = 10 * time.Second

	// Время, которое разрешено клиенту читать следующее сообщение.
	pongWait = 60 * time.Second

	// Периодичность отправки ping-сообщений клиенту.
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер входящего сообщения
	maxMessageSize = 512

	defaultClientBufferSize = 64

	// Максимальное количество переполнений буфера до отключения
	maxBufferWarnings = 3
)

var (
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// ClientConfig содержит настройки для клиента
type ClientConfig struct {
	BufferSize     int
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
}

// DefaultClientConfig возвращает конфигурацию клиента по умолчанию
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BufferSize:     defaultClientBufferSize,
		PingInterval:   pingPeriod,
		PongWait:       pongWait,
		WriteWait:      writeWait,
		MaxMessageSize: maxMessageSize,
	}
}

// ClientConfigFrom строит ClientConfig из настроек приложения, заполняя пропуски значениями по умолчанию
func ClientConfigFrom(cfg config.WebSocketConfig) ClientConfig {
	cc := DefaultClientConfig()
	if cfg.SendBuffer > 0 {
		cc.BufferSize = cfg.SendBuffer
	}
	if cfg.PongWait > 0 {
		cc.PongWait = cfg.PongWait
	}
	if cfg.PingInterval > 0 && cfg.PingInterval < cc.PongWait {
		cc.PingInterval = cfg.PingInterval
	} else {
		cc.PingInterval = (cc.PongWait * 9) / 10
	}
	if cfg.WriteWait > 0 {
		cc.WriteWait = cfg.WriteWait
	}
	if cfg.MaxMessageSize > 0 {
		cc.MaxMessageSize = cfg.MaxMessageSize
	}
	return cc
}

// Client является посредником между WebSocket соединением зрителя и Hub.
type Client struct {
	// ViewerID идентификатор зрителя (может быть пустым для анонимных)
	ViewerID string

	// Уникальный ID для каждого соединения
	ConnectionID string

	hub    *Hub
	conn   *websocket.Conn
	config ClientConfig

	// Буферизованный канал для исходящих сообщений
	send       chan []byte
	sendMu     sync.RWMutex
	sendClosed atomic.Bool

	// ID конкурса, на который подписан клиент (0 если не подписан)
	contestID atomic.Uint64

	bufferWarnings atomic.Int32
}

// NewClient создает нового клиента
func NewClient(hub *Hub, conn *websocket.Conn, viewerID string, cfg ClientConfig) *Client {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultClientBufferSize
	}
	return &Client{
		ViewerID:     viewerID,
		ConnectionID: uuid.New().String(),
		hub:          hub,
		conn:         conn,
		config:       cfg,
		send:         make(chan []byte, cfg.BufferSize),
	}
}

// ContestID возвращает ID конкурса, на который подписан клиент
func (c *Client) ContestID() uint {
	return uint(c.contestID.Load())
}

// Send ставит сообщение в очередь без блокировки.
// Возвращает false, если буфер переполнен или канал уже закрыт.
func (c *Client) Send(message []byte) bool {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	if c.sendClosed.Load() {
		return false
	}
	select {
	case c.send <- message:
		c.bufferWarnings.Store(0)
		return true
	default:
		c.bufferWarnings.Add(1)
		return false
	}
}

// overflowed сообщает, что клиент слишком часто не успевает забирать сообщения
func (c *Client) overflowed() bool {
	return c.bufferWarnings.Load() >= maxBufferWarnings
}

// closeSend закрывает канал отправки один раз
func (c *Client) closeSend() bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed.CompareAndSwap(false, true) {
		close(c.send)
		return true
	}
	return false
}

// Start регистрирует клиента в Hub и запускает горутины чтения и записи
func (c *Client) Start(messageHandler func(message []byte, client *Client) error) {
	if c.hub == nil || c.conn == nil {
		log.Printf("[WebSocket] Client %s has no hub or connection, skipping", c.ConnectionID)
		return
	}
	c.hub.Register(c)
	go c.writePump()
	go c.readPump(messageHandler)
}

// readPump читает сообщения от клиента и передает их обработчику
func (c *Client) readPump(messageHandler func(message []byte, client *Client) error) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
		log.Printf("[WebSocket] Read pump stopped (viewer: %q, conn: %s)", c.ViewerID, c.ConnectionID)
	}()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("[WebSocket] Read error (conn: %s): %v", c.ConnectionID, err)
			}
			return
		}
		if err := safeHandleMessage(message, c, messageHandler); err != nil {
			log.Printf("[WebSocket] Handler error (conn: %s): %v. Closing connection.", c.ConnectionID, err)
			return
		}
	}
}

// safeHandleMessage вызывает обработчик с recover
func safeHandleMessage(message []byte, client *Client, messageHandler func(message []byte, client *Client) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[WebSocket] PANIC recovered in message handler (conn: %s): %v\n%s",
				client.ConnectionID, r, string(debug.Stack()))
			err = fmt.Errorf("panic recovered: %v", r)
		}
	}()
	message = bytes.TrimSpace(bytes.Replace(message, newline, space, -1))
	if messageHandler == nil {
		return nil
	}
	return messageHandler(message, client)
}

// writePump отправляет сообщения клиенту из канала send
func (c *Client) writePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait)); err != nil {
				return
			}
			if !ok {
				// Hub закрыл канал
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[WebSocket] Write error (conn: %s): %v", c.ConnectionID, err)
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
