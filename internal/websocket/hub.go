package websocket

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
)

// Hub хранит подключенных зрителей и индекс подписок по конкурсам.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	contests map[uint]map[*Client]struct{}
}

// NewHub создает пустой Hub
func NewHub() *Hub {
	return &Hub{
		clients:  make(map[*Client]struct{}),
		contests: make(map[uint]map[*Client]struct{}),
	}
}

// Register добавляет клиента в Hub
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	if id := c.ContestID(); id != 0 {
		h.indexLocked(c, id)
	}
	total := len(h.clients)
	h.mu.Unlock()
	log.Printf("[Hub] Client registered (conn: %s, contest: %d, total: %d)", c.ConnectionID, c.ContestID(), total)
}

// Unregister удаляет клиента и закрывает его канал отправки
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		h.unindexLocked(c)
	}
	h.mu.Unlock()
	if ok {
		c.closeSend()
		log.Printf("[Hub] Client unregistered (conn: %s)", c.ConnectionID)
	}
}

// Subscribe переводит клиента на конкурс contestID. Прежняя подписка снимается.
func (h *Hub) Subscribe(c *Client, contestID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unindexLocked(c)
	c.contestID.Store(uint64(contestID))
	if _, registered := h.clients[c]; registered && contestID != 0 {
		h.indexLocked(c, contestID)
	}
}

// Unsubscribe снимает подписку клиента
func (h *Hub) Unsubscribe(c *Client) {
	h.Subscribe(c, 0)
}

func (h *Hub) indexLocked(c *Client, contestID uint) {
	set, ok := h.contests[contestID]
	if !ok {
		set = make(map[*Client]struct{})
		h.contests[contestID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unindexLocked(c *Client) {
	id := c.ContestID()
	if id == 0 {
		return
	}
	if set, ok := h.contests[id]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.contests, id)
		}
	}
}

// BroadcastToContest доставляет сообщение всем зрителям конкурса.
// Клиенты, которые подряд не успевают забирать сообщения, отключаются.
func (h *Hub) BroadcastToContest(contestID uint, message []byte) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.contests[contestID]))
	for c := range h.contests[contestID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	delivered := 0
	var slow []*Client
	for _, c := range targets {
		if c.Send(message) {
			delivered++
			continue
		}
		if c.overflowed() {
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		log.Printf("[Hub] Dropping slow client (conn: %s, contest: %d)", c.ConnectionID, contestID)
		h.Unregister(c)
	}
	return delivered
}

// SendJSON отправляет событие одному клиенту
func (h *Hub) SendJSON(c *Client, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.Type, err)
	}
	if !c.Send(data) {
		return fmt.Errorf("client %s send buffer full or closed", c.ConnectionID)
	}
	return nil
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ViewerCount возвращает количество зрителей конкурса
func (h *Hub) ViewerCount(contestID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.contests[contestID])
}

// Close отключает всех клиентов
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*Client]struct{})
	h.contests = make(map[uint]map[*Client]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.closeSend()
	}
	log.Printf("[Hub] Closed, disconnected %d clients", len(clients))
}
