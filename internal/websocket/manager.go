package websocket

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
)

// Manager обрабатывает сообщения зрителей и рассылает события конкурсов
type Manager struct {
	hub     *Hub
	cluster *ClusterHub

	mu             sync.RWMutex
	messageHandler map[string]func(data json.RawMessage, client *Client) error
}

// NewManager создает менеджер. cluster может быть nil в автономном режиме.
func NewManager(hub *Hub, cluster *ClusterHub) *Manager {
	m := &Manager{
		hub:            hub,
		cluster:        cluster,
		messageHandler: make(map[string]func(data json.RawMessage, client *Client) error),
	}
	m.registerDefaultHandlers()
	return m
}

// Hub возвращает Hub менеджера
func (m *Manager) Hub() *Hub {
	return m.hub
}

// RegisterHandler регистрирует обработчик для определенного типа сообщений
func (m *Manager) RegisterHandler(eventType string, handler func(data json.RawMessage, client *Client) error) {
	m.mu.Lock()
	m.messageHandler[eventType] = handler
	m.mu.Unlock()
	log.Printf("[WebSocketManager] Зарегистрирован обработчик для сообщений типа: %s", eventType)
}

// HandleMessage обрабатывает входящее сообщение от клиента.
// Возвращает error, если соединение нужно закрыть.
func (m *Manager) HandleMessage(message []byte, client *Client) error {
	var event struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(message, &event); err != nil {
		m.SendErrorToClient(client, "invalid_message_format", "Invalid JSON format")
		return err
	}

	m.mu.RLock()
	handler, ok := m.messageHandler[event.Type]
	m.mu.RUnlock()
	if !ok {
		m.SendErrorToClient(client, "unknown_message_type", fmt.Sprintf("Unknown message type: %s", event.Type))
		return nil
	}
	return handler(event.Data, client)
}

// SendErrorToClient отправляет сообщение об ошибке, не закрывая соединение
func (m *Manager) SendErrorToClient(client *Client, code string, message string) {
	errorEvent := Event{
		Type: SERVER_ERROR,
		Data: map[string]string{
			"code":    code,
			"message": message,
		},
	}
	if err := m.hub.SendJSON(client, errorEvent); err != nil {
		log.Printf("[WebSocketManager] ERROR sending error to client %s: %v", client.ConnectionID, err)
	}
}

// SubscribeClientToContest подписывает клиента на события конкурса и подтверждает подписку
func (m *Manager) SubscribeClientToContest(client *Client, contestID uint) {
	m.hub.Subscribe(client, contestID)
	if err := m.hub.SendJSON(client, Event{Type: CONTEST_SUBSCRIBED, ContestID: contestID}); err != nil {
		log.Printf("[WebSocketManager] Не удалось подтвердить подписку %s на конкурс %d: %v", client.ConnectionID, contestID, err)
	}
}

// NotifyRound рассылает событие конкурса локальным зрителям и остальным экземплярам
func (m *Manager) NotifyRound(contestID uint, eventType string, payload interface{}) {
	data, err := json.Marshal(Event{Type: eventType, ContestID: contestID, Data: payload})
	if err != nil {
		log.Printf("[WebSocketManager] Ошибка сериализации события %s для конкурса %d: %v", eventType, contestID, err)
		return
	}

	delivered := m.hub.BroadcastToContest(contestID, data)
	log.Printf("[WebSocketManager] Событие %s конкурса %d доставлено %d зрителям", eventType, contestID, delivered)

	if m.cluster != nil {
		if err := m.cluster.Publish(contestID, data); err != nil {
			log.Printf("[WebSocketManager] Ошибка публикации события %s в кластер: %v", eventType, err)
		}
	}
}

func (m *Manager) registerDefaultHandlers() {
	m.messageHandler[VIEWER_SUBSCRIBE] = func(data json.RawMessage, client *Client) error {
		var req struct {
			ContestID uint `json:"contest_id"`
		}
		if err := json.Unmarshal(data, &req); err != nil || req.ContestID == 0 {
			m.SendErrorToClient(client, "invalid_format", "contest_id is required")
			return nil
		}
		m.SubscribeClientToContest(client, req.ContestID)
		return nil
	}
	m.messageHandler[VIEWER_UNSUBSCRIBE] = func(data json.RawMessage, client *Client) error {
		m.hub.Unsubscribe(client)
		return nil
	}
	m.messageHandler[VIEWER_HEARTBEAT] = func(data json.RawMessage, client *Client) error {
		if err := m.hub.SendJSON(client, Event{Type: SERVER_HEARTBEAT, ContestID: client.ContestID()}); err != nil {
			log.Printf("[WebSocketManager] WARNING: heartbeat to %s failed: %v", client.ConnectionID, err)
		}
		return nil
	}
}
