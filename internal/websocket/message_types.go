package websocket

// Серверные события
const (
	// ROUND_COMPLETED сообщает о проведенном раунде выбывания
	ROUND_COMPLETED = "round:completed"

	// CONTEST_COMPLETED сообщает о завершении конкурса и объявлении победителей
	CONTEST_COMPLETED = "contest:completed"

	// CONTEST_SUBSCRIBED подтверждает подписку зрителя на конкурс
	CONTEST_SUBSCRIBED = "contest:subscribed"

	// SERVER_ERROR сообщает клиенту об ошибке обработки его сообщения
	SERVER_ERROR = "server:error"

	// SERVER_HEARTBEAT ответ на heartbeat клиента
	SERVER_HEARTBEAT = "server:heartbeat"
)

// Клиентские события
const (
	// VIEWER_SUBSCRIBE переключает зрителя на другой конкурс
	VIEWER_SUBSCRIBE = "viewer:subscribe"

	// VIEWER_UNSUBSCRIBE отписывает зрителя от текущего конкурса
	VIEWER_UNSUBSCRIBE = "viewer:unsubscribe"

	// VIEWER_HEARTBEAT проверка соединения
	VIEWER_HEARTBEAT = "viewer:heartbeat"
)

// Event представляет структуру WebSocket-сообщения
type Event struct {
	Type      string      `json:"type"`
	ContestID uint        `json:"contest_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}
