package handler

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/yourusername/contest-api/internal/service"
	"github.com/yourusername/contest-api/internal/websocket"
)

// WSHandler обрабатывает WebSocket соединения зрителей
type WSHandler struct {
	wsManager      *websocket.Manager
	contestService *service.ContestService
	clientConfig   websocket.ClientConfig
	upgrader       gorillaws.Upgrader
}

// NewWSHandler создает новый обработчик WebSocket.
// allowedOrigins пустой - разрешены все источники.
func NewWSHandler(
	wsManager *websocket.Manager,
	contestService *service.ContestService,
	clientConfig websocket.ClientConfig,
	allowedOrigins []string,
) *WSHandler {
	return &WSHandler{
		wsManager:      wsManager,
		contestService: contestService,
		clientConfig:   clientConfig,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// originChecker разрешает запросы без Origin (не браузерные клиенты) и из списка allowed
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, a := range allowed {
			if a == "*" || origin == a {
				return true
			}
		}
		log.Printf("[WSHandler] rejected unauthorized origin: %s", origin)
		return false
	}
}

// HandleConnection обрабатывает /ws?contest_id=N. Без contest_id клиент подписывается позже сообщением viewer:subscribe.
func (h *WSHandler) HandleConnection(c *gin.Context) {
	var contestID uint
	if raw := c.Query("contest_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || id == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid contest_id"})
			return
		}
		contestID = uint(id)
		if _, err := h.contestService.GetContest(c.Request.Context(), contestID); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Contest not found"})
			return
		}
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade уже записал ответ клиенту
		log.Printf("[WSHandler] Error upgrading connection: %v", err)
		return
	}

	client := websocket.NewClient(h.wsManager.Hub(), conn, c.Query("viewer_id"), h.clientConfig)
	client.Start(h.wsManager.HandleMessage)
	if contestID != 0 {
		h.wsManager.SubscribeClientToContest(client, contestID)
	}
	log.Printf("[WSHandler] Viewer connected (conn: %s, contest: %d)", client.ConnectionID, contestID)
}
