package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ActorHeader - заголовок с непрозрачным идентификатором актора (админа или сервиса)
const ActorHeader = "X-Actor-ID"

const maxActorIDLength = 64

// RequireActor читает идентификатор актора из заголовка и кладёт его в контекст.
// Аутентификация выполняется до этого сервиса, здесь только атрибуция действий.
func RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := strings.TrimSpace(c.GetHeader(ActorHeader))
		if actorID == "" || len(actorID) > maxActorIDLength {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":      ActorHeader + " header is required (max 64 characters)",
				"error_type": "actor_required",
			})
			return
		}
		c.Set(ActorIDKey, actorID)
		c.Next()
	}
}

// ActorFromContext возвращает актора, сохранённого RequireActor
func ActorFromContext(c *gin.Context) string {
	return c.GetString(ActorIDKey)
}
