package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Ключи контекста Gin
const (
	ContestIDKey = "contestID"
	RoundKey     = "roundNumber"
	ActorIDKey   = "actorID"
)

// ExtractUintParam создает middleware для извлечения и валидации числового параметра URL.
// paramName - имя параметра в URL (например, "id").
// contextKey - ключ, под которым значение будет сохранено в контексте Gin.
func ExtractUintParam(paramName, contextKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param(paramName), 10, 32)
		if err != nil || id == 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid %s", paramName)})
			return
		}
		c.Set(contextKey, uint(id))
		c.Next()
	}
}

// ExtractIntParam аналогичен ExtractUintParam, но проверяет диапазон [lo, hi]
func ExtractIntParam(paramName, contextKey string, lo, hi int) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, err := strconv.Atoi(c.Param(paramName))
		if err != nil || v < lo || v > hi {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("Invalid %s: must be between %d and %d", paramName, lo, hi),
			})
			return
		}
		c.Set(contextKey, v)
		c.Next()
	}
}
