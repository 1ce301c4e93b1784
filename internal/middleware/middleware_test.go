package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memoryCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func (m *memoryCounter) Hit(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, 0, m.err
	}
	if m.counts == nil {
		m.counts = make(map[string]int64)
	}
	m.counts[key]++
	return m.counts[key], window, nil
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"contest": c.GetUint(ContestIDKey),
			"round":   c.GetInt(RoundKey),
			"actor":   ActorFromContext(c),
		})
	})
	r.POST("/contests/:id/rounds/:round", handlers...)
	return r
}

func doRequest(r http.Handler, path, actor string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	if actor != "" {
		req.Header.Set(ActorHeader, actor)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestParamMiddleware(t *testing.T) {
	r := newRouter(ExtractUintParam("id", ContestIDKey), ExtractIntParam("round", RoundKey, 1, 4))

	w := doRequest(r, "/contests/7/rounds/2", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"contest":7,"round":2,"actor":""}`, w.Body.String())

	for _, path := range []string{"/contests/abc/rounds/1", "/contests/0/rounds/1", "/contests/1/rounds/5", "/contests/1/rounds/x"} {
		w := doRequest(r, path, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}

func TestRequireActor(t *testing.T) {
	r := newRouter(RequireActor())

	w := doRequest(r, "/contests/1/rounds/1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, "/contests/1/rounds/1", "  admin:42 ")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"actor":"admin:42"`)
}

func TestRateLimiter(t *testing.T) {
	counter := &memoryCounter{}
	limiter := NewRateLimiter(counter)
	r := newRouter(RequireActor(), limiter.Limit(AdvanceRateLimitConfig(2, time.Minute)))

	assert.Equal(t, http.StatusOK, doRequest(r, "/contests/1/rounds/1", "admin:1").Code)
	w := doRequest(r, "/contests/1/rounds/1", "admin:1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = doRequest(r, "/contests/1/rounds/1", "admin:1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	// Другой конкурс и другой актор считаются отдельно
	assert.Equal(t, http.StatusOK, doRequest(r, "/contests/2/rounds/1", "admin:1").Code)
	assert.Equal(t, http.StatusOK, doRequest(r, "/contests/1/rounds/1", "admin:2").Code)
}

func TestRateLimiter_FailOpen(t *testing.T) {
	limiter := NewRateLimiter(&memoryCounter{err: errors.New("redis down")})
	r := newRouter(limiter.Limit(AdvanceRateLimitConfig(1, time.Minute)))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doRequest(r, "/contests/1/rounds/1", "").Code)
	}
}
