package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(mw gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw)
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func get(r http.Handler, header map[string]string) int {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestAPIKeyAuth(t *testing.T) {
	r := newRouter(APIKeyAuth("segredo"))

	assert.Equal(t, http.StatusUnauthorized, get(r, nil))
	assert.Equal(t, http.StatusUnauthorized, get(r, map[string]string{APIKeyHeader: "errado"}))
	assert.Equal(t, http.StatusOK, get(r, map[string]string{APIKeyHeader: "segredo"}))
}

func TestAPIKeyAuthMisconfigured(t *testing.T) {
	r := newRouter(APIKeyAuth(""))
	assert.Equal(t, http.StatusInternalServerError, get(r, map[string]string{APIKeyHeader: ""}))
}

func TestRateLimit(t *testing.T) {
	limiter := NewClientRateLimiter(RateLimiterConfig{RequestsPerSecond: 1, BurstSize: 2})
	r := newRouter(RateLimit(limiter))

	assert.Equal(t, http.StatusOK, get(r, nil))
	assert.Equal(t, http.StatusOK, get(r, nil))
	assert.Equal(t, http.StatusTooManyRequests, get(r, nil))

	assert.Equal(t, 1, limiter.Prune(time.Now().Add(time.Second)))
}

func TestRateLimitDisabled(t *testing.T) {
	r := newRouter(RateLimit(NewClientRateLimiter(RateLimiterConfig{})))
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, get(r, nil))
	}
}
