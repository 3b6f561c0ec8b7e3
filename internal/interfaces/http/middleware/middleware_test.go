package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/flaco-inc/flaco/internal/shared/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type countingLimiter struct {
	counts map[string]int
	err    error
}

func (l *countingLimiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.counts[key]++
	return l.counts[key] <= limit, nil
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	engine := gin.New()
	engine.Use(handlers...)
	engine.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return engine
}

func serve(engine *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_PerIP(t *testing.T) {
	limiter := &countingLimiter{counts: map[string]int{}}
	rl := NewRateLimiter(limiter, time.Minute, nil, logger.NewDiscard())
	engine := newEngine(rl.PerIP("verify:ip", 2, nil))

	for i := 0; i < 2; i++ {
		w := serve(engine, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}

	w := serve(engine, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, 3, limiter.counts["verify:ip:192.0.2.1"])
}

func TestRateLimiter_CustomReject(t *testing.T) {
	limiter := &countingLimiter{counts: map[string]int{}}
	rl := NewRateLimiter(limiter, time.Minute, nil, logger.NewDiscard())
	engine := newEngine(rl.PerIP("verify:ip", 0, nil), rl.PerIP("resend:ip", 1, func(c *gin.Context) {
		c.JSON(http.StatusTooManyRequests, gin.H{"success": false, "valid": false})
	}))

	serve(engine, httptest.NewRequest(http.MethodGet, "/ping", nil))
	w := serve(engine, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"success":false,"valid":false}`, w.Body.String())
	assert.NotContains(t, limiter.counts, "verify:ip:192.0.2.1")
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	rl := NewRateLimiter(&countingLimiter{err: errors.New("redis down")}, time.Minute, nil, logger.NewDiscard())
	engine := newEngine(rl.PerIP("verify:ip", 1, nil))

	for i := 0; i < 3; i++ {
		w := serve(engine, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestAdminAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	engine := newEngine(AdminAuth(string(hash)))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid token", "Bearer s3cret", http.StatusOK},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"no scheme", "s3cret", http.StatusUnauthorized},
		{"missing", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, serve(engine, req).Code)
		})
	}
}

func TestAdminAuth_Disabled(t *testing.T) {
	engine := newEngine(AdminAuth(""))
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer anything")
	assert.Equal(t, http.StatusForbidden, serve(engine, req).Code)
}

func TestRequestID(t *testing.T) {
	engine := newEngine(RequestID())

	w := serve(engine, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = serve(engine, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestRecovery(t *testing.T) {
	engine := gin.New()
	engine.Use(Recovery(logger.NewDiscard()), Sentry())
	engine.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := serve(engine, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Internal server error occurred")
}
