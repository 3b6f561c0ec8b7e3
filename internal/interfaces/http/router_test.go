package http

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flaco-inc/flaco/internal/infrastructure/config"
	"github.com/flaco-inc/flaco/internal/infrastructure/database"
	"github.com/flaco-inc/flaco/internal/infrastructure/migration"
	sharedConfig "github.com/flaco-inc/flaco/internal/shared/config"
	"github.com/flaco-inc/flaco/internal/shared/logger"
	"github.com/flaco-inc/flaco/pkg/receipt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Database: sharedConfig.DatabaseConfig{
			Driver: "sqlite",
			Path:   filepath.Join(t.TempDir(), "licenses.db"),
		},
		License: sharedConfig.LicenseConfig{SigningSecret: "signing-secret", KeyPrefix: "FLACO"},
		Billing: sharedConfig.BillingConfig{
			WebhookSecret:        "whsec_test",
			DefaultTier:          "pro",
			DefaultBillingPeriod: "monthly",
		},
		Email: sharedConfig.EmailConfig{ResendCooldown: 10 * time.Minute},
		RateLimit: sharedConfig.RateLimitConfig{
			Backend:     "database",
			Window:      time.Hour,
			VerifyPerIP: 2,
		},
		Metrics: sharedConfig.MetricsConfig{Enabled: true},
	}
}

func newTestRouter(t *testing.T, cfg *config.Config) *Router {
	t.Helper()

	gormDB, err := database.Open(&cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := gormDB.DB()
		sqlDB.Close()
	})
	require.NoError(t, migration.NewManager("sqlite", logger.NewDiscard()).Migrate(gormDB))

	container, err := NewContainer(gormDB, cfg, logger.NewDiscard())
	require.NoError(t, err)
	t.Cleanup(container.Shutdown)

	router := NewRouter(container)
	router.SetupRoutes()
	return router
}

func do(router *Router, method, path string, body []byte) *httptest.ResponseRecorder {
	return doFrom(router, method, path, body, "")
}

// doFrom sends the request from httptest's fixed peer 192.0.2.1, with an
// optional X-Forwarded-For header.
func doFrom(router *Router, method, path string, body []byte, forwardedFor string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	w := httptest.NewRecorder()
	router.GetEngine().ServeHTTP(w, req)
	return w
}

func TestRouter_Health(t *testing.T) {
	router := newTestRouter(t, testConfig(t))

	w := do(router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_VerifyPerIPLimit(t *testing.T) {
	router := newTestRouter(t, testConfig(t))
	body := []byte(`{"email":"buyer@example.com","license_key":"FLACO-00000000-00000000-00000000"}`)

	for i := 0; i < 2; i++ {
		w := do(router, http.MethodPost, "/api/license/verify", body)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"success":true,"valid":false}`, w.Body.String())
	}

	w := do(router, http.MethodPost, "/api/license/verify", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"success":false,"valid":false,"error":"rate limit exceeded"}`, w.Body.String())
}

func TestRouter_ForwardedForIgnoredWithoutTrustedProxies(t *testing.T) {
	router := newTestRouter(t, testConfig(t))
	body := []byte(`{"email":"buyer@example.com","license_key":"FLACO-00000000-00000000-00000000"}`)

	for i, ip := range []string{"203.0.113.1", "203.0.113.2"} {
		w := doFrom(router, http.MethodPost, "/api/license/verify", body, ip)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i)
	}

	w := doFrom(router, http.MethodPost, "/api/license/verify", body, "203.0.113.3")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRouter_ForwardedForHonouredFromTrustedProxy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.TrustedProxies = []string{"192.0.2.1"}
	router := newTestRouter(t, cfg)
	body := []byte(`{"email":"buyer@example.com","license_key":"FLACO-00000000-00000000-00000000"}`)

	for _, ip := range []string{"203.0.113.1", "203.0.113.2", "203.0.113.3"} {
		w := doFrom(router, http.MethodPost, "/api/license/verify", body, ip)
		assert.Equal(t, http.StatusOK, w.Code, ip)
	}
}

func TestRouter_WebhookRequiresSignature(t *testing.T) {
	router := newTestRouter(t, testConfig(t))

	w := do(router, http.MethodPost, "/api/webhooks/stripe", []byte(`{"id":"evt_1","type":"checkout.session.completed"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_AdminDisabledWithoutTokenHash(t *testing.T) {
	router := newTestRouter(t, testConfig(t))

	w := do(router, http.MethodGet, "/api/admin/licenses/sub_1", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_Metrics(t *testing.T) {
	router := newTestRouter(t, testConfig(t))

	do(router, http.MethodGet, "/health", nil)
	w := do(router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_request_duration_seconds")
}

func TestNewContainer_RejectsMissingSigningSecret(t *testing.T) {
	cfg := testConfig(t)
	cfg.License.SigningSecret = ""

	gormDB, err := database.Open(&cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := gormDB.DB()
		sqlDB.Close()
	})

	_, err = NewContainer(gormDB, cfg, logger.NewDiscard())
	assert.Error(t, err)
}

func TestNewContainer_ReceiptKey(t *testing.T) {
	_, priv, err := receipt.GenerateKey()
	require.NoError(t, err)

	cfg := testConfig(t)
	cfg.License.ReceiptPrivateKey = priv
	router := newTestRouter(t, cfg)
	assert.NotNil(t, router.receipts)

	cfg = testConfig(t)
	cfg.License.ReceiptPrivateKey = "c2hvcnQ="
	gormDB, err := database.Open(&cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := gormDB.DB()
		sqlDB.Close()
	})

	_, err = NewContainer(gormDB, cfg, logger.NewDiscard())
	assert.ErrorContains(t, err, "receipt_private_key")
}
