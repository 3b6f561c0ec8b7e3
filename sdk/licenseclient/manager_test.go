package licenseclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flaco-inc/flaco/pkg/licensekey"
	"github.com/flaco-inc/flaco/pkg/receipt"
)

var (
	baseTime  = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expiresAt = baseTime.AddDate(1, 0, 0)
	keyring   = licensekey.MustKeyring("signing-secret")
	testEmail = "buyer@example.com"
	testKey   = keyring.Generate(testEmail, "pro", expiresAt)
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeServer answers verify requests with the current mode.
type fakeServer struct {
	*httptest.Server
	mode     atomic.Value
	hits     atomic.Int32
	lastBody atomic.Value
	// release unblocks requests served in "gated" mode.
	release chan struct{}
	// signer, when set, attaches a receipt issued at clock's time.
	signer *receipt.Signer
	clock  *testClock
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()

	fs := &fakeServer{release: make(chan struct{})}
	fs.mode.Store("valid")
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.hits.Add(1)

		var req verifyRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		fs.lastBody.Store(req)

		mode := fs.mode.Load().(string)
		if mode == "gated" {
			<-fs.release
			mode = "valid"
		}

		w.Header().Set("Content-Type", "application/json")
		switch mode {
		case "valid":
			var token string
			if fs.signer != nil {
				token, _ = fs.signer.Sign(req.Email, "pro", req.DeviceID, expiresAt, fs.clock.Now())
			}
			_ = json.NewEncoder(w).Encode(verifyResponse{
				Success: true,
				Valid:   true,
				Tier:    "pro",
				Expires: expiresAt.Format(time.RFC3339),
				Email:   req.Email,
				Receipt: token,
			})
		case "invalid":
			_ = json.NewEncoder(w).Encode(verifyResponse{Success: true, Valid: false})
		case "unavailable":
			w.WriteHeader(http.StatusBadGateway)
		case "throttled":
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(verifyResponse{Error: "rate limit exceeded"})
		}
	}))
	t.Cleanup(fs.Close)
	return fs
}

func newManager(t *testing.T, server *fakeServer, clock *testClock, statePath string, opts ...Option) *Manager {
	t.Helper()

	opts = append([]Option{WithClock(clock.Now)}, opts...)
	m, err := New(Config{
		ServerURL:  server.URL,
		StatePath:  statePath,
		AppVersion: "1.2.3",
	}, opts...)
	require.NoError(t, err)
	return m
}

func activated(t *testing.T, opts ...Option) (*Manager, *fakeServer, *testClock, string) {
	t.Helper()

	server := newFakeServer(t)
	clock := &testClock{t: baseTime}
	statePath := filepath.Join(t.TempDir(), "license.json")
	m := newManager(t, server, clock, statePath, opts...)

	status, err := m.Activate(context.Background(), "Buyer@Example.com", testKey)
	require.NoError(t, err)
	require.True(t, status.Valid)
	return m, server, clock, statePath
}

func TestNew_CreatesPersistentDeviceID(t *testing.T) {
	server := newFakeServer(t)
	clock := &testClock{t: baseTime}
	statePath := filepath.Join(t.TempDir(), "nested", "license.json")

	first := newManager(t, server, clock, statePath)
	require.NotEmpty(t, first.DeviceID())

	second := newManager(t, server, clock, statePath)
	assert.Equal(t, first.DeviceID(), second.DeviceID())
}

func TestActivate_PersistsVerification(t *testing.T) {
	m, server, clock, statePath := activated(t)

	status := m.Status()
	assert.True(t, status.Valid)
	assert.Equal(t, "pro", status.Tier)
	assert.Equal(t, testEmail, status.Email)
	assert.True(t, expiresAt.Equal(status.ExpiresAt))

	req := server.lastBody.Load().(verifyRequest)
	assert.Equal(t, m.DeviceID(), req.DeviceID)
	assert.Len(t, req.DeviceFingerprintHash, 64)
	assert.Equal(t, "1.2.3", req.AppVersion)

	reloaded := newManager(t, server, clock, statePath)
	assert.Equal(t, "pro", reloaded.Status().Tier)
}

func TestActivate_MalformedKeyNeverReachesServer(t *testing.T) {
	server := newFakeServer(t)
	m := newManager(t, server, &testClock{t: baseTime}, filepath.Join(t.TempDir(), "license.json"))

	_, err := m.Activate(context.Background(), testEmail, "FLACO-NOTAKEY")
	assert.ErrorIs(t, err, ErrInvalidLicense)
	assert.Equal(t, int32(0), server.hits.Load())
}

func TestActivate_Invalid(t *testing.T) {
	server := newFakeServer(t)
	server.mode.Store("invalid")
	m := newManager(t, server, &testClock{t: baseTime}, filepath.Join(t.TempDir(), "license.json"))

	status, err := m.Activate(context.Background(), testEmail, testKey)
	assert.ErrorIs(t, err, ErrInvalidLicense)
	assert.Equal(t, TierFree, status.Tier)
	assert.Equal(t, TierFree, m.Status().Tier)
}

func TestActivate_NoOfflineActivation(t *testing.T) {
	server := newFakeServer(t)
	server.mode.Store("unavailable")
	m := newManager(t, server, &testClock{t: baseTime}, filepath.Join(t.TempDir(), "license.json"))

	_, err := m.Activate(context.Background(), testEmail, testKey)
	assert.ErrorIs(t, err, ErrServerUnreachable)
	assert.False(t, m.Status().Valid)
}

func TestVerify_NotActivated(t *testing.T) {
	server := newFakeServer(t)
	m := newManager(t, server, &testClock{t: baseTime}, filepath.Join(t.TempDir(), "license.json"))

	status, err := m.Verify(context.Background())
	assert.ErrorIs(t, err, ErrNotActivated)
	assert.Equal(t, TierFree, status.Tier)
}

func TestVerify_OnlineRefreshesVerification(t *testing.T) {
	m, _, clock, _ := activated(t)

	clock.Advance(48 * time.Hour)
	status, err := m.Verify(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Valid)
	assert.False(t, status.Offline)
	assert.True(t, clock.Now().Equal(status.LastVerifiedAt))
}

func TestVerify_ServerInvalidClearsCache(t *testing.T) {
	m, server, _, _ := activated(t)

	server.mode.Store("invalid")
	status, err := m.Verify(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Valid)
	assert.Equal(t, TierFree, status.Tier)

	server.mode.Store("unavailable")
	status, err = m.Verify(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Valid)
	assert.True(t, status.Offline)
}

func TestVerify_OfflineGracePeriod(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		mode    string
		trusted bool
	}{
		{"5xx within grace", 3 * 24 * time.Hour, "unavailable", true},
		{"429 within grace", 3 * 24 * time.Hour, "throttled", true},
		{"5xx past grace", 10 * 24 * time.Hour, "unavailable", false},
		{"verified in the future", -2 * 24 * time.Hour, "unavailable", false},
		{"verified within clock skew", -30 * time.Second, "unavailable", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, server, clock, _ := activated(t)

			server.mode.Store(tt.mode)
			clock.Advance(tt.elapsed)

			status, err := m.Verify(context.Background())
			require.NoError(t, err)
			assert.True(t, status.Offline)
			assert.Equal(t, tt.trusted, status.Valid)
			if tt.trusted {
				assert.Equal(t, "pro", status.Tier)
			} else {
				assert.Equal(t, TierFree, status.Tier)
			}
		})
	}
}

func TestVerify_OfflineWhenServerDown(t *testing.T) {
	m, server, clock, _ := activated(t)

	server.Close()
	clock.Advance(24 * time.Hour)

	status, err := m.Verify(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Offline)
	assert.True(t, status.Valid)
}

func TestVerify_OfflineRejectsExpiredCache(t *testing.T) {
	m, server, clock, _ := activated(t)
	m.mu.Lock()
	m.state.ExpiresAt = baseTime.Add(time.Hour)
	m.mu.Unlock()

	server.mode.Store("unavailable")
	clock.Advance(2 * time.Hour)

	status, err := m.Verify(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Valid)
}

func TestVerify_OfflineKeyringCheck(t *testing.T) {
	trusted, server, _, _ := activated(t, WithKeyring(keyring))
	server.mode.Store("unavailable")
	status, err := trusted.Verify(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Valid)

	untrusted, server, _, _ := activated(t, WithKeyring(licensekey.MustKeyring("other-secret")))
	server.mode.Store("unavailable")
	status, err = untrusted.Verify(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Valid)
}

func TestVerify_OfflineRejectsForgedState(t *testing.T) {
	forged := map[string]State{
		"unsigned": {
			DeviceID:       "device-1",
			Email:          testEmail,
			LicenseKey:     testKey,
			Tier:           "enterprise",
			ExpiresAt:      expiresAt,
			LastVerifiedAt: baseTime,
		},
		"bad signature": {
			DeviceID:       "device-1",
			Email:          testEmail,
			LicenseKey:     "FLACO-00000000-00000000-00000000",
			Tier:           "enterprise",
			ExpiresAt:      expiresAt,
			LastVerifiedAt: baseTime,
			Signature:      "deadbeef",
		},
	}

	for name, st := range forged {
		t.Run(name, func(t *testing.T) {
			server := newFakeServer(t)
			server.mode.Store("unavailable")
			statePath := filepath.Join(t.TempDir(), "license.json")
			data, err := json.Marshal(st)
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(statePath, data, 0o600))

			m := newManager(t, server, &testClock{t: baseTime}, statePath)
			assert.Equal(t, "device-1", m.DeviceID())

			status, err := m.Verify(context.Background())
			require.NoError(t, err)
			assert.False(t, status.Valid)
			assert.Equal(t, TierFree, status.Tier)
			assert.Equal(t, TierFree, m.Status().Tier)
		})
	}
}

func TestVerify_OfflineRejectsEditedState(t *testing.T) {
	_, server, clock, statePath := activated(t)

	data, err := os.ReadFile(statePath)
	require.NoError(t, err)
	var st State
	require.NoError(t, json.Unmarshal(data, &st))
	require.NotEmpty(t, st.Signature)

	st.Tier = "enterprise"
	data, err = json.Marshal(st)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(statePath, data, 0o600))

	server.mode.Store("unavailable")
	reloaded := newManager(t, server, clock, statePath)
	status, err := reloaded.Verify(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Valid)
	assert.Equal(t, TierFree, status.Tier)
}

func receiptKeys(t *testing.T) *receipt.Signer {
	t.Helper()
	_, priv, err := receipt.GenerateKey()
	require.NoError(t, err)
	key, err := receipt.ParsePrivateKey(priv)
	require.NoError(t, err)
	return receipt.NewSigner(key)
}

func TestVerify_OfflineReceipt(t *testing.T) {
	signer := receiptKeys(t)
	other := receiptKeys(t)

	tests := []struct {
		name    string
		issuer  *receipt.Signer
		trusted bool
	}{
		{"signed by server key", signer, true},
		{"no receipt", nil, false},
		{"signed by another key", other, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newFakeServer(t)
			clock := &testClock{t: baseTime}
			server.signer, server.clock = tt.issuer, clock
			statePath := filepath.Join(t.TempDir(), "license.json")
			m := newManager(t, server, clock, statePath, WithReceiptKey(signer.PublicKey()))

			_, err := m.Activate(context.Background(), testEmail, testKey)
			require.NoError(t, err)

			server.mode.Store("unavailable")
			clock.Advance(24 * time.Hour)

			status, err := m.Verify(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.trusted, status.Valid)

			reloaded := newManager(t, server, clock, statePath, WithReceiptKey(signer.PublicKey()))
			assert.Equal(t, tt.trusted, reloaded.Status().Valid)
		})
	}
}

func TestVerify_ReceiptBoundsGracePeriod(t *testing.T) {
	signer := receiptKeys(t)
	server := newFakeServer(t)
	clock := &testClock{t: baseTime}
	server.signer, server.clock = signer, clock
	m := newManager(t, server, clock, filepath.Join(t.TempDir(), "license.json"), WithReceiptKey(signer.PublicKey()))

	_, err := m.Activate(context.Background(), testEmail, testKey)
	require.NoError(t, err)

	server.mode.Store("unavailable")
	clock.Advance(10 * 24 * time.Hour)
	m.mu.Lock()
	m.state.LastVerifiedAt = clock.Now()
	m.mu.Unlock()

	status, err := m.Verify(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Valid)
}

func TestVerify_ReceiptMustMatchCache(t *testing.T) {
	signer := receiptKeys(t)
	server := newFakeServer(t)
	clock := &testClock{t: baseTime}
	server.signer, server.clock = signer, clock
	m := newManager(t, server, clock, filepath.Join(t.TempDir(), "license.json"), WithReceiptKey(signer.PublicKey()))

	_, err := m.Activate(context.Background(), testEmail, testKey)
	require.NoError(t, err)

	m.mu.Lock()
	m.state.Tier = "enterprise"
	m.mu.Unlock()

	server.mode.Store("unavailable")
	status, err := m.Verify(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Valid)
}

func TestNew_TimeoutLeavesCallerClient(t *testing.T) {
	server := newFakeServer(t)
	shared := &http.Client{Timeout: 3 * time.Second}

	m, err := New(Config{ServerURL: server.URL, StatePath: filepath.Join(t.TempDir(), "license.json")},
		WithHTTPClient(shared), WithTimeout(time.Second))
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, shared.Timeout)
	assert.Equal(t, time.Second, m.httpClient.Timeout)
	assert.NotSame(t, shared, m.httpClient)

	m, err = New(Config{ServerURL: server.URL, StatePath: filepath.Join(t.TempDir(), "license.json")},
		WithHTTPClient(nil), WithTimeout(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, m.httpClient.Timeout)
}

func TestVerify_CollapsesConcurrentCalls(t *testing.T) {
	m, server, _, _ := activated(t)
	before := server.hits.Load()

	server.mode.Store("gated")

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, err := m.Verify(context.Background())
			assert.NoError(t, err)
			assert.True(t, status.Valid)
		}()
	}

	require.Eventually(t, func() bool { return server.hits.Load() > before }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	close(server.release)
	wg.Wait()

	assert.Equal(t, before+1, server.hits.Load())
}

func TestDeactivate_KeepsDeviceID(t *testing.T) {
	m, server, clock, statePath := activated(t)
	deviceID := m.DeviceID()

	require.NoError(t, m.Deactivate())
	assert.False(t, m.Status().Valid)

	reloaded := newManager(t, server, clock, statePath)
	assert.Equal(t, deviceID, reloaded.DeviceID())

	_, err := reloaded.Verify(context.Background())
	assert.True(t, errors.Is(err, ErrNotActivated))
}

func TestFingerprint(t *testing.T) {
	a := fingerprint("host", "00:11:22:33:44:55", "linux", "amd64")
	assert.Len(t, a, 64)
	assert.Equal(t, a, fingerprint("host", "00:11:22:33:44:55", "linux", "amd64"))
	assert.NotEqual(t, a, fingerprint("host", "00:11:22:33:44:56", "linux", "amd64"))
}
