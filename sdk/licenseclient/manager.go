package licenseclient

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/flaco-inc/flaco/pkg/licensekey"
	"github.com/flaco-inc/flaco/pkg/receipt"
)

// clockSkew is how far in the future a cached verification time may lie
// before the cache is distrusted.
const clockSkew = time.Minute

// Manager owns the local license state of one installation.
type Manager struct {
	cfg        Config
	httpClient *http.Client
	timeout    time.Duration
	keyring    *licensekey.Keyring
	receipts   *receipt.Verifier
	now        func() time.Time
	store      *stateFile

	mu    sync.Mutex
	state *State

	verifyGroup singleflight.Group
}

// Option is a function that configures the Manager.
type Option func(*Manager)

// WithHTTPClient sets a custom HTTP client. A nil client is ignored.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) {
		if c != nil {
			m.httpClient = c
		}
	}
}

// WithTimeout sets the request timeout. It applies to a copy of the HTTP
// client, so a client passed to WithHTTPClient is left untouched.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithKeyring enables the full signature check of cached keys offline.
// Without it only the key format is checked.
func WithKeyring(kr *licensekey.Keyring) Option {
	return func(m *Manager) {
		m.keyring = kr
	}
}

// WithReceiptKey requires a server-signed receipt before the cache is
// trusted offline. The grace period is then measured from the receipt's
// issue time.
func WithReceiptKey(pub ed25519.PublicKey) Option {
	return func(m *Manager) {
		if len(pub) == ed25519.PublicKeySize {
			m.receipts = receipt.NewVerifier(pub)
		}
	}
}

// New loads the state file, creating a device id on first use.
func New(cfg Config, opts ...Option) (*Manager, error) {
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("server url is required")
	}
	if cfg.StatePath == "" {
		return nil, fmt.Errorf("state path is required")
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}

	m := &Manager{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.timeout > 0 {
		c := *m.httpClient
		c.Timeout = m.timeout
		m.httpClient = &c
	}

	m.store = newStateFile(cfg.StatePath, currentDevice("").FingerprintHash)
	st, err := m.store.load()
	if err != nil {
		return nil, err
	}
	m.state = st

	if st.DeviceID == "" {
		st.DeviceID = uuid.NewString()
		if err := m.store.save(st); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Manager) deviceID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.DeviceID
}

// DeviceID returns the persisted identifier of this installation.
func (m *Manager) DeviceID() string {
	return m.deviceID()
}

func (m *Manager) formatOK(key string) bool {
	if m.keyring != nil {
		return m.keyring.VerifyFormatOnly(key)
	}
	return licensekey.HasValidFormat(key, m.cfg.KeyPrefix)
}

// Activate verifies the credentials online and caches the result. There is
// no offline activation.
func (m *Manager) Activate(ctx context.Context, email, key string) (Status, error) {
	email = licensekey.NormalizeEmail(email)
	key = licensekey.NormalizeKey(key)
	if email == "" || !m.formatOK(key) {
		return freeStatus(false), ErrInvalidLicense
	}

	v, err := m.verifyOnline(ctx, email, key)
	if err != nil {
		return freeStatus(true), err
	}
	if !v.Valid {
		return freeStatus(false), ErrInvalidLicense
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.Email = email
	m.state.LicenseKey = key
	m.applyVerdict(v)
	if err := m.store.save(m.state); err != nil {
		return m.statusLocked(false), err
	}
	return m.statusLocked(false), nil
}

// Verify re-checks the activated license. The server's answer replaces the
// cache; when the server cannot be reached the cached verification is used
// within the grace period. Concurrent calls share one request.
func (m *Manager) Verify(ctx context.Context) (Status, error) {
	res, err, _ := m.verifyGroup.Do("verify", func() (interface{}, error) {
		return m.verify(ctx)
	})
	st, _ := res.(Status)
	return st, err
}

func (m *Manager) verify(ctx context.Context) (Status, error) {
	m.mu.Lock()
	email, key := m.state.Email, m.state.LicenseKey
	activated := m.state.activated()
	m.mu.Unlock()

	if !activated {
		return freeStatus(false), ErrNotActivated
	}

	v, err := m.verifyOnline(ctx, email, key)

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case errors.Is(err, ErrServerUnreachable):
		return m.offlineStatusLocked(), nil
	case err != nil:
		return freeStatus(false), err
	case !v.Valid:
		m.state.clearVerification()
		if err := m.store.save(m.state); err != nil {
			return freeStatus(false), err
		}
		return freeStatus(false), nil
	}

	m.applyVerdict(v)
	if err := m.store.save(m.state); err != nil {
		return m.statusLocked(false), err
	}
	return m.statusLocked(false), nil
}

// Status evaluates the cached verification without contacting the server.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.activated() {
		return freeStatus(false)
	}
	return m.offlineStatusLocked()
}

// Deactivate forgets the license on this device. The device id is kept.
func (m *Manager) Deactivate() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = &State{DeviceID: m.state.DeviceID}
	return m.store.save(m.state)
}

func (m *Manager) applyVerdict(v *verdict) {
	m.state.Tier = v.Tier
	m.state.ExpiresAt = v.ExpiresAt
	m.state.LastVerifiedAt = m.now().UTC()
	m.state.Receipt = v.Receipt
	if v.Email != "" {
		m.state.Email = v.Email
	}
}

// offlineStatusLocked trusts the cache when the last online verification is
// within the grace period and not in the future, the key passes the local
// check, the receipt (when required) is authentic and the license has not
// expired.
func (m *Manager) offlineStatusLocked() Status {
	st := m.state
	now := m.now()

	verifiedAt := st.LastVerifiedAt
	if m.receipts != nil {
		claims, ok := m.receiptCheck(st, now)
		if !ok {
			return freeStatus(true)
		}
		verifiedAt = claims.IssuedAt.Time
	}

	if verifiedAt.IsZero() || verifiedAt.After(now.Add(clockSkew)) {
		return freeStatus(true)
	}
	if now.Sub(verifiedAt) > m.cfg.GracePeriod {
		return freeStatus(true)
	}
	if !now.Before(st.ExpiresAt) {
		return freeStatus(true)
	}
	if !m.localKeyCheck(st) {
		return freeStatus(true)
	}
	return m.statusLocked(true)
}

func (m *Manager) localKeyCheck(st *State) bool {
	if m.keyring != nil {
		return m.keyring.Verify(st.Email, st.LicenseKey, st.Tier, st.ExpiresAt)
	}
	return licensekey.HasValidFormat(st.LicenseKey, m.cfg.KeyPrefix)
}

func (m *Manager) receiptCheck(st *State, now time.Time) (*receipt.Claims, bool) {
	claims, err := m.receipts.Verify(st.Receipt, now)
	if err != nil || claims.IssuedAt == nil {
		return nil, false
	}
	return claims, claims.Matches(st.Email, st.Tier, st.DeviceID, st.ExpiresAt)
}

func (m *Manager) statusLocked(offline bool) Status {
	st := m.state
	return Status{
		Tier:           st.Tier,
		Valid:          true,
		Offline:        offline,
		Email:          st.Email,
		ExpiresAt:      st.ExpiresAt,
		LastVerifiedAt: st.LastVerifiedAt,
	}
}
