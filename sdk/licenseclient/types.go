// Package licenseclient is the product-side license manager. It activates a
// license against the flaco server, caches the verdict on disk and falls back
// to the cache for a bounded grace period when the server is unreachable.
package licenseclient

import (
	"errors"
	"time"
)

const (
	TierFree = "free"

	DefaultGracePeriod = 7 * 24 * time.Hour
	DefaultTimeout     = 10 * time.Second
	DefaultKeyPrefix   = "FLACO"

	verifyPath = "/api/license/verify"
)

var (
	ErrInvalidLicense    = errors.New("license is not valid")
	ErrServerUnreachable = errors.New("license server unreachable")
	ErrNotActivated      = errors.New("no license activated on this device")
)

// Config describes where the server and the local state live.
type Config struct {
	// ServerURL is the base URL of the license server, e.g. "https://licenses.example.com".
	ServerURL string
	// StatePath is the JSON file holding the cached activation.
	StatePath string
	// AppVersion is reported with every verification.
	AppVersion string
	// GracePeriod bounds how long a cached verification is trusted offline.
	GracePeriod time.Duration
	// KeyPrefix is the expected license key prefix.
	KeyPrefix string
}

// Status is the entitlement the product should act on.
type Status struct {
	Tier           string    `json:"tier"`
	Valid          bool      `json:"valid"`
	Offline        bool      `json:"offline"`
	Email          string    `json:"email,omitempty"`
	ExpiresAt      time.Time `json:"expires_at,omitempty"`
	LastVerifiedAt time.Time `json:"last_verified_at,omitempty"`
}

func freeStatus(offline bool) Status {
	return Status{Tier: TierFree, Offline: offline}
}

// State is the persisted client record. DeviceID survives deactivation.
type State struct {
	DeviceID       string    `json:"device_id"`
	Email          string    `json:"email,omitempty"`
	LicenseKey     string    `json:"license_key,omitempty"`
	Tier           string    `json:"tier,omitempty"`
	ExpiresAt      time.Time `json:"expires_at,omitempty"`
	LastVerifiedAt time.Time `json:"last_verified_at,omitempty"`
	// Receipt is the server-signed token from the last verification.
	Receipt string `json:"receipt,omitempty"`
	// Signature seals the record to this machine.
	Signature string `json:"signature,omitempty"`
}

func (s *State) activated() bool {
	return s.Email != "" && s.LicenseKey != ""
}

func (s *State) clearVerification() {
	s.Tier = ""
	s.ExpiresAt = time.Time{}
	s.LastVerifiedAt = time.Time{}
	s.Receipt = ""
}

type verifyRequest struct {
	Email                 string `json:"email"`
	LicenseKey            string `json:"license_key"`
	DeviceID              string `json:"device_id"`
	DeviceFingerprintHash string `json:"device_fingerprint_hash,omitempty"`
	DeviceName            string `json:"device_name,omitempty"`
	Platform              string `json:"platform,omitempty"`
	AppVersion            string `json:"app_version,omitempty"`
}

type verifyResponse struct {
	Success bool   `json:"success"`
	Valid   bool   `json:"valid"`
	Tier    string `json:"tier"`
	Expires string `json:"expires"`
	Email   string `json:"email"`
	Receipt string `json:"receipt"`
	Error   string `json:"error"`
}
