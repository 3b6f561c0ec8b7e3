// Package licensekey derives and verifies signed license keys.
//
// A key binds (email, tier, expiry) to a server-held secret:
//
//	FLACO-XXXXXXXX-XXXXXXXX-XXXXXXXX
//
// Each segment is eight uppercase hex characters taken from consecutive
// byte ranges of HMAC-SHA256(secret, "email:tier:expiresAt").
package licensekey

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

const (
	// DefaultPrefix is the product prefix of every key.
	DefaultPrefix = "FLACO"

	segmentCount = 3
	segmentBytes = 4
	segmentLen   = segmentBytes * 2

	// ExpiryLayout is the canonical expiry representation signed into a key.
	ExpiryLayout = "2006-01-02T15:04:05Z"
)

// ErrEmptySecret is returned when a codec is built without a secret.
var ErrEmptySecret = errors.New("license signing secret must not be empty")

// Codec generates and verifies keys for a single secret.
type Codec struct {
	secret []byte
	prefix string
}

// Option configures a Codec.
type Option func(*Codec)

// WithPrefix overrides the key prefix.
func WithPrefix(prefix string) Option {
	return func(c *Codec) {
		if p := strings.TrimSpace(prefix); p != "" {
			c.prefix = strings.ToUpper(p)
		}
	}
}

// NewCodec builds a codec for secret.
func NewCodec(secret string, opts ...Option) (*Codec, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	c := &Codec{
		secret: []byte(secret),
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Prefix returns the key prefix.
func (c *Codec) Prefix() string {
	return c.prefix
}

// Generate derives the key for (email, tier, expiresAt). It is deterministic.
func (c *Codec) Generate(email, tier string, expiresAt time.Time) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(CanonicalPayload(email, tier, expiresAt)))
	digest := mac.Sum(nil)

	var b strings.Builder
	b.Grow(len(c.prefix) + segmentCount*(segmentLen+1))
	b.WriteString(c.prefix)
	for i := 0; i < segmentCount; i++ {
		b.WriteByte('-')
		b.WriteString(strings.ToUpper(hex.EncodeToString(digest[i*segmentBytes : (i+1)*segmentBytes])))
	}
	return b.String()
}

// Verify reports whether key was produced by this codec for (email, tier, expiresAt).
// Only surrounding whitespace is ignored; the key must match the generated
// form byte for byte, so callers holding user input verify the stored key.
func (c *Codec) Verify(email, key, tier string, expiresAt time.Time) bool {
	key = strings.TrimSpace(key)
	if !c.VerifyFormatOnly(key) {
		return false
	}
	expected := c.Generate(email, tier, expiresAt)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(key)) == 1
}

// VerifyFormatOnly checks the key grammar without any cryptographic check.
func (c *Codec) VerifyFormatOnly(key string) bool {
	return HasValidFormat(key, c.prefix)
}

// HasValidFormat reports whether key matches PREFIX-HEX8-HEX8-HEX8.
// Input is case-insensitive.
func HasValidFormat(key, prefix string) bool {
	parts := strings.Split(NormalizeKey(key), "-")
	if len(parts) != segmentCount+1 {
		return false
	}
	if parts[0] != strings.ToUpper(prefix) {
		return false
	}
	for _, seg := range parts[1:] {
		if len(seg) != segmentLen {
			return false
		}
		for i := 0; i < len(seg); i++ {
			ch := seg[i]
			if (ch < '0' || ch > '9') && (ch < 'A' || ch > 'F') {
				return false
			}
		}
	}
	return true
}

// CanonicalPayload returns the exact string signed for a key.
func CanonicalPayload(email, tier string, expiresAt time.Time) string {
	return NormalizeEmail(email) + ":" + strings.ToLower(strings.TrimSpace(tier)) + ":" + FormatExpiry(expiresAt)
}

// FormatExpiry renders an expiry in its signed form.
func FormatExpiry(t time.Time) string {
	return CanonicalExpiry(t).Format(ExpiryLayout)
}

// CanonicalExpiry drops sub-second precision and the location.
func CanonicalExpiry(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
