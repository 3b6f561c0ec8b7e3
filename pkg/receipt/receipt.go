// Package receipt signs and checks verification receipts: short EdDSA JWTs
// the server returns with every successful verification. A client holding
// only the public key can later prove its cached entitlement came from the
// server.
package receipt

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer is the iss claim of every receipt.
const Issuer = "flaco"

// ClockSkew is tolerated on iat and exp.
const ClockSkew = time.Minute

var ErrInvalidReceipt = errors.New("invalid verification receipt")

// Claims binds a verdict to the license holder and device. exp is the
// license expiry, sub the normalized email.
type Claims struct {
	Tier     string `json:"tier"`
	DeviceID string `json:"device_id,omitempty"`
	jwt.RegisteredClaims
}

// Email returns the subject.
func (c *Claims) Email() string {
	return c.Subject
}

// Matches reports whether the receipt covers the given cached entitlement.
func (c *Claims) Matches(email, tier, deviceID string, expiresAt time.Time) bool {
	if c.Subject != email || c.Tier != tier {
		return false
	}
	if c.DeviceID != "" && c.DeviceID != deviceID {
		return false
	}
	return c.ExpiresAt != nil && c.ExpiresAt.Unix() == expiresAt.Unix()
}

type Signer struct {
	key ed25519.PrivateKey
}

func NewSigner(key ed25519.PrivateKey) *Signer {
	return &Signer{key: key}
}

// PublicKey returns the key clients need to check receipts.
func (s *Signer) PublicKey() ed25519.PublicKey {
	return s.key.Public().(ed25519.PublicKey)
}

func (s *Signer) Sign(email, tier, deviceID string, expiresAt, issuedAt time.Time) (string, error) {
	claims := Claims{
		Tier:     tier,
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign receipt: %w", err)
	}
	return token, nil
}

type Verifier struct {
	key ed25519.PublicKey
}

func NewVerifier(key ed25519.PublicKey) *Verifier {
	return &Verifier{key: key}
}

// Verify checks the signature, issuer, iat and exp against now.
func (v *Verifier) Verify(token string, now time.Time) (*Claims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: missing", ErrInvalidReceipt)
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return v.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(ClockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReceipt, err)
	}
	return claims, nil
}

// GenerateKey returns a new key pair, base64 encoded. The private half is
// the 32-byte seed.
func GenerateKey() (public, private string, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate receipt key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(pub), base64.StdEncoding.EncodeToString(priv.Seed()), nil
}

// ParsePrivateKey accepts a base64 seed (32 bytes) or full private key (64 bytes).
func ParsePrivateKey(encoded string) (ed25519.PrivateKey, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("decode receipt private key: %w", err)
	}
	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	default:
		return nil, fmt.Errorf("receipt private key must be %d or %d bytes, got %d", ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
	}
}

func ParsePublicKey(encoded string) (ed25519.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("decode receipt public key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("receipt public key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}
