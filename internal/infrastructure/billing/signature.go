package billing

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"
)

const (
	// SignatureHeader carries "t=<unix>,v1=<hex>[,v1=<hex>...]".
	SignatureHeader = "Stripe-Signature"

	DefaultTolerance = webhook.DefaultTolerance
)

// ErrInvalidSignature wraps every rejection below.
var ErrInvalidSignature = errors.New("invalid webhook signature")

var (
	ErrMissingSignature = fmt.Errorf("%w: missing header", ErrInvalidSignature)
	ErrInvalidHeader    = fmt.Errorf("%w: malformed header", ErrInvalidSignature)
	ErrNoValidSignature = fmt.Errorf("%w: no matching signature", ErrInvalidSignature)
	ErrTimestampExpired = fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
)

// SignedHeader builds the signature header the provider would send for
// payload at the given time.
func SignedHeader(secret string, payload []byte, at time.Time) string {
	sig := webhook.ComputeSignature(at, payload, secret)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(sig))
}

// SignatureVerifier checks webhook signatures against one shared secret.
type SignatureVerifier struct {
	secret    string
	tolerance time.Duration
}

func NewSignatureVerifier(secret string, tolerance time.Duration) *SignatureVerifier {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &SignatureVerifier{secret: secret, tolerance: tolerance}
}

// Verify accepts the payload when any v1 signature matches and the
// timestamp is no older than the tolerance.
func (v *SignatureVerifier) Verify(payload []byte, header string) error {
	if v.secret == "" {
		return fmt.Errorf("%w: webhook secret not configured", ErrNoValidSignature)
	}
	if strings.TrimSpace(header) == "" {
		return ErrMissingSignature
	}

	err := webhook.ValidatePayloadWithTolerance(payload, header, v.secret, v.tolerance)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, webhook.ErrNotSigned):
		return ErrMissingSignature
	case errors.Is(err, webhook.ErrInvalidHeader):
		return ErrInvalidHeader
	case errors.Is(err, webhook.ErrTooOld):
		return ErrTimestampExpired
	case errors.Is(err, webhook.ErrNoValidSignature):
		return ErrNoValidSignature
	default:
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
}
