package license

import (
	"context"
	"time"

	vo "github.com/flaco-inc/flaco/internal/domain/license/valueobjects"
)

// LicenseEmail is everything the customer needs to activate a license.
type LicenseEmail struct {
	Email      string
	LicenseKey string
	Tier       vo.Tier
	ExpiresAt  time.Time
}

// Notifier delivers license keys to customers.
type Notifier interface {
	SendLicense(ctx context.Context, msg LicenseEmail) error
}
