// Package license holds the license entities and the persistence contract
// shared by the webhook, verification and admin flows.
package license

import (
	"time"

	vo "github.com/flaco-inc/flaco/internal/domain/license/valueobjects"
)

// License is one issued entitlement, keyed by the provider subscription id.
// LicenseKey is always re-derivable from (Email, Tier, ExpiresAt) under one
// of the trusted signing secrets.
type License struct {
	ID             uint
	SubscriptionID string
	CustomerID     string
	Email          string
	Tier           vo.Tier
	BillingPeriod  vo.BillingPeriod
	LicenseKey     string
	ExpiresAt      time.Time
	EmailSentAt    *time.Time
	LastResentAt   *time.Time
	Metadata       map[string]any
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsExpired reports whether the license is past its expiry at now.
func (l *License) IsExpired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// NeedsDelivery reports whether the key has never been emailed.
func (l *License) NeedsDelivery() bool {
	return l.EmailSentAt == nil
}

// ResentWithin reports whether a resend happened less than d before now.
func (l *License) ResentWithin(now time.Time, d time.Duration) bool {
	return l.LastResentAt != nil && now.Sub(*l.LastResentAt) < d
}

// IssueParams describes a license to create when none exists yet for the
// subscription.
type IssueParams struct {
	SubscriptionID string
	CustomerID     string
	Email          string
	Tier           vo.Tier
	BillingPeriod  vo.BillingPeriod
	LicenseKey     string
	ExpiresAt      time.Time
	Metadata       map[string]any
}
