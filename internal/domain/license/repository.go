package license

import (
	"context"
	"time"

	vo "github.com/flaco-inc/flaco/internal/domain/license/valueobjects"
)

// EventLedger records provider events that have already been applied.
type EventLedger interface {
	// MarkEventProcessed returns false when eventID was already recorded.
	MarkEventProcessed(ctx context.Context, eventID string) (bool, error)
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
}

// RequestLimiter is the fixed-window counter kept in the store.
type RequestLimiter interface {
	AllowRequest(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Store is the persistence contract for licenses, events, activations and
// rate-limit counters. Lookups that find nothing return (nil, nil).
type Store interface {
	EventLedger
	RequestLimiter

	// RunInTransaction executes fn in one transaction; store calls made with
	// the ctx passed to fn join it.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// CreateLicenseIfMissing inserts a license unless one already exists for
	// the subscription; created reports which happened.
	CreateLicenseIfMissing(ctx context.Context, params IssueParams) (lic *License, created bool, err error)
	GetLicense(ctx context.Context, subscriptionID string) (*License, error)
	GetLicenseByEmailAndKey(ctx context.Context, email, key string) (*License, error)
	GetLatestLicenseForEmailAndTier(ctx context.Context, email string, tier vo.Tier) (*License, error)
	MarkEmailSent(ctx context.Context, subscriptionID string) error
	MarkResent(ctx context.Context, subscriptionID string) error
	UpdateEmail(ctx context.Context, subscriptionID, email string) error
	UpdateLicenseKey(ctx context.Context, subscriptionID, key string) error

	UpsertActivation(ctx context.Context, lic *License, device DeviceInfo) error
	ListActivations(ctx context.Context, email, key string) ([]*DeviceActivation, error)
	ResetActivations(ctx context.Context, email, key string) (int64, error)
}
