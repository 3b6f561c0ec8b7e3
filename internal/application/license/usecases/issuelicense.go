package usecases

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/flaco-inc/flaco/internal/domain/license"
	vo "github.com/flaco-inc/flaco/internal/domain/license/valueobjects"
	"github.com/flaco-inc/flaco/internal/infrastructure/metrics"
	apperrors "github.com/flaco-inc/flaco/internal/shared/errors"
	"github.com/flaco-inc/flaco/internal/shared/logger"
	"github.com/flaco-inc/flaco/pkg/licensekey"
)

// IssueLicenseCommand issues a license outside the checkout flow, e.g. for
// a reseller or a support grant.
type IssueLicenseCommand struct {
	SubscriptionID string
	CustomerID     string
	Email          string
	Tier           string
	BillingPeriod  string
	// ExpiresAt overrides the billing-period expiry when set.
	ExpiresAt *time.Time
	SendEmail bool
}

type IssueLicenseResult struct {
	License    *license.License
	Created    bool
	EmailSent  bool
	EmailError string
}

type IssueLicenseUseCase struct {
	store    license.Store
	keyring  *licensekey.Keyring
	delivery *licenseDelivery
	logger   logger.Interface
	now      func() time.Time
}

func NewIssueLicenseUseCase(
	store license.Store,
	keyring *licensekey.Keyring,
	notifier license.Notifier,
	logger logger.Interface,
) *IssueLicenseUseCase {
	return &IssueLicenseUseCase{
		store:   store,
		keyring: keyring,
		delivery: &licenseDelivery{
			store:    store,
			notifier: notifier,
			metrics:  metrics.Nop,
			logger:   logger,
		},
		logger: logger,
		now:    utcNow,
	}
}

func (uc *IssueLicenseUseCase) SetClock(now func() time.Time) {
	uc.now = now
}

func (uc *IssueLicenseUseCase) Execute(ctx context.Context, cmd IssueLicenseCommand) (*IssueLicenseResult, error) {
	email := licensekey.NormalizeEmail(cmd.Email)
	if email == "" {
		return nil, apperrors.NewValidationError("email is required")
	}
	tier, err := vo.ParseTier(cmd.Tier)
	if err != nil || !tier.IsPaid() {
		return nil, apperrors.NewValidationError("tier must be pro or enterprise", cmd.Tier)
	}
	period, err := vo.ParseBillingPeriod(cmd.BillingPeriod)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid billing period", cmd.BillingPeriod)
	}

	now := uc.now()
	expiresAt := period.ExpiresAt(now)
	if cmd.ExpiresAt != nil {
		if !cmd.ExpiresAt.After(now) {
			return nil, apperrors.NewValidationError("expiry must be in the future")
		}
		expiresAt = *cmd.ExpiresAt
	}
	expiresAt = licensekey.CanonicalExpiry(expiresAt)

	subscriptionID := cmd.SubscriptionID
	if subscriptionID == "" {
		subscriptionID = "manual_" + uuid.NewString()
	}

	lic, created, err := uc.store.CreateLicenseIfMissing(ctx, license.IssueParams{
		SubscriptionID: subscriptionID,
		CustomerID:     cmd.CustomerID,
		Email:          email,
		Tier:           tier,
		BillingPeriod:  period,
		LicenseKey:     uc.keyring.Generate(email, tier.String(), expiresAt),
		ExpiresAt:      expiresAt,
		Metadata:       map[string]any{"source": "manual"},
	})
	if err != nil {
		return nil, err
	}

	result := &IssueLicenseResult{License: lic, Created: created}
	if !created {
		uc.logger.Warnw("license already exists for subscription", "subscription_id", subscriptionID)
		return result, nil
	}

	uc.logger.Infow("license issued manually", "subscription_id", subscriptionID, "tier", tier)
	if cmd.SendEmail {
		result.EmailSent, result.EmailError = uc.delivery.deliver(ctx, lic)
	}
	return result, nil
}
