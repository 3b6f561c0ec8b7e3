package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/flaco-inc/flaco/internal/domain/license"
	vo "github.com/flaco-inc/flaco/internal/domain/license/valueobjects"
	"github.com/flaco-inc/flaco/internal/infrastructure/metrics"
	apperrors "github.com/flaco-inc/flaco/internal/shared/errors"
	"github.com/flaco-inc/flaco/internal/shared/logger"
	"github.com/flaco-inc/flaco/internal/shared/utils"
	"github.com/flaco-inc/flaco/pkg/licensekey"
)

const DefaultResendCooldown = 10 * time.Minute

type ResendLicenseCommand struct {
	Email string
	// Tier is optional; empty means the highest paid tier on file.
	Tier string
}

// ResendLicenseResult is for logs and tests only. Callers must answer the
// requester the same way whatever it says.
type ResendLicenseResult struct {
	Sent        bool
	CoolingDown bool
}

type ResendLicenseUseCase struct {
	store    license.Store
	delivery *licenseDelivery
	cooldown time.Duration
	logger   logger.Interface
	now      func() time.Time
}

func NewResendLicenseUseCase(
	store license.Store,
	notifier license.Notifier,
	cooldown time.Duration,
	logger logger.Interface,
) *ResendLicenseUseCase {
	if cooldown <= 0 {
		cooldown = DefaultResendCooldown
	}
	return &ResendLicenseUseCase{
		store: store,
		delivery: &licenseDelivery{
			store:    store,
			notifier: notifier,
			metrics:  metrics.Nop,
			logger:   logger,
		},
		cooldown: cooldown,
		logger:   logger,
		now:      utcNow,
	}
}

func (uc *ResendLicenseUseCase) SetMetrics(r metrics.Recorder) {
	uc.delivery.metrics = r
}

func (uc *ResendLicenseUseCase) SetClock(now func() time.Time) {
	uc.now = now
}

func (uc *ResendLicenseUseCase) Execute(ctx context.Context, cmd ResendLicenseCommand) (*ResendLicenseResult, error) {
	email := licensekey.NormalizeEmail(cmd.Email)
	if email == "" {
		return nil, apperrors.NewValidationError("email is required")
	}

	tiers := vo.PaidTiers
	if cmd.Tier != "" {
		tier, err := vo.ParseTier(cmd.Tier)
		if err != nil {
			return nil, apperrors.NewValidationError("invalid tier", cmd.Tier)
		}
		tiers = []vo.Tier{tier}
	}

	now := uc.now()
	var lic *license.License
	for _, tier := range tiers {
		found, err := uc.store.GetLatestLicenseForEmailAndTier(ctx, email, tier)
		if err != nil {
			return nil, fmt.Errorf("failed to look up license: %w", err)
		}
		if found != nil && !found.IsExpired(now) {
			lic = found
			break
		}
	}

	if lic == nil {
		uc.logger.Infow("resend requested for unknown license", "email", utils.MaskEmail(email))
		return &ResendLicenseResult{}, nil
	}
	if lic.ResentWithin(now, uc.cooldown) {
		uc.logger.Infow("resend suppressed by cooldown",
			"subscription_id", lic.SubscriptionID,
			"last_resent_at", lic.LastResentAt,
		)
		return &ResendLicenseResult{CoolingDown: true}, nil
	}

	sent, _ := uc.delivery.deliver(ctx, lic)
	if !sent {
		return &ResendLicenseResult{}, nil
	}
	if err := uc.store.MarkResent(ctx, lic.SubscriptionID); err != nil {
		uc.logger.Warnw("failed to record license resend", "subscription_id", lic.SubscriptionID, "error", err)
	}
	return &ResendLicenseResult{Sent: true}, nil
}
