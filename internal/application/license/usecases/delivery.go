package usecases

import (
	"context"
	"time"

	"github.com/flaco-inc/flaco/internal/domain/license"
	"github.com/flaco-inc/flaco/internal/infrastructure/metrics"
	"github.com/flaco-inc/flaco/internal/shared/logger"
	"github.com/flaco-inc/flaco/internal/shared/utils"
)

// CustomerDirectory resolves a billing customer id to the email on file.
type CustomerDirectory interface {
	LookupEmail(ctx context.Context, customerID string) (string, error)
}

func utcNow() time.Time {
	return time.Now().UTC()
}

// licenseDelivery sends a license email and stamps the row on success. It
// runs after the issuing transaction has committed.
type licenseDelivery struct {
	store    license.Store
	notifier license.Notifier
	metrics  metrics.Recorder
	logger   logger.Interface
}

// deliver reports whether the email went out and, if not, why.
func (d *licenseDelivery) deliver(ctx context.Context, lic *license.License) (bool, string) {
	err := d.notifier.SendLicense(ctx, license.LicenseEmail{
		Email:      lic.Email,
		LicenseKey: lic.LicenseKey,
		Tier:       lic.Tier,
		ExpiresAt:  lic.ExpiresAt,
	})
	d.metrics.EmailDelivery(err == nil)
	if err != nil {
		d.logger.Errorw("failed to send license email",
			"subscription_id", lic.SubscriptionID,
			"email", utils.MaskEmail(lic.Email),
			"error", err,
		)
		return false, err.Error()
	}

	if err := d.store.MarkEmailSent(ctx, lic.SubscriptionID); err != nil {
		// The mail is out; a missing stamp only means a later event may resend it.
		d.logger.Warnw("failed to record license email delivery",
			"subscription_id", lic.SubscriptionID,
			"error", err,
		)
	}
	return true, ""
}
