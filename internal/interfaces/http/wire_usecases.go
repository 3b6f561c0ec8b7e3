package http

import (
	"fmt"

	"github.com/flaco-inc/flaco/internal/application/license/usecases"
	vo "github.com/flaco-inc/flaco/internal/domain/license/valueobjects"
)

type licenseUseCases struct {
	handleWebhookUC    *usecases.HandleWebhookUseCase
	verifyLicenseUC    *usecases.VerifyLicenseUseCase
	resendLicenseUC    *usecases.ResendLicenseUseCase
	manageActivationUC *usecases.ManageActivationsUseCase
	getLicenseUC       *usecases.GetLicenseUseCase
	changeEmailUC      *usecases.ChangeEmailUseCase
}

func (c *Container) initUseCases() error {
	if err := c.mustHaveKeyring(); err != nil {
		return err
	}
	cfg := c.cfg

	defaultTier, err := vo.ParseTier(cfg.Billing.DefaultTier)
	if err != nil || !defaultTier.IsPaid() {
		return fmt.Errorf("billing.default_tier must be a paid tier, got %q", cfg.Billing.DefaultTier)
	}
	defaultPeriod, err := vo.ParseBillingPeriod(cfg.Billing.DefaultBillingPeriod)
	if err != nil {
		return fmt.Errorf("billing.default_billing_period: %w", err)
	}

	notifier := newNotifier(cfg, c.log)
	customers := newCustomerDirectory(cfg, c.log)

	webhookUC := usecases.NewHandleWebhookUseCase(
		c.store,
		c.keyring,
		customers,
		notifier,
		usecases.EntitlementDefaults{Tier: defaultTier, BillingPeriod: defaultPeriod},
		c.log.Named("webhook"),
	)
	webhookUC.SetMetrics(c.recorder)

	verifyUC := usecases.NewVerifyLicenseUseCase(c.store, c.keyring, c.log.Named("verify"))
	verifyUC.SetMetrics(c.recorder)
	if c.receipts != nil {
		verifyUC.SetReceiptSigner(c.receipts)
	}

	resendUC := usecases.NewResendLicenseUseCase(c.store, notifier, cfg.Email.ResendCooldown, c.log.Named("resend"))
	resendUC.SetMetrics(c.recorder)

	c.ucs = &licenseUseCases{
		handleWebhookUC:    webhookUC,
		verifyLicenseUC:    verifyUC,
		resendLicenseUC:    resendUC,
		manageActivationUC: usecases.NewManageActivationsUseCase(c.store, c.keyring, c.log.Named("activations")),
		getLicenseUC:       usecases.NewGetLicenseUseCase(c.store),
		changeEmailUC:      usecases.NewChangeEmailUseCase(c.store, c.keyring, notifier, c.log.Named("admin")),
	}
	return nil
}
