package http

import (
	"github.com/flaco-inc/flaco/internal/infrastructure/billing"
	"github.com/flaco-inc/flaco/internal/interfaces/http/handlers"
)

type licenseHandlers struct {
	webhookHandler *handlers.WebhookHandler
	licenseHandler *handlers.LicenseHandler
	adminHandler   *handlers.AdminLicenseHandler
	healthHandler  *handlers.HealthHandler
}

func (c *Container) initHandlers() {
	cfg := c.cfg

	if cfg.Billing.WebhookSecret == "" {
		c.log.Warnw("billing webhook secret not set, every webhook will be rejected")
	}
	verifier := billing.NewSignatureVerifier(cfg.Billing.WebhookSecret, cfg.Billing.SignatureTolerance)

	c.hdlrs = &licenseHandlers{
		webhookHandler: handlers.NewWebhookHandler(verifier, c.ucs.handleWebhookUC, c.log.Named("webhook")),
		licenseHandler: handlers.NewLicenseHandler(
			c.ucs.verifyLicenseUC,
			c.ucs.resendLicenseUC,
			c.ucs.manageActivationUC,
			c.rateLimiter,
			handlers.LicenseLimits{
				VerifyPerEmail: cfg.RateLimit.VerifyPerEmail,
				ResendPerEmail: cfg.RateLimit.ResendPerEmail,
			},
			c.log.Named("license"),
		),
		adminHandler:  handlers.NewAdminLicenseHandler(c.ucs.getLicenseUC, c.ucs.changeEmailUC, c.log.Named("admin")),
		healthHandler: handlers.NewHealthHandler(c.db),
	}
}
