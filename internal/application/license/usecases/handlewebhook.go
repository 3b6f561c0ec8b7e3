package usecases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/flaco-inc/flaco/internal/domain/license"
	vo "github.com/flaco-inc/flaco/internal/domain/license/valueobjects"
	"github.com/flaco-inc/flaco/internal/infrastructure/billing"
	"github.com/flaco-inc/flaco/internal/infrastructure/metrics"
	"github.com/flaco-inc/flaco/internal/shared/logger"
	"github.com/flaco-inc/flaco/internal/shared/utils"
	"github.com/flaco-inc/flaco/pkg/licensekey"
)

// EventKind is the closed set of billing events the service reacts to.
type EventKind int

const (
	EventKindUnknown EventKind = iota
	EventKindCheckoutCompleted
	EventKindSubscriptionUpdated
	EventKindSubscriptionDeleted
	EventKindInvoicePaid
	EventKindInvoicePaymentFailed
)

var eventKindNames = map[string]EventKind{
	"checkout.session.completed":    EventKindCheckoutCompleted,
	"customer.subscription.updated": EventKindSubscriptionUpdated,
	"customer.subscription.deleted": EventKindSubscriptionDeleted,
	"invoice.payment_succeeded":     EventKindInvoicePaid,
	"invoice.payment_failed":        EventKindInvoicePaymentFailed,
}

func ParseEventKind(eventType string) EventKind {
	return eventKindNames[eventType]
}

func (k EventKind) String() string {
	for name, kind := range eventKindNames {
		if kind == k {
			return name
		}
	}
	return "unknown"
}

type WebhookStatus string

const (
	WebhookStatusProcessed WebhookStatus = "processed"
	WebhookStatusDuplicate WebhookStatus = "duplicate"
	WebhookStatusIgnored   WebhookStatus = "ignored"
	WebhookStatusLogged    WebhookStatus = "logged"
)

// WebhookResult is returned to the provider and carries the issued key so an
// operator can recover when email delivery failed.
type WebhookResult struct {
	Status         WebhookStatus `json:"status"`
	EventID        string        `json:"event_id"`
	EventType      string        `json:"event_type"`
	SubscriptionID string        `json:"subscription_id,omitempty"`
	LicenseKey     string        `json:"license_key,omitempty"`
	Tier           vo.Tier       `json:"tier,omitempty"`
	ExpiresAt      *time.Time    `json:"expires_at,omitempty"`
	Created        bool          `json:"created"`
	EmailSent      bool          `json:"email_sent"`
	EmailError     string        `json:"email_error,omitempty"`
}

// EntitlementDefaults apply when checkout metadata carries no usable tier or
// billing period.
type EntitlementDefaults struct {
	Tier          vo.Tier
	BillingPeriod vo.BillingPeriod
}

type HandleWebhookUseCase struct {
	store     license.Store
	keyring   *licensekey.Keyring
	customers CustomerDirectory
	delivery  *licenseDelivery
	defaults  EntitlementDefaults
	metrics   metrics.Recorder
	logger    logger.Interface
	now       func() time.Time
}

func NewHandleWebhookUseCase(
	store license.Store,
	keyring *licensekey.Keyring,
	customers CustomerDirectory,
	notifier license.Notifier,
	defaults EntitlementDefaults,
	logger logger.Interface,
) *HandleWebhookUseCase {
	return &HandleWebhookUseCase{
		store:     store,
		keyring:   keyring,
		customers: customers,
		delivery: &licenseDelivery{
			store:    store,
			notifier: notifier,
			metrics:  metrics.Nop,
			logger:   logger,
		},
		defaults: defaults,
		metrics:  metrics.Nop,
		logger:   logger,
		now:      utcNow,
	}
}

func (uc *HandleWebhookUseCase) SetMetrics(r metrics.Recorder) {
	uc.metrics = r
	uc.delivery.metrics = r
}

func (uc *HandleWebhookUseCase) SetClock(now func() time.Time) {
	uc.now = now
}

// Execute applies one billing event. Errors are returned for the provider
// to retry; duplicates and uninteresting events are successes.
func (uc *HandleWebhookUseCase) Execute(ctx context.Context, event *billing.Event) (*WebhookResult, error) {
	var (
		result *WebhookResult
		err    error
	)

	switch kind := ParseEventKind(event.Type); kind {
	case EventKindCheckoutCompleted:
		result, err = uc.handleCheckoutCompleted(ctx, event)
	case EventKindSubscriptionUpdated, EventKindSubscriptionDeleted,
		EventKindInvoicePaid, EventKindInvoicePaymentFailed:
		result, err = uc.handleLifecycleEvent(ctx, event, kind)
	default:
		uc.logger.Debugw("ignoring billing event", "event_id", event.ID, "event_type", event.Type)
		result = &WebhookResult{Status: WebhookStatusIgnored, EventID: event.ID, EventType: event.Type}
	}

	if err != nil {
		uc.metrics.WebhookEvent(event.Type, "error")
		return nil, err
	}
	uc.metrics.WebhookEvent(event.Type, string(result.Status))
	return result, nil
}

func (uc *HandleWebhookUseCase) handleCheckoutCompleted(ctx context.Context, event *billing.Event) (*WebhookResult, error) {
	session, err := event.DecodeCheckoutSession()
	if err != nil {
		return nil, err
	}

	result := &WebhookResult{EventID: event.ID, EventType: event.Type}
	idempotencyKey := event.ID + ":" + session.ID

	processed, err := uc.store.IsEventProcessed(ctx, idempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check processed events: %w", err)
	}
	if processed {
		uc.logger.Infow("checkout session already processed", "event_id", event.ID, "session_id", session.ID)
		result.Status = WebhookStatusDuplicate
		return result, nil
	}

	// Remote lookups happen before the store transaction is opened.
	email, err := uc.resolveEmail(ctx, session)
	if err != nil {
		uc.logger.Warnw("could not resolve customer email",
			"event_id", event.ID,
			"session_id", session.ID,
			"customer_id", string(session.Customer),
			"error", err,
		)
		return nil, err
	}

	tier, period := uc.entitlement(event.ID, session.Metadata)
	expiresAt := licensekey.CanonicalExpiry(period.ExpiresAt(uc.now()))
	subscriptionID := string(session.Subscription)
	if subscriptionID == "" {
		subscriptionID = session.ID
	}

	params := license.IssueParams{
		SubscriptionID: subscriptionID,
		CustomerID:     string(session.Customer),
		Email:          email,
		Tier:           tier,
		BillingPeriod:  period,
		LicenseKey:     uc.keyring.Generate(email, tier.String(), expiresAt),
		ExpiresAt:      expiresAt,
		Metadata: map[string]any{
			"source":     "checkout",
			"event_id":   event.ID,
			"session_id": session.ID,
		},
	}

	var (
		lic       *license.License
		created   bool
		duplicate bool
	)
	err = uc.store.RunInTransaction(ctx, func(txCtx context.Context) error {
		marked, err := uc.store.MarkEventProcessed(txCtx, idempotencyKey)
		if err != nil {
			return err
		}
		if !marked {
			duplicate = true
			return nil
		}
		lic, created, err = uc.store.CreateLicenseIfMissing(txCtx, params)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record license for session %s: %w", session.ID, err)
	}
	if duplicate {
		uc.logger.Infow("checkout session processed concurrently", "event_id", event.ID, "session_id", session.ID)
		result.Status = WebhookStatusDuplicate
		return result, nil
	}

	result.Status = WebhookStatusProcessed
	result.SubscriptionID = lic.SubscriptionID
	result.LicenseKey = lic.LicenseKey
	result.Tier = lic.Tier
	result.ExpiresAt = &lic.ExpiresAt
	result.Created = created

	if created {
		uc.metrics.LicenseIssued(lic.Tier.String())
		uc.logger.Infow("license issued",
			"subscription_id", lic.SubscriptionID,
			"email", utils.MaskEmail(lic.Email),
			"tier", lic.Tier,
			"expires_at", lic.ExpiresAt,
		)
	}

	if created || lic.NeedsDelivery() {
		result.EmailSent, result.EmailError = uc.delivery.deliver(ctx, lic)
	}
	return result, nil
}

// resolveEmail walks the fallback chain: customer_details.email, then the
// legacy customer_email field, then the customer record.
func (uc *HandleWebhookUseCase) resolveEmail(ctx context.Context, session *billing.CheckoutSession) (string, error) {
	if session.CustomerDetails != nil {
		if email := licensekey.NormalizeEmail(session.CustomerDetails.Email); email != "" {
			return email, nil
		}
	}
	if email := licensekey.NormalizeEmail(session.CustomerEmail); email != "" {
		return email, nil
	}
	if session.Customer == "" || uc.customers == nil {
		return "", license.ErrEmailUnresolved
	}

	email, err := uc.customers.LookupEmail(ctx, string(session.Customer))
	if err != nil {
		return "", fmt.Errorf("%w: customer %s: %v", license.ErrEmailUnresolved, session.Customer, err)
	}
	if email = licensekey.NormalizeEmail(email); email == "" {
		return "", license.ErrEmailUnresolved
	}
	return email, nil
}

func (uc *HandleWebhookUseCase) entitlement(eventID string, metadata map[string]string) (vo.Tier, vo.BillingPeriod) {
	tier := uc.defaults.Tier
	if raw := metadata["tier"]; raw != "" {
		parsed, err := vo.ParseTier(raw)
		if err == nil && parsed.IsPaid() {
			tier = parsed
		} else {
			uc.logger.Warnw("unusable tier in checkout metadata, using default",
				"event_id", eventID, "tier", raw, "default", tier)
		}
	}

	period := uc.defaults.BillingPeriod
	raw := metadata["billing_period"]
	if raw == "" {
		raw = metadata["billing"]
	}
	if raw != "" {
		parsed, err := vo.ParseBillingPeriod(raw)
		if err == nil {
			period = parsed
		} else {
			uc.logger.Warnw("unusable billing period in checkout metadata, using default",
				"event_id", eventID, "billing_period", raw, "default", period)
		}
	}
	return tier, period
}

// handleLifecycleEvent records subscription and invoice events without
// touching licenses; expiry remains the only access gate.
func (uc *HandleWebhookUseCase) handleLifecycleEvent(ctx context.Context, event *billing.Event, kind EventKind) (*WebhookResult, error) {
	result := &WebhookResult{EventID: event.ID, EventType: event.Type}

	marked, err := uc.store.MarkEventProcessed(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to record event %s: %w", event.ID, err)
	}
	if !marked {
		result.Status = WebhookStatusDuplicate
		return result, nil
	}

	objectID := event.ObjectID()
	result.Status = WebhookStatusLogged
	if strings.HasPrefix(objectID, "sub_") {
		result.SubscriptionID = objectID
	}

	switch kind {
	case EventKindInvoicePaymentFailed:
		uc.logger.Warnw("invoice payment failed", "event_id", event.ID, "object_id", objectID)
	default:
		uc.logger.Infow("billing lifecycle event received",
			"event_id", event.ID,
			"event_type", kind.String(),
			"object_id", objectID,
		)
	}
	return result, nil
}
