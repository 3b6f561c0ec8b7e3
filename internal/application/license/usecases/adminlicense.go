package usecases

import (
	"context"
	"errors"
	"fmt"

	"github.com/flaco-inc/flaco/internal/domain/license"
	"github.com/flaco-inc/flaco/internal/infrastructure/metrics"
	apperrors "github.com/flaco-inc/flaco/internal/shared/errors"
	"github.com/flaco-inc/flaco/internal/shared/logger"
	"github.com/flaco-inc/flaco/internal/shared/utils"
	"github.com/flaco-inc/flaco/pkg/licensekey"
)

type GetLicenseUseCase struct {
	store license.Store
}

func NewGetLicenseUseCase(store license.Store) *GetLicenseUseCase {
	return &GetLicenseUseCase{store: store}
}

func (uc *GetLicenseUseCase) Execute(ctx context.Context, subscriptionID string) (*license.License, error) {
	lic, err := uc.store.GetLicense(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if lic == nil {
		return nil, apperrors.NewNotFoundError("license not found", subscriptionID)
	}
	return lic, nil
}

type ChangeEmailCommand struct {
	SubscriptionID string
	NewEmail       string
	SendEmail      bool
}

type ChangeEmailResult struct {
	License    *license.License
	EmailSent  bool
	EmailError string
}

// ChangeEmailUseCase moves a license to a new address. The key is derived
// from the email, so a fresh key is issued alongside; activations recorded
// under the old key are left in place.
type ChangeEmailUseCase struct {
	store    license.Store
	keyring  *licensekey.Keyring
	delivery *licenseDelivery
	logger   logger.Interface
}

func NewChangeEmailUseCase(
	store license.Store,
	keyring *licensekey.Keyring,
	notifier license.Notifier,
	logger logger.Interface,
) *ChangeEmailUseCase {
	return &ChangeEmailUseCase{
		store:   store,
		keyring: keyring,
		delivery: &licenseDelivery{
			store:    store,
			notifier: notifier,
			metrics:  metrics.Nop,
			logger:   logger,
		},
		logger: logger,
	}
}

func (uc *ChangeEmailUseCase) Execute(ctx context.Context, cmd ChangeEmailCommand) (*ChangeEmailResult, error) {
	email := licensekey.NormalizeEmail(cmd.NewEmail)
	if email == "" {
		return nil, apperrors.NewValidationError("email is required")
	}

	var updated *license.License
	err := uc.store.RunInTransaction(ctx, func(txCtx context.Context) error {
		lic, err := uc.store.GetLicense(txCtx, cmd.SubscriptionID)
		if err != nil {
			return err
		}
		if lic == nil {
			return apperrors.NewNotFoundError("license not found", cmd.SubscriptionID)
		}

		key := uc.keyring.Generate(email, lic.Tier.String(), lic.ExpiresAt)
		if err := uc.store.UpdateEmail(txCtx, lic.SubscriptionID, email); err != nil {
			return err
		}
		if err := uc.store.UpdateLicenseKey(txCtx, lic.SubscriptionID, key); err != nil {
			return err
		}

		updated, err = uc.store.GetLicense(txCtx, lic.SubscriptionID)
		return err
	})
	if err != nil {
		if apperrors.IsAppError(err) || errors.Is(err, license.ErrLicenseNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to change license email: %w", err)
	}

	uc.logger.Infow("license email changed",
		"subscription_id", updated.SubscriptionID,
		"email", utils.MaskEmail(updated.Email),
	)

	result := &ChangeEmailResult{License: updated}
	if cmd.SendEmail {
		result.EmailSent, result.EmailError = uc.delivery.deliver(ctx, updated)
	}
	return result, nil
}
