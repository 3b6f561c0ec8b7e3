package usecases

import (
	"context"
	"time"

	"github.com/flaco-inc/flaco/internal/domain/license"
	"github.com/flaco-inc/flaco/internal/shared/logger"
	"github.com/flaco-inc/flaco/pkg/licensekey"
)

// ManageActivationsUseCase lets a license holder see and clear the devices
// recorded against their key.
type ManageActivationsUseCase struct {
	auth   *licenseAuthenticator
	store  license.Store
	logger logger.Interface
}

func NewManageActivationsUseCase(
	store license.Store,
	keyring *licensekey.Keyring,
	logger logger.Interface,
) *ManageActivationsUseCase {
	return &ManageActivationsUseCase{
		auth:   &licenseAuthenticator{store: store, keyring: keyring, now: utcNow},
		store:  store,
		logger: logger,
	}
}

func (uc *ManageActivationsUseCase) SetClock(now func() time.Time) {
	uc.auth.now = now
}

func (uc *ManageActivationsUseCase) List(ctx context.Context, email, key string) ([]*license.DeviceActivation, error) {
	lic, err := uc.auth.authenticate(ctx, email, key)
	if err != nil {
		return nil, err
	}
	return uc.store.ListActivations(ctx, lic.Email, lic.LicenseKey)
}

func (uc *ManageActivationsUseCase) Reset(ctx context.Context, email, key string) (int64, error) {
	lic, err := uc.auth.authenticate(ctx, email, key)
	if err != nil {
		return 0, err
	}

	removed, err := uc.store.ResetActivations(ctx, lic.Email, lic.LicenseKey)
	if err != nil {
		return 0, err
	}
	uc.logger.Infow("device activations reset",
		"subscription_id", lic.SubscriptionID,
		"removed", removed,
	)
	return removed, nil
}
