package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flaco-inc/flaco/internal/domain/license"
	vo "github.com/flaco-inc/flaco/internal/domain/license/valueobjects"
	"github.com/flaco-inc/flaco/internal/infrastructure/metrics"
	"github.com/flaco-inc/flaco/internal/shared/logger"
	"github.com/flaco-inc/flaco/internal/shared/utils"
	"github.com/flaco-inc/flaco/pkg/licensekey"
	"github.com/flaco-inc/flaco/pkg/receipt"
)

// ErrInvalidLicense is the single answer for unknown, expired, forged or
// malformed credentials.
var ErrInvalidLicense = errors.New("invalid license")

// licenseAuthenticator resolves (email, key) to a live license.
type licenseAuthenticator struct {
	store   license.Store
	keyring *licensekey.Keyring
	now     func() time.Time
}

// authenticate returns ErrInvalidLicense for anything that is not a
// current, correctly signed license. Store failures are returned as-is.
func (a *licenseAuthenticator) authenticate(ctx context.Context, email, key string) (*license.License, error) {
	email = licensekey.NormalizeEmail(email)
	if email == "" || !a.keyring.VerifyFormatOnly(key) {
		return nil, ErrInvalidLicense
	}

	lic, err := a.store.GetLicenseByEmailAndKey(ctx, email, key)
	if err != nil {
		return nil, fmt.Errorf("failed to look up license: %w", err)
	}
	if lic == nil || lic.IsExpired(a.now()) {
		return nil, ErrInvalidLicense
	}
	if !a.keyring.Verify(lic.Email, lic.LicenseKey, lic.Tier.String(), lic.ExpiresAt) {
		return nil, ErrInvalidLicense
	}
	return lic, nil
}

type VerifyLicenseCommand struct {
	Email      string
	LicenseKey string
	Device     license.DeviceInfo
}

type VerifyLicenseResult struct {
	Valid     bool
	Tier      vo.Tier
	ExpiresAt time.Time
	Email     string
	// Receipt is a signed copy of the verdict, empty when no signer is set.
	Receipt string
}

type VerifyLicenseUseCase struct {
	auth    *licenseAuthenticator
	store   license.Store
	signer  *receipt.Signer
	metrics metrics.Recorder
	logger  logger.Interface
}

func NewVerifyLicenseUseCase(
	store license.Store,
	keyring *licensekey.Keyring,
	logger logger.Interface,
) *VerifyLicenseUseCase {
	return &VerifyLicenseUseCase{
		auth:    &licenseAuthenticator{store: store, keyring: keyring, now: utcNow},
		store:   store,
		metrics: metrics.Nop,
		logger:  logger,
	}
}

func (uc *VerifyLicenseUseCase) SetMetrics(r metrics.Recorder) {
	uc.metrics = r
}

func (uc *VerifyLicenseUseCase) SetClock(now func() time.Time) {
	uc.auth.now = now
}

// SetReceiptSigner enables signed receipts on valid verdicts.
func (uc *VerifyLicenseUseCase) SetReceiptSigner(s *receipt.Signer) {
	uc.signer = s
}

// Execute returns Valid=false for every rejection; the error is reserved
// for infrastructure failures.
func (uc *VerifyLicenseUseCase) Execute(ctx context.Context, cmd VerifyLicenseCommand) (*VerifyLicenseResult, error) {
	lic, err := uc.auth.authenticate(ctx, cmd.Email, cmd.LicenseKey)
	if errors.Is(err, ErrInvalidLicense) {
		uc.metrics.Verification("invalid")
		uc.logger.Debugw("license verification rejected", "email", utils.MaskEmail(cmd.Email))
		return &VerifyLicenseResult{Valid: false}, nil
	}
	if err != nil {
		uc.metrics.Verification("error")
		return nil, err
	}

	if cmd.Device.HasDevice() {
		if err := uc.store.UpsertActivation(ctx, lic, cmd.Device); err != nil {
			uc.logger.Warnw("failed to record device activation",
				"subscription_id", lic.SubscriptionID,
				"device_id", cmd.Device.DeviceID,
				"error", err,
			)
		}
	}

	uc.metrics.Verification("valid")
	result := &VerifyLicenseResult{
		Valid:     true,
		Tier:      lic.Tier,
		ExpiresAt: lic.ExpiresAt,
		Email:     lic.Email,
	}
	if uc.signer != nil {
		token, err := uc.signer.Sign(lic.Email, lic.Tier.String(), cmd.Device.DeviceID, lic.ExpiresAt, uc.auth.now())
		if err != nil {
			uc.logger.Warnw("failed to sign verification receipt",
				"subscription_id", lic.SubscriptionID,
				"error", err,
			)
		} else {
			result.Receipt = token
		}
	}
	return result, nil
}
