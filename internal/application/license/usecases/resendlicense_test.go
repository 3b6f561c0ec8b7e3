package usecases

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/flaco-inc/flaco/internal/domain/license"
	vo "github.com/flaco-inc/flaco/internal/domain/license/valueobjects"
	apperrors "github.com/flaco-inc/flaco/internal/shared/errors"
	"github.com/flaco-inc/flaco/internal/shared/logger"
	"github.com/flaco-inc/flaco/pkg/licensekey"
)

func TestResendLicense_SendsHighestTierAndAppliesCooldown(t *testing.T) {
	store := setupStore(t)
	keyring := licensekey.MustKeyring("s1")
	seedLicense(t, store, keyring, "sub_pro", "buyer@example.com", vo.TierPro, testNow.AddDate(1, 0, 0))
	ent := seedLicense(t, store, keyring, "sub_ent", "buyer@example.com", vo.TierEnterprise, testNow.AddDate(1, 0, 0))

	notifier := new(mockNotifier)
	notifier.On("SendLicense", mock.Anything, mock.MatchedBy(func(m license.LicenseEmail) bool {
		return m.LicenseKey == ent.LicenseKey
	})).Return(nil).Once()

	uc := NewResendLicenseUseCase(store, notifier, 10*time.Minute, logger.NewDiscard())
	uc.SetClock(fixedClock)

	result, err := uc.Execute(context.Background(), ResendLicenseCommand{Email: "Buyer@example.com"})
	require.NoError(t, err)
	assert.True(t, result.Sent)

	stored, err := store.GetLicense(context.Background(), "sub_ent")
	require.NoError(t, err)
	require.NotNil(t, stored.LastResentAt)

	result, err = uc.Execute(context.Background(), ResendLicenseCommand{Email: "buyer@example.com"})
	require.NoError(t, err)
	assert.False(t, result.Sent)
	assert.True(t, result.CoolingDown)

	notifier.AssertExpectations(t)
}

func TestResendLicense_ExplicitTier(t *testing.T) {
	store := setupStore(t)
	keyring := licensekey.MustKeyring("s1")
	pro := seedLicense(t, store, keyring, "sub_pro", "buyer@example.com", vo.TierPro, testNow.AddDate(1, 0, 0))
	seedLicense(t, store, keyring, "sub_ent", "buyer@example.com", vo.TierEnterprise, testNow.AddDate(1, 0, 0))

	notifier := new(mockNotifier)
	notifier.On("SendLicense", mock.Anything, mock.MatchedBy(func(m license.LicenseEmail) bool {
		return m.LicenseKey == pro.LicenseKey
	})).Return(nil).Once()

	uc := NewResendLicenseUseCase(store, notifier, 0, logger.NewDiscard())
	uc.SetClock(fixedClock)

	result, err := uc.Execute(context.Background(), ResendLicenseCommand{Email: "buyer@example.com", Tier: "pro"})
	require.NoError(t, err)
	assert.True(t, result.Sent)
	notifier.AssertExpectations(t)
}

func TestResendLicense_UnknownOrExpiredIsQuiet(t *testing.T) {
	store := setupStore(t)
	seedLicense(t, store, licensekey.MustKeyring("s1"), "sub_1", "late@example.com", vo.TierPro, testNow.Add(-time.Hour))

	notifier := new(mockNotifier)
	uc := NewResendLicenseUseCase(store, notifier, 0, logger.NewDiscard())
	uc.SetClock(fixedClock)

	for _, email := range []string{"nobody@example.com", "late@example.com"} {
		result, err := uc.Execute(context.Background(), ResendLicenseCommand{Email: email})
		require.NoError(t, err)
		assert.Equal(t, &ResendLicenseResult{}, result)
	}
	notifier.AssertNotCalled(t, "SendLicense", mock.Anything, mock.Anything)
}

func TestResendLicense_DeliveryFailure(t *testing.T) {
	store := setupStore(t)
	seedLicense(t, store, licensekey.MustKeyring("s1"), "sub_1", "buyer@example.com", vo.TierPro, testNow.AddDate(1, 0, 0))

	notifier := new(mockNotifier)
	notifier.On("SendLicense", mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	uc := NewResendLicenseUseCase(store, notifier, 0, logger.NewDiscard())
	uc.SetClock(fixedClock)

	result, err := uc.Execute(context.Background(), ResendLicenseCommand{Email: "buyer@example.com"})
	require.NoError(t, err)
	assert.False(t, result.Sent)

	stored, err := store.GetLicense(context.Background(), "sub_1")
	require.NoError(t, err)
	assert.Nil(t, stored.LastResentAt)
}

func TestResendLicense_Validation(t *testing.T) {
	uc := NewResendLicenseUseCase(setupStore(t), new(mockNotifier), 0, logger.NewDiscard())

	_, err := uc.Execute(context.Background(), ResendLicenseCommand{Email: " "})
	assert.True(t, apperrors.IsValidationError(err))

	_, err = uc.Execute(context.Background(), ResendLicenseCommand{Email: "buyer@example.com", Tier: "gold"})
	assert.True(t, apperrors.IsValidationError(err))
}
