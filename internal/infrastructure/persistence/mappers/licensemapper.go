package mappers

import (
	"fmt"
	"time"

	"github.com/flaco-inc/flaco/internal/domain/license"
	vo "github.com/flaco-inc/flaco/internal/domain/license/valueobjects"
	"github.com/flaco-inc/flaco/internal/infrastructure/persistence/models"
)

// LicenseToEntity converts a persistence model to a domain entity.
func LicenseToEntity(model *models.LicenseModel) (*license.License, error) {
	if model == nil {
		return nil, nil
	}

	tier, err := vo.ParseTier(model.Tier)
	if err != nil {
		return nil, fmt.Errorf("license %s: %w", model.SubscriptionID, err)
	}
	period, err := vo.ParseBillingPeriod(model.BillingPeriod)
	if err != nil {
		return nil, fmt.Errorf("license %s: %w", model.SubscriptionID, err)
	}

	return &license.License{
		ID:             model.ID,
		SubscriptionID: model.SubscriptionID,
		CustomerID:     model.CustomerID,
		Email:          model.CustomerEmail,
		Tier:           tier,
		BillingPeriod:  period,
		LicenseKey:     model.LicenseKey,
		ExpiresAt:      model.ExpiresAt.UTC(),
		EmailSentAt:    utcPtr(model.EmailSentAt),
		LastResentAt:   utcPtr(model.LastResentAt),
		Metadata:       map[string]any(model.Metadata),
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}, nil
}

// IssueParamsToModel builds the row inserted by CreateLicenseIfMissing.
func IssueParamsToModel(p license.IssueParams) *models.LicenseModel {
	return &models.LicenseModel{
		SubscriptionID: p.SubscriptionID,
		CustomerID:     p.CustomerID,
		CustomerEmail:  p.Email,
		Tier:           p.Tier.String(),
		BillingPeriod:  p.BillingPeriod.String(),
		LicenseKey:     p.LicenseKey,
		ExpiresAt:      p.ExpiresAt,
		Metadata:       p.Metadata,
	}
}

// ActivationToEntity converts a device activation row.
func ActivationToEntity(model *models.DeviceActivationModel) *license.DeviceActivation {
	if model == nil {
		return nil
	}
	return &license.DeviceActivation{
		ID:              model.ID,
		LicenseKey:      model.LicenseKey,
		SubscriptionID:  model.SubscriptionID,
		Email:           model.CustomerEmail,
		DeviceID:        model.DeviceID,
		FingerprintHash: model.DeviceFingerprintHash,
		DeviceName:      model.DeviceName,
		Platform:        model.Platform,
		AppVersion:      model.AppVersion,
		CreatedAt:       model.CreatedAt,
		LastSeenAt:      model.LastSeenAt.UTC(),
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
