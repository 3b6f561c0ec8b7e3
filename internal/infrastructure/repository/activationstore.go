package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"github.com/flaco-inc/flaco/internal/domain/license"
	"github.com/flaco-inc/flaco/internal/infrastructure/persistence/mappers"
	"github.com/flaco-inc/flaco/internal/infrastructure/persistence/models"
	"github.com/flaco-inc/flaco/internal/shared/db"
	"github.com/flaco-inc/flaco/pkg/licensekey"
)

// UpsertActivation records device against the license key, refreshing the
// device fields and last_seen_at when the pair already exists.
func (s *LicenseStore) UpsertActivation(ctx context.Context, lic *license.License, device license.DeviceInfo) error {
	if lic == nil || !device.HasDevice() {
		return fmt.Errorf("license and device id are required")
	}

	now := s.now().UTC()
	model := &models.DeviceActivationModel{
		LicenseKey:            licensekey.NormalizeKey(lic.LicenseKey),
		DeviceID:              device.DeviceID,
		SubscriptionID:        lic.SubscriptionID,
		CustomerEmail:         licensekey.NormalizeEmail(lic.Email),
		DeviceFingerprintHash: device.FingerprintHash,
		DeviceName:            device.Name,
		Platform:              device.Platform,
		AppVersion:            device.AppVersion,
		CreatedAt:             now,
		LastSeenAt:            now,
	}

	err := db.GetTxFromContext(ctx, s.db).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "license_key"}, {Name: "device_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"subscription_id",
				"customer_email",
				"device_fingerprint_hash",
				"device_name",
				"platform",
				"app_version",
				"last_seen_at",
			}),
		}).
		Create(model).Error
	if err != nil {
		return fmt.Errorf("failed to upsert activation: %w", err)
	}
	return nil
}

func (s *LicenseStore) ListActivations(ctx context.Context, email, key string) ([]*license.DeviceActivation, error) {
	var rows []*models.DeviceActivationModel
	err := db.GetTxFromContext(ctx, s.db).
		Where("license_key = ? AND customer_email = ?", licensekey.NormalizeKey(key), licensekey.NormalizeEmail(email)).
		Order("last_seen_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list activations: %w", err)
	}

	activations := make([]*license.DeviceActivation, 0, len(rows))
	for _, row := range rows {
		activations = append(activations, mappers.ActivationToEntity(row))
	}
	return activations, nil
}

// ResetActivations deletes every activation of the (email, key) pair and
// returns how many were removed.
func (s *LicenseStore) ResetActivations(ctx context.Context, email, key string) (int64, error) {
	result := db.GetTxFromContext(ctx, s.db).
		Where("license_key = ? AND customer_email = ?", licensekey.NormalizeKey(key), licensekey.NormalizeEmail(email)).
		Delete(&models.DeviceActivationModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to reset activations: %w", result.Error)
	}
	return result.RowsAffected, nil
}
