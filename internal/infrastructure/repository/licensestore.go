package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/flaco-inc/flaco/internal/domain/license"
	vo "github.com/flaco-inc/flaco/internal/domain/license/valueobjects"
	"github.com/flaco-inc/flaco/internal/infrastructure/persistence/mappers"
	"github.com/flaco-inc/flaco/internal/infrastructure/persistence/models"
	"github.com/flaco-inc/flaco/internal/shared/db"
	apperrors "github.com/flaco-inc/flaco/internal/shared/errors"
	"github.com/flaco-inc/flaco/pkg/licensekey"
)

// LicenseStore is the gorm implementation of license.Store. Emails are
// stored case-folded and keys uppercased, so lookups normalise their input
// the same way.
type LicenseStore struct {
	db  *gorm.DB
	txm *db.TransactionManager
	now func() time.Time
}

var _ license.Store = (*LicenseStore)(nil)

type StoreOption func(*LicenseStore)

// WithClock replaces the wall clock used for timestamps and rate windows.
func WithClock(now func() time.Time) StoreOption {
	return func(s *LicenseStore) {
		s.now = now
	}
}

func NewLicenseStore(gormDB *gorm.DB, opts ...StoreOption) *LicenseStore {
	s := &LicenseStore{
		db:  gormDB,
		txm: db.NewTransactionManager(gormDB),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *LicenseStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.txm.RunInTransaction(ctx, fn)
}

func (s *LicenseStore) CreateLicenseIfMissing(ctx context.Context, p license.IssueParams) (*license.License, bool, error) {
	if p.SubscriptionID == "" || p.Email == "" || p.LicenseKey == "" {
		return nil, false, fmt.Errorf("subscription id, email and license key are required")
	}
	if !p.Tier.IsValid() || !p.BillingPeriod.IsValid() {
		return nil, false, fmt.Errorf("invalid tier %q or billing period %q", p.Tier, p.BillingPeriod)
	}

	p.Email = licensekey.NormalizeEmail(p.Email)
	p.LicenseKey = licensekey.NormalizeKey(p.LicenseKey)
	p.ExpiresAt = licensekey.CanonicalExpiry(p.ExpiresAt)
	model := mappers.IssueParamsToModel(p)

	result := db.GetTxFromContext(ctx, s.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "subscription_id"}},
			DoNothing: true,
		}).
		Create(model)

	if result.Error != nil && !apperrors.IsDuplicateError(result.Error) {
		return nil, false, fmt.Errorf("failed to create license: %w", result.Error)
	}

	if result.Error == nil && result.RowsAffected == 1 {
		lic, err := mappers.LicenseToEntity(model)
		if err != nil {
			return nil, false, err
		}
		return lic, true, nil
	}

	existing, err := s.GetLicense(ctx, p.SubscriptionID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("license for subscription %s conflicted but could not be read back", p.SubscriptionID)
	}
	return existing, false, nil
}

func (s *LicenseStore) GetLicense(ctx context.Context, subscriptionID string) (*license.License, error) {
	return s.findLicense(ctx, db.GetTxFromContext(ctx, s.db).
		Where("subscription_id = ?", subscriptionID))
}

func (s *LicenseStore) GetLicenseByEmailAndKey(ctx context.Context, email, key string) (*license.License, error) {
	return s.findLicense(ctx, db.GetTxFromContext(ctx, s.db).
		Where("customer_email = ? AND license_key = ?", licensekey.NormalizeEmail(email), licensekey.NormalizeKey(key)).
		Order("expires_at DESC"))
}

func (s *LicenseStore) GetLatestLicenseForEmailAndTier(ctx context.Context, email string, tier vo.Tier) (*license.License, error) {
	return s.findLicense(ctx, db.GetTxFromContext(ctx, s.db).
		Where("customer_email = ? AND tier = ?", licensekey.NormalizeEmail(email), tier.String()).
		Order("expires_at DESC").
		Order("id DESC"))
}

func (s *LicenseStore) findLicense(_ context.Context, query *gorm.DB) (*license.License, error) {
	var model models.LicenseModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get license: %w", err)
	}
	return mappers.LicenseToEntity(&model)
}

func (s *LicenseStore) MarkEmailSent(ctx context.Context, subscriptionID string) error {
	return s.updateLicense(ctx, subscriptionID, map[string]interface{}{
		"email_sent_at": s.now().UTC(),
	})
}

func (s *LicenseStore) MarkResent(ctx context.Context, subscriptionID string) error {
	return s.updateLicense(ctx, subscriptionID, map[string]interface{}{
		"last_resent_at": s.now().UTC(),
	})
}

func (s *LicenseStore) UpdateEmail(ctx context.Context, subscriptionID, email string) error {
	normalized := licensekey.NormalizeEmail(email)
	if normalized == "" {
		return fmt.Errorf("email must not be empty")
	}
	return s.updateLicense(ctx, subscriptionID, map[string]interface{}{
		"customer_email": normalized,
	})
}

func (s *LicenseStore) UpdateLicenseKey(ctx context.Context, subscriptionID, key string) error {
	normalized := licensekey.NormalizeKey(key)
	if normalized == "" {
		return fmt.Errorf("license key must not be empty")
	}
	return s.updateLicense(ctx, subscriptionID, map[string]interface{}{
		"license_key": normalized,
	})
}

func (s *LicenseStore) updateLicense(ctx context.Context, subscriptionID string, fields map[string]interface{}) error {
	fields["updated_at"] = s.now().UTC()

	result := db.GetTxFromContext(ctx, s.db).
		Model(&models.LicenseModel{}).
		Where("subscription_id = ?", subscriptionID).
		Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("failed to update license: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("subscription %s: %w", subscriptionID, license.ErrLicenseNotFound)
	}
	return nil
}
