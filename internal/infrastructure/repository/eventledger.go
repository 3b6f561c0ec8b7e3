package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/flaco-inc/flaco/internal/infrastructure/persistence/models"
	"github.com/flaco-inc/flaco/internal/shared/db"
	apperrors "github.com/flaco-inc/flaco/internal/shared/errors"
)

// MarkEventProcessed records eventID. The insert is the idempotency gate:
// only the first caller for an id gets true.
func (s *LicenseStore) MarkEventProcessed(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, fmt.Errorf("event id must not be empty")
	}

	result := db.GetTxFromContext(ctx, s.db).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.ProcessedEventModel{
			EventID:     eventID,
			ProcessedAt: s.now().UTC(),
		})
	if result.Error != nil {
		if apperrors.IsDuplicateError(result.Error) {
			return false, nil
		}
		return false, fmt.Errorf("failed to mark event processed: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (s *LicenseStore) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var model models.ProcessedEventModel
	err := db.GetTxFromContext(ctx, s.db).
		Where("event_id = ?", eventID).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check processed event: %w", err)
	}
	return true, nil
}
