package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/flaco-inc/flaco/internal/infrastructure/persistence/models"
	"github.com/flaco-inc/flaco/internal/shared/db"
)

// AllowRequest counts one request against key in the current fixed window
// and reports whether the count is still within limit. The window starts at
// now - now%window; the first request of a new window resets the counter.
func (s *LicenseStore) AllowRequest(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	windowSeconds := int64(window / time.Second)
	if windowSeconds <= 0 {
		return false, fmt.Errorf("rate limit window must be at least one second, got %s", window)
	}

	now := s.now().Unix()
	windowStart := now - now%windowSeconds

	var count int
	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		tx := db.GetTxFromContext(ctx, s.db)

		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "bucket_key"}},
			DoUpdates: counterAssignments(tx.Dialector.Name()),
		}).Create(&models.RateLimitCounterModel{
			Key:          key,
			WindowStart:  windowStart,
			RequestCount: 1,
		}).Error
		if err != nil {
			return err
		}

		var counter models.RateLimitCounterModel
		if err := tx.Where("bucket_key = ?", key).Take(&counter).Error; err != nil {
			return err
		}
		count = counter.RequestCount
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to count request for %s: %w", key, err)
	}

	return count <= limit, nil
}

// counterAssignments increments within the same window and resets to 1 when
// the stored window is stale. MySQL evaluates SET left to right, so
// request_count must be assigned before window_start.
func counterAssignments(dialect string) clause.Set {
	if dialect == "mysql" {
		return clause.Set{
			{Column: clause.Column{Name: "request_count"}, Value: gorm.Expr("IF(window_start = VALUES(window_start), request_count + 1, 1)")},
			{Column: clause.Column{Name: "window_start"}, Value: gorm.Expr("VALUES(window_start)")},
		}
	}
	return clause.Set{
		{Column: clause.Column{Name: "request_count"}, Value: gorm.Expr("CASE WHEN rate_limit_counters.window_start = excluded.window_start THEN rate_limit_counters.request_count + 1 ELSE 1 END")},
		{Column: clause.Column{Name: "window_start"}, Value: gorm.Expr("excluded.window_start")},
	}
}

// PruneRateLimitCounters deletes counters whose window started before cutoff.
func (s *LicenseStore) PruneRateLimitCounters(ctx context.Context, cutoff time.Time) (int64, error) {
	result := db.GetTxFromContext(ctx, s.db).
		Where("window_start < ?", cutoff.Unix()).
		Delete(&models.RateLimitCounterModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune rate limit counters: %w", result.Error)
	}
	return result.RowsAffected, nil
}
