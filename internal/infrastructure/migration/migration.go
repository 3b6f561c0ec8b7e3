// Package migration creates and versions the license schema.
package migration

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/flaco-inc/flaco/internal/infrastructure/persistence/models"
	"github.com/flaco-inc/flaco/internal/shared/logger"
)

// Models lists every persisted model.
func Models() []interface{} {
	return []interface{}{
		&models.LicenseModel{},
		&models.ProcessedEventModel{},
		&models.DeviceActivationModel{},
		&models.RateLimitCounterModel{},
	}
}

// Manager handles database migrations with different strategies
type Manager struct {
	strategy Strategy
	logger   logger.Interface
}

// NewManager picks the versioned goose scripts for sqlite and gorm
// automigrate for the server databases.
func NewManager(driver string, log logger.Interface) *Manager {
	var strategy Strategy
	switch strings.ToLower(driver) {
	case "", "sqlite":
		strategy = NewGooseStrategy(log)
	default:
		strategy = NewGormAutoMigrateStrategy(log)
	}
	return NewManagerWithStrategy(strategy, log)
}

func NewManagerWithStrategy(strategy Strategy, log logger.Interface) *Manager {
	return &Manager{
		strategy: strategy,
		logger:   log.With("component", "migration.manager"),
	}
}

// Migrate executes the configured migration strategy
func (m *Manager) Migrate(db *gorm.DB) error {
	m.logger.Infow("starting database migration", "strategy", m.strategy.GetName())

	if err := m.strategy.Migrate(db); err != nil {
		m.logger.Errorw("migration failed", "strategy", m.strategy.GetName(), "error", err)
		return fmt.Errorf("migration failed with strategy %s: %w", m.strategy.GetName(), err)
	}

	m.logger.Infow("database migration completed successfully", "strategy", m.strategy.GetName())
	return nil
}

func (m *Manager) GetStrategy() Strategy {
	return m.strategy
}
