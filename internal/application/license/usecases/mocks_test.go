package usecases

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/flaco-inc/flaco/internal/domain/license"
	"github.com/flaco-inc/flaco/internal/infrastructure/billing"
	"github.com/flaco-inc/flaco/internal/infrastructure/database"
	"github.com/flaco-inc/flaco/internal/infrastructure/migration"
	"github.com/flaco-inc/flaco/internal/infrastructure/repository"
	"github.com/flaco-inc/flaco/internal/shared/config"
	"github.com/flaco-inc/flaco/internal/shared/logger"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendLicense(ctx context.Context, msg license.LicenseEmail) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

type mockCustomerDirectory struct {
	mock.Mock
}

func (m *mockCustomerDirectory) LookupEmail(ctx context.Context, customerID string) (string, error) {
	args := m.Called(ctx, customerID)
	return args.String(0), args.Error(1)
}

// spyStore wraps a real store to count lookups and inject failures.
type spyStore struct {
	license.Store

	lookups        int
	lookupErr      error
	upsertErr      error
	isProcessedErr error
}

func (s *spyStore) GetLicenseByEmailAndKey(ctx context.Context, email, key string) (*license.License, error) {
	s.lookups++
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	return s.Store.GetLicenseByEmailAndKey(ctx, email, key)
}

func (s *spyStore) UpsertActivation(ctx context.Context, lic *license.License, device license.DeviceInfo) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	return s.Store.UpsertActivation(ctx, lic, device)
}

func (s *spyStore) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	if s.isProcessedErr != nil {
		return false, s.isProcessedErr
	}
	return s.Store.IsEventProcessed(ctx, eventID)
}

func setupStore(t *testing.T) *repository.LicenseStore {
	t.Helper()

	gormDB, err := database.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "licenses.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := gormDB.DB()
		sqlDB.Close()
	})

	require.NoError(t, migration.NewManager("sqlite", logger.NewDiscard()).Migrate(gormDB))
	return repository.NewLicenseStore(gormDB, repository.WithClock(fixedClock))
}

func checkoutEvent(t *testing.T, eventID, sessionID string, fields map[string]any) *billing.Event {
	t.Helper()

	obj := map[string]any{"id": sessionID, "mode": "subscription"}
	for k, v := range fields {
		obj[k] = v
	}
	raw, err := json.Marshal(obj)
	require.NoError(t, err)
	return &billing.Event{ID: eventID, Type: "checkout.session.completed", Object: raw}
}
