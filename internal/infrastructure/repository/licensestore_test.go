package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flaco-inc/flaco/internal/domain/license"
	vo "github.com/flaco-inc/flaco/internal/domain/license/valueobjects"
	"github.com/flaco-inc/flaco/internal/infrastructure/database"
	"github.com/flaco-inc/flaco/internal/infrastructure/migration"
	"github.com/flaco-inc/flaco/internal/shared/config"
	"github.com/flaco-inc/flaco/internal/shared/logger"
	"github.com/flaco-inc/flaco/pkg/licensekey"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func setupTestStore(t *testing.T) (*LicenseStore, *testClock) {
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

	clock := &testClock{t: time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC)}
	return NewLicenseStore(gormDB, WithClock(clock.Now)), clock
}

func issueParams(subscriptionID, email string, tier vo.Tier, expiresAt time.Time) license.IssueParams {
	kr := licensekey.MustKeyring("test-secret")
	return license.IssueParams{
		SubscriptionID: subscriptionID,
		CustomerID:     "cus_1",
		Email:          email,
		Tier:           tier,
		BillingPeriod:  vo.BillingPeriodAnnual,
		LicenseKey:     kr.Generate(email, tier.String(), expiresAt),
		ExpiresAt:      expiresAt,
		Metadata:       map[string]any{"session_id": "cs_1"},
	}
}

func TestLicenseStore_EventLedger(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	t.Run("first mark wins", func(t *testing.T) {
		first, err := store.MarkEventProcessed(ctx, "evt_1:cs_1")
		require.NoError(t, err)
		assert.True(t, first)

		second, err := store.MarkEventProcessed(ctx, "evt_1:cs_1")
		require.NoError(t, err)
		assert.False(t, second)

		processed, err := store.IsEventProcessed(ctx, "evt_1:cs_1")
		require.NoError(t, err)
		assert.True(t, processed)
	})

	t.Run("unknown event", func(t *testing.T) {
		processed, err := store.IsEventProcessed(ctx, "evt_unknown")
		require.NoError(t, err)
		assert.False(t, processed)
	})

	t.Run("empty id rejected", func(t *testing.T) {
		_, err := store.MarkEventProcessed(ctx, "")
		assert.Error(t, err)
	})

	t.Run("concurrent marks", func(t *testing.T) {
		var wg sync.WaitGroup
		var mu sync.Mutex
		wins := 0
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := store.MarkEventProcessed(ctx, "evt_race")
				assert.NoError(t, err)
				if ok {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})
}

func TestLicenseStore_CreateLicenseIfMissing(t *testing.T) {
	store, clock := setupTestStore(t)
	ctx := context.Background()
	exp := clock.Now().AddDate(0, 0, 365)

	first := issueParams("sub_1", "User@Example.com", vo.TierPro, exp)
	lic, created, err := store.CreateLicenseIfMissing(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "user@example.com", lic.Email)
	assert.Equal(t, first.LicenseKey, lic.LicenseKey)
	assert.True(t, lic.NeedsDelivery())

	second := issueParams("sub_1", "other@example.com", vo.TierEnterprise, exp.Add(time.Hour))
	again, created, err := store.CreateLicenseIfMissing(ctx, second)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.LicenseKey, again.LicenseKey, "first write wins")
	assert.Equal(t, vo.TierPro, again.Tier)
	assert.Equal(t, "cs_1", again.Metadata["session_id"])

	stored, err := store.GetLicense(ctx, "sub_1")
	require.NoError(t, err)
	assert.True(t, licensekey.CanonicalExpiry(exp).Equal(stored.ExpiresAt))
	assert.True(t, licensekey.MustKeyring("test-secret").Verify(stored.Email, stored.LicenseKey, stored.Tier.String(), stored.ExpiresAt),
		"stored key stays re-derivable from stored fields")
}

func TestLicenseStore_CreateLicenseIfMissing_Concurrent(t *testing.T) {
	store, clock := setupTestStore(t)
	ctx := context.Background()
	exp := clock.Now().AddDate(0, 0, 35)

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	keys := map[string]bool{}

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := issueParams("sub_race", fmt.Sprintf("user%d@example.com", i), vo.TierPro, exp)
			lic, ok, err := store.CreateLicenseIfMissing(ctx, p)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if ok {
				created++
			}
			keys[lic.LicenseKey] = true
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Len(t, keys, 1, "every caller observes the winning row")
}

func TestLicenseStore_Lookups(t *testing.T) {
	store, clock := setupTestStore(t)
	ctx := context.Background()
	now := clock.Now()

	older := issueParams("sub_old", "user@example.com", vo.TierPro, now.AddDate(0, 0, 10))
	newer := issueParams("sub_new", "user@example.com", vo.TierPro, now.AddDate(0, 0, 300))
	enterprise := issueParams("sub_ent", "user@example.com", vo.TierEnterprise, now.AddDate(0, 0, 100))
	for _, p := range []license.IssueParams{older, newer, enterprise} {
		_, _, err := store.CreateLicenseIfMissing(ctx, p)
		require.NoError(t, err)
	}

	t.Run("by email and key is case-insensitive", func(t *testing.T) {
		lic, err := store.GetLicenseByEmailAndKey(ctx, "  USER@example.COM", "flaco"+newer.LicenseKey[5:])
		require.NoError(t, err)
		require.NotNil(t, lic)
		assert.Equal(t, "sub_new", lic.SubscriptionID)
	})

	t.Run("wrong email", func(t *testing.T) {
		lic, err := store.GetLicenseByEmailAndKey(ctx, "someone@example.com", newer.LicenseKey)
		require.NoError(t, err)
		assert.Nil(t, lic)
	})

	t.Run("latest per tier", func(t *testing.T) {
		lic, err := store.GetLatestLicenseForEmailAndTier(ctx, "User@Example.com", vo.TierPro)
		require.NoError(t, err)
		require.NotNil(t, lic)
		assert.Equal(t, "sub_new", lic.SubscriptionID)

		lic, err = store.GetLatestLicenseForEmailAndTier(ctx, "user@example.com", vo.TierEnterprise)
		require.NoError(t, err)
		assert.Equal(t, "sub_ent", lic.SubscriptionID)
	})

	t.Run("missing subscription", func(t *testing.T) {
		lic, err := store.GetLicense(ctx, "sub_missing")
		require.NoError(t, err)
		assert.Nil(t, lic)
	})
}

func TestLicenseStore_NarrowUpdates(t *testing.T) {
	store, clock := setupTestStore(t)
	ctx := context.Background()

	_, _, err := store.CreateLicenseIfMissing(ctx, issueParams("sub_1", "user@example.com", vo.TierPro, clock.Now().AddDate(0, 0, 35)))
	require.NoError(t, err)

	require.NoError(t, store.MarkEmailSent(ctx, "sub_1"))
	clock.Advance(time.Hour)
	require.NoError(t, store.MarkResent(ctx, "sub_1"))
	require.NoError(t, store.UpdateEmail(ctx, "sub_1", "New@Example.com"))
	require.NoError(t, store.UpdateLicenseKey(ctx, "sub_1", "flaco-00000000-00000000-00000000"))

	lic, err := store.GetLicense(ctx, "sub_1")
	require.NoError(t, err)
	require.NotNil(t, lic.EmailSentAt)
	require.NotNil(t, lic.LastResentAt)
	assert.False(t, lic.NeedsDelivery())
	assert.True(t, lic.LastResentAt.After(*lic.EmailSentAt))
	assert.True(t, lic.ResentWithin(clock.Now(), time.Minute))
	assert.Equal(t, "new@example.com", lic.Email)
	assert.Equal(t, "FLACO-00000000-00000000-00000000", lic.LicenseKey)

	err = store.MarkEmailSent(ctx, "sub_missing")
	assert.True(t, errors.Is(err, license.ErrLicenseNotFound))
}

func TestLicenseStore_AllowRequest(t *testing.T) {
	store, clock := setupTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		ok, err := store.AllowRequest(ctx, "verify:ip:10.0.0.1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "call %d", i)
	}

	ok, err := store.AllowRequest(ctx, "verify:ip:10.0.0.1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "fourth call in the window")

	other, err := store.AllowRequest(ctx, "verify:ip:10.0.0.2", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, other, "keys are independent")

	clock.Advance(time.Minute)
	ok, err = store.AllowRequest(ctx, "verify:ip:10.0.0.1", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "new window resets the counter")

	_, err = store.AllowRequest(ctx, "verify:ip:10.0.0.1", 3, time.Millisecond)
	assert.Error(t, err)

	pruned, err := store.PruneRateLimitCounters(ctx, clock.Now().Truncate(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned, "only the stale 10.0.0.2 window is removed")
}

func TestLicenseStore_Activations(t *testing.T) {
	store, clock := setupTestStore(t)
	ctx := context.Background()

	lic, _, err := store.CreateLicenseIfMissing(ctx, issueParams("sub_1", "user@example.com", vo.TierPro, clock.Now().AddDate(0, 0, 35)))
	require.NoError(t, err)
	otherLic, _, err := store.CreateLicenseIfMissing(ctx, issueParams("sub_2", "other@example.com", vo.TierPro, clock.Now().AddDate(0, 0, 35)))
	require.NoError(t, err)

	laptop := license.DeviceInfo{DeviceID: "dev-1", FingerprintHash: "fp1", Name: "laptop", Platform: "darwin/arm64", AppVersion: "1.0.0"}
	desktop := license.DeviceInfo{DeviceID: "dev-2", Name: "desktop", Platform: "linux/amd64"}

	require.NoError(t, store.UpsertActivation(ctx, lic, laptop))
	firstSeen := clock.Now()
	clock.Advance(time.Hour)
	require.NoError(t, store.UpsertActivation(ctx, lic, desktop))
	clock.Advance(time.Hour)
	laptop.AppVersion = "1.1.0"
	require.NoError(t, store.UpsertActivation(ctx, lic, laptop))
	require.NoError(t, store.UpsertActivation(ctx, otherLic, laptop))

	activations, err := store.ListActivations(ctx, "USER@example.com", lic.LicenseKey)
	require.NoError(t, err)
	require.Len(t, activations, 2, "same device is upserted, not duplicated")
	assert.Equal(t, "dev-1", activations[0].DeviceID, "most recently seen first")
	assert.Equal(t, "1.1.0", activations[0].AppVersion)
	assert.True(t, activations[0].LastSeenAt.After(firstSeen))

	none, err := store.ListActivations(ctx, "other@example.com", lic.LicenseKey)
	require.NoError(t, err)
	assert.Empty(t, none, "scoped to the (email, key) pair")

	removed, err := store.ResetActivations(ctx, "user@example.com", lic.LicenseKey)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	remaining, err := store.ListActivations(ctx, "other@example.com", otherLic.LicenseKey)
	require.NoError(t, err)
	assert.Len(t, remaining, 1, "other licenses keep their activations")

	assert.Error(t, store.UpsertActivation(ctx, lic, license.DeviceInfo{}))
}

func TestLicenseStore_RunInTransactionRollsBack(t *testing.T) {
	store, clock := setupTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.RunInTransaction(ctx, func(ctx context.Context) error {
		ok, err := store.MarkEventProcessed(ctx, "evt_tx")
		require.NoError(t, err)
		require.True(t, ok)

		_, _, err = store.CreateLicenseIfMissing(ctx, issueParams("sub_tx", "user@example.com", vo.TierPro, clock.Now().AddDate(0, 0, 35)))
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	processed, err := store.IsEventProcessed(ctx, "evt_tx")
	require.NoError(t, err)
	assert.False(t, processed)

	lic, err := store.GetLicense(ctx, "sub_tx")
	require.NoError(t, err)
	assert.Nil(t, lic)
}
