package server

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flaco-inc/flaco/internal/infrastructure/config"
	"github.com/flaco-inc/flaco/internal/infrastructure/database"
	sharedConfig "github.com/flaco-inc/flaco/internal/shared/config"
	"github.com/flaco-inc/flaco/internal/shared/logger"
)

func TestNewCommand_Flags(t *testing.T) {
	cmd := NewCommand()
	assert.Equal(t, "server", cmd.Use)

	for name, want := range map[string]string{
		"env":                  "development",
		"config":               "",
		"auto-migrate":         "true",
		"skip-migration-check": "false",
	} {
		f := cmd.Flags().Lookup(name)
		require.NotNil(t, f, name)
		assert.Equal(t, want, f.DefValue, name)
	}
	assert.Equal(t, "e", cmd.Flags().Lookup("env").Shorthand)
}

func TestRun_RejectsMissingSigningSecret(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ENV", "")
	t.Setenv("FLACO_LICENSE_SIGNING_SECRET", "")
	t.Setenv("FLACO_LOGGER_OUTPUT_PATH", "stderr")

	var out bytes.Buffer
	cmd := NewCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--env", "test"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestHandleMigrations(t *testing.T) {
	cfg := &config.Config{
		Database: sharedConfig.DatabaseConfig{
			Driver: "sqlite",
			Path:   filepath.Join(t.TempDir(), "licenses.db"),
		},
	}
	require.NoError(t, database.Init(&cfg.Database))
	t.Cleanup(func() { _ = database.Close() })

	prevAuto, prevSkip := autoMigrate, skipMigrationCheck
	t.Cleanup(func() { autoMigrate, skipMigrationCheck = prevAuto, prevSkip })

	autoMigrate = true
	require.NoError(t, handleMigrations(cfg, logger.NewDiscard()))
	assert.True(t, database.Get().Migrator().HasTable("licenses"))

	autoMigrate, skipMigrationCheck = false, false
	assert.NoError(t, handleMigrations(cfg, logger.NewDiscard()))

	skipMigrationCheck = true
	assert.NoError(t, handleMigrations(cfg, logger.NewDiscard()))
}
