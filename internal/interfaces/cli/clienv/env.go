// Package clienv loads the configuration, logger and database shared by the
// CLI subcommands.
package clienv

import (
	"fmt"
	"os"

	"github.com/flaco-inc/flaco/internal/infrastructure/config"
	"github.com/flaco-inc/flaco/internal/infrastructure/database"
	"github.com/flaco-inc/flaco/internal/infrastructure/repository"
	"github.com/flaco-inc/flaco/internal/shared/logger"
	"github.com/flaco-inc/flaco/pkg/licensekey"
)

// Flags are the persistent flags every subcommand accepts.
type Flags struct {
	Env        string
	ConfigPath string
}

// Load reads the configuration and initializes the process logger. The ENV
// environment variable overrides the --env flag.
func Load(flags *Flags) (*config.Config, logger.Interface, error) {
	env := flags.Env
	if envVar := os.Getenv("ENV"); envVar != "" {
		env = envVar
	}

	cfg, err := config.Load(env, flags.ConfigPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(&cfg.Logger, cfg.Server.Mode); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, logger.NewLogger(), nil
}

// OpenStore connects the process database and returns the license store
// with the keyring built from the license section.
func OpenStore(cfg *config.Config) (*repository.LicenseStore, *licensekey.Keyring, error) {
	keyring, err := licensekey.NewKeyring(cfg.License.Secrets(), licensekey.WithPrefix(cfg.License.KeyPrefix))
	if err != nil {
		return nil, nil, fmt.Errorf("license.signing_secret: %w", err)
	}

	if err := database.Init(&cfg.Database); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return repository.NewLicenseStore(database.Get()), keyring, nil
}
