package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	sharedConfig "github.com/flaco-inc/flaco/internal/shared/config"
)

type Config struct {
	Server    sharedConfig.ServerConfig    `mapstructure:"server"`
	Database  sharedConfig.DatabaseConfig  `mapstructure:"database"`
	Logger    sharedConfig.LoggerConfig    `mapstructure:"logger"`
	License   sharedConfig.LicenseConfig   `mapstructure:"license"`
	Billing   sharedConfig.BillingConfig   `mapstructure:"billing"`
	Email     sharedConfig.EmailConfig     `mapstructure:"email"`
	Redis     sharedConfig.RedisConfig     `mapstructure:"redis"`
	RateLimit sharedConfig.RateLimitConfig `mapstructure:"ratelimit"`
	Admin     sharedConfig.AdminConfig     `mapstructure:"admin"`
	Sentry    sharedConfig.SentryConfig    `mapstructure:"sentry"`
	Metrics   sharedConfig.MetricsConfig   `mapstructure:"metrics"`
}

var (
	appConfig   *Config
	appConfigMu sync.RWMutex
)

// Load reads ./configs/config.yaml (or configPath) and FLACO_* environment
// variables. The file is optional unless configPath names one explicitly.
func Load(env, configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("/etc/flaco")
	}

	v.SetEnvPrefix("FLACO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if env != "" && env != "default" {
		v.Set("server.mode", ModeForEnv(env))
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	appConfigMu.Lock()
	appConfig = &config
	appConfigMu.Unlock()

	return &config, nil
}

// Get returns the loaded configuration
func Get() *Config {
	appConfigMu.RLock()
	defer appConfigMu.RUnlock()
	return appConfig
}

// Validate checks the struct tags of every section.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ModeForEnv maps an environment name to a gin mode.
func ModeForEnv(env string) string {
	switch env {
	case "production", "prod", "release":
		return "release"
	case "test", "testing":
		return "test"
	default:
		return "debug"
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.trusted_proxies", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/licenses.db")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_idle_conns", 4)
	v.SetDefault("database.max_open_conns", 8)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.busy_timeout_ms", 5000)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output_path", "stdout")

	v.SetDefault("license.signing_secret", "")
	v.SetDefault("license.previous_signing_secret", "")
	v.SetDefault("license.key_prefix", "FLACO")
	v.SetDefault("license.receipt_private_key", "")

	v.SetDefault("billing.webhook_secret", "")
	v.SetDefault("billing.api_key", "")
	v.SetDefault("billing.api_base_url", "https://api.stripe.com")
	v.SetDefault("billing.signature_tolerance", 5*time.Minute)
	v.SetDefault("billing.timeout", 10*time.Second)
	v.SetDefault("billing.default_tier", "pro")
	v.SetDefault("billing.default_billing_period", "monthly")

	v.SetDefault("email.enabled", false)
	v.SetDefault("email.smtp_host", "localhost")
	v.SetDefault("email.smtp_port", 1025)
	v.SetDefault("email.smtp_user", "")
	v.SetDefault("email.smtp_password", "")
	v.SetDefault("email.from_address", "licenses@flaco.local")
	v.SetDefault("email.from_name", "Flaco")
	v.SetDefault("email.product_name", "Flaco")
	v.SetDefault("email.support_url", "")
	v.SetDefault("email.resend_cooldown", 10*time.Minute)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("ratelimit.backend", "database")
	v.SetDefault("ratelimit.window", time.Minute)
	v.SetDefault("ratelimit.verify_per_ip", 30)
	v.SetDefault("ratelimit.verify_per_email", 10)
	v.SetDefault("ratelimit.resend_per_ip", 5)
	v.SetDefault("ratelimit.resend_per_email", 3)
	v.SetDefault("ratelimit.activations_per_ip", 10)

	v.SetDefault("admin.token_hash", "")

	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "")
	v.SetDefault("sentry.sample_rate", 1.0)

	v.SetDefault("metrics.enabled", true)
}
