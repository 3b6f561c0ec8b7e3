package config

import (
	"fmt"
	"time"
)

type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port" validate:"min=1,max=65535"`
	Mode           string   `mapstructure:"mode" validate:"omitempty,oneof=debug release test"`
	BaseURL        string   `mapstructure:"base_url"`
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

func (s *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver" validate:"oneof=sqlite mysql postgres"`
	Path            string `mapstructure:"path"`
	DSN             string `mapstructure:"dsn"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	BusyTimeoutMS   int    `mapstructure:"busy_timeout_ms"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format     string `mapstructure:"format" validate:"omitempty,oneof=console json"`
	OutputPath string `mapstructure:"output_path"`
}

// LicenseConfig holds the signing secrets. The previous secret stays trusted
// for verification after a rotation. ReceiptPrivateKey is a base64 Ed25519
// seed; when set, valid verifications carry a signed receipt.
type LicenseConfig struct {
	SigningSecret         string `mapstructure:"signing_secret" validate:"required"`
	PreviousSigningSecret string `mapstructure:"previous_signing_secret"`
	KeyPrefix             string `mapstructure:"key_prefix" validate:"omitempty,alpha"`
	ReceiptPrivateKey     string `mapstructure:"receipt_private_key" validate:"omitempty,base64"`
}

// Secrets returns the trusted secrets, current first.
func (l *LicenseConfig) Secrets() []string {
	return []string{l.SigningSecret, l.PreviousSigningSecret}
}

type BillingConfig struct {
	WebhookSecret        string        `mapstructure:"webhook_secret"`
	APIKey               string        `mapstructure:"api_key"`
	APIBaseURL           string        `mapstructure:"api_base_url" validate:"omitempty,url"`
	SignatureTolerance   time.Duration `mapstructure:"signature_tolerance"`
	Timeout              time.Duration `mapstructure:"timeout"`
	DefaultTier          string        `mapstructure:"default_tier" validate:"oneof=pro enterprise"`
	DefaultBillingPeriod string        `mapstructure:"default_billing_period" validate:"oneof=monthly annual"`
}

type EmailConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	SMTPHost       string        `mapstructure:"smtp_host"`
	SMTPPort       int           `mapstructure:"smtp_port"`
	SMTPUser       string        `mapstructure:"smtp_user"`
	SMTPPassword   string        `mapstructure:"smtp_password"`
	FromAddress    string        `mapstructure:"from_address" validate:"omitempty,email"`
	FromName       string        `mapstructure:"from_name"`
	ProductName    string        `mapstructure:"product_name"`
	SupportURL     string        `mapstructure:"support_url"`
	ResendCooldown time.Duration `mapstructure:"resend_cooldown"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// RateLimitConfig sets per-scope request budgets within one fixed window.
type RateLimitConfig struct {
	Backend          string        `mapstructure:"backend" validate:"oneof=database redis"`
	Window           time.Duration `mapstructure:"window"`
	VerifyPerIP      int           `mapstructure:"verify_per_ip"`
	VerifyPerEmail   int           `mapstructure:"verify_per_email"`
	ResendPerIP      int           `mapstructure:"resend_per_ip"`
	ResendPerEmail   int           `mapstructure:"resend_per_email"`
	ActivationsPerIP int           `mapstructure:"activations_per_ip"`
}

type AdminConfig struct {
	TokenHash string `mapstructure:"token_hash"`
}

type SentryConfig struct {
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}
