package http

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flaco-inc/flaco/internal/application/license/usecases"
	"github.com/flaco-inc/flaco/internal/domain/license"
	"github.com/flaco-inc/flaco/internal/infrastructure/billing"
	"github.com/flaco-inc/flaco/internal/infrastructure/config"
	"github.com/flaco-inc/flaco/internal/infrastructure/email"
	"github.com/flaco-inc/flaco/internal/infrastructure/metrics"
	"github.com/flaco-inc/flaco/internal/infrastructure/ratelimit"
	"github.com/flaco-inc/flaco/internal/infrastructure/repository"
	"github.com/flaco-inc/flaco/internal/interfaces/http/middleware"
	"github.com/flaco-inc/flaco/internal/shared/logger"
	"github.com/flaco-inc/flaco/pkg/licensekey"
	"github.com/flaco-inc/flaco/pkg/receipt"
)

// initInfrastructure creates the store, keyring, metrics and rate limiter.
func (c *Container) initInfrastructure() error {
	cfg := c.cfg

	c.store = repository.NewLicenseStore(c.db)

	keyring, err := licensekey.NewKeyring(cfg.License.Secrets(), licensekey.WithPrefix(cfg.License.KeyPrefix))
	if err != nil {
		return fmt.Errorf("failed to build license keyring: %w", err)
	}
	c.keyring = keyring
	c.log.Infow("license keyring loaded", "trusted_secrets", keyring.Len(), "prefix", keyring.Current().Prefix())

	if cfg.License.ReceiptPrivateKey != "" {
		key, err := receipt.ParsePrivateKey(cfg.License.ReceiptPrivateKey)
		if err != nil {
			return fmt.Errorf("license.receipt_private_key: %w", err)
		}
		c.receipts = receipt.NewSigner(key)
		c.log.Infow("verification receipts enabled")
	}

	c.recorder = metrics.Nop
	if cfg.Metrics.Enabled {
		c.metrics = metrics.New()
		c.recorder = c.metrics
	}

	var limiter ratelimit.Limiter
	switch cfg.RateLimit.Backend {
	case "redis":
		client, err := initRedis(cfg, c.log)
		if err != nil {
			return err
		}
		c.redis = client
		limiter = ratelimit.NewRedisLimiter(client)
	default:
		limiter = ratelimit.NewStoreLimiter(c.store)
	}
	c.log.Infow("rate limiter configured", "backend", cfg.RateLimit.Backend, "window", cfg.RateLimit.Window)

	c.rateLimiter = middleware.NewRateLimiter(limiter, cfg.RateLimit.Window, c.recorder, c.log.Named("ratelimit"))
	return nil
}

// initRedis creates and tests the Redis client connection.
func initRedis(cfg *config.Config, log logger.Interface) (*redis.Client, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.Infow("redis connection established", "addr", cfg.Redis.GetAddr())

	return redisClient, nil
}

// newNotifier returns the SMTP mailer, or a notifier that always fails when
// email delivery is switched off so results report the key as undelivered.
func newNotifier(cfg *config.Config, log logger.Interface) license.Notifier {
	if !cfg.Email.Enabled {
		log.Warnw("email delivery disabled, license keys are only returned in webhook results")
		return email.DisabledNotifier{}
	}
	return email.NewLicenseMailer(email.SMTPConfigFrom(&cfg.Email))
}

// newCustomerDirectory returns nil when no provider API key is configured,
// which ends the email fallback chain at the session fields.
func newCustomerDirectory(cfg *config.Config, log logger.Interface) usecases.CustomerDirectory {
	if cfg.Billing.APIKey == "" {
		log.Warnw("billing api key not set, customer email lookup disabled")
		return nil
	}
	return billing.NewCustomerClient(cfg.Billing.APIKey,
		billing.WithBaseURL(cfg.Billing.APIBaseURL),
		billing.WithTimeout(cfg.Billing.Timeout),
	)
}
