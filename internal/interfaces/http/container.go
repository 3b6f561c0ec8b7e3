package http

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/flaco-inc/flaco/internal/infrastructure/config"
	"github.com/flaco-inc/flaco/internal/infrastructure/metrics"
	"github.com/flaco-inc/flaco/internal/infrastructure/repository"
	"github.com/flaco-inc/flaco/internal/interfaces/http/middleware"
	"github.com/flaco-inc/flaco/internal/shared/logger"
	"github.com/flaco-inc/flaco/pkg/licensekey"
	"github.com/flaco-inc/flaco/pkg/receipt"
)

// Container holds the infrastructure, use cases and handlers of the license
// service and wires them together in dependency order.
type Container struct {
	// Core infrastructure
	engine *gin.Engine
	db     *gorm.DB
	cfg    *config.Config
	log    logger.Interface
	redis  *redis.Client

	store   *repository.LicenseStore
	keyring *licensekey.Keyring
	// receipts is nil when license.receipt_private_key is unset.
	receipts *receipt.Signer

	// metrics is nil when disabled; recorder is then metrics.Nop.
	metrics  *metrics.Metrics
	recorder metrics.Recorder

	rateLimiter *middleware.RateLimiter

	ucs   *licenseUseCases
	hdlrs *licenseHandlers
}

// NewContainer builds every component from cfg. db must already be migrated.
func NewContainer(db *gorm.DB, cfg *config.Config, log logger.Interface) (*Container, error) {
	c := &Container{
		engine: gin.New(),
		db:     db,
		cfg:    cfg,
		log:    log,
	}

	// Section 1: Infrastructure - store, keyring, metrics, rate limiting
	if err := c.initInfrastructure(); err != nil {
		return nil, err
	}

	// Section 2: License - collaborators and use cases
	if err := c.initUseCases(); err != nil {
		return nil, err
	}

	// Section 3: Handlers
	c.initHandlers()

	return c, nil
}

// Store returns the license store, shared with background jobs.
func (c *Container) Store() *repository.LicenseStore {
	return c.store
}

// Shutdown releases connections owned by the container. The database is
// owned by the caller.
func (c *Container) Shutdown() {
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			c.log.Warnw("failed to close redis client", "error", err)
		}
	}
}

func (c *Container) mustHaveKeyring() error {
	if c.keyring == nil {
		return fmt.Errorf("license keyring is not initialized")
	}
	return nil
}
