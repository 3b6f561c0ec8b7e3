package http

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/flaco-inc/flaco/internal/interfaces/http/middleware"
	"github.com/flaco-inc/flaco/internal/interfaces/http/routes"

	_ "github.com/flaco-inc/flaco/docs"
)

// Router owns the gin engine of a wired Container.
type Router struct {
	*Container
}

func NewRouter(c *Container) *Router {
	return &Router{Container: c}
}

// SetupRoutes configures all HTTP routes
func (r *Router) SetupRoutes() {
	r.engine.Use(middleware.Logger(r.log.Named("http")))
	r.engine.Use(middleware.Recovery(r.log))
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.Sentry())
	if r.metrics != nil {
		r.engine.Use(middleware.Metrics(r.metrics))
		r.engine.GET("/metrics", gin.WrapH(r.metrics.Handler()))
	}

	// With no proxies configured, forwarding headers are ignored and the
	// client IP is the socket peer.
	proxies := r.cfg.Server.TrustedProxies
	if len(proxies) == 0 {
		proxies = nil
	}
	if err := r.engine.SetTrustedProxies(proxies); err != nil {
		r.log.Warnw("invalid trusted proxies, ignoring forwarding headers", "error", err)
		_ = r.engine.SetTrustedProxies(nil)
	}

	r.engine.GET("/health", r.hdlrs.healthHandler.HealthCheck)
	r.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	routes.SetupWebhookRoutes(r.engine, &routes.WebhookRouteConfig{
		WebhookHandler: r.hdlrs.webhookHandler,
	})

	limits := r.cfg.RateLimit
	routes.SetupLicenseRoutes(r.engine, &routes.LicenseRouteConfig{
		LicenseHandler: r.hdlrs.licenseHandler,
		RateLimiter:    r.rateLimiter,
		Limits: routes.LicenseRouteLimits{
			VerifyPerIP:      limits.VerifyPerIP,
			ResendPerIP:      limits.ResendPerIP,
			ActivationsPerIP: limits.ActivationsPerIP,
		},
	})

	routes.SetupAdminRoutes(r.engine, &routes.AdminRouteConfig{
		AdminHandler: r.hdlrs.adminHandler,
		TokenHash:    r.cfg.Admin.TokenHash,
	})
}

// GetEngine returns the Gin engine
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
