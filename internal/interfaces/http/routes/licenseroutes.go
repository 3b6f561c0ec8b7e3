package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/flaco-inc/flaco/internal/interfaces/http/handlers"
	"github.com/flaco-inc/flaco/internal/interfaces/http/middleware"
)

// LicenseRouteLimits are the per-IP budgets of the public license endpoints.
type LicenseRouteLimits struct {
	VerifyPerIP      int
	ResendPerIP      int
	ActivationsPerIP int
}

type LicenseRouteConfig struct {
	LicenseHandler *handlers.LicenseHandler
	RateLimiter    *middleware.RateLimiter
	Limits         LicenseRouteLimits
}

func SetupLicenseRoutes(engine *gin.Engine, config *LicenseRouteConfig) {
	rl := config.RateLimiter

	license := engine.Group("/api/license")
	{
		license.POST("/verify",
			rl.PerIP("verify:ip", config.Limits.VerifyPerIP, handlers.VerifyRateLimited),
			config.LicenseHandler.Verify)
		license.POST("/resend",
			rl.PerIP("resend:ip", config.Limits.ResendPerIP, nil),
			config.LicenseHandler.Resend)

		activations := license.Group("/activations")
		activations.Use(rl.PerIP("activations:ip", config.Limits.ActivationsPerIP, nil))
		{
			activations.POST("", config.LicenseHandler.ListActivations)
			activations.POST("/reset", config.LicenseHandler.ResetActivations)
		}
	}
}
