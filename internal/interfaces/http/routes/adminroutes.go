package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/flaco-inc/flaco/internal/interfaces/http/handlers"
	"github.com/flaco-inc/flaco/internal/interfaces/http/middleware"
)

type AdminRouteConfig struct {
	AdminHandler *handlers.AdminLicenseHandler
	// TokenHash is the bcrypt hash of the admin bearer token. Empty disables
	// the admin API.
	TokenHash string
}

func SetupAdminRoutes(engine *gin.Engine, config *AdminRouteConfig) {
	admin := engine.Group("/api/admin")
	admin.Use(middleware.AdminAuth(config.TokenHash))
	{
		// Specific action endpoints before the bare lookup.
		admin.PUT("/licenses/:subscription_id/email", config.AdminHandler.ChangeEmail)
		admin.GET("/licenses/:subscription_id", config.AdminHandler.GetLicense)
	}
}
