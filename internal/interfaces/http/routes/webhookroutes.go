package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/flaco-inc/flaco/internal/interfaces/http/handlers"
)

type WebhookRouteConfig struct {
	WebhookHandler *handlers.WebhookHandler
}

// SetupWebhookRoutes registers provider callbacks. They authenticate by
// signature, so no rate limit or auth middleware applies.
func SetupWebhookRoutes(engine *gin.Engine, config *WebhookRouteConfig) {
	webhooks := engine.Group("/api/webhooks")
	{
		webhooks.POST("/stripe", config.WebhookHandler.HandleStripe)
	}
}
