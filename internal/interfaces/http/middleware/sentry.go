package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
)

// Sentry attaches a request-scoped hub and reports panics and handler
// errors on 5xx responses. Panics are re-raised for Recovery.
func Sentry() gin.HandlerFunc {
	return func(c *gin.Context) {
		hub := sentry.CurrentHub().Clone()
		hub.Scope().SetRequest(c.Request)
		if requestID, ok := c.Get(RequestIDKey); ok {
			hub.Scope().SetTag(RequestIDKey, fmt.Sprint(requestID))
		}
		ctx := sentry.SetHubOnContext(c.Request.Context(), hub)
		c.Request = c.Request.WithContext(ctx)

		defer func() {
			if r := recover(); r != nil {
				hub.RecoverWithContext(ctx, r)
				hub.Flush(2 * time.Second)
				panic(r)
			}
		}()

		c.Next()

		if c.Writer.Status() >= http.StatusInternalServerError {
			for _, ginErr := range c.Errors {
				hub.CaptureException(ginErr.Err)
			}
		}
	}
}
