package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/flaco-inc/flaco/internal/infrastructure/metrics"
	"github.com/flaco-inc/flaco/internal/infrastructure/ratelimit"
	"github.com/flaco-inc/flaco/internal/shared/logger"
	"github.com/flaco-inc/flaco/internal/shared/utils"
)

// RateLimiter applies fixed-window budgets keyed by "<scope>:<subject>".
// A limiter backend failure lets the request through.
type RateLimiter struct {
	limiter  ratelimit.Limiter
	window   time.Duration
	recorder metrics.Recorder
	logger   logger.Interface
}

func NewRateLimiter(limiter ratelimit.Limiter, window time.Duration, recorder metrics.Recorder, log logger.Interface) *RateLimiter {
	if recorder == nil {
		recorder = metrics.Nop
	}
	return &RateLimiter{
		limiter:  limiter,
		window:   window,
		recorder: recorder,
		logger:   log,
	}
}

// Allow counts one request for subject under scope. A limit of zero or
// less disables the check.
func (rl *RateLimiter) Allow(c *gin.Context, scope, subject string, limit int) bool {
	if limit <= 0 || subject == "" {
		return true
	}

	allowed, err := rl.limiter.Allow(c.Request.Context(), scope+":"+subject, limit, rl.window)
	if err != nil {
		rl.logger.Warnw("rate limiter unavailable, allowing request", "scope", scope, "error", err)
		return true
	}
	if !allowed {
		rl.recorder.RateLimited(scope)
	}
	return allowed
}

// PerIP limits by client IP. reject writes the response when the budget is
// spent; nil uses the standard error envelope.
func (rl *RateLimiter) PerIP(scope string, limit int, reject gin.HandlerFunc) gin.HandlerFunc {
	if reject == nil {
		reject = func(c *gin.Context) {
			utils.ErrorResponse(c, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
		}
	}
	return func(c *gin.Context) {
		if !rl.Allow(c, scope, c.ClientIP(), limit) {
			reject(c)
			c.Abort()
			return
		}
		c.Next()
	}
}
