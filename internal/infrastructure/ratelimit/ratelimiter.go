// Package ratelimit provides fixed-window request limiters. The database
// backend keeps counters in the license store; the redis backend shares
// them across instances without touching the database.
package ratelimit

import (
	"context"
	"time"

	"github.com/flaco-inc/flaco/internal/domain/license"
)

// Limiter counts one request against key and reports whether it is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// StoreLimiter delegates to the store's AllowRequest.
type StoreLimiter struct {
	store license.RequestLimiter
}

func NewStoreLimiter(store license.RequestLimiter) *StoreLimiter {
	return &StoreLimiter{store: store}
}

func (l *StoreLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return l.store.AllowRequest(ctx, key, limit, window)
}
