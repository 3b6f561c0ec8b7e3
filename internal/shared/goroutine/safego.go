// Package goroutine runs background work that must not take the process down.
package goroutine

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/flaco-inc/flaco/internal/shared/logger"
)

// SafeGo launches fn in a goroutine. A panic is logged with its stack
// instead of crashing the process.
func SafeGo(log logger.Interface, name string, fn func()) {
	go func() {
		defer recoverAndLog(log, name)
		fn()
	}()
}

// Every runs fn on each tick of interval until ctx is done. A panicking run
// is logged and the loop continues with the next tick.
func Every(ctx context.Context, log logger.Interface, name string, interval time.Duration, fn func(ctx context.Context)) {
	SafeGo(log, name, func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runOnce(ctx, log, name, fn)
			}
		}
	})
}

func runOnce(ctx context.Context, log logger.Interface, name string, fn func(ctx context.Context)) {
	defer recoverAndLog(log, name)
	fn(ctx)
}

func recoverAndLog(log logger.Interface, name string) {
	if r := recover(); r != nil {
		log.Errorw("goroutine panicked",
			"goroutine", name,
			"panic", fmt.Sprintf("%v", r),
			"stack", string(debug.Stack()),
		)
	}
}
