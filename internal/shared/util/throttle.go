// # internal/shared/util/throttle.go
package util

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Watch-mode rebuild policy: sustained file churn is capped at two
// passes per second, with enough burst to absorb an editor save-all
// without dropping the follow-up build.
const (
	rebuildsPerSecond = 2
	rebuildBurst      = 3
)

// RebuildThrottle caps how often watch mode may rebuild the bundle.
type RebuildThrottle struct {
	inner *rate.Limiter
}

func NewRebuildThrottle() *RebuildThrottle {
	return &RebuildThrottle{
		inner: rate.NewLimiter(rate.Limit(rebuildsPerSecond), rebuildBurst),
	}
}

// Allow reports whether a rebuild may start now.
func (t *RebuildThrottle) Allow() bool {
	return t.inner.AllowN(time.Now(), 1)
}

// Wait blocks until the next rebuild slot opens.
func (t *RebuildThrottle) Wait(ctx context.Context) error {
	return t.inner.WaitN(ctx, 1)
}
