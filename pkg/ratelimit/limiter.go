package ratelimit

import (
	"context"
	"math"
	"time"

	"golang.org/x/time/rate"

	"relay/pkg/metrics"
)

// Limiter caps outbound transport calls. A nil *Limiter never blocks.
type Limiter struct {
	limiter *rate.Limiter
}

// New returns a limiter allowing perSecond calls with a burst of one. A
// non-positive rate disables limiting and yields nil.
func New(perSecond float64) *Limiter {
	if perSecond <= 0 {
		return nil
	}
	burst := int(math.Ceil(perSecond))
	if burst < 1 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until a send is permitted or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	start := time.Now()
	err := l.limiter.Wait(ctx)
	metrics.ObserveSendLimitWait(time.Since(start))
	return err
}

func (l *Limiter) Limit() float64 {
	if l == nil {
		return math.Inf(1)
	}
	return float64(l.limiter.Limit())
}
