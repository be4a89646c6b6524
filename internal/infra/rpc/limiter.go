package rpc

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter caps the request rate to one endpoint. A nil Limiter never blocks.
type Limiter struct {
	l *rate.Limiter
}

// NewLimiter allows rps requests per second. rps <= 0 disables limiting.
func NewLimiter(rps float64) *Limiter {
	if rps <= 0 {
		return nil
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &Limiter{l: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until a request may be sent or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.l.Wait(ctx)
}
