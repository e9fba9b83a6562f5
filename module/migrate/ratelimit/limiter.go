// Package ratelimit gates outbound calls to the source registry behind a
// shared token bucket so the pipeline never exceeds the API's request ceiling
// regardless of worker count.
package ratelimit

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket shared by every goroutine that talks to the
// source registry. Waiters are served in FIFO order by the underlying
// reservation queue, so no worker starves.
type Limiter struct {
	bucket *rate.Limiter
}

// New creates a limiter refilling continuously at perSecond with the given
// burst capacity. Burst is clamped to at least one token.
func New(perSecond float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{bucket: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Acquire blocks until a token is available or ctx is cancelled. It has no
// other failure mode.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.bucket.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

// Allow reports whether a token is available right now without waiting.
func (l *Limiter) Allow() bool {
	return l.bucket.Allow()
}

// Rate returns the configured steady-state rate in requests per second.
func (l *Limiter) Rate() float64 {
	return float64(l.bucket.Limit())
}
