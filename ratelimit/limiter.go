// Package ratelimit implements token bucket rate limiting per tenant, so a
// retry sweep cannot hammer a single tenant's endpoint.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter implements token bucket rate limiting keyed by tenant.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokens     float64
	lastFill   time.Time
	ratePerSec float64
}

// New creates a new rate limiter.
func New() *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
	}
}

// Allow checks whether a delivery to the tenant may proceed.
// A ratePerSec of 0 means unlimited (always returns true).
func (l *Limiter) Allow(tenantID string, ratePerSec int) bool {
	if ratePerSec <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.getOrCreateBucket(tenantID, float64(ratePerSec))
	b.refill()

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Wait blocks until the rate limit allows the delivery or the context is
// cancelled. A ratePerSec of 0 means unlimited (returns immediately).
func (l *Limiter) Wait(ctx context.Context, tenantID string, ratePerSec int) error {
	if ratePerSec <= 0 {
		return nil
	}

	for {
		if l.Allow(tenantID, ratePerSec) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(float64(time.Second) / float64(ratePerSec))):
			// Try again after estimated wait.
		}
	}
}

// Reset clears the rate limit state for a tenant.
func (l *Limiter) Reset(tenantID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, tenantID)
}

func (l *Limiter) getOrCreateBucket(tenantID string, ratePerSec float64) *bucket {
	b, ok := l.buckets[tenantID]
	if !ok {
		b = &bucket{
			tokens:     ratePerSec, // start full
			lastFill:   time.Now(),
			ratePerSec: ratePerSec,
		}
		l.buckets[tenantID] = b
	}
	return b
}

func (b *bucket) refill() {
	now := time.Now()
	elapsed := now.Sub(b.lastFill).Seconds()
	b.tokens += elapsed * b.ratePerSec
	if b.tokens > b.ratePerSec {
		b.tokens = b.ratePerSec // cap at burst size = rate limit
	}
	b.lastFill = now
}
