package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amishk599/jobfeed/internal/model"
)

// RenderKey is the limiter key shared by every request through the rendering service.
const RenderKey = "render"

// Limiter enforces a minimum delay between consecutive calls sharing a key.
// Each caller reserves the next free slot under the lock and then sleeps
// until it, so concurrent callers are released in arrival order.
type Limiter struct {
	mu        sync.Mutex
	nextSlot  map[string]time.Time
	minDelay  time.Duration
	overrides map[string]time.Duration
}

// NewLimiter creates a limiter with minDelay between calls on the same key.
// overrides may set a different delay for individual keys.
func NewLimiter(minDelay time.Duration, overrides map[string]time.Duration) *Limiter {
	return &Limiter{
		nextSlot:  make(map[string]time.Time),
		minDelay:  minDelay,
		overrides: overrides,
	}
}

// DelayFor returns the configured delay for key.
func (l *Limiter) DelayFor(key string) time.Duration {
	if d, ok := l.overrides[key]; ok {
		return d
	}
	return l.minDelay
}

// Wait blocks until the caller's reserved slot for key arrives.
// A cancelled caller gives up its slot; later callers keep their reservations.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	l.mu.Lock()
	now := time.Now()
	slot := now
	if next, ok := l.nextSlot[key]; ok && next.After(now) {
		slot = next
	}
	l.nextSlot[key] = slot.Add(l.DelayFor(key))
	l.mu.Unlock()

	remaining := time.Until(slot)
	if remaining <= 0 {
		return nil
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("rate limiter wait for %s: %w", key, ctx.Err())
	case <-timer.C:
		return nil
	}
}

// RateLimitedAdapter paces calls to a source adapter through a shared limiter key.
type RateLimitedAdapter struct {
	inner   model.SourceAdapter
	limiter *Limiter
	key     string
}

// NewRateLimitedAdapter wraps inner. Adapters hitting the same backend should
// share both the limiter and the key.
func NewRateLimitedAdapter(inner model.SourceAdapter, limiter *Limiter, key string) *RateLimitedAdapter {
	return &RateLimitedAdapter{
		inner:   inner,
		limiter: limiter,
		key:     key,
	}
}

func (a *RateLimitedAdapter) Name() string { return a.inner.Name() }

// Scrape waits for the limiter, then delegates to the wrapped adapter.
func (a *RateLimitedAdapter) Scrape(ctx context.Context, opts model.ScrapeOptions) ([]model.RawPosting, error) {
	if err := a.limiter.Wait(ctx, a.key); err != nil {
		return nil, err
	}
	return a.inner.Scrape(ctx, opts)
}
