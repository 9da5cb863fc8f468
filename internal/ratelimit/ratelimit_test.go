package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/amishk599/jobfeed/internal/model"
)

func TestWait_SameKey_EnforcesMinDelay(t *testing.T) {
	limiter := NewLimiter(100*time.Millisecond, nil)
	ctx := context.Background()

	// First call should return immediately.
	if err := limiter.Wait(ctx, RenderKey); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	start := time.Now()
	if err := limiter.Wait(ctx, RenderKey); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	elapsed := time.Since(start)

	// Allow some timer slack below the configured 100ms.
	if elapsed < 80*time.Millisecond {
		t.Errorf("expected >= 80ms wait, got %v", elapsed)
	}
}

func TestWait_DifferentKeys_NoCrossBlocking(t *testing.T) {
	limiter := NewLimiter(200*time.Millisecond, nil)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "greenhouse"); err != nil {
		t.Fatalf("greenhouse wait: %v", err)
	}

	start := time.Now()
	if err := limiter.Wait(ctx, "lever"); err != nil {
		t.Fatalf("lever wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("expected lever wait to be near-instant, got %v", elapsed)
	}
}

func TestWait_Override(t *testing.T) {
	limiter := NewLimiter(5*time.Second, map[string]time.Duration{"lever": 10 * time.Millisecond})
	if got := limiter.DelayFor("lever"); got != 10*time.Millisecond {
		t.Errorf("DelayFor(lever) = %v, want 10ms", got)
	}
	if got := limiter.DelayFor("greenhouse"); got != 5*time.Second {
		t.Errorf("DelayFor(greenhouse) = %v, want 5s", got)
	}

	ctx := context.Background()
	limiter.Wait(ctx, "lever")
	start := time.Now()
	limiter.Wait(ctx, "lever")
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("override not applied, waited %v", elapsed)
	}
}

func TestWait_ContextCancellation(t *testing.T) {
	limiter := NewLimiter(5*time.Second, nil)

	if err := limiter.Wait(context.Background(), RenderKey); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := limiter.Wait(ctx, RenderKey); err == nil {
		t.Fatal("expected error from cancelled context, got nil")
	}
}

func TestWait_ConcurrentCallersKeepGap(t *testing.T) {
	const delay = 40 * time.Millisecond
	limiter := NewLimiter(delay, nil)
	ctx := context.Background()

	var (
		mu       sync.Mutex
		releases []time.Time
		wg       sync.WaitGroup
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := limiter.Wait(ctx, RenderKey); err != nil {
				t.Errorf("wait: %v", err)
				return
			}
			mu.Lock()
			releases = append(releases, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(releases) != 4 {
		t.Fatalf("expected 4 releases, got %d", len(releases))
	}
	first, last := releases[0], releases[0]
	for _, r := range releases {
		if r.Before(first) {
			first = r
		}
		if r.After(last) {
			last = r
		}
	}
	// Four callers need at least three full gaps between them.
	if span := last.Sub(first); span < 3*delay-15*time.Millisecond {
		t.Errorf("releases spanned %v, want >= ~%v", span, 3*delay)
	}
}

func TestWait_ReleasesInArrivalOrder(t *testing.T) {
	limiter := NewLimiter(30*time.Millisecond, nil)
	ctx := context.Background()

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			limiter.Wait(ctx, RenderKey)
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
		}(i)
		// Stagger arrivals so reservation order is deterministic.
		time.Sleep(5 * time.Millisecond)
	}
	wg.Wait()

	for i, n := range order {
		if n != i {
			t.Fatalf("release order = %v, want [0 1 2]", order)
		}
	}
}

type recordingAdapter struct {
	called bool
}

func (a *recordingAdapter) Name() string { return "recording" }

func (a *recordingAdapter) Scrape(_ context.Context, _ model.ScrapeOptions) ([]model.RawPosting, error) {
	a.called = true
	return nil, nil
}

func TestRateLimitedAdapter_WaitsBeforeDelegating(t *testing.T) {
	limiter := NewLimiter(100*time.Millisecond, nil)
	inner := &recordingAdapter{}
	a := NewRateLimitedAdapter(inner, limiter, "greenhouse")
	ctx := context.Background()

	if a.Name() != "recording" {
		t.Errorf("Name() = %q, want inner name", a.Name())
	}

	if _, err := a.Scrape(ctx, model.ScrapeOptions{}); err != nil {
		t.Fatalf("first scrape: %v", err)
	}
	if !inner.called {
		t.Fatal("inner adapter was not called on first scrape")
	}
	inner.called = false

	start := time.Now()
	if _, err := a.Scrape(ctx, model.ScrapeOptions{}); err != nil {
		t.Fatalf("second scrape: %v", err)
	}
	if !inner.called {
		t.Fatal("inner adapter was not called on second scrape")
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("expected >= 80ms wait on second scrape, got %v", elapsed)
	}
}
