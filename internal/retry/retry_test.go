package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/amishk599/jobfeed/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastPolicy() Policy {
	return Policy{MaxAttempts: 3, InitialDelay: 10 * time.Millisecond, Multiplier: 2}
}

// mockAdapter calls a function on each invocation, tracking call count.
type mockAdapter struct {
	calls int
	fn    func(attempt int) ([]model.RawPosting, error)
}

func (m *mockAdapter) Name() string { return "mock" }

func (m *mockAdapter) Scrape(_ context.Context, _ model.ScrapeOptions) ([]model.RawPosting, error) {
	m.calls++
	return m.fn(m.calls)
}

func TestRetry_SucceedsOnFirstAttempt(t *testing.T) {
	postings := []model.RawPosting{{ExternalID: "1", Title: "Millwright"}}
	mock := &mockAdapter{fn: func(_ int) ([]model.RawPosting, error) {
		return postings, nil
	}}

	ra := NewRetryAdapter(mock, fastPolicy(), discardLogger())
	got, err := ra.Scrape(context.Background(), model.ScrapeOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ExternalID != "1" {
		t.Fatalf("unexpected postings: %v", got)
	}
	if mock.calls != 1 {
		t.Fatalf("expected 1 call, got %d", mock.calls)
	}
}

func TestRetry_RetriesOn5xx_SucceedsOnSecondAttempt(t *testing.T) {
	mock := &mockAdapter{fn: func(attempt int) ([]model.RawPosting, error) {
		if attempt == 1 {
			return nil, &model.HTTPError{StatusCode: 503, Err: errors.New("service unavailable")}
		}
		return []model.RawPosting{{ExternalID: "1"}}, nil
	}}

	ra := NewRetryAdapter(mock, fastPolicy(), discardLogger())
	got, err := ra.Scrape(context.Background(), model.ScrapeOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 posting, got %d", len(got))
	}
	if mock.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", mock.calls)
	}
}

func TestRetry_DoesNotRetryOn4xx(t *testing.T) {
	mock := &mockAdapter{fn: func(_ int) ([]model.RawPosting, error) {
		return nil, &model.HTTPError{StatusCode: 404, Err: errors.New("not found")}
	}}

	ra := NewRetryAdapter(mock, fastPolicy(), discardLogger())
	_, err := ra.Scrape(context.Background(), model.ScrapeOptions{})
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != 404 {
		t.Fatalf("expected HTTPError with status 404, got %v", err)
	}
	if mock.calls != 1 {
		t.Fatalf("expected 1 call (no retry), got %d", mock.calls)
	}
}

func TestRetry_GivesUpAtAttemptCeiling(t *testing.T) {
	mock := &mockAdapter{fn: func(_ int) ([]model.RawPosting, error) {
		return nil, &model.HTTPError{StatusCode: 500, Err: errors.New("internal error")}
	}}

	ra := NewRetryAdapter(mock, fastPolicy(), discardLogger())
	if _, err := ra.Scrape(context.Background(), model.ScrapeOptions{}); err == nil {
		t.Fatal("expected error after attempt ceiling, got nil")
	}
	if mock.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", mock.calls)
	}
}

func TestRetry_RespectsContextCancellation(t *testing.T) {
	mock := &mockAdapter{fn: func(_ int) ([]model.RawPosting, error) {
		return nil, &model.HTTPError{StatusCode: 500, Err: errors.New("internal error")}
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ra := NewRetryAdapter(mock, Policy{MaxAttempts: 3, InitialDelay: time.Second, Multiplier: 2}, discardLogger())
	_, err := ra.Scrape(ctx, model.ScrapeOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if mock.calls != 1 {
		t.Fatalf("expected 1 call before cancellation, got %d", mock.calls)
	}
}

func TestPolicy_DelayIsExponential(t *testing.T) {
	p := Policy{MaxAttempts: 5, InitialDelay: time.Second, Multiplier: 2}
	transient := errors.New("connection reset")

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	for i, w := range want {
		if got := p.Delay(i+1, transient); got != w {
			t.Errorf("Delay(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestPolicy_DelayHonoursRetryAfter(t *testing.T) {
	p := DefaultPolicy()
	err := &model.HTTPError{StatusCode: 429, RetryAfter: 7 * time.Second}
	if got := p.Delay(1, err); got != 7*time.Second {
		t.Errorf("Delay = %v, want Retry-After of 7s", got)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"429", &model.HTTPError{StatusCode: 429}, true},
		{"502", &model.HTTPError{StatusCode: 502}, true},
		{"403", &model.HTTPError{StatusCode: 403}, false},
		{"network", errors.New("dial tcp: i/o timeout"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryable(tt.err); got != tt.want {
				t.Errorf("isRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
