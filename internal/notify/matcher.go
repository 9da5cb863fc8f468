// Package notify matches jobs to subscriptions, queues immediate alerts,
// builds digest batches and delivers them with an audit trail.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/amishk599/jobfeed/internal/filter"
	"github.com/amishk599/jobfeed/internal/model"
)

// ImmediatePriority is the priority of every queued immediate alert.
const ImmediatePriority = 1

// MatcherStore is the data the matcher reads and the queue it writes.
type MatcherStore interface {
	ListDeliverable(ctx context.Context, cadence model.Cadence) ([]model.Subscription, error)
	ListActiveSince(ctx context.Context, since time.Time) ([]model.CanonicalJob, error)
	EnqueueNotification(ctx context.Context, e *model.QueueEntry) (bool, error)
}

// Matcher evaluates jobs against active, verified subscriptions.
type Matcher struct {
	store  MatcherStore
	logger *slog.Logger
	now    func() time.Time
}

func NewMatcher(store MatcherStore, logger *slog.Logger) *Matcher {
	return &Matcher{store: store, logger: logger, now: time.Now}
}

// SetClock replaces the matcher's time source.
func (m *Matcher) SetClock(now func() time.Time) { m.now = now }

// Match returns the ids of all deliverable subscriptions, of any cadence,
// whose filters accept job.
func (m *Matcher) Match(ctx context.Context, job model.CanonicalJob) ([]string, error) {
	subs, err := m.store.ListDeliverable(ctx, "")
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, sub := range subs {
		if _, ok := filter.Match(sub.Filters, job); ok {
			ids = append(ids, sub.ID)
		}
	}
	return ids, nil
}

// QueueImmediate enqueues job for every matching immediate-cadence
// subscription and returns how many entries were created. Digest
// subscriptions are picked up later by ScanForCadence.
func (m *Matcher) QueueImmediate(ctx context.Context, job model.CanonicalJob) (int, error) {
	subs, err := m.store.ListDeliverable(ctx, model.CadenceImmediate)
	if err != nil {
		return 0, err
	}

	now := m.now().UTC()
	queued := 0
	for _, sub := range subs {
		categories, ok := filter.Match(sub.Filters, job)
		if !ok {
			continue
		}
		entry := &model.QueueEntry{
			ID:                uuid.NewString(),
			JobID:             job.ID,
			SubscriptionID:    sub.ID,
			Priority:          ImmediatePriority,
			ScheduledFor:      now,
			MatchedCategories: categories,
			CreatedAt:         now,
		}
		created, err := m.store.EnqueueNotification(ctx, entry)
		if err != nil {
			return queued, err
		}
		if created {
			queued++
		}
	}
	if queued > 0 {
		m.logger.Debug("queued immediate notifications", "job_id", job.ID, "title", job.Title, "subscriptions", queued)
	}
	return queued, nil
}

// ScanForCadence builds digest batches for daily or weekly subscribers. A
// subscription is due when it was never notified or last notified before the
// start of the cadence window (less a small slack); its batch holds every matching active job
// posted in the window, newest first, once per declared channel.
func (m *Matcher) ScanForCadence(ctx context.Context, cadence model.Cadence) ([]model.Batch, error) {
	window := cadence.Window()
	if window == 0 {
		return nil, fmt.Errorf("cadence %q has no digest window", cadence)
	}
	since := m.now().UTC().Add(-window)

	subs, err := m.store.ListDeliverable(ctx, cadence)
	if err != nil {
		return nil, err
	}
	// A fixed-time trigger fires a little after the previous run's stamp;
	// allow a slack of window/24 so such a subscriber is not skipped.
	dueBefore := since.Add(window / 24)
	var due []model.Subscription
	for _, sub := range subs {
		if sub.LastNotifiedAt == nil || sub.LastNotifiedAt.Before(dueBefore) {
			due = append(due, sub)
		}
	}
	if len(due) == 0 {
		return nil, nil
	}

	jobs, err := m.store.ListActiveSince(ctx, since)
	if err != nil {
		return nil, err
	}

	var batches []model.Batch
	for _, sub := range due {
		var matched []model.CanonicalJob
		for _, j := range jobs {
			if _, ok := filter.Match(sub.Filters, j); ok {
				matched = append(matched, j)
			}
		}
		if len(matched) == 0 {
			continue
		}
		for _, ch := range sub.Channels {
			if sub.Recipient(ch) == "" {
				m.logger.Warn("subscription has no address for channel", "subscription_id", sub.ID, "channel", ch)
				continue
			}
			batches = append(batches, model.Batch{
				Subscription: sub,
				Channel:      ch,
				Template:     cadence,
				Jobs:         matched,
			})
		}
	}

	m.logger.Info("cadence scan complete", "cadence", cadence, "due_subscriptions", len(due),
		"jobs_in_window", len(jobs), "batches", len(batches))
	return batches, nil
}
