package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/amishk599/jobfeed/internal/model"
)

// SchedulerStore is the queue, lookup and audit access the scheduler needs.
type SchedulerStore interface {
	ListDueQueueEntries(ctx context.Context, now time.Time, limit int) ([]model.QueueEntry, error)
	MarkQueueProcessed(ctx context.Context, ids []string, at time.Time) (int64, error)
	GetSubscriptions(ctx context.Context, ids []string) ([]model.Subscription, error)
	GetJobs(ctx context.Context, ids []string) ([]model.CanonicalJob, error)
	SetLastNotified(ctx context.Context, id string, at time.Time) error

	InsertDelivery(ctx context.Context, d *model.Delivery) error
	UpdateDeliveryStatus(ctx context.Context, d *model.Delivery) error

	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	DeleteDeliveriesBefore(ctx context.Context, before time.Time) (int64, error)
	DeleteUnverifiedBefore(ctx context.Context, before time.Time) (int64, error)
	DeleteInactiveBefore(ctx context.Context, before time.Time) (int64, error)
}

// CadenceScanner produces digest batches.
type CadenceScanner interface {
	ScanForCadence(ctx context.Context, cadence model.Cadence) ([]model.Batch, error)
}

// SchedulerConfig tunes batch size and cleanup retention.
type SchedulerConfig struct {
	BatchSize           int
	ProcessedRetention  time.Duration
	DeliveryRetention   time.Duration
	UnverifiedRetention time.Duration
	InactiveRetention   time.Duration
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		BatchSize:           100,
		ProcessedRetention:  7 * 24 * time.Hour,
		DeliveryRetention:   90 * 24 * time.Hour,
		UnverifiedRetention: 30 * 24 * time.Hour,
		InactiveRetention:   180 * 24 * time.Hour,
	}
}

// Report summarizes one scheduler pass.
type Report struct {
	Entries int // queue entries consumed
	Dropped int // entries whose subscription or job was gone
	Batches int
	Sent    int
	Failed  int
}

// Scheduler drains the immediate queue and sends digest batches. Every send
// is recorded as a delivery: pending before the attempt, then sent or failed.
// Failed deliveries are not retried.
type Scheduler struct {
	store    SchedulerStore
	scanner  CadenceScanner
	renderer *Renderer
	sender   model.DeliveryService
	cfg      SchedulerConfig
	logger   *slog.Logger
	now      func() time.Time
	stopped  atomic.Bool
}

func NewScheduler(
	store SchedulerStore,
	scanner CadenceScanner,
	renderer *Renderer,
	sender model.DeliveryService,
	cfg SchedulerConfig,
	logger *slog.Logger,
) *Scheduler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultSchedulerConfig().BatchSize
	}
	return &Scheduler{
		store:    store,
		scanner:  scanner,
		renderer: renderer,
		sender:   sender,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock replaces the scheduler's time source.
func (s *Scheduler) SetClock(now func() time.Time) { s.now = now }

// Stop makes subsequent runs return model.ErrStopped. A run already in
// progress completes.
func (s *Scheduler) Stop() { s.stopped.Store(true) }

// ProcessImmediate sends every due queue entry, at most BatchSize per call,
// grouped into one batch per (subscription, channel). Entries are marked
// processed as soon as the batches exist, so a failed send is not requeued.
func (s *Scheduler) ProcessImmediate(ctx context.Context) (Report, error) {
	var report Report
	if s.stopped.Load() {
		return report, model.ErrStopped
	}

	now := s.now().UTC()
	entries, err := s.store.ListDueQueueEntries(ctx, now, s.cfg.BatchSize)
	if err != nil {
		return report, err
	}
	if len(entries) == 0 {
		return report, nil
	}

	subIDs, jobIDs := make([]string, 0, len(entries)), make([]string, 0, len(entries))
	for _, e := range entries {
		subIDs = append(subIDs, e.SubscriptionID)
		jobIDs = append(jobIDs, e.JobID)
	}
	subs, err := s.store.GetSubscriptions(ctx, unique(subIDs))
	if err != nil {
		return report, err
	}
	jobs, err := s.store.GetJobs(ctx, unique(jobIDs))
	if err != nil {
		return report, err
	}

	batches, dropped := GroupEntries(entries, subs, jobs)

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	if _, err := s.store.MarkQueueProcessed(ctx, ids, now); err != nil {
		return report, fmt.Errorf("marking queue processed: %w", err)
	}
	report.Entries = len(entries)
	report.Dropped = dropped
	report.Batches = len(batches)

	for _, b := range batches {
		if err := s.deliver(ctx, b); err != nil {
			report.Failed++
			continue
		}
		report.Sent++
	}

	s.logger.Info("immediate queue processed",
		"entries", report.Entries, "dropped", report.Dropped,
		"batches", report.Batches, "sent", report.Sent, "failed", report.Failed)
	return report, nil
}

// GroupEntries groups queue entries into one immediate batch per
// (subscription, channel) pair, in order of first appearance. Entries whose
// subscription is missing, inactive or unverified, or whose job is gone, are
// counted as dropped.
func GroupEntries(entries []model.QueueEntry, subs []model.Subscription, jobs []model.CanonicalJob) ([]model.Batch, int) {
	subByID := make(map[string]model.Subscription, len(subs))
	for _, sub := range subs {
		subByID[sub.ID] = sub
	}
	jobByID := make(map[string]model.CanonicalJob, len(jobs))
	for _, j := range jobs {
		jobByID[j.ID] = j
	}

	type key struct {
		sub string
		ch  model.Channel
	}
	index := make(map[key]int)
	var (
		batches []model.Batch
		dropped int
	)
	for _, e := range entries {
		sub, ok := subByID[e.SubscriptionID]
		if !ok || !sub.Active || !sub.Verified {
			dropped++
			continue
		}
		job, ok := jobByID[e.JobID]
		if !ok {
			dropped++
			continue
		}
		for _, ch := range sub.Channels {
			if sub.Recipient(ch) == "" {
				continue
			}
			k := key{sub: sub.ID, ch: ch}
			i, ok := index[k]
			if !ok {
				i = len(batches)
				index[k] = i
				batches = append(batches, model.Batch{
					Subscription: sub,
					Channel:      ch,
					Template:     model.CadenceImmediate,
				})
			}
			batches[i].Jobs = append(batches[i].Jobs, job)
			batches[i].QueueEntryIDs = append(batches[i].QueueEntryIDs, e.ID)
		}
	}
	return batches, dropped
}

// ProcessCadence sends daily or weekly digests. A subscription's
// last_notified timestamp advances only when at least one of its batches
// was sent.
func (s *Scheduler) ProcessCadence(ctx context.Context, cadence model.Cadence) (Report, error) {
	var report Report
	if s.stopped.Load() {
		return report, model.ErrStopped
	}

	// last_notified records the window end, not the time sending finished.
	scanAt := s.now().UTC()
	batches, err := s.scanner.ScanForCadence(ctx, cadence)
	if err != nil {
		return report, err
	}
	report.Batches = len(batches)

	sent := make(map[string]bool)
	for _, b := range batches {
		if err := s.deliver(ctx, b); err != nil {
			report.Failed++
			continue
		}
		report.Sent++
		sent[b.Subscription.ID] = true
	}

	for id := range sent {
		if err := s.store.SetLastNotified(ctx, id, scanAt); err != nil {
			s.logger.Error("failed to advance last_notified", "subscription_id", id, "error", err)
		}
	}

	s.logger.Info("cadence processed", "cadence", cadence,
		"batches", report.Batches, "sent", report.Sent, "failed", report.Failed)
	return report, nil
}

func (s *Scheduler) deliver(ctx context.Context, b model.Batch) error {
	msg, err := s.renderer.Render(b)
	if err != nil {
		s.logger.Error("render failed", "subscription_id", b.Subscription.ID, "channel", b.Channel, "error", err)
		return err
	}

	d := &model.Delivery{
		ID:             uuid.NewString(),
		SubscriptionID: b.Subscription.ID,
		JobIDs:         b.JobIDs(),
		Channel:        b.Channel,
		Recipient:      msg.Recipient,
		Subject:        msg.Subject,
		Content:        msg.Text,
		Status:         model.DeliveryPending,
		CreatedAt:      s.now().UTC(),
	}
	if msg.HTML != "" {
		d.Content = msg.HTML
	}
	msg.ID = d.ID

	if err := s.store.InsertDelivery(ctx, d); err != nil {
		s.logger.Error("failed to record delivery", "subscription_id", b.Subscription.ID, "error", err)
		return err
	}

	ref, sendErr := s.sender.Send(ctx, msg)
	if sendErr != nil {
		d.Status = model.DeliveryFailed
		d.Error = sendErr.Error()
	} else {
		sentAt := s.now().UTC()
		d.Status = model.DeliverySent
		d.ProviderRef = ref
		d.SentAt = &sentAt
	}
	if err := s.store.UpdateDeliveryStatus(ctx, d); err != nil {
		s.logger.Error("failed to update delivery", "delivery_id", d.ID, "status", d.Status, "error", err)
	}

	if sendErr != nil {
		s.logger.Error("delivery failed", "delivery_id", d.ID, "subscription_id", b.Subscription.ID,
			"channel", b.Channel, "jobs", len(b.Jobs), "error", sendErr)
		return sendErr
	}
	s.logger.Info("delivery sent", "delivery_id", d.ID, "subscription_id", b.Subscription.ID,
		"channel", b.Channel, "jobs", len(b.Jobs), "provider_ref", ref)
	return nil
}

// CleanupReport counts the rows removed by Cleanup.
type CleanupReport struct {
	QueueEntries int64
	Deliveries   int64
	Unverified   int64
	Unsubscribed int64
}

// Cleanup removes processed queue entries, old delivery records, never
// verified subscriptions and long-inactive subscriptions.
func (s *Scheduler) Cleanup(ctx context.Context) (CleanupReport, error) {
	now := s.now().UTC()
	var (
		r   CleanupReport
		err error
	)
	if r.QueueEntries, err = s.store.DeleteProcessedBefore(ctx, now.Add(-s.cfg.ProcessedRetention)); err != nil {
		return r, err
	}
	if r.Deliveries, err = s.store.DeleteDeliveriesBefore(ctx, now.Add(-s.cfg.DeliveryRetention)); err != nil {
		return r, err
	}
	if r.Unverified, err = s.store.DeleteUnverifiedBefore(ctx, now.Add(-s.cfg.UnverifiedRetention)); err != nil {
		return r, err
	}
	if r.Unsubscribed, err = s.store.DeleteInactiveBefore(ctx, now.Add(-s.cfg.InactiveRetention)); err != nil {
		return r, err
	}
	s.logger.Info("notification cleanup complete",
		"queue_entries", r.QueueEntries, "deliveries", r.Deliveries,
		"unverified", r.Unverified, "unsubscribed", r.Unsubscribed)
	return r, nil
}

func unique(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
