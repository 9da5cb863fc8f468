// Package orchestrator sequences scrape runs across the configured sources
// and feeds what they produce into deduplication, persistence and the
// immediate-notification queue.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/amishk599/jobfeed/internal/model"
	"github.com/amishk599/jobfeed/internal/persist"
	"github.com/amishk599/jobfeed/internal/ratelimit"
	"github.com/amishk599/jobfeed/internal/retry"
)

// SelectAll runs every registered source.
const SelectAll = "all"

// ErrUnknownSource is returned for a selector that names no registered source.
var ErrUnknownSource = errors.New("unknown source")

// RunStore records the audit trail of each source run.
type RunStore interface {
	StartRun(ctx context.Context, r *model.ScrapeRun) error
	FinishRun(ctx context.Context, r *model.ScrapeRun) error
}

// Notifier queues immediate notifications for a newly inserted job.
type Notifier interface {
	QueueImmediate(ctx context.Context, job model.CanonicalJob) (int, error)
}

// RateKeyer is implemented by adapters that share a pacing key with other
// adapters (every Greenhouse board uses "greenhouse"). Others are paced by name.
type RateKeyer interface {
	RateKey() string
}

type Config struct {
	Retry         retry.Policy
	Limiter       *ratelimit.Limiter // nil disables pacing between adapter calls
	Defaults      model.ScrapeOptions
	SourceTimeout time.Duration // zero means no per-source deadline
}

func DefaultConfig() Config {
	return Config{
		Retry:         retry.DefaultPolicy(),
		Limiter:       ratelimit.NewLimiter(2*time.Second, nil),
		Defaults:      model.ScrapeOptions{MaxPages: 3},
		SourceTimeout: 10 * time.Minute,
	}
}

// Result summarises one source run. Err is the scrape failure, or from
// RunScrapers a failure to record the run; it is never returned as the
// RunScrapers error.
type Result struct {
	RunID       string
	Source      string
	JobsFound   int
	JobsAdded   int
	JobsUpdated int
	JobsSkipped int
	JobsFailed  int
	Queued      int
	Duration    time.Duration
	Err         error
}

type Orchestrator struct {
	adapters map[string]model.SourceAdapter
	order    []string
	ingester Ingester
	runs     RunStore
	notifier Notifier
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
	stopped  atomic.Bool
}

// New wraps every adapter in the retry and pacing decorators and registers
// it under its Name. notifier may be nil.
func New(adapters []model.SourceAdapter, ingester Ingester, runs RunStore, notifier Notifier, cfg Config, logger *slog.Logger) *Orchestrator {
	o := &Orchestrator{
		adapters: make(map[string]model.SourceAdapter, len(adapters)),
		ingester: ingester,
		runs:     runs,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
	for _, a := range adapters {
		if _, dup := o.adapters[a.Name()]; dup {
			logger.Warn("duplicate source name, keeping first", "source", a.Name())
			continue
		}
		// Pacing sits inside retry so every attempt waits its turn.
		wrapped := a
		if cfg.Limiter != nil {
			key := a.Name()
			if rk, ok := a.(RateKeyer); ok {
				key = rk.RateKey()
			}
			wrapped = ratelimit.NewRateLimitedAdapter(wrapped, cfg.Limiter, key)
		}
		o.adapters[a.Name()] = retry.NewRetryAdapter(wrapped, cfg.Retry, logger)
		o.order = append(o.order, a.Name())
	}
	return o
}

// SetClock overrides the clock used for run timestamps.
func (o *Orchestrator) SetClock(now func() time.Time) { o.now = now }

// Sources returns the registered source names in registration order.
func (o *Orchestrator) Sources() []string {
	out := make([]string, len(o.order))
	copy(out, o.order)
	return out
}

// Stop prevents new source runs. A run already in progress finishes.
func (o *Orchestrator) Stop() { o.stopped.Store(true) }

// RunScrapers runs the selected sources one after another. A failed source
// is recorded in its Result and the next source still runs.
func (o *Orchestrator) RunScrapers(ctx context.Context, selector string) ([]Result, error) {
	names, err := o.resolve(selector)
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, name := range names {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		res, err := o.Run(ctx, name, o.cfg.Defaults)
		if errors.Is(err, model.ErrStopped) {
			o.logger.Info("orchestrator stopped, skipping remaining sources", "remaining", len(names)-len(results))
			break
		}
		if err != nil {
			o.logger.Error("source run could not be recorded", "source", name, "error", err)
			if res.Err == nil {
				res.Err = err
			}
		}
		results = append(results, res)
	}

	o.logSummary(results)
	return results, nil
}

func (o *Orchestrator) resolve(selector string) ([]string, error) {
	if selector == "" || selector == SelectAll {
		return o.Sources(), nil
	}
	if _, ok := o.adapters[selector]; !ok {
		return nil, fmt.Errorf("%q: %w", selector, ErrUnknownSource)
	}
	return []string{selector}, nil
}

// Run scrapes one source and ingests its postings. The returned error is
// non-nil only when the run could not start or be recorded; a scrape failure
// is reported in Result.Err.
func (o *Orchestrator) Run(ctx context.Context, source string, opts model.ScrapeOptions) (Result, error) {
	if o.stopped.Load() {
		return Result{Source: source}, model.ErrStopped
	}
	adapter, ok := o.adapters[source]
	if !ok {
		return Result{Source: source}, fmt.Errorf("%q: %w", source, ErrUnknownSource)
	}

	run := &model.ScrapeRun{
		ID:        uuid.NewString(),
		Source:    source,
		Status:    model.RunRunning,
		StartedAt: o.now(),
	}
	if err := o.runs.StartRun(ctx, run); err != nil {
		return Result{Source: source}, fmt.Errorf("recording run start: %w", err)
	}

	res := o.execute(ctx, adapter, run.ID, opts)

	finished := o.now()
	run.FinishedAt = &finished
	run.Duration = finished.Sub(run.StartedAt)
	run.JobsFound = res.JobsFound
	run.JobsAdded = res.JobsAdded
	run.JobsUpdated = res.JobsUpdated
	run.JobsSkipped = res.JobsSkipped
	run.JobsFailed = res.JobsFailed
	run.Status = model.RunCompleted
	if res.Err != nil {
		run.Status = model.RunFailed
		run.Error = res.Err.Error()
	}
	res.Duration = run.Duration

	// Recorded even when ctx is cancelled so the run never stays "running".
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := o.runs.FinishRun(finishCtx, run); err != nil {
		return res, fmt.Errorf("recording run finish: %w", err)
	}

	if res.Err != nil {
		o.logger.Error("scrape run failed", "source", source, "run_id", run.ID, "error", res.Err)
	} else {
		o.logger.Info("scrape run finished",
			"source", source,
			"found", res.JobsFound,
			"added", res.JobsAdded,
			"updated", res.JobsUpdated,
			"skipped", res.JobsSkipped,
			"failed", res.JobsFailed,
			"queued", res.Queued,
			"duration", res.Duration.Round(time.Millisecond).String(),
		)
	}
	return res, nil
}

func (o *Orchestrator) execute(ctx context.Context, adapter model.SourceAdapter, runID string, opts model.ScrapeOptions) Result {
	res := Result{RunID: runID, Source: adapter.Name()}

	scrapeCtx := ctx
	if o.cfg.SourceTimeout > 0 {
		var cancel context.CancelFunc
		scrapeCtx, cancel = context.WithTimeout(ctx, o.cfg.SourceTimeout)
		defer cancel()
	}

	postings, err := adapter.Scrape(scrapeCtx, opts)
	if err != nil {
		res.Err = fmt.Errorf("scraping %s: %w", adapter.Name(), err)
		return res
	}
	res.JobsFound = len(postings)

	scrapedAt := o.now()
	var seen []string
	for _, p := range postings {
		if p.Source == "" {
			p.Source = adapter.Name()
		}
		if p.ScrapedAt.IsZero() {
			p.ScrapedAt = scrapedAt
		}
		out, err := o.ingester.Ingest(ctx, p)
		if err != nil {
			res.JobsFailed++
			o.logger.Error("ingesting posting failed",
				"source", p.Source,
				"title", p.Title,
				"company", p.Company,
				"error", err,
			)
			continue
		}

		switch out.Action {
		case persist.ActionInserted:
			res.JobsAdded++
			res.Queued += o.queue(ctx, out)
		case persist.ActionUpdated:
			res.JobsUpdated++
		case persist.ActionSkipped:
			res.JobsSkipped++
			seen = append(seen, out.JobID)
		}
	}

	if len(seen) > 0 {
		if err := o.ingester.Touch(ctx, seen); err != nil {
			o.logger.Warn("refreshing last_seen failed", "source", adapter.Name(), "jobs", len(seen), "error", err)
		}
	}
	return res
}

func (o *Orchestrator) queue(ctx context.Context, out persist.Outcome) int {
	if o.notifier == nil || out.Job == nil {
		return 0
	}
	n, err := o.notifier.QueueImmediate(ctx, *out.Job)
	if err != nil {
		o.logger.Warn("queueing notifications failed", "job_id", out.JobID, "error", err)
		return 0
	}
	return n
}

func (o *Orchestrator) logSummary(results []Result) {
	if len(results) <= 1 {
		return
	}
	var failed []string
	var added, updated int
	for _, r := range results {
		added += r.JobsAdded
		updated += r.JobsUpdated
		if r.Err != nil {
			failed = append(failed, r.Source)
		}
	}
	sort.Strings(failed)
	o.logger.Info("scrape cycle finished",
		"sources", len(results),
		"added", added,
		"updated", updated,
		"failed_sources", failed,
	)
}
