// Package pipeline exposes the four independently triggered entry points of
// the ingestion and notification pipeline. Nothing in here schedules itself;
// callers (the cron daemon or the CLI) decide when each runs.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/amishk599/jobfeed/internal/model"
	"github.com/amishk599/jobfeed/internal/notify"
	"github.com/amishk599/jobfeed/internal/orchestrator"
	"github.com/amishk599/jobfeed/internal/persist"
	"github.com/amishk599/jobfeed/internal/runguard"
)

// Task names used as run guard keys.
const (
	TaskScrape        = "scrape"
	TaskImmediate     = "immediate"
	TaskCadenceDaily  = "cadence:daily"
	TaskCadenceWeekly = "cadence:weekly"
	TaskMaintenance   = "maintenance"
)

type Scraper interface {
	RunScrapers(ctx context.Context, selector string) ([]orchestrator.Result, error)
	Stop()
}

type Notifier interface {
	ProcessImmediate(ctx context.Context) (notify.Report, error)
	ProcessCadence(ctx context.Context, cadence model.Cadence) (notify.Report, error)
	Cleanup(ctx context.Context) (notify.CleanupReport, error)
	Stop()
}

type Maintainer interface {
	Maintain(ctx context.Context) (persist.MaintenanceReport, error)
}

// MaintenanceReport combines job retention and notification cleanup counts.
type MaintenanceReport struct {
	Jobs          persist.MaintenanceReport
	Notifications notify.CleanupReport
}

type Pipeline struct {
	scraper    Scraper
	notifier   Notifier
	maintainer Maintainer
	guard      runguard.Guard
	logger     *slog.Logger
}

func New(scraper Scraper, notifier Notifier, maintainer Maintainer, guard runguard.Guard, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		scraper:    scraper,
		notifier:   notifier,
		maintainer: maintainer,
		guard:      guard,
		logger:     logger,
	}
}

// RunScrapers runs "all" sources or the one named by selector.
func (p *Pipeline) RunScrapers(ctx context.Context, selector string) ([]orchestrator.Result, error) {
	var results []orchestrator.Result
	err := p.guarded(ctx, TaskScrape, func(ctx context.Context) error {
		var err error
		results, err = p.scraper.RunScrapers(ctx, selector)
		return err
	})
	return results, err
}

// ProcessImmediate drains due entries from the immediate queue.
func (p *Pipeline) ProcessImmediate(ctx context.Context) (notify.Report, error) {
	var report notify.Report
	err := p.guarded(ctx, TaskImmediate, func(ctx context.Context) error {
		var err error
		report, err = p.notifier.ProcessImmediate(ctx)
		return err
	})
	return report, err
}

// ProcessCadence sends the daily or weekly digest.
func (p *Pipeline) ProcessCadence(ctx context.Context, cadence model.Cadence) (notify.Report, error) {
	var task string
	switch cadence {
	case model.CadenceDaily:
		task = TaskCadenceDaily
	case model.CadenceWeekly:
		task = TaskCadenceWeekly
	default:
		return notify.Report{}, fmt.Errorf("cadence %q is not a digest cadence", cadence)
	}

	var report notify.Report
	err := p.guarded(ctx, task, func(ctx context.Context) error {
		var err error
		report, err = p.notifier.ProcessCadence(ctx, cadence)
		return err
	})
	return report, err
}

// PerformMaintenance deactivates and deletes expired jobs, then prunes
// notification history and abandoned subscriptions.
func (p *Pipeline) PerformMaintenance(ctx context.Context) (MaintenanceReport, error) {
	var report MaintenanceReport
	err := p.guarded(ctx, TaskMaintenance, func(ctx context.Context) error {
		var err error
		if report.Jobs, err = p.maintainer.Maintain(ctx); err != nil {
			return fmt.Errorf("job maintenance: %w", err)
		}
		if report.Notifications, err = p.notifier.Cleanup(ctx); err != nil {
			return fmt.Errorf("notification cleanup: %w", err)
		}
		return nil
	})
	return report, err
}

// Stop prevents new scrape and notification runs. Runs in progress finish.
func (p *Pipeline) Stop() {
	p.scraper.Stop()
	p.notifier.Stop()
}

func (p *Pipeline) guarded(ctx context.Context, task string, fn func(context.Context) error) error {
	release, err := p.guard.Acquire(ctx, task)
	if err != nil {
		p.logger.Warn("task skipped", "task", task, "error", err)
		return err
	}
	defer release()

	p.logger.Debug("task started", "task", task)
	if err := fn(ctx); err != nil {
		p.logger.Error("task failed", "task", task, "error", err)
		return err
	}
	p.logger.Debug("task finished", "task", task)
	return nil
}
