package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/amishk599/jobfeed/internal/model"
	"github.com/amishk599/jobfeed/internal/orchestrator"
	"github.com/amishk599/jobfeed/internal/pipeline"
	"github.com/amishk599/jobfeed/internal/runguard"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the trigger daemon",
	Long: "Registers scraping, notification and maintenance on their cron schedules " +
		"and blocks until SIGINT/SIGTERM. In-flight runs finish before exit.",
	RunE: runStart,
}

var skipInitial bool

func init() {
	startCmd.Flags().BoolVar(&skipInitial, "skip-initial", false, "do not run a notification pass at startup")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, logger := mustLoad()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	logger.Info("config loaded",
		"database", cfg.Database.Driver,
		"sources", len(a.orch.Sources()),
		"scrape", cfg.Schedule.Scrape,
		"immediate", cfg.Schedule.Immediate,
		"daily", cfg.Schedule.Daily,
		"weekly", cfg.Schedule.Weekly,
		"maintenance", cfg.Schedule.Maintenance,
	)

	c := cron.New(cron.WithLogger(cronLogger{logger}))
	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{pipeline.TaskScrape, cfg.Schedule.Scrape, func(ctx context.Context) error {
			_, err := a.pipeline.RunScrapers(ctx, orchestrator.SelectAll)
			return err
		}},
		{pipeline.TaskImmediate, cfg.Schedule.Immediate, func(ctx context.Context) error {
			_, err := a.pipeline.ProcessImmediate(ctx)
			return err
		}},
		{pipeline.TaskCadenceDaily, cfg.Schedule.Daily, func(ctx context.Context) error {
			_, err := a.pipeline.ProcessCadence(ctx, model.CadenceDaily)
			return err
		}},
		{pipeline.TaskCadenceWeekly, cfg.Schedule.Weekly, func(ctx context.Context) error {
			_, err := a.pipeline.ProcessCadence(ctx, model.CadenceWeekly)
			return err
		}},
		{pipeline.TaskMaintenance, cfg.Schedule.Maintenance, func(ctx context.Context) error {
			_, err := a.pipeline.PerformMaintenance(ctx)
			return err
		}},
	}
	for _, j := range jobs {
		j := j
		if _, err := c.AddFunc(j.spec, func() { runTask(ctx, logger, j.name, j.run) }); err != nil {
			logger.Error("invalid schedule", "task", j.name, "spec", j.spec, "error", err)
			os.Exit(1)
		}
	}

	if !skipInitial {
		// Catch up on notifications that came due while the daemon was down.
		g, gctx := errgroup.WithContext(ctx)
		for _, j := range jobs[1:4] {
			j := j
			g.Go(func() error {
				runTask(gctx, logger, j.name, j.run)
				return nil
			})
		}
		_ = g.Wait()
	}

	c.Start()
	logger.Info("daemon started")

	<-ctx.Done()
	logger.Info("shutdown requested, waiting for running tasks")
	a.pipeline.Stop()
	<-c.Stop().Done()

	logger.Info("goodbye")
	return nil
}

// runTask runs one scheduled entry point. A run skipped because another is
// in flight is not an error.
func runTask(ctx context.Context, logger *slog.Logger, name string, run func(context.Context) error) {
	if ctx.Err() != nil {
		return
	}
	err := run(ctx)
	switch {
	case err == nil:
	case errors.Is(err, runguard.ErrAlreadyRunning):
		logger.Debug("task already running", "task", name)
	case errors.Is(err, model.ErrStopped), errors.Is(err, context.Canceled):
		logger.Info("task interrupted", "task", name)
	default:
		logger.Error("task failed", "task", name, "error", err)
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
