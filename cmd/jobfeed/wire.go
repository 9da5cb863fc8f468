package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/amishk599/jobfeed/internal/adapter"
	"github.com/amishk599/jobfeed/internal/config"
	"github.com/amishk599/jobfeed/internal/dedup"
	"github.com/amishk599/jobfeed/internal/delivery"
	"github.com/amishk599/jobfeed/internal/model"
	"github.com/amishk599/jobfeed/internal/notify"
	"github.com/amishk599/jobfeed/internal/orchestrator"
	"github.com/amishk599/jobfeed/internal/persist"
	"github.com/amishk599/jobfeed/internal/pipeline"
	"github.com/amishk599/jobfeed/internal/ratelimit"
	"github.com/amishk599/jobfeed/internal/retry"
	"github.com/amishk599/jobfeed/internal/runguard"
	"github.com/amishk599/jobfeed/internal/store"
)

// app holds every wired component a subcommand may need.
type app struct {
	store     *store.Store
	orch      *orchestrator.Orchestrator
	persist   *persist.Manager
	scheduler *notify.Scheduler
	pipeline  *pipeline.Pipeline
	sender    model.DeliveryService
	closers   []func() error
	logger    *slog.Logger
}

func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{logger: logger}

	s, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	a.store = s
	a.closers = append(a.closers, s.Close)

	httpClient := &http.Client{Timeout: 30 * time.Second}

	sender, closers, err := setupSender(cfg, httpClient, logger)
	a.closers = append(a.closers, closers...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.sender = sender

	guard, err := setupGuard(ctx, cfg, a)
	if err != nil {
		a.Close()
		return nil, err
	}

	engine := dedup.NewEngine(s, dedupConfig(cfg.Dedup))
	a.persist = persist.NewManager(s, persist.Config{
		StaleAfter:      cfg.Retention.StaleAfter,
		DeleteAfter:     cfg.Retention.DeleteAfter,
		ReviewRetention: cfg.Retention.Reviews,
	}, logger)

	matcher := notify.NewMatcher(s, logger)
	renderer, err := notify.NewRenderer(cfg.Notifications.BaseURL)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.scheduler = notify.NewScheduler(s, matcher, renderer, sender, notify.SchedulerConfig{
		BatchSize:           cfg.Notifications.BatchSize,
		ProcessedRetention:  cfg.Retention.ProcessedQueue,
		DeliveryRetention:   cfg.Retention.Deliveries,
		UnverifiedRetention: cfg.Retention.UnverifiedSubs,
		InactiveRetention:   cfg.Retention.InactiveSubs,
	}, logger)

	limiter := ratelimit.NewLimiter(cfg.Scrape.MinDelay, cfg.Scrape.Overrides)
	logger.Info("rate limiter configured", "min_delay", cfg.Scrape.MinDelay.String(), "render_delay", cfg.Scrape.DelayFor(ratelimit.RenderKey).String())

	adapters := buildAdapters(cfg, httpClient, limiter, logger)
	a.orch = orchestrator.New(adapters, orchestrator.NewDedupIngester(engine, a.persist), s, matcher, orchestrator.Config{
		Retry: retry.Policy{
			MaxAttempts:  cfg.Scrape.MaxAttempts,
			InitialDelay: cfg.Scrape.InitialDelay,
			Multiplier:   cfg.Scrape.Multiplier,
		},
		Limiter:       limiter,
		Defaults:      model.ScrapeOptions{MaxPages: cfg.Scrape.MaxPages},
		SourceTimeout: cfg.Scrape.SourceTimeout,
	}, logger)

	a.pipeline = pipeline.New(a.orch, a.scheduler, a.persist, guard, logger)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}

func dedupConfig(c config.DedupConfig) dedup.Config {
	cfg := dedup.DefaultConfig()
	cfg.Window = c.Window
	cfg.Weights = dedup.Weights{Title: c.Title, Company: c.Company, Location: c.Location, Description: c.Desc}
	cfg.Thresholds = dedup.Thresholds{Exact: c.Exact, Similar: c.Similar, Potential: c.Potential}
	cfg.FieldMatch = c.FieldMatch
	return cfg
}

func setupGuard(ctx context.Context, cfg *config.Config, a *app) (runguard.Guard, error) {
	if cfg.Redis.URL == "" {
		return runguard.NewLocal(), nil
	}
	client, err := runguard.NewRedisClient(ctx, cfg.Redis.URL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client.Close)
	a.logger.Info("using redis run guard", "prefix", cfg.Redis.Prefix, "lock_ttl", cfg.Redis.LockTTL.String())
	return runguard.NewRedis(client, cfg.Redis.Prefix, cfg.Redis.LockTTL), nil
}

// setupSender builds the per-channel delivery router. An AMQP connection is
// dialled once and shared by every channel that publishes to it.
func setupSender(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) (model.DeliveryService, []func() error, error) {
	var (
		closers []func() error
		amqp    *delivery.AMQPPublisher
	)
	build := func(ch model.Channel, cc config.ChannelConfig) (model.DeliveryService, error) {
		switch cc.Type {
		case "webhook":
			logger.Info("using webhook sender", "channel", ch)
			return delivery.NewWebhookSender(cc.URL, cc.APIKey, httpClient, logger), nil
		case "slack":
			logger.Info("using slack sender", "channel", ch)
			return delivery.NewSlackSender(cc.URL, httpClient, logger), nil
		case "amqp":
			if amqp == nil {
				p, err := delivery.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
				if err != nil {
					return nil, err
				}
				amqp = p
				closers = append(closers, p.Close)
			}
			logger.Info("using amqp publisher", "channel", ch, "exchange", cfg.AMQP.Exchange)
			return amqp, nil
		default:
			return delivery.NewLogSender(logger), nil
		}
	}

	email, err := build(model.ChannelEmail, cfg.Notifications.Email)
	if err != nil {
		return nil, closers, fmt.Errorf("email sender: %w", err)
	}
	sms, err := build(model.ChannelSMS, cfg.Notifications.SMS)
	if err != nil {
		return nil, closers, fmt.Errorf("sms sender: %w", err)
	}
	return delivery.NewRouter(map[model.Channel]model.DeliveryService{
		model.ChannelEmail: email,
		model.ChannelSMS:   sms,
	}), closers, nil
}

// buildAdapters creates one adapter per enabled source. Retry and pacing
// decorators are applied by the orchestrator.
func buildAdapters(cfg *config.Config, httpClient *http.Client, limiter *ratelimit.Limiter, logger *slog.Logger) []model.SourceAdapter {
	var adapters []model.SourceAdapter
	for _, b := range cfg.Sources.Boards {
		if !b.Enabled {
			continue
		}
		board := adapter.Board{Token: b.Token, Company: b.Company, Sector: b.Sector}
		switch b.ATS {
		case "greenhouse":
			adapters = append(adapters, adapter.NewGreenhouseAdapter(board, httpClient))
		case "lever":
			adapters = append(adapters, adapter.NewLeverAdapter(board, httpClient))
		case "ashby":
			adapters = append(adapters, adapter.NewAshbyAdapter(board, httpClient))
		default:
			logger.Warn("unsupported ATS, skipping", "company", b.Company, "ats", b.ATS)
			continue
		}
		logger.Debug("registered board", "company", b.Company, "ats", b.ATS)
	}

	if cfg.Sources.Adzuna.Enabled {
		az := cfg.Sources.Adzuna
		adapters = append(adapters, adapter.NewAdzunaAdapter(adapter.AdzunaConfig{
			AppID:     az.AppID,
			AppKey:    az.AppKey,
			Country:   az.Country,
			Keywords:  az.Keywords,
			Location:  az.Location,
			MaxPages:  cfg.Scrape.MaxPages,
			PageDelay: cfg.Scrape.PageDelay,
		}, httpClient, logger))
	}

	var render *adapter.RenderClient
	for _, c := range cfg.Sources.Careers {
		if !c.Enabled {
			continue
		}
		if render == nil {
			// Rendering is slow; give it a longer client timeout than the JSON APIs.
			render = adapter.NewRenderClient(cfg.Scrape.RenderEndpoint, cfg.Scrape.RenderAPIKey, limiter, &http.Client{Timeout: 2 * time.Minute})
		}
		adapters = append(adapters, adapter.NewCareersPageAdapter(adapter.CareersSite{
			Slug:    c.Slug,
			Company: c.Company,
			Sector:  c.Sector,
			Pages:   c.Pages,
		}, render))
	}
	return adapters
}
