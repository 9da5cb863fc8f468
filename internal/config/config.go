package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for jobfeed.
type Config struct {
	Database      DatabaseConfig
	Redis         RedisConfig
	AMQP          AMQPConfig
	Scrape        ScrapeConfig
	Sources       SourcesConfig
	Dedup         DedupConfig
	Retention     RetentionConfig
	Notifications NotificationsConfig
	Schedule      ScheduleConfig
}

// DatabaseConfig selects the relational store.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	DSN    string `yaml:"dsn"`    // file path for sqlite, connection string for postgres
}

// RedisConfig enables the shared run guard. An empty URL keeps the guard
// in-process.
type RedisConfig struct {
	URL     string
	Prefix  string
	LockTTL time.Duration
}

// AMQPConfig is used by channels whose sender type is "amqp".
type AMQPConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

// ScrapeConfig controls pacing, retries and paging for source adapters.
type ScrapeConfig struct {
	MinDelay       time.Duration            // minimum gap between requests sharing a rate key
	Overrides      map[string]time.Duration // per-key overrides, e.g. "render", "greenhouse"
	MaxAttempts    int
	InitialDelay   time.Duration
	Multiplier     float64
	MaxPages       int
	PageDelay      time.Duration // pause between Adzuna result pages
	SourceTimeout  time.Duration // ceiling for one source run including retries
	RenderEndpoint string
	RenderAPIKey   string
}

// DelayFor returns the configured delay for key, falling back to MinDelay.
func (s ScrapeConfig) DelayFor(key string) time.Duration {
	if d, ok := s.Overrides[key]; ok {
		return d
	}
	return s.MinDelay
}

// BoardConfig describes one company board on a hosted ATS.
type BoardConfig struct {
	Company string `yaml:"company"`
	ATS     string `yaml:"ats"` // greenhouse, lever or ashby
	Token   string `yaml:"token"`
	Sector  string `yaml:"sector"`
	Enabled bool   `yaml:"enabled"`
}

// CareersConfig describes a careers site scraped through the render service.
type CareersConfig struct {
	Slug    string   `yaml:"slug"`
	Company string   `yaml:"company"`
	Sector  string   `yaml:"sector"`
	Pages   []string `yaml:"pages"`
	Enabled bool     `yaml:"enabled"`
}

// AdzunaConfig holds the aggregator search settings.
type AdzunaConfig struct {
	Enabled  bool     `yaml:"enabled"`
	AppID    string   `yaml:"app_id"`
	AppKey   string   `yaml:"app_key"`
	Country  string   `yaml:"country"`
	Keywords []string `yaml:"keywords"`
	Location string   `yaml:"location"`
}

// SourcesConfig lists every source the orchestrator registers.
type SourcesConfig struct {
	Boards  []BoardConfig   `yaml:"boards"`
	Careers []CareersConfig `yaml:"careers"`
	Adzuna  AdzunaConfig    `yaml:"adzuna"`
}

// DedupConfig tunes duplicate detection.
type DedupConfig struct {
	Window     time.Duration
	Title      float64
	Company    float64
	Location   float64
	Desc       float64
	Exact      float64
	Similar    float64
	Potential  float64
	FieldMatch float64
}

// RetentionConfig holds every age-based cleanup horizon.
type RetentionConfig struct {
	StaleAfter     time.Duration
	DeleteAfter    time.Duration
	Reviews        time.Duration
	ProcessedQueue time.Duration
	Deliveries     time.Duration
	UnverifiedSubs time.Duration
	InactiveSubs   time.Duration
}

// ChannelConfig picks the delivery service for one notification channel.
type ChannelConfig struct {
	Type   string `yaml:"type"` // log, webhook, amqp or slack
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

// NotificationsConfig controls queue draining and delivery.
type NotificationsConfig struct {
	BatchSize int
	BaseURL   string
	Email     ChannelConfig
	SMS       ChannelConfig
}

// ScheduleConfig holds the cron specs the daemon registers.
type ScheduleConfig struct {
	Scrape      string `yaml:"scrape"`
	Immediate   string `yaml:"immediate"`
	Daily       string `yaml:"daily"`
	Weekly      string `yaml:"weekly"`
	Maintenance string `yaml:"maintenance"`
}

// rawConfig is used for YAML unmarshaling (snake_case fields and duration as string).
type rawConfig struct {
	Database      DatabaseConfig   `yaml:"database"`
	Redis         rawRedis         `yaml:"redis"`
	AMQP          AMQPConfig       `yaml:"amqp"`
	Scrape        rawScrape        `yaml:"scrape"`
	Sources       SourcesConfig    `yaml:"sources"`
	Dedup         rawDedup         `yaml:"dedup"`
	Retention     rawRetention     `yaml:"retention"`
	Notifications rawNotifications `yaml:"notifications"`
	Schedule      ScheduleConfig   `yaml:"schedule"`
}

type rawRedis struct {
	URL     string `yaml:"url"`
	Prefix  string `yaml:"prefix"`
	LockTTL string `yaml:"lock_ttl"`
}

type rawScrape struct {
	MinDelay       string            `yaml:"min_delay"`
	Overrides      map[string]string `yaml:"overrides"`
	MaxAttempts    int               `yaml:"max_attempts"`
	InitialDelay   string            `yaml:"initial_delay"`
	Multiplier     float64           `yaml:"multiplier"`
	MaxPages       int               `yaml:"max_pages"`
	PageDelay      string            `yaml:"page_delay"`
	SourceTimeout  string            `yaml:"source_timeout"`
	RenderEndpoint string            `yaml:"render_endpoint"`
	RenderAPIKey   string            `yaml:"render_api_key"`
}

type rawDedup struct {
	Window  string `yaml:"window"`
	Weights struct {
		Title       float64 `yaml:"title"`
		Company     float64 `yaml:"company"`
		Location    float64 `yaml:"location"`
		Description float64 `yaml:"description"`
	} `yaml:"weights"`
	Thresholds struct {
		Exact     float64 `yaml:"exact"`
		Similar   float64 `yaml:"similar"`
		Potential float64 `yaml:"potential"`
	} `yaml:"thresholds"`
	FieldMatch float64 `yaml:"field_match"`
}

type rawRetention struct {
	StaleAfter     string `yaml:"stale_after"`
	DeleteAfter    string `yaml:"delete_after"`
	Reviews        string `yaml:"reviews"`
	ProcessedQueue string `yaml:"processed_queue"`
	Deliveries     string `yaml:"deliveries"`
	UnverifiedSubs string `yaml:"unverified_subscriptions"`
	InactiveSubs   string `yaml:"inactive_subscriptions"`
}

type rawNotifications struct {
	BatchSize int           `yaml:"batch_size"`
	BaseURL   string        `yaml:"base_url"`
	Email     ChannelConfig `yaml:"email"`
	SMS       ChannelConfig `yaml:"sms"`
}

const day = 24 * time.Hour

// Load reads and parses the YAML config file at path, validates it, and returns Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg := &Config{
		Database: raw.Database,
		AMQP:     raw.AMQP,
		Sources:  raw.Sources,
		Schedule: raw.Schedule,
	}
	d := durations{}

	cfg.Redis = RedisConfig{
		URL:     raw.Redis.URL,
		Prefix:  orDefault(raw.Redis.Prefix, "jobfeed:run:"),
		LockTTL: d.parse("redis.lock_ttl", raw.Redis.LockTTL, 2*time.Hour),
	}

	cfg.Scrape = ScrapeConfig{
		MinDelay:       d.parse("scrape.min_delay", raw.Scrape.MinDelay, 2*time.Second),
		Overrides:      make(map[string]time.Duration),
		MaxAttempts:    raw.Scrape.MaxAttempts,
		InitialDelay:   d.parse("scrape.initial_delay", raw.Scrape.InitialDelay, time.Second),
		Multiplier:     raw.Scrape.Multiplier,
		MaxPages:       raw.Scrape.MaxPages,
		PageDelay:      d.parse("scrape.page_delay", raw.Scrape.PageDelay, time.Second),
		SourceTimeout:  d.parse("scrape.source_timeout", raw.Scrape.SourceTimeout, 10*time.Minute),
		RenderEndpoint: raw.Scrape.RenderEndpoint,
		RenderAPIKey:   raw.Scrape.RenderAPIKey,
	}
	for key, v := range raw.Scrape.Overrides {
		cfg.Scrape.Overrides[key] = d.parse(fmt.Sprintf("scrape.overrides[%q]", key), v, 0)
	}
	if cfg.Scrape.MaxAttempts == 0 {
		cfg.Scrape.MaxAttempts = 3
	}
	if cfg.Scrape.Multiplier == 0 {
		cfg.Scrape.Multiplier = 2
	}
	if cfg.Scrape.MaxPages == 0 {
		cfg.Scrape.MaxPages = 3
	}

	cfg.Dedup = DedupConfig{
		Window:     d.parse("dedup.window", raw.Dedup.Window, 30*day),
		Title:      raw.Dedup.Weights.Title,
		Company:    raw.Dedup.Weights.Company,
		Location:   raw.Dedup.Weights.Location,
		Desc:       raw.Dedup.Weights.Description,
		Exact:      orDefaultFloat(raw.Dedup.Thresholds.Exact, 0.95),
		Similar:    orDefaultFloat(raw.Dedup.Thresholds.Similar, 0.85),
		Potential:  orDefaultFloat(raw.Dedup.Thresholds.Potential, 0.70),
		FieldMatch: orDefaultFloat(raw.Dedup.FieldMatch, 0.8),
	}
	if cfg.Dedup.Title+cfg.Dedup.Company+cfg.Dedup.Location+cfg.Dedup.Desc == 0 {
		cfg.Dedup.Title, cfg.Dedup.Company, cfg.Dedup.Location, cfg.Dedup.Desc = 0.4, 0.3, 0.2, 0.1
	}

	cfg.Retention = RetentionConfig{
		StaleAfter:     d.parse("retention.stale_after", raw.Retention.StaleAfter, 30*day),
		DeleteAfter:    d.parse("retention.delete_after", raw.Retention.DeleteAfter, 90*day),
		Reviews:        d.parse("retention.reviews", raw.Retention.Reviews, 180*day),
		ProcessedQueue: d.parse("retention.processed_queue", raw.Retention.ProcessedQueue, 7*day),
		Deliveries:     d.parse("retention.deliveries", raw.Retention.Deliveries, 90*day),
		UnverifiedSubs: d.parse("retention.unverified_subscriptions", raw.Retention.UnverifiedSubs, 30*day),
		InactiveSubs:   d.parse("retention.inactive_subscriptions", raw.Retention.InactiveSubs, 180*day),
	}
	if d.err != nil {
		return nil, d.err
	}

	cfg.Notifications = NotificationsConfig{
		BatchSize: raw.Notifications.BatchSize,
		BaseURL:   strings.TrimRight(raw.Notifications.BaseURL, "/"),
		Email:     raw.Notifications.Email,
		SMS:       raw.Notifications.SMS,
	}
	if cfg.Notifications.BatchSize == 0 {
		cfg.Notifications.BatchSize = 100
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "jobfeed.db"
	}
	if cfg.AMQP.Exchange == "" {
		cfg.AMQP.Exchange = "jobfeed.notifications"
	}
	if cfg.Sources.Adzuna.Country == "" {
		cfg.Sources.Adzuna.Country = "ca"
	}
	if cfg.Notifications.Email.Type == "" {
		cfg.Notifications.Email.Type = "log"
	}
	if cfg.Notifications.SMS.Type == "" {
		cfg.Notifications.SMS.Type = "log"
	}

	s := &cfg.Schedule
	s.Scrape = orDefault(s.Scrape, "0 */6 * * *")
	s.Immediate = orDefault(s.Immediate, "*/5 * * * *")
	s.Daily = orDefault(s.Daily, "0 8 * * *")
	s.Weekly = orDefault(s.Weekly, "0 8 * * 1")
	s.Maintenance = orDefault(s.Maintenance, "30 3 * * *")
}

func validate(cfg *Config) error {
	switch cfg.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be \"sqlite\" or \"postgres\", got %q", cfg.Database.Driver)
	}
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for %s", cfg.Database.Driver)
	}

	if cfg.Scrape.MaxAttempts < 1 {
		return fmt.Errorf("scrape.max_attempts must be at least 1, got %d", cfg.Scrape.MaxAttempts)
	}
	if cfg.Scrape.Multiplier < 1 {
		return fmt.Errorf("scrape.multiplier must be at least 1, got %v", cfg.Scrape.Multiplier)
	}

	for i, b := range cfg.Sources.Boards {
		switch b.ATS {
		case "greenhouse", "lever", "ashby":
		default:
			return fmt.Errorf("sources.boards[%d]: unsupported ats %q", i, b.ATS)
		}
		if b.Token == "" || b.Company == "" {
			return fmt.Errorf("sources.boards[%d]: token and company are required", i)
		}
	}
	hasCareers := false
	for i, c := range cfg.Sources.Careers {
		if c.Slug == "" || len(c.Pages) == 0 {
			return fmt.Errorf("sources.careers[%d]: slug and at least one page are required", i)
		}
		hasCareers = hasCareers || c.Enabled
	}
	if hasCareers && cfg.Scrape.RenderEndpoint == "" {
		return fmt.Errorf("scrape.render_endpoint is required when a careers source is enabled")
	}

	t := cfg.Dedup
	if !(t.Potential > 0 && t.Potential <= t.Similar && t.Similar <= t.Exact && t.Exact <= 1) {
		return fmt.Errorf("dedup.thresholds must satisfy 0 < potential <= similar <= exact <= 1, got %v/%v/%v", t.Potential, t.Similar, t.Exact)
	}
	for name, w := range map[string]float64{"title": t.Title, "company": t.Company, "location": t.Location, "description": t.Desc} {
		if w < 0 {
			return fmt.Errorf("dedup.weights.%s must not be negative", name)
		}
	}

	if cfg.Notifications.BatchSize < 1 {
		return fmt.Errorf("notifications.batch_size must be positive, got %d", cfg.Notifications.BatchSize)
	}
	for name, ch := range map[string]ChannelConfig{"email": cfg.Notifications.Email, "sms": cfg.Notifications.SMS} {
		if err := validateChannel(name, ch, cfg.AMQP); err != nil {
			return err
		}
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for name, spec := range map[string]string{
		"scrape":      cfg.Schedule.Scrape,
		"immediate":   cfg.Schedule.Immediate,
		"daily":       cfg.Schedule.Daily,
		"weekly":      cfg.Schedule.Weekly,
		"maintenance": cfg.Schedule.Maintenance,
	} {
		if _, err := parser.Parse(spec); err != nil {
			return fmt.Errorf("schedule.%s %q: %w", name, spec, err)
		}
	}

	return nil
}

func validateChannel(name string, ch ChannelConfig, amqp AMQPConfig) error {
	switch ch.Type {
	case "log":
	case "webhook":
		if ch.URL == "" {
			return fmt.Errorf("notifications.%s.url is required when type is \"webhook\"", name)
		}
	case "slack":
		if !strings.HasPrefix(ch.URL, "https://hooks.slack.com/") {
			return fmt.Errorf("notifications.%s.url must start with https://hooks.slack.com/", name)
		}
	case "amqp":
		if amqp.URL == "" {
			return fmt.Errorf("amqp.url is required when notifications.%s.type is \"amqp\"", name)
		}
	default:
		return fmt.Errorf("notifications.%s.type %q is not one of log, webhook, amqp, slack", name, ch.Type)
	}
	return nil
}

// durations parses duration fields and keeps the first error.
type durations struct {
	err error
}

// parse accepts anything time.ParseDuration does plus a whole-day suffix
// ("30d"). Empty values take def.
func (d *durations) parse(field, value string, def time.Duration) time.Duration {
	if value == "" || d.err != nil {
		return def
	}
	if n, ok := strings.CutSuffix(value, "d"); ok {
		days, err := strconv.Atoi(n)
		if err != nil {
			d.err = fmt.Errorf("parse %s %q: %w", field, value, err)
			return def
		}
		return time.Duration(days) * day
	}
	v, err := time.ParseDuration(value)
	if err != nil {
		d.err = fmt.Errorf("parse %s %q: %w", field, value, err)
		return def
	}
	return v
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orDefaultFloat(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}
