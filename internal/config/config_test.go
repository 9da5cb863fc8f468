package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	t.Setenv("JOBFEED_TEST_ADZUNA_KEY", "from-env")
	path := writeConfig(t, `
database:
  driver: postgres
  dsn: postgres://jobfeed@localhost/jobfeed
scrape:
  min_delay: 3s
  overrides:
    render: 5s
  max_attempts: 4
  render_endpoint: https://render.example.com/api
sources:
  boards:
    - company: Hudbay Minerals
      ats: greenhouse
      token: hudbay
      sector: mining
      enabled: true
  careers:
    - slug: teck
      company: Teck
      pages: ["https://careers.teck.com/jobs"]
      enabled: true
  adzuna:
    enabled: true
    app_id: abc
    app_key: ${JOBFEED_TEST_ADZUNA_KEY}
    keywords: [millwright, welder]
dedup:
  window: 14d
  thresholds:
    potential: 0.6
retention:
  stale_after: 720h
notifications:
  base_url: https://jobs.example.com/
  email:
    type: webhook
    url: https://mail.example.com/send
schedule:
  immediate: "@every 2m"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.DSN != "postgres://jobfeed@localhost/jobfeed" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Scrape.MinDelay != 3*time.Second || cfg.Scrape.DelayFor("render") != 5*time.Second || cfg.Scrape.DelayFor("lever") != 3*time.Second {
		t.Errorf("Scrape delays = %+v", cfg.Scrape)
	}
	if cfg.Scrape.MaxAttempts != 4 || cfg.Scrape.Multiplier != 2 || cfg.Scrape.MaxPages != 3 {
		t.Errorf("Scrape retry/paging = %+v", cfg.Scrape)
	}
	if len(cfg.Sources.Boards) != 1 || cfg.Sources.Boards[0].Token != "hudbay" {
		t.Errorf("Boards = %+v", cfg.Sources.Boards)
	}
	if cfg.Sources.Adzuna.AppKey != "from-env" || cfg.Sources.Adzuna.Country != "ca" {
		t.Errorf("Adzuna = %+v", cfg.Sources.Adzuna)
	}
	if cfg.Dedup.Window != 14*24*time.Hour || cfg.Dedup.Potential != 0.6 || cfg.Dedup.Exact != 0.95 {
		t.Errorf("Dedup = %+v", cfg.Dedup)
	}
	if cfg.Dedup.Title != 0.4 || cfg.Dedup.Desc != 0.1 {
		t.Errorf("default weights not applied: %+v", cfg.Dedup)
	}
	if cfg.Retention.StaleAfter != 30*24*time.Hour || cfg.Retention.InactiveSubs != 180*24*time.Hour {
		t.Errorf("Retention = %+v", cfg.Retention)
	}
	if cfg.Notifications.BaseURL != "https://jobs.example.com" || cfg.Notifications.BatchSize != 100 {
		t.Errorf("Notifications = %+v", cfg.Notifications)
	}
	if cfg.Notifications.SMS.Type != "log" {
		t.Errorf("SMS.Type = %q, want log default", cfg.Notifications.SMS.Type)
	}
	if cfg.Schedule.Immediate != "@every 2m" || cfg.Schedule.Daily != "0 8 * * *" {
		t.Errorf("Schedule = %+v", cfg.Schedule)
	}
}

func TestLoad_EmptyFileUsesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.DSN != "jobfeed.db" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Redis.URL != "" || cfg.Redis.LockTTL != 2*time.Hour {
		t.Errorf("Redis = %+v", cfg.Redis)
	}
	if cfg.AMQP.Exchange != "jobfeed.notifications" {
		t.Errorf("AMQP.Exchange = %q", cfg.AMQP.Exchange)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err == nil {
		t.Fatal("Load: expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "scrape: [broken"))
	if err == nil {
		t.Fatal("Load: expected error for invalid YAML")
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad driver", "database:\n  driver: mysql\n", "database.driver"},
		{"postgres without dsn", "database:\n  driver: postgres\n", "database.dsn"},
		{"bad duration", "scrape:\n  min_delay: soon\n", "scrape.min_delay"},
		{"bad day count", "dedup:\n  window: xd\n", "dedup.window"},
		{"unknown ats", "sources:\n  boards:\n    - company: A\n      ats: workday\n      token: a\n", "unsupported ats"},
		{"careers without render", "sources:\n  careers:\n    - slug: a\n      pages: [x]\n      enabled: true\n", "render_endpoint"},
		{"thresholds out of order", "dedup:\n  thresholds:\n    similar: 0.99\n", "dedup.thresholds"},
		{"slack url", "notifications:\n  sms:\n    type: slack\n    url: https://example.com\n", "hooks.slack.com"},
		{"amqp without url", "notifications:\n  email:\n    type: amqp\n", "amqp.url"},
		{"unknown sender", "notifications:\n  email:\n    type: pigeon\n", "notifications.email.type"},
		{"bad cron", "schedule:\n  weekly: every monday\n", "schedule.weekly"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Load: expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}
