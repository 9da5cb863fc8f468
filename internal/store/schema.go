package store

// schema is valid for both SQLite and Postgres.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id              TEXT PRIMARY KEY,
		content_hash    TEXT NOT NULL,
		external_id     TEXT NOT NULL DEFAULT '',
		title           TEXT NOT NULL,
		company         TEXT NOT NULL,
		location        TEXT NOT NULL DEFAULT '',
		province        TEXT NOT NULL DEFAULT '',
		sector          TEXT NOT NULL DEFAULT '',
		employment_type TEXT NOT NULL DEFAULT '',
		salary_min      BIGINT,
		salary_max      BIGINT,
		salary_text     TEXT NOT NULL DEFAULT '',
		description     TEXT NOT NULL DEFAULT '',
		requirements    TEXT NOT NULL DEFAULT '[]',
		posted_at       BIGINT NOT NULL,
		expires_at      BIGINT,
		source          TEXT NOT NULL,
		source_url      TEXT NOT NULL DEFAULT '',
		application_url TEXT NOT NULL DEFAULT '',
		scraped_at      BIGINT NOT NULL,
		sources         TEXT NOT NULL DEFAULT '[]',
		active          INTEGER NOT NULL DEFAULT 1,
		last_seen       BIGINT NOT NULL,
		created_at      BIGINT NOT NULL,
		updated_at      BIGINT NOT NULL,
		deactivated_at  BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_active_posted ON jobs (active, posted_at)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_content_hash ON jobs (content_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_last_seen ON jobs (last_seen)`,

	`CREATE TABLE IF NOT EXISTS job_external_ids (
		source      TEXT NOT NULL,
		external_id TEXT NOT NULL,
		job_id      TEXT NOT NULL,
		created_at  BIGINT NOT NULL,
		PRIMARY KEY (source, external_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_job_external_ids_job ON job_external_ids (job_id)`,

	`CREATE TABLE IF NOT EXISTS duplicate_reviews (
		id               TEXT PRIMARY KEY,
		source           TEXT NOT NULL,
		posting          TEXT NOT NULL,
		new_job_id       TEXT NOT NULL DEFAULT '',
		candidate_job_id TEXT NOT NULL,
		similarity       DOUBLE PRECISION NOT NULL,
		matched_fields   TEXT NOT NULL DEFAULT '[]',
		reviewed         INTEGER NOT NULL DEFAULT 0,
		decision         TEXT NOT NULL DEFAULT '',
		created_at       BIGINT NOT NULL,
		reviewed_at      BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_duplicate_reviews_pending ON duplicate_reviews (reviewed, created_at)`,

	`CREATE TABLE IF NOT EXISTS scrape_runs (
		id           TEXT PRIMARY KEY,
		source       TEXT NOT NULL,
		status       TEXT NOT NULL,
		jobs_found   INTEGER NOT NULL DEFAULT 0,
		jobs_added   INTEGER NOT NULL DEFAULT 0,
		jobs_updated INTEGER NOT NULL DEFAULT 0,
		jobs_skipped INTEGER NOT NULL DEFAULT 0,
		jobs_failed  INTEGER NOT NULL DEFAULT 0,
		error        TEXT NOT NULL DEFAULT '',
		started_at   BIGINT NOT NULL,
		finished_at  BIGINT,
		duration_ms  BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scrape_runs_started ON scrape_runs (started_at)`,

	`CREATE TABLE IF NOT EXISTS subscriptions (
		id                TEXT PRIMARY KEY,
		email             TEXT NOT NULL DEFAULT '',
		phone             TEXT NOT NULL DEFAULT '',
		channels          TEXT NOT NULL DEFAULT '[]',
		cadence           TEXT NOT NULL,
		filters           TEXT NOT NULL DEFAULT '{}',
		verified          INTEGER NOT NULL DEFAULT 0,
		active            INTEGER NOT NULL DEFAULT 1,
		verification_hash TEXT NOT NULL DEFAULT '',
		unsubscribe_token TEXT NOT NULL UNIQUE,
		last_notified_at  BIGINT,
		created_at        BIGINT NOT NULL,
		updated_at        BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_subscriptions_cadence ON subscriptions (cadence, active, verified)`,

	`CREATE TABLE IF NOT EXISTS notification_queue (
		id                 TEXT PRIMARY KEY,
		job_id             TEXT NOT NULL,
		subscription_id    TEXT NOT NULL,
		priority           INTEGER NOT NULL DEFAULT 1,
		scheduled_for      BIGINT NOT NULL,
		matched_categories TEXT NOT NULL DEFAULT '[]',
		processed_at       BIGINT,
		created_at         BIGINT NOT NULL,
		UNIQUE (job_id, subscription_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notification_queue_due ON notification_queue (processed_at, scheduled_for)`,

	`CREATE TABLE IF NOT EXISTS notification_deliveries (
		id              TEXT PRIMARY KEY,
		subscription_id TEXT NOT NULL,
		job_ids         TEXT NOT NULL DEFAULT '[]',
		channel         TEXT NOT NULL,
		recipient       TEXT NOT NULL,
		subject         TEXT NOT NULL DEFAULT '',
		content         TEXT NOT NULL DEFAULT '',
		status          TEXT NOT NULL,
		provider_ref    TEXT NOT NULL DEFAULT '',
		error           TEXT NOT NULL DEFAULT '',
		created_at      BIGINT NOT NULL,
		sent_at         BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notification_deliveries_sub ON notification_deliveries (subscription_id, created_at)`,
}
