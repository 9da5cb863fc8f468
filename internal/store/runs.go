package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/amishk599/jobfeed/internal/model"
)

const runColumns = `id, source, status, jobs_found, jobs_added, jobs_updated, jobs_skipped,
	jobs_failed, error, started_at, finished_at, duration_ms`

// StartRun records a run in the running state.
func (s *Store) StartRun(ctx context.Context, r *model.ScrapeRun) error {
	_, err := s.exec(ctx, `INSERT INTO scrape_runs (`+runColumns+`)
		VALUES (?, ?, ?, 0, 0, 0, 0, 0, '', ?, NULL, 0)`,
		r.ID, r.Source, string(r.Status), millis(r.StartedAt))
	if err != nil {
		return fmt.Errorf("starting run %s for %s: %w", r.ID, r.Source, err)
	}
	return nil
}

// FinishRun writes the final status, counts and error of a run.
func (s *Store) FinishRun(ctx context.Context, r *model.ScrapeRun) error {
	res, err := s.exec(ctx, `UPDATE scrape_runs SET status = ?, jobs_found = ?, jobs_added = ?,
		jobs_updated = ?, jobs_skipped = ?, jobs_failed = ?, error = ?, finished_at = ?, duration_ms = ?
		WHERE id = ?`,
		string(r.Status), r.JobsFound, r.JobsAdded, r.JobsUpdated, r.JobsSkipped, r.JobsFailed,
		r.Error, nullMillis(r.FinishedAt), r.Duration.Milliseconds(), r.ID)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", r.ID, err)
	}
	if rowsAffected(res) == 0 {
		return model.ErrNotFound
	}
	return nil
}

// RecentRuns returns the latest runs, newest first. An empty source means all sources.
func (s *Store) RecentRuns(ctx context.Context, source string, limit int) ([]model.ScrapeRun, error) {
	query := `SELECT ` + runColumns + ` FROM scrape_runs`
	var args []any
	if source != "" {
		query += ` WHERE source = ?`
		args = append(args, source)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []model.ScrapeRun
	for rows.Next() {
		var (
			r          model.ScrapeRun
			status     string
			startedAt  int64
			finishedAt sql.NullInt64
			durationMs int64
		)
		if err := rows.Scan(&r.ID, &r.Source, &status, &r.JobsFound, &r.JobsAdded, &r.JobsUpdated,
			&r.JobsSkipped, &r.JobsFailed, &r.Error, &startedAt, &finishedAt, &durationMs); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Status = model.RunStatus(status)
		r.StartedAt = fromMillis(startedAt)
		r.FinishedAt = timePtr(finishedAt)
		r.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}
