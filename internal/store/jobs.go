package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amishk599/jobfeed/internal/model"
)

const jobColumns = `id, content_hash, external_id, title, company, location, province, sector,
	employment_type, salary_min, salary_max, salary_text, description, requirements,
	posted_at, expires_at, source, source_url, application_url, scraped_at, sources,
	active, last_seen, created_at, updated_at, deactivated_at`

func scanJob(row scanner) (model.CanonicalJob, error) {
	var (
		j                                                   model.CanonicalJob
		salaryMin, salaryMax, expiresAt, deactivatedAt      sql.NullInt64
		requirements, sources                               string
		postedAt, scrapedAt, lastSeen, createdAt, updatedAt int64
		active                                              int
	)
	err := row.Scan(
		&j.ID, &j.ContentHash, &j.ExternalID, &j.Title, &j.Company, &j.Location, &j.Province, &j.Sector,
		&j.EmploymentType, &salaryMin, &salaryMax, &j.SalaryText, &j.Description, &requirements,
		&postedAt, &expiresAt, &j.Source, &j.SourceURL, &j.ApplicationURL, &scrapedAt, &sources,
		&active, &lastSeen, &createdAt, &updatedAt, &deactivatedAt,
	)
	if err != nil {
		return j, err
	}
	j.SalaryMin = intPtr(salaryMin)
	j.SalaryMax = intPtr(salaryMax)
	j.ExpiresAt = timePtr(expiresAt)
	j.DeactivatedAt = timePtr(deactivatedAt)
	j.PostedAt = fromMillis(postedAt)
	j.ScrapedAt = fromMillis(scrapedAt)
	j.LastSeen = fromMillis(lastSeen)
	j.CreatedAt = fromMillis(createdAt)
	j.UpdatedAt = fromMillis(updatedAt)
	j.Active = active != 0
	if err := decodeJSON(requirements, &j.Requirements); err != nil {
		return j, err
	}
	if err := decodeJSON(sources, &j.Sources); err != nil {
		return j, err
	}
	return j, nil
}

func (s *Store) queryJobs(ctx context.Context, query string, args ...any) ([]model.CanonicalJob, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []model.CanonicalJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// InsertJob stores a new canonical job.
func (s *Store) InsertJob(ctx context.Context, j *model.CanonicalJob) error {
	requirements, err := encodeJSON(j.Requirements)
	if err != nil {
		return err
	}
	sources, err := encodeJSON(j.Sources)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, `INSERT INTO jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.ContentHash, j.ExternalID, j.Title, j.Company, j.Location, j.Province, j.Sector,
		j.EmploymentType, nullInt(j.SalaryMin), nullInt(j.SalaryMax), j.SalaryText, j.Description, requirements,
		millis(j.PostedAt), nullMillis(j.ExpiresAt), j.Source, j.SourceURL, j.ApplicationURL, millis(j.ScrapedAt), sources,
		boolInt(j.Active), millis(j.LastSeen), millis(j.CreatedAt), millis(j.UpdatedAt), nullMillis(j.DeactivatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting job %s: %w", j.ID, err)
	}
	return nil
}

// GetJob returns the job with the given id or model.ErrNotFound.
func (s *Store) GetJob(ctx context.Context, id string) (*model.CanonicalJob, error) {
	j, err := scanJob(s.queryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting job %s: %w", id, err)
	}
	return &j, nil
}

// GetJobs returns the jobs with the given ids, in no particular order.
// Missing ids are silently skipped.
func (s *Store) GetJobs(ctx context.Context, ids []string) ([]model.CanonicalJob, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders, args := inList(ids)
	jobs, err := s.queryJobs(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("getting %d jobs: %w", len(ids), err)
	}
	return jobs, nil
}

// FindByExternalID returns the job linked to a source's natural key.
func (s *Store) FindByExternalID(ctx context.Context, source, externalID string) (*model.CanonicalJob, error) {
	j, err := scanJob(s.queryRow(ctx, `SELECT `+prefixed("j", jobColumns)+`
		FROM job_external_ids x JOIN jobs j ON j.id = x.job_id
		WHERE x.source = ? AND x.external_id = ?`, source, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding job by %s/%s: %w", source, externalID, err)
	}
	return &j, nil
}

// LinkExternalID associates a source's natural key with a job. Existing links are kept.
func (s *Store) LinkExternalID(ctx context.Context, jobID, source, externalID string) error {
	_, err := s.exec(ctx, `INSERT INTO job_external_ids (source, external_id, job_id, created_at)
		VALUES (?, ?, ?, ?) ON CONFLICT DO NOTHING`,
		source, externalID, jobID, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("linking %s/%s to job %s: %w", source, externalID, jobID, err)
	}
	return nil
}

// RelinkExternalIDs moves every natural-key link of one job to another.
func (s *Store) RelinkExternalIDs(ctx context.Context, fromJobID, toJobID string) error {
	_, err := s.exec(ctx, `UPDATE job_external_ids SET job_id = ? WHERE job_id = ?`, toJobID, fromJobID)
	if err != nil {
		return fmt.Errorf("relinking external ids from %s to %s: %w", fromJobID, toJobID, err)
	}
	return nil
}

// ListActiveSince returns active jobs posted at or after since, newest first.
func (s *Store) ListActiveSince(ctx context.Context, since time.Time) ([]model.CanonicalJob, error) {
	jobs, err := s.queryJobs(ctx, `SELECT `+jobColumns+` FROM jobs
		WHERE active = 1 AND posted_at >= ? ORDER BY posted_at DESC`, millis(since))
	if err != nil {
		return nil, fmt.Errorf("listing active jobs since %s: %w", since.Format(time.RFC3339), err)
	}
	return jobs, nil
}

// UpdateJob applies a partial update. last_seen and updated_at are always written.
func (s *Store) UpdateJob(ctx context.Context, id string, p model.JobPatch) error {
	sets := []string{"last_seen = ?", "updated_at = ?"}
	args := []any{millis(p.LastSeen), time.Now().UnixMilli()}

	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if p.PostedAt != nil {
		add("posted_at", millis(*p.PostedAt))
	}
	if p.Description != nil {
		add("description", *p.Description)
	}
	if p.SalaryMin != nil {
		add("salary_min", *p.SalaryMin)
	}
	if p.SalaryMax != nil {
		add("salary_max", *p.SalaryMax)
	}
	if p.SalaryText != nil {
		add("salary_text", *p.SalaryText)
	}
	if p.ApplicationURL != nil {
		add("application_url", *p.ApplicationURL)
	}
	if p.ExpiresAt != nil {
		add("expires_at", millis(*p.ExpiresAt))
	}
	if p.Sources != nil {
		sources, err := encodeJSON(p.Sources)
		if err != nil {
			return err
		}
		add("sources", sources)
	}
	if p.Reactivate {
		sets = append(sets, "active = 1", "deactivated_at = NULL")
	}

	args = append(args, id)
	res, err := s.exec(ctx, `UPDATE jobs SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("updating job %s: %w", id, err)
	}
	if rowsAffected(res) == 0 {
		return model.ErrNotFound
	}
	return nil
}

// TouchJobs refreshes last_seen for every job in ids.
func (s *Store) TouchJobs(ctx context.Context, ids []string, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders, idArgs := inList(ids)
	args := append([]any{millis(at)}, idArgs...)
	res, err := s.exec(ctx, `UPDATE jobs SET last_seen = ? WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("touching %d jobs: %w", len(ids), err)
	}
	return rowsAffected(res), nil
}

// DeactivateJobs marks the given jobs inactive.
func (s *Store) DeactivateJobs(ctx context.Context, ids []string, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders, idArgs := inList(ids)
	args := append([]any{millis(at), millis(at)}, idArgs...)
	res, err := s.exec(ctx, `UPDATE jobs SET active = 0, deactivated_at = ?, updated_at = ?
		WHERE active = 1 AND id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("deactivating %d jobs: %w", len(ids), err)
	}
	return rowsAffected(res), nil
}

// MarkStale deactivates active jobs not seen since before.
func (s *Store) MarkStale(ctx context.Context, before, at time.Time) (int64, error) {
	res, err := s.exec(ctx, `UPDATE jobs SET active = 0, deactivated_at = ?, updated_at = ?
		WHERE active = 1 AND last_seen < ?`, millis(at), millis(at), millis(before))
	if err != nil {
		return 0, fmt.Errorf("marking stale jobs: %w", err)
	}
	return rowsAffected(res), nil
}

// DeleteJobsPostedBefore hard-deletes jobs posted before the cutoff, with
// their external-id links and queue entries.
func (s *Store) DeleteJobsPostedBefore(ctx context.Context, before time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning job cleanup: %w", err)
	}
	defer tx.Rollback()

	cutoff := millis(before)
	for _, stmt := range []string{
		`DELETE FROM job_external_ids WHERE job_id IN (SELECT id FROM jobs WHERE posted_at < ?)`,
		`DELETE FROM notification_queue WHERE job_id IN (SELECT id FROM jobs WHERE posted_at < ?)`,
	} {
		if _, err := tx.ExecContext(ctx, s.q(stmt), cutoff); err != nil {
			return 0, fmt.Errorf("deleting job dependents: %w", err)
		}
	}
	res, err := tx.ExecContext(ctx, s.q(`DELETE FROM jobs WHERE posted_at < ?`), cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting old jobs: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing job cleanup: %w", err)
	}
	return rowsAffected(res), nil
}

// CountJobs returns the number of active and total jobs.
func (s *Store) CountJobs(ctx context.Context) (active, total int, err error) {
	err = s.queryRow(ctx, `SELECT COALESCE(SUM(active), 0), COUNT(*) FROM jobs`).Scan(&active, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("counting jobs: %w", err)
	}
	return active, total, nil
}

// prefixed qualifies each column in a comma-separated list with alias.
func prefixed(alias, columns string) string {
	cols := strings.Split(columns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}
