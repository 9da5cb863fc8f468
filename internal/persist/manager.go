// Package persist applies deduplication decisions to the canonical job store.
package persist

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/amishk599/jobfeed/internal/dedup"
	"github.com/amishk599/jobfeed/internal/model"
)

// Action is what Apply did with a posting.
type Action string

const (
	ActionInserted Action = "inserted"
	ActionUpdated  Action = "updated"
	ActionSkipped  Action = "skipped"
)

// Outcome reports the result of applying one posting.
type Outcome struct {
	Action   Action
	JobID    string
	Job      *model.CanonicalJob // the stored record, set on insert
	Reviewed bool                // a potential duplicate was logged for review
}

// Store is the write side of the canonical store.
type Store interface {
	InsertJob(ctx context.Context, j *model.CanonicalJob) error
	GetJob(ctx context.Context, id string) (*model.CanonicalJob, error)
	UpdateJob(ctx context.Context, id string, p model.JobPatch) error
	LinkExternalID(ctx context.Context, jobID, source, externalID string) error
	RelinkExternalIDs(ctx context.Context, fromJobID, toJobID string) error
	TouchJobs(ctx context.Context, ids []string, at time.Time) (int64, error)
	DeactivateJobs(ctx context.Context, ids []string, at time.Time) (int64, error)
	MarkStale(ctx context.Context, before, at time.Time) (int64, error)
	DeleteJobsPostedBefore(ctx context.Context, before time.Time) (int64, error)

	InsertReview(ctx context.Context, r *model.ReviewEntry) error
	GetReview(ctx context.Context, id string) (*model.ReviewEntry, error)
	MarkReviewed(ctx context.Context, id, decision string, at time.Time) error
	DeleteReviewedBefore(ctx context.Context, before time.Time) (int64, error)
}

// Config holds the retention windows used by Maintain.
type Config struct {
	StaleAfter      time.Duration // deactivate when not re-observed for this long
	DeleteAfter     time.Duration // hard-delete when posted longer ago than this
	ReviewRetention time.Duration // drop reviewed entries older than this
}

func DefaultConfig() Config {
	return Config{
		StaleAfter:      30 * 24 * time.Hour,
		DeleteAfter:     90 * 24 * time.Hour,
		ReviewRetention: 180 * 24 * time.Hour,
	}
}

// Manager inserts novel postings, merges duplicates into their canonical
// record and keeps staleness bookkeeping.
type Manager struct {
	store  Store
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

func NewManager(store Store, cfg Config, logger *slog.Logger) *Manager {
	return &Manager{store: store, cfg: cfg, logger: logger, now: time.Now}
}

// SetClock replaces the manager's time source.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

// Apply persists p according to match. A nil or potential match inserts a new
// record; exact and similar matches merge into the matched one.
func (m *Manager) Apply(ctx context.Context, p model.RawPosting, match *model.DuplicateMatch) (Outcome, error) {
	if match.IsDuplicate() {
		return m.update(ctx, p, match)
	}
	return m.insert(ctx, p, match)
}

func (m *Manager) insert(ctx context.Context, p model.RawPosting, match *model.DuplicateMatch) (Outcome, error) {
	now := m.now().UTC()
	job := &model.CanonicalJob{
		RawPosting:  p,
		ID:          uuid.NewString(),
		ContentHash: ContentHash(p),
		Sources:     []string{p.Source},
		Active:      true,
		LastSeen:    now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if job.ScrapedAt.IsZero() {
		job.ScrapedAt = now
	}
	// Undated postings count as posted when first scraped.
	if job.PostedAt.IsZero() {
		job.PostedAt = job.ScrapedAt
	}
	if err := m.store.InsertJob(ctx, job); err != nil {
		return Outcome{}, err
	}
	// The job is committed; a missing link only costs an exact match next
	// run, and the content-based merge relinks it then.
	if key := p.NaturalKey(); key != "" {
		if err := m.store.LinkExternalID(ctx, job.ID, p.Source, key); err != nil {
			m.logger.Warn("failed to link natural key",
				"job_id", job.ID, "source", p.Source, "key", key, "error", err)
		}
	}

	out := Outcome{Action: ActionInserted, JobID: job.ID, Job: job}
	if match != nil && match.Tier == model.TierPotential {
		entry := &model.ReviewEntry{
			ID:             uuid.NewString(),
			Source:         p.Source,
			Posting:        p,
			NewJobID:       job.ID,
			CandidateJobID: match.JobID,
			Similarity:     match.Similarity,
			MatchedFields:  match.MatchedFields,
			CreatedAt:      now,
		}
		if err := m.store.InsertReview(ctx, entry); err != nil {
			// Job is stored; review logging is best-effort.
			m.logger.Warn("failed to log potential duplicate",
				"job_id", job.ID, "candidate", match.JobID, "error", err)
		} else {
			out.Reviewed = true
			m.logger.Info("potential duplicate logged for review",
				"job_id", job.ID, "candidate", match.JobID, "similarity", match.Similarity)
		}
	}
	return out, nil
}

func (m *Manager) update(ctx context.Context, p model.RawPosting, match *model.DuplicateMatch) (Outcome, error) {
	existing, err := m.store.GetJob(ctx, match.JobID)
	if err != nil {
		return Outcome{}, fmt.Errorf("fetching matched job %s: %w", match.JobID, err)
	}

	now := m.now().UTC()
	patch := Merge(existing, p)
	patch.LastSeen = now

	if !match.ViaNaturalKey {
		if key := p.NaturalKey(); key != "" {
			if err := m.store.LinkExternalID(ctx, existing.ID, p.Source, key); err != nil {
				return Outcome{}, err
			}
		}
	}
	if patch.Empty() {
		return Outcome{Action: ActionSkipped, JobID: existing.ID}, nil
	}
	if err := m.store.UpdateJob(ctx, existing.ID, patch); err != nil {
		return Outcome{}, err
	}
	return Outcome{Action: ActionUpdated, JobID: existing.ID}, nil
}

// Merge computes the field-level changes incoming contributes to existing:
// a newer posting date, a longer description, salary, apply link and expiry
// only where unset, the incoming source if absent, and reactivation.
func Merge(existing *model.CanonicalJob, incoming model.RawPosting) model.JobPatch {
	var patch model.JobPatch

	if incoming.PostedAt.After(existing.PostedAt) {
		t := incoming.PostedAt
		patch.PostedAt = &t
	}
	if len([]rune(incoming.Description)) > len([]rune(existing.Description)) {
		d := incoming.Description
		patch.Description = &d
	}
	if existing.SalaryMin == nil && incoming.SalaryMin != nil {
		v := *incoming.SalaryMin
		patch.SalaryMin = &v
	}
	if existing.SalaryMax == nil && incoming.SalaryMax != nil {
		v := *incoming.SalaryMax
		patch.SalaryMax = &v
	}
	if existing.SalaryText == "" && incoming.SalaryText != "" {
		v := incoming.SalaryText
		patch.SalaryText = &v
	}
	if existing.ApplicationURL == "" && incoming.ApplicationURL != "" {
		v := incoming.ApplicationURL
		patch.ApplicationURL = &v
	}
	if existing.ExpiresAt == nil && incoming.ExpiresAt != nil {
		v := *incoming.ExpiresAt
		patch.ExpiresAt = &v
	}
	if incoming.Source != "" && !existing.HasSource(incoming.Source) {
		sources := make([]string, 0, len(existing.Sources)+1)
		sources = append(sources, existing.Sources...)
		patch.Sources = append(sources, incoming.Source)
	}
	if !existing.Active {
		patch.Reactivate = true
	}
	return patch
}

// ContentHash returns the first 16 hex characters of the sha256 of the
// posting's identity key.
func ContentHash(p model.RawPosting) string {
	sum := sha256.Sum256([]byte(dedup.IdentityKey(p)))
	return hex.EncodeToString(sum[:])[:16]
}

// Touch refreshes last_seen on jobs re-observed without change.
func (m *Manager) Touch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	n, err := m.store.TouchJobs(ctx, ids, m.now().UTC())
	if err != nil {
		return err
	}
	m.logger.Debug("refreshed last_seen", "jobs", n)
	return nil
}

// MaintenanceReport summarizes one maintenance pass.
type MaintenanceReport struct {
	Deactivated    int64
	Deleted        int64
	ReviewsDeleted int64
}

// Maintain deactivates stale jobs, hard-deletes jobs past retention and
// drops old reviewed entries.
func (m *Manager) Maintain(ctx context.Context) (MaintenanceReport, error) {
	now := m.now().UTC()
	var (
		report MaintenanceReport
		err    error
	)

	report.Deactivated, err = m.store.MarkStale(ctx, now.Add(-m.cfg.StaleAfter), now)
	if err != nil {
		return report, err
	}
	report.Deleted, err = m.store.DeleteJobsPostedBefore(ctx, now.Add(-m.cfg.DeleteAfter))
	if err != nil {
		return report, err
	}
	report.ReviewsDeleted, err = m.store.DeleteReviewedBefore(ctx, now.Add(-m.cfg.ReviewRetention))
	if err != nil {
		return report, err
	}

	m.logger.Info("maintenance complete",
		"deactivated", report.Deactivated,
		"deleted", report.Deleted,
		"reviews_deleted", report.ReviewsDeleted,
	)
	return report, nil
}

// Review decisions.
const (
	DecisionDuplicate = "duplicate"
	DecisionDistinct  = "distinct"
)

// ResolveReview records a reviewer's verdict on a potential duplicate. A
// duplicate verdict merges the posting into the candidate, moves the new
// job's natural keys over and deactivates the new job.
func (m *Manager) ResolveReview(ctx context.Context, id string, duplicate bool) error {
	entry, err := m.store.GetReview(ctx, id)
	if err != nil {
		return fmt.Errorf("fetching review %s: %w", id, err)
	}
	if entry.Reviewed {
		return fmt.Errorf("review %s already resolved as %s", id, entry.Decision)
	}

	now := m.now().UTC()
	decision := DecisionDistinct
	if duplicate {
		decision = DecisionDuplicate
		candidate, err := m.store.GetJob(ctx, entry.CandidateJobID)
		if err != nil {
			return fmt.Errorf("fetching candidate %s: %w", entry.CandidateJobID, err)
		}
		patch := Merge(candidate, entry.Posting)
		patch.LastSeen = now
		if err := m.store.UpdateJob(ctx, candidate.ID, patch); err != nil {
			return err
		}
		if entry.NewJobID != "" {
			if err := m.store.RelinkExternalIDs(ctx, entry.NewJobID, candidate.ID); err != nil {
				return err
			}
			if _, err := m.store.DeactivateJobs(ctx, []string{entry.NewJobID}, now); err != nil {
				return err
			}
		}
	}

	if err := m.store.MarkReviewed(ctx, id, decision, now); err != nil {
		return err
	}
	m.logger.Info("review resolved", "review_id", id, "decision", decision,
		"candidate", entry.CandidateJobID, "new_job", entry.NewJobID)
	return nil
}
