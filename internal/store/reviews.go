package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/amishk599/jobfeed/internal/model"
)

const reviewColumns = `id, source, posting, new_job_id, candidate_job_id, similarity,
	matched_fields, reviewed, decision, created_at, reviewed_at`

func scanReview(row scanner) (model.ReviewEntry, error) {
	var (
		r               model.ReviewEntry
		posting, fields string
		reviewed        int
		createdAt       int64
		reviewedAt      sql.NullInt64
	)
	err := row.Scan(&r.ID, &r.Source, &posting, &r.NewJobID, &r.CandidateJobID, &r.Similarity,
		&fields, &reviewed, &r.Decision, &createdAt, &reviewedAt)
	if err != nil {
		return r, err
	}
	r.Reviewed = reviewed != 0
	r.CreatedAt = fromMillis(createdAt)
	r.ReviewedAt = timePtr(reviewedAt)
	if err := decodeJSON(posting, &r.Posting); err != nil {
		return r, err
	}
	if err := decodeJSON(fields, &r.MatchedFields); err != nil {
		return r, err
	}
	return r, nil
}

// InsertReview records a potential duplicate for human review.
func (s *Store) InsertReview(ctx context.Context, r *model.ReviewEntry) error {
	posting, err := encodeJSON(r.Posting)
	if err != nil {
		return err
	}
	fields, err := encodeJSON(r.MatchedFields)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, `INSERT INTO duplicate_reviews (`+reviewColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Source, posting, r.NewJobID, r.CandidateJobID, r.Similarity,
		fields, boolInt(r.Reviewed), r.Decision, millis(r.CreatedAt), nullMillis(r.ReviewedAt))
	if err != nil {
		return fmt.Errorf("inserting review %s: %w", r.ID, err)
	}
	return nil
}

// GetReview returns a review entry or model.ErrNotFound.
func (s *Store) GetReview(ctx context.Context, id string) (*model.ReviewEntry, error) {
	r, err := scanReview(s.queryRow(ctx, `SELECT `+reviewColumns+` FROM duplicate_reviews WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting review %s: %w", id, err)
	}
	return &r, nil
}

// ListPendingReviews returns unreviewed entries, oldest first. limit <= 0 means no limit.
func (s *Store) ListPendingReviews(ctx context.Context, limit int) ([]model.ReviewEntry, error) {
	query := `SELECT ` + reviewColumns + ` FROM duplicate_reviews WHERE reviewed = 0 ORDER BY created_at ASC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing pending reviews: %w", err)
	}
	defer rows.Close()

	var out []model.ReviewEntry
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning review: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MarkReviewed stores the reviewer's decision.
func (s *Store) MarkReviewed(ctx context.Context, id, decision string, at time.Time) error {
	res, err := s.exec(ctx, `UPDATE duplicate_reviews SET reviewed = 1, decision = ?, reviewed_at = ?
		WHERE id = ?`, decision, millis(at), id)
	if err != nil {
		return fmt.Errorf("marking review %s: %w", id, err)
	}
	if rowsAffected(res) == 0 {
		return model.ErrNotFound
	}
	return nil
}

// DeleteReviewedBefore removes reviewed entries created before the cutoff.
func (s *Store) DeleteReviewedBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM duplicate_reviews WHERE reviewed = 1 AND created_at < ?`, millis(before))
	if err != nil {
		return 0, fmt.Errorf("deleting old reviews: %w", err)
	}
	return rowsAffected(res), nil
}
