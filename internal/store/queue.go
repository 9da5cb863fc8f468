package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/amishk599/jobfeed/internal/model"
)

const queueColumns = `id, job_id, subscription_id, priority, scheduled_for, matched_categories,
	processed_at, created_at`

// EnqueueNotification inserts a queue entry. It reports false when the
// (job, subscription) pair is already queued.
func (s *Store) EnqueueNotification(ctx context.Context, e *model.QueueEntry) (bool, error) {
	categories, err := encodeJSON(e.MatchedCategories)
	if err != nil {
		return false, err
	}
	res, err := s.exec(ctx, `INSERT INTO notification_queue (`+queueColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`,
		e.ID, e.JobID, e.SubscriptionID, e.Priority, millis(e.ScheduledFor), categories,
		nullMillis(e.ProcessedAt), millis(e.CreatedAt))
	if err != nil {
		return false, fmt.Errorf("enqueueing job %s for %s: %w", e.JobID, e.SubscriptionID, err)
	}
	return rowsAffected(res) > 0, nil
}

// ListDueQueueEntries returns unprocessed entries scheduled at or before now,
// highest priority first, then earliest scheduled.
func (s *Store) ListDueQueueEntries(ctx context.Context, now time.Time, limit int) ([]model.QueueEntry, error) {
	rows, err := s.query(ctx, `SELECT `+queueColumns+` FROM notification_queue
		WHERE processed_at IS NULL AND scheduled_for <= ?
		ORDER BY priority DESC, scheduled_for ASC, created_at ASC
		LIMIT ?`, millis(now), limit)
	if err != nil {
		return nil, fmt.Errorf("listing due queue entries: %w", err)
	}
	defer rows.Close()

	var out []model.QueueEntry
	for rows.Next() {
		var (
			e                       model.QueueEntry
			categories              string
			scheduledFor, createdAt int64
			processedAt             sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.JobID, &e.SubscriptionID, &e.Priority, &scheduledFor,
			&categories, &processedAt, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning queue entry: %w", err)
		}
		e.ScheduledFor = fromMillis(scheduledFor)
		e.ProcessedAt = timePtr(processedAt)
		e.CreatedAt = fromMillis(createdAt)
		if err := decodeJSON(categories, &e.MatchedCategories); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkQueueProcessed marks the given entries processed.
func (s *Store) MarkQueueProcessed(ctx context.Context, ids []string, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders, idArgs := inList(ids)
	args := append([]any{millis(at)}, idArgs...)
	res, err := s.exec(ctx, `UPDATE notification_queue SET processed_at = ?
		WHERE processed_at IS NULL AND id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("marking %d queue entries processed: %w", len(ids), err)
	}
	return rowsAffected(res), nil
}

// DeleteProcessedBefore removes entries processed before the cutoff.
func (s *Store) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM notification_queue
		WHERE processed_at IS NOT NULL AND processed_at < ?`, millis(before))
	if err != nil {
		return 0, fmt.Errorf("deleting processed queue entries: %w", err)
	}
	return rowsAffected(res), nil
}

// CountPendingQueue returns the number of unprocessed entries.
func (s *Store) CountPendingQueue(ctx context.Context) (int, error) {
	var n int
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM notification_queue WHERE processed_at IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting queue: %w", err)
	}
	return n, nil
}
