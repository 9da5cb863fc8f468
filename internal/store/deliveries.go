package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/amishk599/jobfeed/internal/model"
)

const deliveryColumns = `id, subscription_id, job_ids, channel, recipient, subject, content,
	status, provider_ref, error, created_at, sent_at`

// InsertDelivery writes the audit record before a send attempt.
func (s *Store) InsertDelivery(ctx context.Context, d *model.Delivery) error {
	jobIDs, err := encodeJSON(d.JobIDs)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, `INSERT INTO notification_deliveries (`+deliveryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.SubscriptionID, jobIDs, string(d.Channel), d.Recipient, d.Subject, d.Content,
		string(d.Status), d.ProviderRef, d.Error, millis(d.CreatedAt), nullMillis(d.SentAt))
	if err != nil {
		return fmt.Errorf("inserting delivery %s: %w", d.ID, err)
	}
	return nil
}

// UpdateDeliveryStatus records the outcome of a send attempt.
func (s *Store) UpdateDeliveryStatus(ctx context.Context, d *model.Delivery) error {
	res, err := s.exec(ctx, `UPDATE notification_deliveries SET status = ?, provider_ref = ?, error = ?, sent_at = ?
		WHERE id = ?`, string(d.Status), d.ProviderRef, d.Error, nullMillis(d.SentAt), d.ID)
	if err != nil {
		return fmt.Errorf("updating delivery %s: %w", d.ID, err)
	}
	if rowsAffected(res) == 0 {
		return model.ErrNotFound
	}
	return nil
}

// ListDeliveries returns a subscription's deliveries, newest first.
func (s *Store) ListDeliveries(ctx context.Context, subscriptionID string) ([]model.Delivery, error) {
	rows, err := s.query(ctx, `SELECT `+deliveryColumns+` FROM notification_deliveries
		WHERE subscription_id = ? ORDER BY created_at DESC`, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("listing deliveries for %s: %w", subscriptionID, err)
	}
	defer rows.Close()

	var out []model.Delivery
	for rows.Next() {
		var (
			d                       model.Delivery
			jobIDs, channel, status string
			createdAt               int64
			sentAt                  sql.NullInt64
		)
		if err := rows.Scan(&d.ID, &d.SubscriptionID, &jobIDs, &channel, &d.Recipient, &d.Subject,
			&d.Content, &status, &d.ProviderRef, &d.Error, &createdAt, &sentAt); err != nil {
			return nil, fmt.Errorf("scanning delivery: %w", err)
		}
		d.Channel = model.Channel(channel)
		d.Status = model.DeliveryStatus(status)
		d.CreatedAt = fromMillis(createdAt)
		d.SentAt = timePtr(sentAt)
		if err := decodeJSON(jobIDs, &d.JobIDs); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteDeliveriesBefore removes delivery records created before the cutoff.
func (s *Store) DeleteDeliveriesBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM notification_deliveries WHERE created_at < ?`, millis(before))
	if err != nil {
		return 0, fmt.Errorf("deleting old deliveries: %w", err)
	}
	return rowsAffected(res), nil
}
