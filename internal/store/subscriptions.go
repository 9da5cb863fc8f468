package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/amishk599/jobfeed/internal/model"
)

const subscriptionColumns = `id, email, phone, channels, cadence, filters, verified, active,
	verification_hash, unsubscribe_token, last_notified_at, created_at, updated_at`

func scanSubscription(row scanner) (model.Subscription, error) {
	var (
		sub                  model.Subscription
		channels, filters    string
		cadence              string
		verified, active     int
		lastNotified         sql.NullInt64
		createdAt, updatedAt int64
	)
	err := row.Scan(&sub.ID, &sub.Email, &sub.Phone, &channels, &cadence, &filters, &verified, &active,
		&sub.VerificationHash, &sub.UnsubscribeToken, &lastNotified, &createdAt, &updatedAt)
	if err != nil {
		return sub, err
	}
	sub.Cadence = model.Cadence(cadence)
	sub.Verified = verified != 0
	sub.Active = active != 0
	sub.LastNotifiedAt = timePtr(lastNotified)
	sub.CreatedAt = fromMillis(createdAt)
	sub.UpdatedAt = fromMillis(updatedAt)
	if err := decodeJSON(channels, &sub.Channels); err != nil {
		return sub, err
	}
	if err := decodeJSON(filters, &sub.Filters); err != nil {
		return sub, err
	}
	return sub, nil
}

func (s *Store) querySubscriptions(ctx context.Context, query string, args ...any) ([]model.Subscription, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// InsertSubscription stores a new subscription.
func (s *Store) InsertSubscription(ctx context.Context, sub *model.Subscription) error {
	channels, err := encodeJSON(sub.Channels)
	if err != nil {
		return err
	}
	filters, err := encodeJSON(sub.Filters)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, `INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.Email, sub.Phone, channels, string(sub.Cadence), filters,
		boolInt(sub.Verified), boolInt(sub.Active), sub.VerificationHash, sub.UnsubscribeToken,
		nullMillis(sub.LastNotifiedAt), millis(sub.CreatedAt), millis(sub.UpdatedAt))
	if err != nil {
		return fmt.Errorf("inserting subscription %s: %w", sub.ID, err)
	}
	return nil
}

// GetSubscription returns a subscription or model.ErrNotFound.
func (s *Store) GetSubscription(ctx context.Context, id string) (*model.Subscription, error) {
	sub, err := scanSubscription(s.queryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting subscription %s: %w", id, err)
	}
	return &sub, nil
}

// GetSubscriptions returns the subscriptions with the given ids, skipping missing ones.
func (s *Store) GetSubscriptions(ctx context.Context, ids []string) ([]model.Subscription, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders, args := inList(ids)
	subs, err := s.querySubscriptions(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("getting %d subscriptions: %w", len(ids), err)
	}
	return subs, nil
}

// ListDeliverable returns active, verified subscriptions. An empty cadence means any cadence.
func (s *Store) ListDeliverable(ctx context.Context, cadence model.Cadence) ([]model.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE active = 1 AND verified = 1`
	var args []any
	if cadence != "" {
		query += ` AND cadence = ?`
		args = append(args, string(cadence))
	}
	query += ` ORDER BY created_at ASC`
	subs, err := s.querySubscriptions(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing %s subscriptions: %w", cadence, err)
	}
	return subs, nil
}

// SetVerified marks a subscription verified and clears its verification hash.
func (s *Store) SetVerified(ctx context.Context, id string, at time.Time) error {
	res, err := s.exec(ctx, `UPDATE subscriptions SET verified = 1, verification_hash = '', updated_at = ?
		WHERE id = ?`, millis(at), id)
	if err != nil {
		return fmt.Errorf("verifying subscription %s: %w", id, err)
	}
	if rowsAffected(res) == 0 {
		return model.ErrNotFound
	}
	return nil
}

// DeactivateByToken sets the subscription owning token inactive.
func (s *Store) DeactivateByToken(ctx context.Context, token string, at time.Time) error {
	res, err := s.exec(ctx, `UPDATE subscriptions SET active = 0, updated_at = ?
		WHERE unsubscribe_token = ?`, millis(at), token)
	if err != nil {
		return fmt.Errorf("unsubscribing: %w", err)
	}
	if rowsAffected(res) == 0 {
		return model.ErrNotFound
	}
	return nil
}

// SetLastNotified advances last_notified_at for one subscription.
func (s *Store) SetLastNotified(ctx context.Context, id string, at time.Time) error {
	_, err := s.exec(ctx, `UPDATE subscriptions SET last_notified_at = ?, updated_at = ? WHERE id = ?`,
		millis(at), millis(at), id)
	if err != nil {
		return fmt.Errorf("updating last_notified for %s: %w", id, err)
	}
	return nil
}

// DeleteUnverifiedBefore removes subscriptions never verified since before.
func (s *Store) DeleteUnverifiedBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM subscriptions WHERE verified = 0 AND created_at < ?`, millis(before))
	if err != nil {
		return 0, fmt.Errorf("deleting unverified subscriptions: %w", err)
	}
	return rowsAffected(res), nil
}

// DeleteInactiveBefore removes inactive subscriptions last updated before the cutoff.
func (s *Store) DeleteInactiveBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM subscriptions WHERE active = 0 AND updated_at < ?`, millis(before))
	if err != nil {
		return 0, fmt.Errorf("deleting inactive subscriptions: %w", err)
	}
	return rowsAffected(res), nil
}
