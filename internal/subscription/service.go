// Package subscription manages the subscriber lifecycle: sign-up with a
// verification code, verification, and token-based unsubscribe.
package subscription

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/amishk599/jobfeed/internal/model"
)

var (
	ErrInvalidCode    = errors.New("invalid verification code")
	ErrNoChannels     = errors.New("at least one channel is required")
	ErrMissingContact = errors.New("channel has no contact address")
	ErrInvalidCadence = errors.New("invalid cadence")
)

const bcryptCost = bcrypt.DefaultCost

type Store interface {
	InsertSubscription(ctx context.Context, sub *model.Subscription) error
	GetSubscription(ctx context.Context, id string) (*model.Subscription, error)
	SetVerified(ctx context.Context, id string, at time.Time) error
	DeactivateByToken(ctx context.Context, token string, at time.Time) error
}

// Request is a sign-up as submitted by a subscriber.
type Request struct {
	Email    string
	Phone    string
	Channels []model.Channel
	Cadence  model.Cadence
	Filters  model.Filters
}

type Service struct {
	store  Store
	sender model.DeliveryService
	logger *slog.Logger
	now    func() time.Time
	code   func() (string, error)
}

func NewService(store Store, sender model.DeliveryService, logger *slog.Logger) *Service {
	return &Service{store: store, sender: sender, logger: logger, now: time.Now, code: newCode}
}

// Subscribe validates req, stores an unverified subscription and sends the
// verification code on the first channel.
func (s *Service) Subscribe(ctx context.Context, req Request) (*model.Subscription, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	code, err := s.code()
	if err != nil {
		return nil, fmt.Errorf("generating verification code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hashing verification code: %w", err)
	}

	now := s.now().UTC()
	sub := &model.Subscription{
		ID:               uuid.NewString(),
		Email:            strings.TrimSpace(strings.ToLower(req.Email)),
		Phone:            strings.TrimSpace(req.Phone),
		Channels:         req.Channels,
		Cadence:          req.Cadence,
		Filters:          req.Filters,
		Active:           true,
		VerificationHash: string(hash),
		UnsubscribeToken: uuid.NewString(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.InsertSubscription(ctx, sub); err != nil {
		return nil, err
	}

	ch := sub.Channels[0]
	msg := model.Message{
		ID:        "verify-" + sub.ID,
		Channel:   ch,
		Recipient: sub.Recipient(ch),
		Text:      fmt.Sprintf("Your jobfeed verification code is %s.", code),
	}
	if ch == model.ChannelEmail {
		msg.Subject = "Confirm your job alerts"
	}
	if _, err := s.sender.Send(ctx, msg); err != nil {
		return sub, fmt.Errorf("sending verification code: %w", err)
	}

	s.logger.Info("subscription created", "subscription_id", sub.ID, "cadence", sub.Cadence, "channels", sub.Channels)
	return sub, nil
}

// Verify checks code against the stored hash and marks the subscription
// verified. Verifying an already verified subscription is a no-op.
func (s *Service) Verify(ctx context.Context, id, code string) error {
	sub, err := s.store.GetSubscription(ctx, id)
	if err != nil {
		return err
	}
	if sub.Verified {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(sub.VerificationHash), []byte(strings.TrimSpace(code))); err != nil {
		return ErrInvalidCode
	}
	if err := s.store.SetVerified(ctx, id, s.now().UTC()); err != nil {
		return err
	}
	s.logger.Info("subscription verified", "subscription_id", id)
	return nil
}

// Unsubscribe deactivates the subscription owning token.
func (s *Service) Unsubscribe(ctx context.Context, token string) error {
	if err := s.store.DeactivateByToken(ctx, token, s.now().UTC()); err != nil {
		return err
	}
	s.logger.Info("subscription deactivated")
	return nil
}

func validate(req Request) error {
	switch req.Cadence {
	case model.CadenceImmediate, model.CadenceDaily, model.CadenceWeekly:
	default:
		return fmt.Errorf("%q: %w", req.Cadence, ErrInvalidCadence)
	}
	if len(req.Channels) == 0 {
		return ErrNoChannels
	}
	for _, ch := range req.Channels {
		switch ch {
		case model.ChannelEmail:
			if !isValidEmail(req.Email) {
				return fmt.Errorf("email: %w", ErrMissingContact)
			}
		case model.ChannelSMS:
			if strings.TrimSpace(req.Phone) == "" {
				return fmt.Errorf("sms: %w", ErrMissingContact)
			}
		default:
			return fmt.Errorf("unknown channel %q", ch)
		}
	}
	return nil
}

func isValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" || len(email) > 254 {
		return false
	}
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && strings.Contains(email[at:], ".")
}

func newCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
