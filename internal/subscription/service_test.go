package subscription

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amishk599/jobfeed/internal/model"
	"github.com/amishk599/jobfeed/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type outbox struct {
	msgs []model.Message
	err  error
}

func (o *outbox) Send(_ context.Context, msg model.Message) (string, error) {
	if o.err != nil {
		return "", o.err
	}
	o.msgs = append(o.msgs, msg)
	return "ref", nil
}

func newService(t *testing.T) (*Service, *store.Store, *outbox) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "subs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	box := &outbox{}
	svc := NewService(s, box, discardLogger())
	svc.code = func() (string, error) { return "042917", nil }
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return svc, s, box
}

func TestSubscribeVerifyUnsubscribe(t *testing.T) {
	ctx := context.Background()
	svc, s, box := newService(t)

	sub, err := svc.Subscribe(ctx, Request{
		Email:    " Worker@Example.com ",
		Channels: []model.Channel{model.ChannelEmail},
		Cadence:  model.CadenceDaily,
		Filters:  model.Filters{Regions: []string{"AB"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "worker@example.com", sub.Email)
	assert.False(t, sub.Verified)
	assert.True(t, sub.Active)
	assert.NotEmpty(t, sub.UnsubscribeToken)
	assert.NotContains(t, sub.VerificationHash, "042917")

	require.Len(t, box.msgs, 1)
	assert.Equal(t, "worker@example.com", box.msgs[0].Recipient)
	assert.Contains(t, box.msgs[0].Text, "042917")

	deliverable, err := s.ListDeliverable(ctx, model.CadenceDaily)
	require.NoError(t, err)
	assert.Empty(t, deliverable, "unverified subscriptions receive nothing")

	assert.ErrorIs(t, svc.Verify(ctx, sub.ID, "000000"), ErrInvalidCode)
	require.NoError(t, svc.Verify(ctx, sub.ID, "042917"))
	require.NoError(t, svc.Verify(ctx, sub.ID, "whatever"), "already verified")

	deliverable, err = s.ListDeliverable(ctx, model.CadenceDaily)
	require.NoError(t, err)
	require.Len(t, deliverable, 1)
	assert.Empty(t, deliverable[0].VerificationHash)

	require.NoError(t, svc.Unsubscribe(ctx, sub.UnsubscribeToken))
	deliverable, err = s.ListDeliverable(ctx, model.CadenceDaily)
	require.NoError(t, err)
	assert.Empty(t, deliverable)

	assert.ErrorIs(t, svc.Unsubscribe(ctx, "no-such-token"), model.ErrNotFound)
}

func TestSubscribe_Validation(t *testing.T) {
	svc, _, box := newService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"no channels", Request{Email: "a@example.com", Cadence: model.CadenceDaily}, ErrNoChannels},
		{"bad cadence", Request{Email: "a@example.com", Channels: []model.Channel{model.ChannelEmail}, Cadence: "hourly"}, ErrInvalidCadence},
		{"email without address", Request{Channels: []model.Channel{model.ChannelEmail}, Cadence: model.CadenceDaily}, ErrMissingContact},
		{"malformed email", Request{Email: "not-an-email", Channels: []model.Channel{model.ChannelEmail}, Cadence: model.CadenceDaily}, ErrMissingContact},
		{"sms without phone", Request{Email: "a@example.com", Channels: []model.Channel{model.ChannelSMS}, Cadence: model.CadenceImmediate}, ErrMissingContact},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Subscribe(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, box.msgs)
}

func TestSubscribe_SMSCodeGoesToPhone(t *testing.T) {
	svc, _, box := newService(t)
	_, err := svc.Subscribe(context.Background(), Request{
		Phone:    "+15875550100",
		Channels: []model.Channel{model.ChannelSMS},
		Cadence:  model.CadenceImmediate,
	})
	require.NoError(t, err)
	require.Len(t, box.msgs, 1)
	assert.Equal(t, model.ChannelSMS, box.msgs[0].Channel)
	assert.Equal(t, "+15875550100", box.msgs[0].Recipient)
	assert.Empty(t, box.msgs[0].Subject)
}

func TestSubscribe_SendFailureKeepsSubscription(t *testing.T) {
	svc, s, box := newService(t)
	box.err = errors.New("gateway down")

	sub, err := svc.Subscribe(context.Background(), Request{
		Email: "a@example.com", Channels: []model.Channel{model.ChannelEmail}, Cadence: model.CadenceWeekly,
	})
	require.Error(t, err)
	require.NotNil(t, sub)

	stored, err := s.GetSubscription(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.False(t, stored.Verified)
}

func TestNewCode(t *testing.T) {
	for i := 0; i < 20; i++ {
		code, err := newCode()
		require.NoError(t, err)
		assert.Len(t, code, 6)
	}
}
