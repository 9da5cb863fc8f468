package delivery

import (
	"context"
	"testing"

	"github.com/amishk599/jobfeed/internal/model"
)

type captureSender struct {
	msgs []model.Message
}

func (c *captureSender) Send(_ context.Context, msg model.Message) (string, error) {
	c.msgs = append(c.msgs, msg)
	return "ref-" + string(msg.Channel), nil
}

func TestRouter_DispatchesByChannel(t *testing.T) {
	email, sms := &captureSender{}, &captureSender{}
	r := NewRouter(map[model.Channel]model.DeliveryService{
		model.ChannelEmail: email,
		model.ChannelSMS:   sms,
	})

	msg := sampleMessage()
	if ref, err := r.Send(context.Background(), msg); err != nil || ref != "ref-email" {
		t.Fatalf("email Send() = %q, %v", ref, err)
	}
	msg.Channel = model.ChannelSMS
	if ref, err := r.Send(context.Background(), msg); err != nil || ref != "ref-sms" {
		t.Fatalf("sms Send() = %q, %v", ref, err)
	}
	if len(email.msgs) != 1 || len(sms.msgs) != 1 {
		t.Errorf("email=%d sms=%d, want 1 each", len(email.msgs), len(sms.msgs))
	}
}

func TestRouter_UnknownChannel(t *testing.T) {
	r := NewRouter(map[model.Channel]model.DeliveryService{model.ChannelEmail: &captureSender{}})
	msg := sampleMessage()
	msg.Channel = model.ChannelSMS
	if _, err := r.Send(context.Background(), msg); err == nil {
		t.Fatal("expected error for unconfigured channel")
	}
}

func TestSendTestMessage(t *testing.T) {
	c := &captureSender{}
	if _, err := SendTestMessage(context.Background(), c, model.ChannelEmail, "ops@example.com"); err != nil {
		t.Fatal(err)
	}
	if _, err := SendTestMessage(context.Background(), c, model.ChannelSMS, "+15875550100"); err != nil {
		t.Fatal(err)
	}
	if c.msgs[0].Subject == "" || c.msgs[0].HTML == "" {
		t.Errorf("email test message missing subject/html: %+v", c.msgs[0])
	}
	if c.msgs[1].Subject != "" || c.msgs[1].Recipient != "+15875550100" {
		t.Errorf("sms test message = %+v", c.msgs[1])
	}
}
