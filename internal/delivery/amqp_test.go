package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/amishk599/jobfeed/internal/model"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	declared   []string
	declareErr error
	publishErr error
	published  []published
	closed     bool
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	f.declared = append(f.declared, name+":"+kind)
	return f.declareErr
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestAMQPPublisher_Send(t *testing.T) {
	ch := &fakeChannel{}
	p, err := newAMQPPublisher(ch, "jobfeed.notifications", discardLogger())
	if err != nil {
		t.Fatalf("newAMQPPublisher() = %v", err)
	}
	if len(ch.declared) != 1 || ch.declared[0] != "jobfeed.notifications:direct" {
		t.Fatalf("declared = %v", ch.declared)
	}

	msg := sampleMessage()
	msg.Channel = model.ChannelSMS
	ref, err := p.Send(context.Background(), msg)
	if err != nil {
		t.Fatalf("Send() = %v", err)
	}
	if ref != "d-123" {
		t.Errorf("ref = %q, want d-123", ref)
	}
	if len(ch.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(ch.published))
	}
	pub := ch.published[0]
	if pub.key != "sms" || pub.exchange != "jobfeed.notifications" {
		t.Errorf("published to %s/%s", pub.exchange, pub.key)
	}
	if pub.msg.DeliveryMode != amqp.Persistent || pub.msg.MessageId != "d-123" {
		t.Errorf("publishing = %+v", pub.msg)
	}
	var body model.Message
	if err := json.Unmarshal(pub.msg.Body, &body); err != nil || body.Recipient != "a@example.com" {
		t.Errorf("body = %s (%v)", pub.msg.Body, err)
	}
}

func TestAMQPPublisher_DeclareError(t *testing.T) {
	ch := &fakeChannel{declareErr: errors.New("access refused")}
	if _, err := newAMQPPublisher(ch, "x", discardLogger()); err == nil {
		t.Fatal("expected declare error")
	}
	if !ch.closed {
		t.Error("channel should be closed after declare failure")
	}
}

func TestAMQPPublisher_PublishError(t *testing.T) {
	ch := &fakeChannel{publishErr: amqp.ErrClosed}
	p, err := newAMQPPublisher(ch, "x", discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Send(context.Background(), sampleMessage()); !errors.Is(err, amqp.ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
	if err := p.Close(); err != nil || !ch.closed {
		t.Errorf("Close() = %v closed=%v", err, ch.closed)
	}
}
