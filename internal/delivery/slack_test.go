package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/amishk599/jobfeed/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleMessage() model.Message {
	return model.Message{
		ID:        "d-123",
		Channel:   model.ChannelEmail,
		Recipient: "a@example.com",
		Subject:   "New Job Alert",
		Text:      "- Millwright at Acme Mining (Calgary, AB)",
	}
}

func TestSlackSender_PayloadFormat(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSlackSender(srv.URL, srv.Client(), discardLogger())
	ref, err := s.Send(context.Background(), sampleMessage())
	if err != nil {
		t.Fatalf("Send() = %v, want nil", err)
	}
	if ref != "slack-d-123" {
		t.Errorf("ref = %q, want slack-d-123", ref)
	}

	var payload slackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if len(payload.Blocks) != 5 {
		t.Fatalf("expected 5 blocks, got %d", len(payload.Blocks))
	}
	if payload.Blocks[0].Type != "header" || payload.Blocks[0].Text.Text != "📬 New Job Alert" {
		t.Errorf("header = %+v", payload.Blocks[0])
	}
	if f := payload.Blocks[1].Fields[1].Text; f != "*Recipient:*\na@example.com" {
		t.Errorf("recipient field = %q", f)
	}
	if !strings.Contains(payload.Blocks[2].Text.Text, "Millwright at Acme Mining") {
		t.Errorf("body block = %q", payload.Blocks[2].Text.Text)
	}
	if payload.Blocks[4].Type != "divider" {
		t.Errorf("block[4] type = %q, want divider", payload.Blocks[4].Type)
	}
}

func TestSlackSender_DefaultTitleForSMS(t *testing.T) {
	msg := sampleMessage()
	msg.Subject = ""
	msg.Channel = model.ChannelSMS
	p := buildPayload(msg)
	if p.Blocks[0].Text.Text != "📬 Job alert" {
		t.Errorf("header = %q", p.Blocks[0].Text.Text)
	}
	if p.Blocks[1].Fields[0].Text != "*Channel:*\nSms" {
		t.Errorf("channel field = %q", p.Blocks[1].Fields[0].Text)
	}
}

func TestSlackSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewSlackSender(srv.URL, srv.Client(), discardLogger())
	_, err := s.Send(context.Background(), sampleMessage())
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("err = %v, want HTTPError 500", err)
	}
}

func TestSlackSender_RateLimited(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSlackSender(srv.URL, srv.Client(), discardLogger())
	if _, err := s.Send(context.Background(), sampleMessage()); err != nil {
		t.Fatalf("expected nil after retry, got %v", err)
	}
	if c := calls.Load(); c != 2 {
		t.Errorf("expected 2 HTTP calls (initial + retry), got %d", c)
	}
}
