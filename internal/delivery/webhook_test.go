package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/amishk599/jobfeed/internal/model"
)

func TestWebhookSender_Send(t *testing.T) {
	var got model.Message
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"id":"msg_42"}`))
	}))
	defer srv.Close()

	s := NewWebhookSender(srv.URL, "secret", srv.Client(), discardLogger())
	ref, err := s.Send(context.Background(), sampleMessage())
	if err != nil {
		t.Fatalf("Send() = %v", err)
	}
	if ref != "msg_42" {
		t.Errorf("ref = %q, want msg_42", ref)
	}
	if auth != "Bearer secret" {
		t.Errorf("Authorization = %q", auth)
	}
	if got.Recipient != "a@example.com" || got.Subject != "New Job Alert" {
		t.Errorf("posted message = %+v", got)
	}
}

func TestWebhookSender_MissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	s := NewWebhookSender(srv.URL, "", srv.Client(), discardLogger())
	if _, err := s.Send(context.Background(), sampleMessage()); err == nil {
		t.Fatal("expected error for response without id")
	}
}

func TestWebhookSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid recipient", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	s := NewWebhookSender(srv.URL, "", srv.Client(), discardLogger())
	_, err := s.Send(context.Background(), sampleMessage())
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("err = %v, want HTTPError 422", err)
	}
}

func TestWebhookSender_RateLimitedOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"id":"msg_2"}`))
	}))
	defer srv.Close()

	s := NewWebhookSender(srv.URL, "", srv.Client(), discardLogger())
	ref, err := s.Send(context.Background(), sampleMessage())
	if err != nil {
		t.Fatalf("Send() = %v", err)
	}
	if ref != "msg_2" || calls.Load() != 2 {
		t.Errorf("ref = %q calls = %d", ref, calls.Load())
	}
}

func TestWebhookSender_RateLimitedCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	s := NewWebhookSender(srv.URL, "", srv.Client(), discardLogger())
	go cancel()
	if _, err := s.Send(ctx, sampleMessage()); err == nil {
		t.Fatal("expected error after cancellation")
	}
}
