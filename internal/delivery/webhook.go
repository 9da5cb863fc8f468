package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/amishk599/jobfeed/internal/model"
)

// Ensure WebhookSender implements model.DeliveryService.
var _ model.DeliveryService = (*WebhookSender)(nil)

// WebhookSender posts messages as JSON to an HTTP delivery gateway (an email
// or SMS provider's send endpoint, or an internal relay).
type WebhookSender struct {
	url        string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewWebhookSender(url, apiKey string, httpClient *http.Client, logger *slog.Logger) *WebhookSender {
	return &WebhookSender{url: url, apiKey: apiKey, httpClient: httpClient, logger: logger}
}

type webhookResponse struct {
	ID string `json:"id"`
}

// Send posts msg and returns the gateway's message id. A 429 is retried once
// after its Retry-After delay; any other non-2xx status is an *model.HTTPError.
func (s *WebhookSender) Send(ctx context.Context, msg model.Message) (string, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}

	ref, err := s.post(ctx, body)
	if httpErr, ok := err.(*model.HTTPError); ok && httpErr.StatusCode == http.StatusTooManyRequests {
		s.logger.Warn("delivery gateway rate limited, retrying", "retry_after", httpErr.RetryAfter)
		if err := sleep(ctx, httpErr.RetryAfter); err != nil {
			return "", err
		}
		ref, err = s.post(ctx, body)
	}
	if err != nil {
		return "", err
	}
	return ref, nil
}

func (s *WebhookSender) post(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("posting to delivery gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("delivery gateway: %s", bytes.TrimSpace(snippet)),
		}
	}

	var out webhookResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && err != io.EOF {
		return "", fmt.Errorf("decoding gateway response: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("delivery gateway returned no message id")
	}
	return out.ID, nil
}
