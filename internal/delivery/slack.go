package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/jobfeed/internal/model"
)

// Ensure SlackSender implements model.DeliveryService.
var _ model.DeliveryService = (*SlackSender)(nil)

// SlackSender mirrors notifications into a Slack channel via Incoming
// Webhooks instead of delivering them to the subscriber.
type SlackSender struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSlackSender returns a sender that posts each message to Slack.
func NewSlackSender(webhookURL string, httpClient *http.Client, logger *slog.Logger) *SlackSender {
	return &SlackSender{
		webhookURL: webhookURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Send posts msg as a Block Kit message. Slack returns no message id, so the
// reference is derived from the message id.
func (s *SlackSender) Send(ctx context.Context, msg model.Message) (string, error) {
	body, err := json.Marshal(buildPayload(msg))
	if err != nil {
		return "", fmt.Errorf("marshal slack payload: %w", err)
	}

	status, retryAfter, err := s.post(ctx, body)
	if err != nil {
		return "", err
	}
	if status == http.StatusTooManyRequests {
		s.logger.Warn("slack rate limited, retrying", "retry_after", retryAfter)
		if err := sleep(ctx, retryAfter); err != nil {
			return "", err
		}
		status, _, err = s.post(ctx, body)
		if err != nil {
			return "", fmt.Errorf("post to slack (retry): %w", err)
		}
	}
	if status != http.StatusOK {
		return "", &model.HTTPError{StatusCode: status, Err: fmt.Errorf("slack returned %d", status)}
	}

	s.logger.Info("slack message sent", "channel", msg.Channel, "recipient", msg.Recipient)
	return "slack-" + msg.ID, nil
}

func (s *SlackSender) post(ctx context.Context, body []byte) (int, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return 0, 0, fmt.Errorf("creating slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("post to slack: %w", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, parseRetryAfter(resp.Header.Get("Retry-After")), nil
}

// Block Kit payload types.

type slackPayload struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Fields   []slackText `json:"fields,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func buildPayload(msg model.Message) slackPayload {
	title := msg.Subject
	if title == "" {
		title = "Job alert"
	}

	return slackPayload{
		Text: title,
		Blocks: []slackBlock{
			{
				Type: "header",
				Text: &slackText{Type: "plain_text", Text: "📬 " + title},
			},
			{
				Type: "section",
				Fields: []slackText{
					{Type: "mrkdwn", Text: "*Channel:*\n" + capitalize(string(msg.Channel))},
					{Type: "mrkdwn", Text: "*Recipient:*\n" + msg.Recipient},
				},
			},
			{
				Type: "section",
				Text: &slackText{Type: "mrkdwn", Text: "```" + msg.Text + "```"},
			},
			{
				Type:     "context",
				Elements: []slackText{{Type: "mrkdwn", Text: "delivery " + msg.ID}},
			},
			{Type: "divider"},
		},
	}
}

func parseRetryAfter(v string) time.Duration {
	secs, _ := strconv.Atoi(v)
	if secs <= 0 {
		secs = 1
	}
	return time.Duration(secs) * time.Second
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
