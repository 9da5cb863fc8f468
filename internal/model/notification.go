package model

import (
	"context"
	"time"
)

// Channel is a delivery channel a subscriber can receive notifications on.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Cadence is how often a subscriber wants to be notified.
type Cadence string

const (
	CadenceImmediate Cadence = "immediate"
	CadenceDaily     Cadence = "daily"
	CadenceWeekly    Cadence = "weekly"
)

// Window returns the trailing job window scanned for a digest cadence.
func (c Cadence) Window() time.Duration {
	switch c {
	case CadenceDaily:
		return 24 * time.Hour
	case CadenceWeekly:
		return 7 * 24 * time.Hour
	default:
		return 0
	}
}

// Filters are a subscriber's interest criteria. Empty categories impose no constraint.
type Filters struct {
	Regions         []string `json:"regions,omitempty"`
	Sectors         []string `json:"sectors,omitempty"`
	Companies       []string `json:"companies,omitempty"`
	EmploymentTypes []string `json:"employment_types,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
	MinSalary       *int     `json:"min_salary,omitempty"`
}

type Subscription struct {
	ID               string
	Email            string
	Phone            string
	Channels         []Channel
	Cadence          Cadence
	Filters          Filters
	Verified         bool
	Active           bool
	VerificationHash string
	UnsubscribeToken string
	LastNotifiedAt   *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Recipient returns the address for ch, or "" if the subscriber has none.
func (s Subscription) Recipient(ch Channel) string {
	switch ch {
	case ChannelEmail:
		return s.Email
	case ChannelSMS:
		return s.Phone
	}
	return ""
}

// QueueEntry is one (job, subscription) pairing awaiting immediate delivery.
type QueueEntry struct {
	ID                string
	JobID             string
	SubscriptionID    string
	Priority          int
	ScheduledFor      time.Time
	MatchedCategories []string
	ProcessedAt       *time.Time
	CreatedAt         time.Time
}

// Batch groups the jobs for one subscription on one channel. It lives only
// for the duration of a delivery attempt.
type Batch struct {
	Subscription  Subscription
	Channel       Channel
	Template      Cadence
	Jobs          []CanonicalJob
	QueueEntryIDs []string
}

func (b Batch) JobIDs() []string {
	ids := make([]string, len(b.Jobs))
	for i, j := range b.Jobs {
		ids[i] = j.ID
	}
	return ids
}

type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
)

// Delivery is the durable audit record of one send attempt.
type Delivery struct {
	ID             string
	SubscriptionID string
	JobIDs         []string
	Channel        Channel
	Recipient      string
	Subject        string
	Content        string
	Status         DeliveryStatus
	ProviderRef    string
	Error          string
	CreatedAt      time.Time
	SentAt         *time.Time
}

// Message is a rendered notification ready for a delivery provider.
type Message struct {
	ID        string  `json:"id"`
	Channel   Channel `json:"channel"`
	Recipient string  `json:"recipient"`
	Subject   string  `json:"subject,omitempty"`
	Text      string  `json:"text"`
	HTML      string  `json:"html,omitempty"`
}

// DeliveryService sends a rendered message and returns the provider's reference.
type DeliveryService interface {
	Send(ctx context.Context, msg Message) (string, error)
}
