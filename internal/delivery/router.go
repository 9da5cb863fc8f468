package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/amishk599/jobfeed/internal/model"
)

// Ensure Router implements model.DeliveryService.
var _ model.DeliveryService = (*Router)(nil)

// Router dispatches each message to the sender registered for its channel.
type Router struct {
	senders map[model.Channel]model.DeliveryService
}

func NewRouter(senders map[model.Channel]model.DeliveryService) *Router {
	return &Router{senders: senders}
}

func (r *Router) Send(ctx context.Context, msg model.Message) (string, error) {
	s, ok := r.senders[msg.Channel]
	if !ok {
		return "", fmt.Errorf("no sender configured for channel %q", msg.Channel)
	}
	return s.Send(ctx, msg)
}

// SendTestMessage sends a sample alert to recipient to verify a channel's
// provider integration end to end.
func SendTestMessage(ctx context.Context, s model.DeliveryService, ch model.Channel, recipient string) (string, error) {
	msg := model.Message{
		ID:        fmt.Sprintf("test-%d", time.Now().Unix()),
		Channel:   ch,
		Recipient: recipient,
		Text:      "jobfeed test notification: integration verified.",
	}
	if ch == model.ChannelEmail {
		msg.Subject = "jobfeed test notification"
		msg.HTML = "<p>jobfeed test notification: integration verified.</p>"
	}
	return s.Send(ctx, msg)
}
