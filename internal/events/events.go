package events

import "context"

// Event types
const (
	EventDealStatusChanged = "deal_status_changed"
	EventPaymentVerified   = "payment_verified"
	EventDraftSubmitted    = "draft_submitted"
	EventDraftReviewed     = "draft_reviewed"
	EventPostPublished     = "post_published"
	EventDealCompleted     = "deal_completed"
	EventDealCancelled     = "deal_cancelled"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}

// DealStream is the channel all lifecycle events go to; the websocket
// hub fans it out to connected clients.
const DealStream = "events:deal"
