package observability

import (
	"context"
	"sync"
	"time"
)

// Routing keys of domain events.
const (
	EventMessageSent  = "dm.message.sent"
	EventMessageRead  = "dm.message.read"
	EventFriendAdded  = "dm.friend.added"
	EventUserSignedIn = "dm.user.signed_in"
)

type EventEnvelope struct {
	EventType  string      `json:"event_type"`
	EventName  string      `json:"event_name"`
	OccurredAt string      `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// Publisher sends an event body with transport headers.
type Publisher interface {
	PublishWithHeaders(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

var (
	publisherMu      sync.RWMutex
	defaultPublisher Publisher
)

func SetPublisher(publisher Publisher) {
	publisherMu.Lock()
	defer publisherMu.Unlock()
	defaultPublisher = publisher
}

// PublishEvent wraps payload in an envelope and publishes it under routingKey.
// Without a publisher it does nothing.
func PublishEvent(ctx context.Context, routingKey, name string, payload interface{}, headers map[string]string) error {
	publisherMu.RLock()
	publisher := defaultPublisher
	publisherMu.RUnlock()
	if publisher == nil {
		return nil
	}

	envelope := EventEnvelope{
		EventType:  "domain_event",
		EventName:  name,
		OccurredAt: time.Now().UTC().Format(time.RFC3339Nano),
		Payload:    payload,
	}
	err := publisher.PublishWithHeaders(ctx, routingKey, envelope, headers)
	if err != nil {
		IncAMQPPublishError()
	}
	return err
}

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
