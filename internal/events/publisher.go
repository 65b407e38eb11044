package events

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/vidrelay/vidrelay-backend/pkg/enums"
	"github.com/vidrelay/vidrelay-backend/pkg/logger"
)

// Event is one message for the conversational front end: quality menus, edit
// menus, selection toggles and upload results all flow through here.
type Event struct {
	Type    enums.FrontendEventType `json:"type"`
	UserID  string                  `json:"user_id"`
	MediaID string                  `json:"media_id,omitempty"`
	Payload map[string]any          `json:"payload,omitempty"`
}

// Publisher delivers events to the front-end feed.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type topicPublisher struct {
	pub  *pubsub.Publisher
	logg *logger.Logger
}

// NewPublisher wires the Pub/Sub-backed publisher.
func NewPublisher(pub *pubsub.Publisher, logg *logger.Logger) (Publisher, error) {
	if pub == nil {
		return nil, fmt.Errorf("pubsub publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &topicPublisher{pub: pub, logg: logg}, nil
}

func (p *topicPublisher) Publish(ctx context.Context, event Event) error {
	if !event.Type.IsValid() {
		return fmt.Errorf("invalid event type %q", event.Type)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	result := p.pub.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"type":    string(event.Type),
			"user_id": event.UserID,
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publishing event: %w", err)
	}

	p.logg.Info(p.logg.WithField(ctx, "event_type", string(event.Type)), "frontend event published")
	return nil
}

type noopPublisher struct{}

// NewNoopPublisher returns a publisher that drops everything. Used when the
// front-end feed is not configured.
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, Event) error { return nil }
