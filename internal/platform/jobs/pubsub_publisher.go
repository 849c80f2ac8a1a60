package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/drift-commerce/api/internal/services"
)

// PubSubOrderEventPublisher publishes order lifecycle events to a Pub/Sub
// topic. Messages carry an ordering key per order so consumers observe
// transitions in the order they happened.
type PubSubOrderEventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubOrderEventPublisher constructs a Pub/Sub backed order event publisher.
func NewPubSubOrderEventPublisher(topic *pubsub.Topic) (*PubSubOrderEventPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub order event publisher: topic is required")
	}
	topic.EnableMessageOrdering = true
	return &PubSubOrderEventPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishOrderEvent enqueues an order lifecycle event on the configured topic.
func (p *PubSubOrderEventPublisher) PublishOrderEvent(ctx context.Context, event services.OrderEvent) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub order event publisher: not initialised")
	}

	data, err := p.marshal(orderEventEnvelope{
		Type:       event.Type,
		OrderID:    event.OrderID,
		UserID:     event.UserID,
		Status:     string(event.Status),
		FromStatus: orderStatusString(event.FromStatus),
		ActorID:    event.ActorID,
		OccurredAt: event.OccurredAt.UTC().Format(time.RFC3339Nano),
		Metadata:   event.Metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "eventType", event.Type)
	setAttr(attrs, "orderId", event.OrderID)
	setAttr(attrs, "userId", event.UserID)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:        data,
		Attributes:  attrs,
		OrderingKey: strings.TrimSpace(event.OrderID),
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish order event: %w", err)
	}
	return nil
}

type orderEventEnvelope struct {
	Type       string         `json:"type"`
	OrderID    string         `json:"orderId"`
	UserID     string         `json:"userId,omitempty"`
	Status     string         `json:"status,omitempty"`
	FromStatus string         `json:"fromStatus,omitempty"`
	ActorID    string         `json:"actorId,omitempty"`
	OccurredAt string         `json:"occurredAt"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func orderStatusString(status *services.OrderStatus) string {
	if status == nil {
		return ""
	}
	return string(*status)
}

// PubSubStockSyncPublisher publishes stock sync jobs to a Pub/Sub topic.
type PubSubStockSyncPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubStockSyncPublisher constructs a Pub/Sub backed stock sync job publisher.
func NewPubSubStockSyncPublisher(topic *pubsub.Topic) (*PubSubStockSyncPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub stock sync publisher: topic is required")
	}
	return &PubSubStockSyncPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishStockSyncJob enqueues a stock sync job message on the configured topic.
func (p *PubSubStockSyncPublisher) PublishStockSyncJob(ctx context.Context, message services.StockSyncJobMessage) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub stock sync publisher: not initialised")
	}

	data, err := p.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal stock sync job: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "reason", message.Reason)
	if len(message.OrderIDs) > 0 {
		attrs["orderCount"] = fmt.Sprintf("%d", len(message.OrderIDs))
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish stock sync job: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}

var (
	_ services.OrderEventPublisher   = (*PubSubOrderEventPublisher)(nil)
	_ services.StockSyncJobPublisher = (*PubSubStockSyncPublisher)(nil)
)
