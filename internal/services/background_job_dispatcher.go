package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const jobEventStockSyncQueued = "jobs.stock_sync.queued"

// ErrJobInvalidInput indicates required fields were missing from the payload.
var ErrJobInvalidInput = errors.New("jobs: invalid input")

// StockSyncJobPublisher publishes stock sync job messages to the background queue.
type StockSyncJobPublisher interface {
	PublishStockSyncJob(ctx context.Context, message StockSyncJobMessage) (string, error)
}

// StockSyncJobMessage is the payload delivered to background workers via Pub/Sub.
type StockSyncJobMessage struct {
	OrderIDs []string  `json:"orderIds"`
	Reason   string    `json:"reason,omitempty"`
	QueuedAt time.Time `json:"queuedAt"`
}

// BackgroundJobDispatcherDeps enumerates collaborators required to construct the dispatcher.
type BackgroundJobDispatcherDeps struct {
	Publisher StockSyncJobPublisher
	Clock     func() time.Time
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type backgroundJobDispatcher struct {
	publisher StockSyncJobPublisher
	clock     func() time.Time
	logger    func(context.Context, string, map[string]any)
}

// NewBackgroundJobDispatcher wires dependencies into a BackgroundJobDispatcher implementation.
func NewBackgroundJobDispatcher(deps BackgroundJobDispatcherDeps) (BackgroundJobDispatcher, error) {
	if deps.Publisher == nil {
		return nil, errors.New("background job dispatcher: publisher is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &backgroundJobDispatcher{
		publisher: deps.Publisher,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// EnqueueStockSync publishes a reconciliation job for orders whose stock
// deduction did not complete during checkout.
func (d *backgroundJobDispatcher) EnqueueStockSync(ctx context.Context, payload StockSyncJobPayload) error {
	ids := make([]string, 0, len(payload.OrderIDs))
	for _, id := range payload.OrderIDs {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: at least one order id is required", ErrJobInvalidInput)
	}

	msg := StockSyncJobMessage{
		OrderIDs: ids,
		Reason:   strings.TrimSpace(payload.Reason),
		QueuedAt: d.clock(),
	}
	messageID, err := d.publisher.PublishStockSyncJob(ctx, msg)
	if err != nil {
		return fmt.Errorf("publish stock sync job: %w", err)
	}

	d.logger(ctx, jobEventStockSyncQueued, map[string]any{
		"messageId": messageID,
		"orderIds":  ids,
		"reason":    msg.Reason,
	})
	return nil
}
