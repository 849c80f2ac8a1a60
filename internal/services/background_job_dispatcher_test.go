package services

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type stubJobPublisher struct {
	messages  []StockSyncJobMessage
	messageID string
	err       error
}

func (p *stubJobPublisher) PublishStockSyncJob(_ context.Context, message StockSyncJobMessage) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.messages = append(p.messages, message)
	return p.messageID, nil
}

func newTestJobDispatcher(t *testing.T, publisher StockSyncJobPublisher) BackgroundJobDispatcher {
	t.Helper()
	svc, err := NewBackgroundJobDispatcher(BackgroundJobDispatcherDeps{
		Publisher: publisher,
		Clock:     testClock(),
	})
	if err != nil {
		t.Fatalf("NewBackgroundJobDispatcher: %v", err)
	}
	return svc
}

func TestEnqueueStockSyncPublishesMessage(t *testing.T) {
	publisher := &stubJobPublisher{messageID: "msg-1"}
	svc := newTestJobDispatcher(t, publisher)

	err := svc.EnqueueStockSync(context.Background(), StockSyncJobPayload{
		OrderIDs: []string{"  ORD-1 ", "", "ORD-2"},
		Reason:   " checkout deduction failed ",
	})
	if err != nil {
		t.Fatalf("EnqueueStockSync: %v", err)
	}

	if len(publisher.messages) != 1 {
		t.Fatalf("expected one publish, got %d", len(publisher.messages))
	}
	msg := publisher.messages[0]
	if !reflect.DeepEqual(msg.OrderIDs, []string{"ORD-1", "ORD-2"}) {
		t.Fatalf("unexpected order ids %v", msg.OrderIDs)
	}
	if msg.Reason != "checkout deduction failed" {
		t.Fatalf("unexpected reason %q", msg.Reason)
	}
	if !msg.QueuedAt.Equal(testClock()()) {
		t.Fatalf("unexpected queue time %v", msg.QueuedAt)
	}
}

func TestEnqueueStockSyncRejectsEmptyPayload(t *testing.T) {
	publisher := &stubJobPublisher{}
	svc := newTestJobDispatcher(t, publisher)

	err := svc.EnqueueStockSync(context.Background(), StockSyncJobPayload{OrderIDs: []string{" ", ""}})
	if !errors.Is(err, ErrJobInvalidInput) {
		t.Fatalf("expected ErrJobInvalidInput, got %v", err)
	}
	if len(publisher.messages) != 0 {
		t.Fatal("no message should be published")
	}
}

func TestEnqueueStockSyncWrapsPublisherFailure(t *testing.T) {
	cause := errors.New("topic unavailable")
	svc := newTestJobDispatcher(t, &stubJobPublisher{err: cause})

	err := svc.EnqueueStockSync(context.Background(), StockSyncJobPayload{OrderIDs: []string{"ORD-1"}})
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped publisher error, got %v", err)
	}
}
