package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/drift-commerce/api/internal/domain"
	"github.com/drift-commerce/api/internal/repositories/memory"
)

type capturingAudit struct {
	records []AuditLogRecord
}

func (a *capturingAudit) Record(_ context.Context, record AuditLogRecord) {
	a.records = append(a.records, record)
}

func (a *capturingAudit) List(context.Context, AuditLogFilter) (domain.CursorPage[AuditLogEntry], error) {
	return domain.CursorPage[AuditLogEntry]{}, errors.New("unexpected List call")
}

type orderFixture struct {
	svc    OrderService
	orders *memory.OrderRepository
	events *recordingEventPublisher
	audit  *capturingAudit
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()

	orders := memory.NewOrderRepository()
	events := &recordingEventPublisher{}
	audit := &capturingAudit{}

	svc, err := NewOrderService(OrderServiceDeps{
		Orders: orders,
		Events: events,
		Audit:  audit,
		Clock:  testClock(),
	})
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}
	return &orderFixture{svc: svc, orders: orders, events: events, audit: audit}
}

func (f *orderFixture) seed(t *testing.T, order domain.Order) domain.Order {
	t.Helper()
	if order.PlacedAt.IsZero() {
		order.PlacedAt = time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC)
	}
	if err := f.orders.Insert(context.Background(), order); err != nil {
		t.Fatalf("seed order %s: %v", order.ID, err)
	}
	return order
}

func pendingOrder(id, userID string) domain.Order {
	return domain.Order{
		ID:        id,
		UserID:    userID,
		Status:    domain.OrderStatusPending,
		StockSync: domain.StockSyncApplied,
		Items:     []domain.CartLine{{ProductID: "prod-1", Title: "Organiser", UnitPrice: 1000, Quantity: 1}},
		Subtotal:  1000,
		Tax:       180,
		Total:     1180,
	}
}

func TestOrderTransitionMatrix(t *testing.T) {
	cases := []struct {
		name    string
		from    domain.OrderStatus
		to      domain.OrderStatus
		allowed bool
	}{
		{"pending to shipped", domain.OrderStatusPending, domain.OrderStatusShipped, true},
		{"pending to cancelled", domain.OrderStatusPending, domain.OrderStatusCancelled, true},
		{"pending to delivered", domain.OrderStatusPending, domain.OrderStatusDelivered, false},
		{"shipped to delivered", domain.OrderStatusShipped, domain.OrderStatusDelivered, true},
		{"shipped to cancelled", domain.OrderStatusShipped, domain.OrderStatusCancelled, true},
		{"shipped to pending", domain.OrderStatusShipped, domain.OrderStatusPending, false},
		{"delivered is terminal", domain.OrderStatusDelivered, domain.OrderStatusShipped, false},
		{"cancelled is terminal", domain.OrderStatusCancelled, domain.OrderStatusPending, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newOrderFixture(t)
			order := pendingOrder("ORD-1", "user-1")
			order.Status = tc.from
			f.seed(t, order)

			updated, err := f.svc.TransitionStatus(context.Background(), OrderStatusTransitionCommand{
				OrderID:      "ORD-1",
				TargetStatus: tc.to,
				ActorID:      "admin-1",
			})
			if tc.allowed {
				if err != nil {
					t.Fatalf("expected transition allowed, got %v", err)
				}
				if updated.Status != tc.to {
					t.Fatalf("expected status %q, got %q", tc.to, updated.Status)
				}
				return
			}
			if !errors.Is(err, ErrOrderInvalidState) {
				t.Fatalf("expected ErrOrderInvalidState, got %v", err)
			}
			stored, findErr := f.orders.FindByID(context.Background(), "ORD-1")
			if findErr != nil {
				t.Fatalf("FindByID: %v", findErr)
			}
			if stored.Status != tc.from {
				t.Fatalf("rejected transition must not write, status is %q", stored.Status)
			}
		})
	}
}

func TestOrderTransitionSetsTimestamps(t *testing.T) {
	f := newOrderFixture(t)
	f.seed(t, pendingOrder("ORD-1", "user-1"))

	shipped, err := f.svc.TransitionStatus(context.Background(), OrderStatusTransitionCommand{
		OrderID:      "ORD-1",
		TargetStatus: domain.OrderStatusShipped,
		ActorID:      "admin-1",
	})
	if err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}
	if shipped.ShippedAt == nil || !shipped.ShippedAt.Equal(testClock()()) {
		t.Fatalf("expected shippedAt stamped, got %v", shipped.ShippedAt)
	}

	delivered, err := f.svc.TransitionStatus(context.Background(), OrderStatusTransitionCommand{
		OrderID:      "ORD-1",
		TargetStatus: domain.OrderStatusDelivered,
		ActorID:      "admin-1",
	})
	if err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}
	if delivered.DeliveredAt == nil {
		t.Fatal("expected deliveredAt stamped")
	}
	if delivered.ShippedAt == nil {
		t.Fatal("expected shippedAt preserved")
	}
}

func TestOrderSelfTransitionIsNoOp(t *testing.T) {
	f := newOrderFixture(t)
	f.seed(t, pendingOrder("ORD-1", "user-1"))

	order, err := f.svc.TransitionStatus(context.Background(), OrderStatusTransitionCommand{
		OrderID:      "ORD-1",
		TargetStatus: domain.OrderStatusPending,
		ActorID:      "admin-1",
	})
	if err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("unexpected status %q", order.Status)
	}
	if len(f.events.events) != 0 || len(f.audit.records) != 0 {
		t.Fatalf("self transition must not publish or audit, got %d events %d records", len(f.events.events), len(f.audit.records))
	}
}

func TestOrderTransitionUnknownStatus(t *testing.T) {
	f := newOrderFixture(t)
	f.seed(t, pendingOrder("ORD-1", "user-1"))

	_, err := f.svc.TransitionStatus(context.Background(), OrderStatusTransitionCommand{
		OrderID:      "ORD-1",
		TargetStatus: "refunded",
		ActorID:      "admin-1",
	})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput, got %v", err)
	}
}

func TestOrderTransitionPublishesAndAudits(t *testing.T) {
	f := newOrderFixture(t)
	f.seed(t, pendingOrder("ORD-1", "user-1"))

	_, err := f.svc.TransitionStatus(context.Background(), OrderStatusTransitionCommand{
		OrderID:      "ORD-1",
		TargetStatus: domain.OrderStatusShipped,
		ActorID:      "admin-1",
		Reason:       "courier picked up",
	})
	if err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}

	if len(f.events.events) != 1 {
		t.Fatalf("expected one event, got %d", len(f.events.events))
	}
	event := f.events.events[0]
	if event.Type != OrderEventStatusChanged || event.Status != domain.OrderStatusShipped {
		t.Fatalf("unexpected event %+v", event)
	}
	if event.FromStatus == nil || *event.FromStatus != domain.OrderStatusPending {
		t.Fatalf("expected from status pending, got %v", event.FromStatus)
	}

	if len(f.audit.records) != 1 {
		t.Fatalf("expected one audit record, got %d", len(f.audit.records))
	}
	record := f.audit.records[0]
	if record.Action != "order.status_changed" || record.TargetRef != "orders/ORD-1" || record.ActorType != "admin" {
		t.Fatalf("unexpected audit record %+v", record)
	}
	if record.Metadata["reason"] != "courier picked up" {
		t.Fatalf("expected reason in metadata, got %v", record.Metadata)
	}
}

func TestOrderCancelByOwner(t *testing.T) {
	f := newOrderFixture(t)
	f.seed(t, pendingOrder("ORD-1", "user-1"))

	cancelled, err := f.svc.Cancel(context.Background(), CancelOrderCommand{
		OrderID: "ORD-1",
		UserID:  "user-1",
		Reason:  "changed my mind",
	})
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %q", cancelled.Status)
	}
	if cancelled.CancelledAt == nil {
		t.Fatal("expected cancelledAt stamped")
	}
	if cancelled.CancelReason == nil || *cancelled.CancelReason != "changed my mind" {
		t.Fatalf("expected cancel reason recorded, got %v", cancelled.CancelReason)
	}
	if len(f.audit.records) != 1 || f.audit.records[0].ActorType != "customer" {
		t.Fatalf("expected customer audit record, got %+v", f.audit.records)
	}
}

func TestOrderCancelRejectsForeignOrder(t *testing.T) {
	f := newOrderFixture(t)
	f.seed(t, pendingOrder("ORD-1", "user-1"))

	_, err := f.svc.Cancel(context.Background(), CancelOrderCommand{OrderID: "ORD-1", UserID: "user-2"})
	if !errors.Is(err, ErrOrderForbidden) {
		t.Fatalf("expected ErrOrderForbidden, got %v", err)
	}
}

func TestOrderCancelRequiresPendingStatus(t *testing.T) {
	f := newOrderFixture(t)
	order := pendingOrder("ORD-1", "user-1")
	order.Status = domain.OrderStatusShipped
	f.seed(t, order)

	_, err := f.svc.Cancel(context.Background(), CancelOrderCommand{OrderID: "ORD-1", UserID: "user-1"})
	if !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected ErrOrderInvalidState, got %v", err)
	}
}

func TestOrderGetOrderMissing(t *testing.T) {
	f := newOrderFixture(t)

	_, err := f.svc.GetOrder(context.Background(), "ORD-missing")
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderListFiltersByStatus(t *testing.T) {
	f := newOrderFixture(t)
	f.seed(t, pendingOrder("ORD-1", "user-1"))
	shipped := pendingOrder("ORD-2", "user-1")
	shipped.Status = domain.OrderStatusShipped
	f.seed(t, shipped)

	page, err := f.svc.ListOrders(context.Background(), OrderListFilter{
		UserID: "user-1",
		Status: []string{string(domain.OrderStatusShipped)},
	})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "ORD-2" {
		t.Fatalf("expected only the shipped order, got %+v", page.Items)
	}
}
