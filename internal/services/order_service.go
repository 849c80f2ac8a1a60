package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	domain "github.com/drift-commerce/api/internal/domain"
	"github.com/drift-commerce/api/internal/repositories"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidState indicates an invalid status transition was attempted.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderForbidden indicates the actor does not own the order.
	ErrOrderForbidden = errors.New("order: forbidden")
	// ErrOrderConflict indicates concurrent modification prevented the update.
	ErrOrderConflict = errors.New("order: conflict")
)

// orderStateTransitions defines the permitted successor set per status.
// Self-transitions are always allowed for idempotent re-selection.
var orderStateTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending: {domain.OrderStatusShipped, domain.OrderStatusCancelled},
	domain.OrderStatusShipped: {domain.OrderStatusDelivered, domain.OrderStatusCancelled},
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders repositories.OrderRepository
	Events OrderEventPublisher
	Audit  AuditLogService
	Clock  func() time.Time
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders repositories.OrderRepository
	events OrderEventPublisher
	audit  AuditLogService
	clock  func() time.Time
	logger func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders: deps.Orders,
		events: deps.Events,
		audit:  deps.Audit,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

// TransitionStatus moves an order along the state machine on behalf of an
// admin. The write is a partial update touching the status and its timestamp
// only; a disallowed transition is rejected before any write.
func (s *orderService) TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	target := domain.OrderStatus(strings.TrimSpace(string(cmd.TargetStatus)))

	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if !validOrderStatus(target) {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, target)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if !canTransition(order.Status, target) {
		return Order{}, fmt.Errorf("%w: %s to %s", ErrOrderInvalidState, order.Status, target)
	}

	now := s.clock()
	prev := order.Status
	if prev == target {
		return order, nil
	}

	update := repositories.OrderStatusUpdate{Status: target, UpdatedAt: now}
	reason := strings.TrimSpace(cmd.Reason)
	switch target {
	case domain.OrderStatusShipped:
		update.ShippedAt = &now
	case domain.OrderStatusDelivered:
		update.DeliveredAt = &now
	case domain.OrderStatusCancelled:
		update.CancelledAt = &now
		if reason != "" {
			update.CancelReason = &reason
		}
	}

	updated, err := s.orders.UpdateStatus(ctx, orderID, update)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.recordTransition(ctx, updated, prev, cmd.ActorID, "admin", reason, now)
	return updated, nil
}

// Cancel handles a customer cancellation request. Allowed only while the
// order is exactly pending and owned by the caller; anything else is rejected
// with no write.
func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Order{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if !strings.EqualFold(strings.TrimSpace(order.UserID), userID) {
		return Order{}, ErrOrderForbidden
	}
	if order.Status != domain.OrderStatusPending {
		return Order{}, fmt.Errorf("%w: can only cancel pending orders, status is %s", ErrOrderInvalidState, order.Status)
	}

	now := s.clock()
	reason := strings.TrimSpace(cmd.Reason)
	update := repositories.OrderStatusUpdate{
		Status:      domain.OrderStatusCancelled,
		UpdatedAt:   now,
		CancelledAt: &now,
	}
	if reason != "" {
		update.CancelReason = &reason
	}

	updated, err := s.orders.UpdateStatus(ctx, orderID, update)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.recordTransition(ctx, updated, domain.OrderStatusPending, userID, "customer", reason, now)
	return updated, nil
}

func (s *orderService) recordTransition(ctx context.Context, order Order, prev domain.OrderStatus, actor, actorType, reason string, now time.Time) {
	metadata := map[string]any{
		"from": string(prev),
		"to":   string(order.Status),
	}
	if reason != "" {
		metadata["reason"] = reason
	}

	if s.audit != nil {
		s.audit.Record(ctx, AuditLogRecord{
			Actor:      actor,
			ActorType:  actorType,
			Action:     "order.status_changed",
			TargetRef:  "orders/" + order.ID,
			OccurredAt: now,
			Metadata:   maps.Clone(metadata),
		})
	}

	s.publishEvent(ctx, OrderEvent{
		Type:       OrderEventStatusChanged,
		OrderID:    order.ID,
		UserID:     order.UserID,
		Status:     order.Status,
		FromStatus: &prev,
		ActorID:    actor,
		OccurredAt: now,
		Metadata:   metadata,
	})
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if event.Metadata != nil {
		event.Metadata = maps.Clone(event.Metadata)
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event_publish_failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"error":  err.Error(),
			"status": string(event.Status),
		})
	}
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}

func validOrderStatus(status domain.OrderStatus) bool {
	switch status {
	case domain.OrderStatusPending, domain.OrderStatusShipped, domain.OrderStatusDelivered, domain.OrderStatusCancelled:
		return true
	}
	return false
}

func canTransition(current, target domain.OrderStatus) bool {
	if current == target {
		return true
	}
	next, ok := orderStateTransitions[current]
	if !ok {
		return false
	}
	return slices.Contains(next, target)
}
