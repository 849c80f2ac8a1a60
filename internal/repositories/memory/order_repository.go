package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	domain "github.com/drift-commerce/api/internal/domain"
	"github.com/drift-commerce/api/internal/repositories"
)

// OrderRepository keeps order documents in process memory.
type OrderRepository struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
}

// NewOrderRepository constructs an empty in-memory order repository.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{orders: map[string]domain.Order{}}
}

func (r *OrderRepository) Insert(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return conflictError(fmt.Sprintf("order %s already exists", order.ID))
	}
	r.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r *OrderRepository) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, notFoundError(fmt.Sprintf("order %s not found", orderID))
	}
	return cloneOrder(order), nil
}

func (r *OrderRepository) List(_ context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	r.mu.RLock()
	matched := make([]domain.Order, 0, len(r.orders))
	for _, order := range r.orders {
		if filter.UserID != "" && order.UserID != filter.UserID {
			continue
		}
		if len(filter.Status) > 0 && !statusMatches(order.Status, filter.Status) {
			continue
		}
		if filter.DateRange.From != nil && order.PlacedAt.Before(*filter.DateRange.From) {
			continue
		}
		if filter.DateRange.To != nil && order.PlacedAt.After(*filter.DateRange.To) {
			continue
		}
		matched = append(matched, cloneOrder(order))
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].PlacedAt.Equal(matched[j].PlacedAt) {
			return matched[i].PlacedAt.After(matched[j].PlacedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	return paginate(matched, filter.Pagination)
}

func (r *OrderRepository) UpdateStatus(_ context.Context, orderID string, update repositories.OrderStatusUpdate) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, notFoundError(fmt.Sprintf("order %s not found", orderID))
	}

	order.Status = update.Status
	order.UpdatedAt = update.UpdatedAt
	if update.ShippedAt != nil {
		order.ShippedAt = update.ShippedAt
	}
	if update.DeliveredAt != nil {
		order.DeliveredAt = update.DeliveredAt
	}
	if update.CancelledAt != nil {
		order.CancelledAt = update.CancelledAt
	}
	if update.CancelReason != nil {
		order.CancelReason = update.CancelReason
	}
	r.orders[orderID] = order
	return cloneOrder(order), nil
}

func (r *OrderRepository) UpdateStockSync(_ context.Context, orderID string, update repositories.OrderStockSyncUpdate) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, notFoundError(fmt.Sprintf("order %s not found", orderID))
	}

	order.StockSync = update.State
	order.StockApplied = append([]string(nil), update.AppliedLines...)
	order.UpdatedAt = update.UpdatedAt
	r.orders[orderID] = order
	return cloneOrder(order), nil
}

func (r *OrderRepository) ListPendingStockSync(_ context.Context, limit int) ([]domain.Order, error) {
	r.mu.RLock()
	pending := make([]domain.Order, 0)
	for _, order := range r.orders {
		if order.StockSync == domain.StockSyncPending {
			pending = append(pending, cloneOrder(order))
		}
	}
	r.mu.RUnlock()

	sort.Slice(pending, func(i, j int) bool {
		if !pending[i].PlacedAt.Equal(pending[j].PlacedAt) {
			return pending[i].PlacedAt.Before(pending[j].PlacedAt)
		}
		return pending[i].ID < pending[j].ID
	})

	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func statusMatches(status domain.OrderStatus, wanted []string) bool {
	for _, candidate := range wanted {
		if string(status) == candidate {
			return true
		}
	}
	return false
}

func cloneOrder(order domain.Order) domain.Order {
	cloned := order
	cloned.Items = cloneCartLines(order.Items)
	cloned.StockApplied = append([]string(nil), order.StockApplied...)
	return cloned
}

// paginate slices a pre-sorted result set using numeric offset tokens.
func paginate[T any](items []T, pager domain.Pagination) (domain.CursorPage[T], error) {
	offset := 0
	if pager.PageToken != "" {
		parsed, err := strconv.Atoi(pager.PageToken)
		if err != nil || parsed < 0 {
			return domain.CursorPage[T]{}, fmt.Errorf("invalid page token %q", pager.PageToken)
		}
		offset = parsed
	}
	if offset > len(items) {
		offset = len(items)
	}
	items = items[offset:]

	nextToken := ""
	if pager.PageSize > 0 && len(items) > pager.PageSize {
		items = items[:pager.PageSize]
		nextToken = strconv.Itoa(offset + pager.PageSize)
	}
	return domain.CursorPage[T]{Items: items, NextPageToken: nextToken}, nil
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
