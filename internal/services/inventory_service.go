package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/drift-commerce/api/internal/domain"
	"github.com/drift-commerce/api/internal/repositories"
)

const defaultReconcileBatchSize = 50

var (
	// ErrInventoryInvalidInput signals the caller provided invalid data.
	ErrInventoryInvalidInput = errors.New("inventory: invalid input")
	// ErrInventoryNotFound indicates the product could not be located.
	ErrInventoryNotFound = errors.New("inventory: not found")
	// ErrInventoryUnavailable indicates the stock store cannot be reached.
	ErrInventoryUnavailable = errors.New("inventory: unavailable")
)

// InventoryServiceDeps bundles collaborators for the stock layer.
type InventoryServiceDeps struct {
	Products repositories.ProductRepository
	Orders   repositories.OrderRepository
	Audit    AuditLogService
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type inventoryService struct {
	products repositories.ProductRepository
	orders   repositories.OrderRepository
	audit    AuditLogService
	clock    func() time.Time
	logger   func(context.Context, string, map[string]any)
}

// NewInventoryService constructs an InventoryService validating required dependencies.
func NewInventoryService(deps InventoryServiceDeps) (InventoryService, error) {
	if deps.Products == nil {
		return nil, errors.New("inventory service: product repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("inventory service: order repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &inventoryService{
		products: deps.Products,
		orders:   deps.Orders,
		audit:    deps.Audit,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *inventoryService) GetStock(ctx context.Context, productID string) (Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Product{}, ErrInventoryInvalidInput
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return Product{}, s.mapRepositoryError(err)
	}
	return product, nil
}

func (s *inventoryService) SetStock(ctx context.Context, cmd SetStockCommand) (Product, error) {
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return Product{}, ErrInventoryInvalidInput
	}
	if cmd.Stock < 0 {
		return Product{}, fmt.Errorf("%w: stock must be non-negative", ErrInventoryInvalidInput)
	}

	now := s.clock()
	product, err := s.products.SetStock(ctx, productID, cmd.Stock, now)
	if err != nil {
		return Product{}, s.mapRepositoryError(err)
	}

	if s.audit != nil {
		s.audit.Record(ctx, AuditLogRecord{
			Actor:      strings.TrimSpace(cmd.ActorID),
			ActorType:  "admin",
			Action:     "inventory.stock_set",
			TargetRef:  "products/" + productID,
			OccurredAt: now,
			Metadata:   map[string]any{"stock": cmd.Stock},
		})
	}
	return product, nil
}

// ApplyOrderDeductions runs the per-line stock deductions for an order. Each
// line is an atomic decrement clamped at zero; lines already marked applied on
// the order are skipped so retries stay idempotent. Progress is persisted after
// the pass, so a partial failure leaves the order in the pending stock sync
// sub-state with the surviving lines recorded.
func (s *inventoryService) ApplyOrderDeductions(ctx context.Context, order Order) (Order, error) {
	if strings.TrimSpace(order.ID) == "" {
		return order, ErrInventoryInvalidInput
	}
	if order.StockSync == domain.StockSyncApplied {
		return order, nil
	}

	applied := make(map[string]struct{}, len(order.StockApplied))
	for _, id := range order.StockApplied {
		applied[id] = struct{}{}
	}

	var firstErr error
	for _, line := range order.Items {
		if _, done := applied[line.ProductID]; done {
			continue
		}
		_, err := s.products.DecrementStock(ctx, line.ProductID, line.Quantity, s.clock())
		if err != nil {
			if isRepoNotFound(err) {
				// Product document is gone; nothing left to deduct.
				order.StockApplied = append(order.StockApplied, line.ProductID)
				continue
			}
			firstErr = s.mapRepositoryError(err)
			break
		}
		order.StockApplied = append(order.StockApplied, line.ProductID)
	}

	state := domain.StockSyncApplied
	if firstErr != nil {
		state = domain.StockSyncPending
	}
	order.StockSync = state

	updated, err := s.orders.UpdateStockSync(ctx, order.ID, repositories.OrderStockSyncUpdate{
		State:        state,
		AppliedLines: order.StockApplied,
		UpdatedAt:    s.clock(),
	})
	if err != nil {
		s.logger(ctx, "inventory.stock_sync_record_failed", map[string]any{
			"orderID": order.ID,
			"error":   err.Error(),
		})
		if firstErr == nil {
			firstErr = s.mapRepositoryError(err)
		}
	} else {
		order = updated
	}

	return order, firstErr
}

// ReconcileStockSync retries stock deduction for orders stuck in the pending
// stock sync sub-state. Safe to run repeatedly.
func (s *inventoryService) ReconcileStockSync(ctx context.Context, cmd ReconcileStockSyncCommand) (ReconcileStockSyncResult, error) {
	limit := cmd.Limit
	if limit <= 0 {
		limit = defaultReconcileBatchSize
	}

	stuck, err := s.orders.ListPendingStockSync(ctx, limit)
	if err != nil {
		return ReconcileStockSyncResult{}, s.mapRepositoryError(err)
	}

	result := ReconcileStockSyncResult{Scanned: len(stuck)}
	for _, order := range stuck {
		if _, err := s.ApplyOrderDeductions(ctx, order); err != nil {
			result.Failed++
			s.logger(ctx, "inventory.reconcile_order_failed", map[string]any{
				"orderID": order.ID,
				"error":   err.Error(),
			})
			continue
		}
		result.Completed++
	}

	if s.audit != nil && result.Scanned > 0 {
		s.audit.Record(ctx, AuditLogRecord{
			Actor:      strings.TrimSpace(cmd.ActorID),
			ActorType:  "system",
			Action:     "inventory.stock_sync_reconciled",
			TargetRef:  "orders",
			OccurredAt: s.clock(),
			Metadata: map[string]any{
				"scanned":   result.Scanned,
				"completed": result.Completed,
				"failed":    result.Failed,
			},
		})
	}

	return result, nil
}

func (s *inventoryService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrInventoryNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrInventoryUnavailable, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrInventoryUnavailable, err)
}
