package repositories

import (
	"context"
	"time"

	domain "github.com/drift-commerce/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Carts() CartRepository
	Orders() OrderRepository
	Products() ProductRepository
	Addresses() AddressRepository
	Wishlists() WishlistRepository
	Users() UserRepository
	AuditLogs() AuditLogRepository
	Counters() CounterRepository
	Idempotency() IdempotencyRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CartRepository owns the durable cart mirror. Saves are guarded by the
// version counter the caller last observed: a stale version yields a
// RepositoryError with IsConflict so the caller can merge and retry.
type CartRepository interface {
	Get(ctx context.Context, userID string) (domain.Cart, error)
	Save(ctx context.Context, cart domain.Cart, expectedVersion int64) (domain.Cart, error)
}

// OrderRepository persists order documents and provides query helpers for
// customers and admins. Status changes go through the partial-update methods
// so the rest of the document stays untouched.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	UpdateStatus(ctx context.Context, orderID string, update OrderStatusUpdate) (domain.Order, error)
	UpdateStockSync(ctx context.Context, orderID string, update OrderStockSyncUpdate) (domain.Order, error)
	ListPendingStockSync(ctx context.Context, limit int) ([]domain.Order, error)
}

// OrderStatusUpdate carries the fields written during a status transition.
// Only the status, the matching timestamp, and the optional cancel reason are
// touched; the order body is never rewritten.
type OrderStatusUpdate struct {
	Status       domain.OrderStatus
	UpdatedAt    time.Time
	ShippedAt    *time.Time
	DeliveredAt  *time.Time
	CancelledAt  *time.Time
	CancelReason *string
}

// OrderStockSyncUpdate records stock deduction progress for an order.
type OrderStockSyncUpdate struct {
	State        domain.StockSyncState
	AppliedLines []string
	UpdatedAt    time.Time
}

// ProductRepository reads catalog snapshots and owns the stock level field.
// DecrementStock must be atomic with a floor at zero.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	SetStock(ctx context.Context, productID string, stock int, now time.Time) (domain.Product, error)
	DecrementStock(ctx context.Context, productID string, quantity int, now time.Time) (int, error)
}

// AddressRepository stores the saved address book per user.
type AddressRepository interface {
	List(ctx context.Context, userID string) ([]domain.Address, error)
	Get(ctx context.Context, userID string, addressID string) (domain.Address, error)
	Insert(ctx context.Context, userID string, addr domain.Address) (domain.Address, error)
	Delete(ctx context.Context, userID string, addressID string) error
	SetDefault(ctx context.Context, userID string, addressID string) (domain.Address, error)
}

// WishlistRepository tracks wishlisted products per user.
type WishlistRepository interface {
	List(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.WishlistItem], error)
	Put(ctx context.Context, userID string, productID string, addedAt time.Time, limit int) (bool, error)
	Delete(ctx context.Context, userID string, productID string) error
}

// UserRepository stores user profile projections.
type UserRepository interface {
	FindByID(ctx context.Context, userID string) (domain.UserProfile, error)
	UpdateProfile(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error)
}

// AuditLogRepository persists immutable audit trail entries.
type AuditLogRepository interface {
	Append(ctx context.Context, entry domain.AuditLogEntry) error
	List(ctx context.Context, filter AuditLogFilter) (domain.CursorPage[domain.AuditLogEntry], error)
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// IdempotencyRepository records completed checkout submissions keyed by the
// caller-supplied idempotency key. Put must fail with a conflict when the key
// is already recorded so a racing retry observes the first submission.
type IdempotencyRepository interface {
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	Put(ctx context.Context, record IdempotencyRecord) error
}

// IdempotencyRecord maps a submission key to the order it produced.
type IdempotencyRecord struct {
	Key       string
	UserID    string
	OrderID   string
	CreatedAt time.Time
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// Filter DTOs shared across repositories ------------------------------------

type OrderListFilter struct {
	UserID     string
	Status     []string
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}

type AuditLogFilter struct {
	TargetRef  string
	Actor      string
	ActorType  string
	Action     string
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}

// CounterConfig customises increment behaviour and bounds for a counter.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}
