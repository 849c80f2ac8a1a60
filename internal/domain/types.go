package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// CartLine stores a single product entry in a cart or on the saved shelf.
// Title, price, and image are captured at the time of add and never re-synced.
type CartLine struct {
	ProductID string
	Title     string
	UnitPrice int64
	ImageRef  string
	Quantity  int
	AddedAt   time.Time
}

// Cart aggregates the mutable shopping state for a user: the active lines,
// the saved-for-later shelf, and the version counter used for mirror saves.
// A product id appears in at most one of Items and Saved at a time.
type Cart struct {
	ID        string
	UserID    string
	Items     []CartLine
	Saved     []CartLine
	Version   int64
	UpdatedAt time.Time
}

// CartTotals summarizes derived monetary totals for the active cart lines.
// Never stored; recomputed from the line set on every read.
type CartTotals struct {
	ItemCount  int
	Subtotal   int64
	Tax        int64
	GrandTotal int64
}

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusPending indicates the order is placed and awaiting shipment.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusShipped indicates the order has been handed to the carrier.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered indicates the order reached the customer. Terminal.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled indicates the order was cancelled. Terminal.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// StockSyncState tracks whether stock deduction has been applied for an order.
type StockSyncState string

const (
	// StockSyncPending indicates the order is persisted but one or more line
	// deductions have not been applied yet.
	StockSyncPending StockSyncState = "placed_pending_stock_sync"
	// StockSyncApplied indicates every line deduction has landed.
	StockSyncApplied StockSyncState = "applied"
)

// Order is the immutable record of a completed checkout. Only the status,
// the status timestamps, and the stock sync bookkeeping mutate post-creation.
type Order struct {
	ID              string
	OrderNumber     string
	UserID          string
	CustomerEmail   string
	Items           []CartLine
	Subtotal        int64
	Tax             int64
	Discount        int64
	Total           int64
	PromoCode       string
	PaymentMethod   string
	Status          OrderStatus
	StockSync       StockSyncState
	StockApplied    []string
	ShippingAddress Address
	PlacedAt        time.Time
	UpdatedAt       time.Time
	ShippedAt       *time.Time
	DeliveredAt     *time.Time
	CancelledAt     *time.Time
	CancelReason    *string
}

// OrderFilter narrows admin and customer order listings.
type OrderFilter struct {
	UserID string
	Status *OrderStatus
}

// Address represents a shipping address, either entered on the checkout form
// or saved in the user's address book.
type Address struct {
	ID        string
	FirstName string
	LastName  string
	Phone     string
	Line1     string
	City      string
	State     string
	Pincode   string
	IsDefault bool
	CreatedAt time.Time
}

// Product carries the catalog snapshot the cart and stock layers read.
type Product struct {
	ID        string
	Title     string
	Price     int64
	ImageRef  string
	Stock     int
	Active    bool
	UpdatedAt time.Time
}

// WishlistItem ties a user to a product id for fast membership checks.
type WishlistItem struct {
	ProductID string
	AddedAt   time.Time
}

// UserProfile captures the canonical projection of an auth provider user.
type UserProfile struct {
	ID          string
	DisplayName string
	Email       string
	PhoneNumber string
	Roles       []string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates at least one dependency is degraded but service remains running.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates the service or a critical dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}

// AuditLogEntry stores normalized audit information for admin use.
type AuditLogEntry struct {
	ID        string
	Actor     string
	ActorType string
	Action    string
	TargetRef string
	Metadata  map[string]any
	Severity  string
	RequestID string
	CreatedAt time.Time
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}
