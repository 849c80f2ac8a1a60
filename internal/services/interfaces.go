package services

import (
	"context"
	"time"

	domain "github.com/drift-commerce/api/internal/domain"
	"github.com/drift-commerce/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	SortOrder          = domain.SortOrder
	Cart               = domain.Cart
	CartLine           = domain.CartLine
	CartTotals         = domain.CartTotals
	Order              = domain.Order
	OrderStatus        = domain.OrderStatus
	StockSyncState     = domain.StockSyncState
	Address            = domain.Address
	Product            = domain.Product
	WishlistItem       = domain.WishlistItem
	UserProfile        = domain.UserProfile
	SystemHealthReport = domain.SystemHealthReport
	AuditLogEntry      = domain.AuditLogEntry
)

// CartService manages the active cart and the saved-for-later shelf for a
// user, keeping derived totals consistent with the line set.
type CartService interface {
	GetCart(ctx context.Context, userID string) (CartView, error)
	AddItem(ctx context.Context, cmd AddCartItemCommand) (CartView, error)
	RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (CartView, error)
	UpdateQuantity(ctx context.Context, cmd UpdateQuantityCommand) (CartView, error)
	ClearCart(ctx context.Context, userID string) (CartView, error)
	SaveForLater(ctx context.Context, cmd MoveCartItemCommand) (CartView, error)
	MoveToCart(ctx context.Context, cmd MoveCartItemCommand) (CartView, error)
	RemoveFromSaved(ctx context.Context, cmd MoveCartItemCommand) (CartView, error)
	PlaceOrder(ctx context.Context, userID string) (*Order, error)
}

// CheckoutService validates shipping input, applies promo discounts, persists
// the order, and coordinates stock deduction.
type CheckoutService interface {
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error)
	PreviewPromo(ctx context.Context, cmd PromoPreviewCommand) (PromoPreview, error)
}

// OrderService encapsulates order reads and the status workflow.
type OrderService interface {
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error)
}

// InventoryService owns stock reads/writes and the reconciliation pass for
// orders stuck in the stock sync sub-state.
type InventoryService interface {
	GetStock(ctx context.Context, productID string) (Product, error)
	SetStock(ctx context.Context, cmd SetStockCommand) (Product, error)
	ApplyOrderDeductions(ctx context.Context, order Order) (Order, error)
	ReconcileStockSync(ctx context.Context, cmd ReconcileStockSyncCommand) (ReconcileStockSyncResult, error)
}

// CatalogService resolves product snapshots for cart additions and admin reads.
type CatalogService interface {
	GetProduct(ctx context.Context, productID string) (Product, error)
}

// PromotionService evaluates promo codes against the configured flat-discount table.
type PromotionService interface {
	Lookup(ctx context.Context, code string) (PromoPreview, error)
}

// UserService manages profile, address book, and wishlist surfaces.
type UserService interface {
	GetProfile(ctx context.Context, userID string) (UserProfile, error)
	ListAddresses(ctx context.Context, userID string) ([]Address, error)
	GetAddress(ctx context.Context, userID string, addressID string) (Address, error)
	AddAddress(ctx context.Context, cmd AddAddressCommand) (Address, error)
	DeleteAddress(ctx context.Context, cmd DeleteAddressCommand) error
	ListWishlist(ctx context.Context, userID string, pager Pagination) (domain.CursorPage[WishlistItem], error)
	ToggleWishlist(ctx context.Context, cmd ToggleWishlistCommand) error
}

// OrderEventPublisher accepts order lifecycle notifications for downstream processing.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// InvoiceArchiver stores order snapshots and issues retrieval URLs.
type InvoiceArchiver interface {
	ArchiveOrder(ctx context.Context, order Order) error
	InvoiceURL(ctx context.Context, orderID string, expiry time.Duration) (string, error)
}

// SystemService aggregates utility endpoints (health checks, audit logs, counters).
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
	ListAuditLogs(ctx context.Context, filter AuditLogFilter) (domain.CursorPage[AuditLogEntry], error)
	NextCounterValue(ctx context.Context, cmd CounterCommand) (int64, error)
}

// AuditLogService centralizes immutable audit log persistence and retrieval.
type AuditLogService interface {
	Record(ctx context.Context, record AuditLogRecord)
	List(ctx context.Context, filter AuditLogFilter) (domain.CursorPage[AuditLogEntry], error)
}

// BackgroundJobDispatcher schedules asynchronous processing such as stock
// reconciliation sweeps.
type BackgroundJobDispatcher interface {
	EnqueueStockSync(ctx context.Context, payload StockSyncJobPayload) error
}

// Command and DTO definitions ------------------------------------------------

// CartView pairs the cart state with totals derived from the active lines.
type CartView struct {
	Cart   Cart
	Totals CartTotals
}

type AddCartItemCommand struct {
	UserID    string
	ProductID string
}

type RemoveCartItemCommand struct {
	UserID    string
	ProductID string
}

type UpdateQuantityCommand struct {
	UserID    string
	ProductID string
	Quantity  int
}

type MoveCartItemCommand struct {
	UserID    string
	ProductID string
}

// ShippingForm carries the freeform checkout fields before validation.
type ShippingForm struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Address   string
	City      string
	State     string
	Pincode   string
}

type PlaceOrderCommand struct {
	UserID         string
	Form           ShippingForm
	SavedAddressID string
	PaymentMethod  string
	PromoCode      string
	IdempotencyKey string
}

type PromoPreviewCommand struct {
	UserID string
	Code   string
}

// PromoPreview reports the flat discount a code resolves to.
type PromoPreview struct {
	Code     string
	Discount int64
}

type OrderListFilter = repositories.OrderListFilter

type OrderStatusTransitionCommand struct {
	OrderID      string
	TargetStatus OrderStatus
	ActorID      string
	Reason       string
}

type CancelOrderCommand struct {
	OrderID string
	UserID  string
	Reason  string
}

type SetStockCommand struct {
	ProductID string
	Stock     int
	ActorID   string
}

type ReconcileStockSyncCommand struct {
	Limit   int
	ActorID string
}

// ReconcileStockSyncResult summarizes one reconciliation sweep.
type ReconcileStockSyncResult struct {
	Scanned   int
	Completed int
	Failed    int
}

type AddAddressCommand struct {
	UserID    string
	Address   Address
	IsDefault bool
}

type DeleteAddressCommand struct {
	UserID    string
	AddressID string
}

type ToggleWishlistCommand struct {
	UserID    string
	ProductID string
	Mark      bool
}

// OrderEvent is the payload published after order lifecycle changes.
type OrderEvent struct {
	Type       string
	OrderID    string
	UserID     string
	Status     OrderStatus
	FromStatus *OrderStatus
	ActorID    string
	OccurredAt time.Time
	Metadata   map[string]any
}

const (
	// OrderEventPlaced is published once an order document is persisted.
	OrderEventPlaced = "order.placed"
	// OrderEventStatusChanged is published after a successful status transition.
	OrderEventStatusChanged = "order.status_changed"
	// OrderEventStockSyncPending is published when stock deduction did not
	// complete and the order entered the reconciliation sub-state.
	OrderEventStockSyncPending = "order.stock_sync_pending"
)

// AuditLogRecord defines the payload accepted by the audit writer service.
type AuditLogRecord struct {
	Actor      string
	ActorType  string
	Action     string
	TargetRef  string
	Severity   string
	RequestID  string
	OccurredAt time.Time
	Metadata   map[string]any
}

type AuditLogFilter struct {
	TargetRef  string
	Actor      string
	ActorType  string
	Action     string
	DateRange  domain.RangeQuery[time.Time]
	Pagination Pagination
}

type CounterCommand struct {
	CounterID string
	Step      int64
}

type StockSyncJobPayload struct {
	OrderIDs []string
	Reason   string
}
