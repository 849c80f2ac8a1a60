package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	domain "github.com/drift-commerce/api/internal/domain"
	"github.com/drift-commerce/api/internal/repositories"
)

const (
	defaultPaymentMethod = "cod"
	orderNumberCounterID = "orders"
)

// defaultRequiredCheckoutFields mirrors the storefront checkout form.
var defaultRequiredCheckoutFields = []string{
	"firstName", "lastName", "phone", "address", "city", "state", "pincode",
}

var (
	// ErrCheckoutInvalidInput indicates the caller supplied invalid input parameters.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrCheckoutValidation indicates a shipping or contact field failed validation.
	// Wrapped errors carry the user-facing message.
	ErrCheckoutValidation = errors.New("checkout: validation failed")
	// ErrCheckoutInvalidPromo indicates the promo code is not in the table.
	ErrCheckoutInvalidPromo = errors.New("checkout: invalid promo code")
	// ErrCheckoutEmptyCart indicates checkout was attempted with no cart lines.
	ErrCheckoutEmptyCart = errors.New("checkout: cart is empty")
	// ErrCheckoutUnavailable indicates checkout dependencies are currently unavailable.
	ErrCheckoutUnavailable = errors.New("checkout: unavailable")
)

var emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type savedAddressReader interface {
	GetAddress(ctx context.Context, userID string, addressID string) (Address, error)
}

// CheckoutServiceDeps wires the dependencies required by the checkout coordinator.
type CheckoutServiceDeps struct {
	Carts          CartService
	Orders         repositories.OrderRepository
	Inventory      InventoryService
	Promotions     PromotionService
	Addresses      savedAddressReader
	Counters       repositories.CounterRepository
	Idempotency    repositories.IdempotencyRepository
	Events         OrderEventPublisher
	Archive        InvoiceArchiver
	RequiredFields []string
	Clock          func() time.Time
	Logger         func(ctx context.Context, event string, fields map[string]any)
}

type checkoutService struct {
	carts      CartService
	orders     repositories.OrderRepository
	inventory  InventoryService
	promotions PromotionService
	addresses  savedAddressReader
	counters   repositories.CounterRepository
	idem       repositories.IdempotencyRepository
	events     OrderEventPublisher
	archive    InvoiceArchiver
	required   []string
	now        func() time.Time
	logger     func(ctx context.Context, event string, fields map[string]any)
}

// NewCheckoutService constructs a CheckoutService validating required dependencies.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Carts == nil {
		return nil, errors.New("checkout service: cart service is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("checkout service: order repository is required")
	}
	if deps.Inventory == nil {
		return nil, errors.New("checkout service: inventory service is required")
	}
	if deps.Promotions == nil {
		return nil, errors.New("checkout service: promotion service is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	required := deps.RequiredFields
	if len(required) == 0 {
		required = defaultRequiredCheckoutFields
	}

	return &checkoutService{
		carts:      deps.Carts,
		orders:     deps.Orders,
		inventory:  deps.Inventory,
		promotions: deps.Promotions,
		addresses:  deps.Addresses,
		counters:   deps.Counters,
		idem:       deps.Idempotency,
		events:     deps.Events,
		archive:    deps.Archive,
		required:   required,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// PlaceOrder validates the shipping input, resolves the promo discount,
// persists the order, and applies stock deductions. Validation failures make
// no persistence calls. A deduction failure after the order write leaves the
// order in the stock sync sub-state for the reconciliation pass.
func (s *checkoutService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Order{}, ErrCheckoutInvalidInput
	}

	idemKey := strings.TrimSpace(cmd.IdempotencyKey)
	if replayed, ok, err := s.replayedOrder(ctx, idemKey, userID); err != nil {
		return Order{}, err
	} else if ok {
		return replayed, nil
	}

	shipping, err := s.resolveShippingAddress(ctx, userID, cmd)
	if err != nil {
		return Order{}, err
	}
	if err := s.validateShipping(shipping, cmd.Form); err != nil {
		return Order{}, err
	}

	var discount int64
	promoCode := strings.TrimSpace(cmd.PromoCode)
	if promoCode != "" {
		promo, err := s.promotions.Lookup(ctx, promoCode)
		if err != nil {
			if errors.Is(err, ErrPromoUnknownCode) {
				return Order{}, ErrCheckoutInvalidPromo
			}
			return Order{}, ErrCheckoutUnavailable
		}
		promoCode = promo.Code
		discount = promo.Discount
	}

	draft, err := s.carts.PlaceOrder(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrCartInvalidInput) {
			return Order{}, ErrCheckoutInvalidInput
		}
		return Order{}, ErrCheckoutUnavailable
	}
	if draft == nil {
		return Order{}, ErrCheckoutEmptyCart
	}

	now := s.now()
	order := *draft
	order.CustomerEmail = strings.TrimSpace(cmd.Form.Email)
	order.ShippingAddress = shipping
	order.PaymentMethod = firstNonEmpty(cmd.PaymentMethod, defaultPaymentMethod)
	order.PromoCode = promoCode
	order.Discount = discount
	order.Total = domain.FinalTotal(order.Subtotal+order.Tax, discount)
	order.OrderNumber = s.nextOrderNumber(ctx, now)
	order.PlacedAt = now
	order.UpdatedAt = now

	if winner, taken, err := s.recordSubmission(ctx, idemKey, userID, order.ID, now); err != nil {
		return Order{}, err
	} else if taken {
		return winner, nil
	}

	if err := s.orders.Insert(ctx, order); err != nil {
		s.logger(ctx, "checkout.order_persist_failed", map[string]any{
			"userID":  userID,
			"orderID": order.ID,
			"error":   err.Error(),
		})
		return Order{}, translateCheckoutRepoError(err)
	}

	order = s.deductStock(ctx, order)

	s.archiveInvoice(ctx, order)
	s.publishEvent(ctx, OrderEvent{
		Type:       OrderEventPlaced,
		OrderID:    order.ID,
		UserID:     order.UserID,
		Status:     order.Status,
		ActorID:    userID,
		OccurredAt: now,
	})

	return order, nil
}

// PreviewPromo resolves a promo code to its flat discount without touching any state.
func (s *checkoutService) PreviewPromo(ctx context.Context, cmd PromoPreviewCommand) (PromoPreview, error) {
	code := strings.TrimSpace(cmd.Code)
	if code == "" {
		return PromoPreview{}, ErrCheckoutInvalidInput
	}
	preview, err := s.promotions.Lookup(ctx, code)
	if err != nil {
		if errors.Is(err, ErrPromoUnknownCode) {
			return PromoPreview{}, ErrCheckoutInvalidPromo
		}
		return PromoPreview{}, ErrCheckoutUnavailable
	}
	return preview, nil
}

// deductStock runs the per-line deductions for a freshly inserted order. The
// order is already durable, so a failure here never fails the checkout: the
// order stays in the stock sync sub-state and the reconciliation pass retries.
func (s *checkoutService) deductStock(ctx context.Context, order Order) Order {
	applied, err := s.inventory.ApplyOrderDeductions(ctx, order)
	if err == nil {
		return applied
	}

	s.logger(ctx, "checkout.stock_sync_incomplete", map[string]any{
		"orderID": order.ID,
		"error":   err.Error(),
	})
	s.publishEvent(ctx, OrderEvent{
		Type:       OrderEventStockSyncPending,
		OrderID:    order.ID,
		UserID:     order.UserID,
		Status:     order.Status,
		OccurredAt: s.now(),
	})
	return applied
}

// replayedOrder looks up a prior submission under the same idempotency key and
// returns its order so a retried submit observes the original outcome.
func (s *checkoutService) replayedOrder(ctx context.Context, key, userID string) (Order, bool, error) {
	if key == "" || s.idem == nil {
		return Order{}, false, nil
	}

	record, err := s.idem.Get(ctx, key)
	if err != nil {
		if isRepoNotFound(err) {
			return Order{}, false, nil
		}
		return Order{}, false, ErrCheckoutUnavailable
	}
	if record.UserID != userID {
		return Order{}, false, fmt.Errorf("%w: idempotency key belongs to another user", ErrCheckoutInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, record.OrderID)
	if err != nil {
		return Order{}, false, ErrCheckoutUnavailable
	}
	return order, true, nil
}

// recordSubmission claims the idempotency key before the order write. Losing
// the claim race means another submit already persisted an order for this key;
// that order is returned instead.
func (s *checkoutService) recordSubmission(ctx context.Context, key, userID, orderID string, now time.Time) (Order, bool, error) {
	if key == "" || s.idem == nil {
		return Order{}, false, nil
	}

	err := s.idem.Put(ctx, repositories.IdempotencyRecord{
		Key:       key,
		UserID:    userID,
		OrderID:   orderID,
		CreatedAt: now,
	})
	if err == nil {
		return Order{}, false, nil
	}
	if isRepoConflict(err) {
		winner, ok, replayErr := s.replayedOrder(ctx, key, userID)
		if replayErr != nil {
			return Order{}, false, replayErr
		}
		if ok {
			return winner, true, nil
		}
	}
	s.logger(ctx, "checkout.idempotency_claim_failed", map[string]any{
		"key":   key,
		"error": err.Error(),
	})
	return Order{}, false, ErrCheckoutUnavailable
}

func (s *checkoutService) resolveShippingAddress(ctx context.Context, userID string, cmd PlaceOrderCommand) (Address, error) {
	savedID := strings.TrimSpace(cmd.SavedAddressID)
	if savedID == "" {
		form := cmd.Form
		return Address{
			FirstName: strings.TrimSpace(form.FirstName),
			LastName:  strings.TrimSpace(form.LastName),
			Phone:     strings.TrimSpace(form.Phone),
			Line1:     strings.TrimSpace(form.Address),
			City:      strings.TrimSpace(form.City),
			State:     strings.TrimSpace(form.State),
			Pincode:   strings.TrimSpace(form.Pincode),
		}, nil
	}

	if s.addresses == nil {
		return Address{}, ErrCheckoutUnavailable
	}
	addr, err := s.addresses.GetAddress(ctx, userID, savedID)
	if err != nil {
		if errors.Is(err, ErrUserAddressNotFound) || isRepoNotFound(err) {
			return Address{}, fmt.Errorf("%w: saved address not found", ErrCheckoutValidation)
		}
		return Address{}, ErrCheckoutUnavailable
	}
	return addr, nil
}

// validateShipping checks the resolved address in the storefront's order:
// required fields first, then email, phone, and pincode shapes.
func (s *checkoutService) validateShipping(addr Address, form ShippingForm) error {
	values := map[string]string{
		"firstName": addr.FirstName,
		"lastName":  addr.LastName,
		"email":     strings.TrimSpace(form.Email),
		"phone":     firstNonEmpty(addr.Phone, form.Phone),
		"address":   addr.Line1,
		"city":      addr.City,
		"state":     addr.State,
		"pincode":   firstNonEmpty(addr.Pincode, form.Pincode),
	}

	for _, field := range s.required {
		if strings.TrimSpace(values[field]) == "" {
			return fmt.Errorf("%w: %s is required", ErrCheckoutValidation, field)
		}
	}
	if !validEmail(values["email"]) {
		return fmt.Errorf("%w: please enter a valid email address", ErrCheckoutValidation)
	}
	if !validPhone(values["phone"]) {
		return fmt.Errorf("%w: please enter a valid 10-digit phone number", ErrCheckoutValidation)
	}
	if !validPincode(values["pincode"]) {
		return fmt.Errorf("%w: please enter a valid 6-digit pincode", ErrCheckoutValidation)
	}
	return nil
}

func (s *checkoutService) nextOrderNumber(ctx context.Context, now time.Time) string {
	if s.counters == nil {
		return ""
	}
	seq, err := s.counters.Next(ctx, orderNumberCounterID, 1)
	if err != nil {
		s.logger(ctx, "checkout.order_number_failed", map[string]any{"error": err.Error()})
		return ""
	}
	return fmt.Sprintf("DE-%04d-%06d", now.Year(), seq)
}

func (s *checkoutService) archiveInvoice(ctx context.Context, order Order) {
	if s.archive == nil {
		return
	}
	if err := s.archive.ArchiveOrder(ctx, order); err != nil {
		s.logger(ctx, "checkout.invoice_archive_failed", map[string]any{
			"orderID": order.ID,
			"error":   err.Error(),
		})
	}
}

func (s *checkoutService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "checkout.event_publish_failed", map[string]any{
			"orderID": event.OrderID,
			"type":    event.Type,
			"error":   err.Error(),
		})
	}
}

func validEmail(email string) bool {
	return emailShape.MatchString(strings.TrimSpace(email))
}

func validPhone(phone string) bool {
	return len(digitsOnly(phone)) == 10
}

func validPincode(pincode string) bool {
	return len(digitsOnly(pincode)) == 6
}

func digitsOnly(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func translateCheckoutRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsConflict() {
		return fmt.Errorf("%w: order already exists", ErrCheckoutInvalidInput)
	}
	return ErrCheckoutUnavailable
}
