package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/drift-commerce/api/internal/domain"
	"github.com/drift-commerce/api/internal/repositories"
)

var (
	errCartRepositoryRequired = errors.New("cart service: repository is required")
	errCartCatalogRequired    = errors.New("cart service: catalog is required")
	errCartClockRequired      = errors.New("cart service: clock is required")
)

// ErrCartInvalidInput indicates the caller supplied invalid input.
var ErrCartInvalidInput = errors.New("cart service: invalid input")

// ErrCartUnavailable indicates the cart service cannot fulfil the request due to missing dependencies or backend issues.
var ErrCartUnavailable = errors.New("cart service: unavailable")

// ErrCartNotFound indicates the requested product is not in the cart.
var ErrCartNotFound = errors.New("cart service: not found")

type productFinder interface {
	GetProduct(ctx context.Context, productID string) (Product, error)
}

// CartServiceDeps wires the repository and catalog dependencies for cart operations.
type CartServiceDeps struct {
	Repository  repositories.CartRepository
	Catalog     productFinder
	TaxRateBps  int64
	Clock       func() time.Time
	Logger      func(context.Context, string, map[string]any)
	IDGenerator func() string
}

type cartService struct {
	repo       repositories.CartRepository
	catalog    productFinder
	taxRateBps int64
	newID      func() string
	now        func() time.Time
	logger     func(context.Context, string, map[string]any)
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Repository == nil {
		return nil, errCartRepositoryRequired
	}
	if deps.Catalog == nil {
		return nil, errCartCatalogRequired
	}
	if deps.Clock == nil {
		return nil, errCartClockRequired
	}

	taxRate := deps.TaxRateBps
	if taxRate <= 0 {
		taxRate = domain.DefaultTaxRateBps
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	service := &cartService{
		repo:       deps.Repository,
		catalog:    deps.Catalog,
		taxRateBps: taxRate,
		newID:      idGen,
		now:        func() time.Time { return deps.Clock().UTC() },
		logger:     logger,
	}
	return service, nil
}

// GetCart loads the cart for the user, returning an empty cart when absent.
func (s *cartService) GetCart(ctx context.Context, userID string) (CartView, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return CartView{}, ErrCartInvalidInput
	}

	cart, err := s.loadCart(ctx, uid)
	if err != nil {
		return CartView{}, err
	}
	return s.view(cart), nil
}

// AddItem appends the product with quantity 1, or merges onto an existing
// line by incrementing its quantity. Title, price, and image are captured from
// the catalog at the time of add.
func (s *cartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (CartView, error) {
	uid := strings.TrimSpace(cmd.UserID)
	productID := strings.TrimSpace(cmd.ProductID)
	if uid == "" || productID == "" {
		return CartView{}, ErrCartInvalidInput
	}

	cart, err := s.loadCart(ctx, uid)
	if err != nil {
		return CartView{}, err
	}

	now := s.now()
	if idx := indexOfLine(cart.Items, productID); idx >= 0 {
		cart.Items[idx].Quantity++
	} else {
		product, err := s.catalog.GetProduct(ctx, productID)
		if err != nil {
			if errors.Is(err, ErrCatalogNotFound) || isRepoNotFound(err) {
				return CartView{}, fmt.Errorf("%w: unknown product", ErrCartInvalidInput)
			}
			return CartView{}, ErrCartUnavailable
		}
		cart.Items = append(cart.Items, domain.CartLine{
			ProductID: product.ID,
			Title:     product.Title,
			UnitPrice: product.Price,
			ImageRef:  product.ImageRef,
			Quantity:  1,
			AddedAt:   now,
		})
	}

	cart.UpdatedAt = now
	s.persistBestEffort(ctx, &cart)
	return s.view(cart), nil
}

// RemoveItem deletes the matching line; a missing product id is a no-op.
func (s *cartService) RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (CartView, error) {
	uid := strings.TrimSpace(cmd.UserID)
	productID := strings.TrimSpace(cmd.ProductID)
	if uid == "" || productID == "" {
		return CartView{}, ErrCartInvalidInput
	}

	cart, err := s.loadCart(ctx, uid)
	if err != nil {
		return CartView{}, err
	}

	idx := indexOfLine(cart.Items, productID)
	if idx < 0 {
		return s.view(cart), nil
	}

	cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	cart.UpdatedAt = s.now()
	s.persistBestEffort(ctx, &cart)
	return s.view(cart), nil
}

// UpdateQuantity replaces the line's quantity. A value of zero or less removes
// the line.
func (s *cartService) UpdateQuantity(ctx context.Context, cmd UpdateQuantityCommand) (CartView, error) {
	if cmd.Quantity <= 0 {
		return s.RemoveItem(ctx, RemoveCartItemCommand{UserID: cmd.UserID, ProductID: cmd.ProductID})
	}

	uid := strings.TrimSpace(cmd.UserID)
	productID := strings.TrimSpace(cmd.ProductID)
	if uid == "" || productID == "" {
		return CartView{}, ErrCartInvalidInput
	}

	cart, err := s.loadCart(ctx, uid)
	if err != nil {
		return CartView{}, err
	}

	idx := indexOfLine(cart.Items, productID)
	if idx < 0 {
		return CartView{}, ErrCartNotFound
	}

	cart.Items[idx].Quantity = cmd.Quantity
	cart.UpdatedAt = s.now()
	s.persistBestEffort(ctx, &cart)
	return s.view(cart), nil
}

// ClearCart empties the active cart unconditionally. The saved shelf is untouched.
func (s *cartService) ClearCart(ctx context.Context, userID string) (CartView, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return CartView{}, ErrCartInvalidInput
	}

	cart, err := s.loadCart(ctx, uid)
	if err != nil {
		return CartView{}, err
	}

	cart.Items = []domain.CartLine{}
	cart.UpdatedAt = s.now()
	s.persistBestEffort(ctx, &cart)
	return s.view(cart), nil
}

// SaveForLater moves the line from the active cart to the saved shelf. A
// product id absent from the cart is a no-op. If the shelf somehow already
// holds the product, insertion is skipped but the cart line is still removed.
func (s *cartService) SaveForLater(ctx context.Context, cmd MoveCartItemCommand) (CartView, error) {
	uid := strings.TrimSpace(cmd.UserID)
	productID := strings.TrimSpace(cmd.ProductID)
	if uid == "" || productID == "" {
		return CartView{}, ErrCartInvalidInput
	}

	cart, err := s.loadCart(ctx, uid)
	if err != nil {
		return CartView{}, err
	}

	idx := indexOfLine(cart.Items, productID)
	if idx < 0 {
		return s.view(cart), nil
	}

	line := cart.Items[idx]
	cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	if indexOfLine(cart.Saved, productID) < 0 {
		cart.Saved = append(cart.Saved, line)
	}
	cart.UpdatedAt = s.now()
	s.persistBestEffort(ctx, &cart)
	return s.view(cart), nil
}

// MoveToCart moves the line from the shelf back into the active cart, merging
// quantities when the cart already holds the product. The shelf entry is
// removed regardless.
func (s *cartService) MoveToCart(ctx context.Context, cmd MoveCartItemCommand) (CartView, error) {
	uid := strings.TrimSpace(cmd.UserID)
	productID := strings.TrimSpace(cmd.ProductID)
	if uid == "" || productID == "" {
		return CartView{}, ErrCartInvalidInput
	}

	cart, err := s.loadCart(ctx, uid)
	if err != nil {
		return CartView{}, err
	}

	shelfIdx := indexOfLine(cart.Saved, productID)
	if shelfIdx < 0 {
		return s.view(cart), nil
	}

	line := cart.Saved[shelfIdx]
	cart.Saved = append(cart.Saved[:shelfIdx], cart.Saved[shelfIdx+1:]...)
	if idx := indexOfLine(cart.Items, productID); idx >= 0 {
		cart.Items[idx].Quantity += line.Quantity
	} else {
		cart.Items = append(cart.Items, line)
	}
	cart.UpdatedAt = s.now()
	s.persistBestEffort(ctx, &cart)
	return s.view(cart), nil
}

// RemoveFromSaved deletes the shelf entry if present.
func (s *cartService) RemoveFromSaved(ctx context.Context, cmd MoveCartItemCommand) (CartView, error) {
	uid := strings.TrimSpace(cmd.UserID)
	productID := strings.TrimSpace(cmd.ProductID)
	if uid == "" || productID == "" {
		return CartView{}, ErrCartInvalidInput
	}

	cart, err := s.loadCart(ctx, uid)
	if err != nil {
		return CartView{}, err
	}

	idx := indexOfLine(cart.Saved, productID)
	if idx < 0 {
		return s.view(cart), nil
	}

	cart.Saved = append(cart.Saved[:idx], cart.Saved[idx+1:]...)
	cart.UpdatedAt = s.now()
	s.persistBestEffort(ctx, &cart)
	return s.view(cart), nil
}

// PlaceOrder snapshots the active lines into a draft pending order and clears
// the cart. An empty cart returns (nil, nil) and mutates nothing. Remote
// persistence of the returned order is the checkout coordinator's job.
func (s *cartService) PlaceOrder(ctx context.Context, userID string) (*Order, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, ErrCartInvalidInput
	}

	cart, err := s.loadCart(ctx, uid)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, nil
	}

	now := s.now()
	totals := domain.TotalsFor(cart.Items, s.taxRateBps)
	items := cloneLines(cart.Items)

	order := domain.Order{
		ID:        "ORD-" + strings.TrimSpace(s.newID()),
		UserID:    uid,
		Items:     items,
		Subtotal:  totals.Subtotal,
		Tax:       totals.Tax,
		Total:     totals.GrandTotal,
		Status:    domain.OrderStatusPending,
		StockSync: domain.StockSyncPending,
		PlacedAt:  now,
		UpdatedAt: now,
	}

	cart.Items = []domain.CartLine{}
	cart.UpdatedAt = now
	s.persistBestEffort(ctx, &cart)

	return &order, nil
}

func (s *cartService) loadCart(ctx context.Context, userID string) (domain.Cart, error) {
	cart, err := s.repo.Get(ctx, userID)
	if err != nil {
		if isRepoNotFound(err) {
			return s.newCart(userID), nil
		}
		return domain.Cart{}, translateCartRepoError(err)
	}
	return normaliseCart(cart, userID), nil
}

func (s *cartService) newCart(userID string) domain.Cart {
	return domain.Cart{
		ID:        userID,
		UserID:    userID,
		Items:     []domain.CartLine{},
		Saved:     []domain.CartLine{},
		UpdatedAt: s.now(),
	}
}

// persistBestEffort mirrors the cart to the durable store. The in-memory
// state stays authoritative for the session, so save failures are logged and
// swallowed. A stale version triggers one merge-and-retry against the stored
// snapshot before giving up.
func (s *cartService) persistBestEffort(ctx context.Context, cart *domain.Cart) {
	saved, err := s.repo.Save(ctx, *cart, cart.Version)
	if err == nil {
		*cart = normaliseCart(saved, cart.UserID)
		return
	}

	if isRepoConflict(err) {
		remote, getErr := s.repo.Get(ctx, cart.UserID)
		if getErr == nil {
			merged := domain.MergeCarts(*cart, remote)
			merged.UpdatedAt = s.now()
			saved, err = s.repo.Save(ctx, merged, remote.Version)
			if err == nil {
				*cart = normaliseCart(saved, cart.UserID)
				return
			}
		} else {
			err = getErr
		}
	}

	s.logger(ctx, "cart.mirror_save_failed", map[string]any{
		"userID": cart.UserID,
		"error":  err.Error(),
	})
}

func (s *cartService) view(cart domain.Cart) CartView {
	return CartView{
		Cart:   cart,
		Totals: domain.TotalsFor(cart.Items, s.taxRateBps),
	}
}

func normaliseCart(cart domain.Cart, userID string) domain.Cart {
	if cart.ID = strings.TrimSpace(cart.ID); cart.ID == "" {
		cart.ID = userID
	}
	cart.UserID = strings.TrimSpace(firstNonEmpty(cart.UserID, userID))
	if cart.Items == nil {
		cart.Items = []domain.CartLine{}
	}
	if cart.Saved == nil {
		cart.Saved = []domain.CartLine{}
	}
	return cart
}

func indexOfLine(lines []domain.CartLine, productID string) int {
	target := strings.TrimSpace(productID)
	if target == "" {
		return -1
	}
	for i, line := range lines {
		if strings.EqualFold(strings.TrimSpace(line.ProductID), target) {
			return i
		}
	}
	return -1
}

func cloneLines(lines []domain.CartLine) []domain.CartLine {
	if len(lines) == 0 {
		return []domain.CartLine{}
	}
	dup := make([]domain.CartLine, len(lines))
	copy(dup, lines)
	return dup
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func translateCartRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return ErrCartNotFound
	}
	return ErrCartUnavailable
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsNotFound()
	}
	return false
}

func isRepoConflict(err error) bool {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsConflict()
	}
	return false
}
