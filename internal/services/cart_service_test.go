package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/drift-commerce/api/internal/domain"
	"github.com/drift-commerce/api/internal/repositories"
	"github.com/drift-commerce/api/internal/repositories/memory"
)

type stubCatalog struct {
	products map[string]Product
	calls    int
	err      error
}

func (s *stubCatalog) GetProduct(_ context.Context, productID string) (Product, error) {
	s.calls++
	if s.err != nil {
		return Product{}, s.err
	}
	product, ok := s.products[productID]
	if !ok {
		return Product{}, ErrCatalogNotFound
	}
	return product, nil
}

func testClock() func() time.Time {
	return func() time.Time { return time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC) }
}

func newTestCartService(t *testing.T, repo repositories.CartRepository, catalog *stubCatalog) CartService {
	t.Helper()
	svc, err := NewCartService(CartServiceDeps{
		Repository:  repo,
		Catalog:     catalog,
		Clock:       testClock(),
		IDGenerator: func() string { return "01TESTULID" },
	})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}
	return svc
}

func TestNewCartServiceValidatesDeps(t *testing.T) {
	catalog := &stubCatalog{}
	if _, err := NewCartService(CartServiceDeps{Catalog: catalog, Clock: testClock()}); err == nil {
		t.Fatal("expected error without repository")
	}
	if _, err := NewCartService(CartServiceDeps{Repository: memory.NewCartRepository(), Clock: testClock()}); err == nil {
		t.Fatal("expected error without catalog")
	}
	if _, err := NewCartService(CartServiceDeps{Repository: memory.NewCartRepository(), Catalog: catalog}); err == nil {
		t.Fatal("expected error without clock")
	}
}

func TestCartServiceGetCartReturnsEmptyWhenAbsent(t *testing.T) {
	svc := newTestCartService(t, memory.NewCartRepository(), &stubCatalog{})

	view, err := svc.GetCart(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}
	if view.Cart.UserID != "user-1" {
		t.Fatalf("unexpected user id %q", view.Cart.UserID)
	}
	if view.Cart.Items == nil || len(view.Cart.Items) != 0 {
		t.Fatalf("expected empty non-nil items, got %#v", view.Cart.Items)
	}
	if view.Cart.Saved == nil || len(view.Cart.Saved) != 0 {
		t.Fatalf("expected empty non-nil shelf, got %#v", view.Cart.Saved)
	}
	if view.Totals.Subtotal != 0 || view.Totals.GrandTotal != 0 {
		t.Fatalf("expected zero totals, got %+v", view.Totals)
	}
}

func TestCartServiceAddItemSnapshotsCatalogFields(t *testing.T) {
	catalog := &stubCatalog{products: map[string]Product{
		"prod-1": {ID: "prod-1", Title: "Walnut Desk Organiser", Price: 1000, ImageRef: "img/prod-1.jpg", Stock: 5, Active: true},
	}}
	svc := newTestCartService(t, memory.NewCartRepository(), catalog)

	view, err := svc.AddItem(context.Background(), AddCartItemCommand{UserID: "user-1", ProductID: "prod-1"})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if len(view.Cart.Items) != 1 {
		t.Fatalf("expected one line, got %d", len(view.Cart.Items))
	}
	line := view.Cart.Items[0]
	if line.Title != "Walnut Desk Organiser" || line.UnitPrice != 1000 || line.ImageRef != "img/prod-1.jpg" || line.Quantity != 1 {
		t.Fatalf("unexpected line %+v", line)
	}
	if view.Totals.Subtotal != 1000 || view.Totals.Tax != 180 || view.Totals.GrandTotal != 1180 {
		t.Fatalf("unexpected totals %+v", view.Totals)
	}
	if view.Cart.Version != 1 {
		t.Fatalf("expected version 1 after first save, got %d", view.Cart.Version)
	}
}

func TestCartServiceAddItemMergesExistingLine(t *testing.T) {
	catalog := &stubCatalog{products: map[string]Product{
		"prod-1": {ID: "prod-1", Title: "Desk Organiser", Price: 500},
	}}
	svc := newTestCartService(t, memory.NewCartRepository(), catalog)

	ctx := context.Background()
	if _, err := svc.AddItem(ctx, AddCartItemCommand{UserID: "user-1", ProductID: "prod-1"}); err != nil {
		t.Fatalf("first AddItem: %v", err)
	}
	view, err := svc.AddItem(ctx, AddCartItemCommand{UserID: "user-1", ProductID: "prod-1"})
	if err != nil {
		t.Fatalf("second AddItem: %v", err)
	}
	if len(view.Cart.Items) != 1 || view.Cart.Items[0].Quantity != 2 {
		t.Fatalf("expected merged quantity 2, got %+v", view.Cart.Items)
	}
	if catalog.calls != 1 {
		t.Fatalf("expected single catalog lookup, got %d", catalog.calls)
	}
	if view.Totals.ItemCount != 2 || view.Totals.Subtotal != 1000 {
		t.Fatalf("unexpected totals %+v", view.Totals)
	}
}

func TestCartServiceAddItemUnknownProduct(t *testing.T) {
	svc := newTestCartService(t, memory.NewCartRepository(), &stubCatalog{products: map[string]Product{}})

	_, err := svc.AddItem(context.Background(), AddCartItemCommand{UserID: "user-1", ProductID: "ghost"})
	if !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected ErrCartInvalidInput, got %v", err)
	}
}

func TestCartServiceAddItemCatalogOutage(t *testing.T) {
	svc := newTestCartService(t, memory.NewCartRepository(), &stubCatalog{err: ErrCatalogUnavailable})

	_, err := svc.AddItem(context.Background(), AddCartItemCommand{UserID: "user-1", ProductID: "prod-1"})
	if !errors.Is(err, ErrCartUnavailable) {
		t.Fatalf("expected ErrCartUnavailable, got %v", err)
	}
}

func TestCartServiceUpdateQuantity(t *testing.T) {
	catalog := &stubCatalog{products: map[string]Product{
		"prod-1": {ID: "prod-1", Title: "Organiser", Price: 250},
	}}
	svc := newTestCartService(t, memory.NewCartRepository(), catalog)

	ctx := context.Background()
	if _, err := svc.AddItem(ctx, AddCartItemCommand{UserID: "user-1", ProductID: "prod-1"}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	view, err := svc.UpdateQuantity(ctx, UpdateQuantityCommand{UserID: "user-1", ProductID: "prod-1", Quantity: 4})
	if err != nil {
		t.Fatalf("UpdateQuantity: %v", err)
	}
	if view.Cart.Items[0].Quantity != 4 || view.Totals.Subtotal != 1000 {
		t.Fatalf("unexpected state after update: %+v %+v", view.Cart.Items, view.Totals)
	}

	view, err = svc.UpdateQuantity(ctx, UpdateQuantityCommand{UserID: "user-1", ProductID: "prod-1", Quantity: 0})
	if err != nil {
		t.Fatalf("UpdateQuantity to zero: %v", err)
	}
	if len(view.Cart.Items) != 0 {
		t.Fatalf("expected line removed at quantity zero, got %+v", view.Cart.Items)
	}
}

func TestCartServiceUpdateQuantityMissingLine(t *testing.T) {
	svc := newTestCartService(t, memory.NewCartRepository(), &stubCatalog{})

	_, err := svc.UpdateQuantity(context.Background(), UpdateQuantityCommand{UserID: "user-1", ProductID: "ghost", Quantity: 2})
	if !errors.Is(err, ErrCartNotFound) {
		t.Fatalf("expected ErrCartNotFound, got %v", err)
	}
}

func TestCartServiceSaveForLaterRoundTrip(t *testing.T) {
	catalog := &stubCatalog{products: map[string]Product{
		"prod-1": {ID: "prod-1", Title: "Organiser", Price: 300},
		"prod-2": {ID: "prod-2", Title: "Lamp", Price: 700},
	}}
	svc := newTestCartService(t, memory.NewCartRepository(), catalog)

	ctx := context.Background()
	for _, id := range []string{"prod-1", "prod-2"} {
		if _, err := svc.AddItem(ctx, AddCartItemCommand{UserID: "user-1", ProductID: id}); err != nil {
			t.Fatalf("AddItem %s: %v", id, err)
		}
	}

	view, err := svc.SaveForLater(ctx, MoveCartItemCommand{UserID: "user-1", ProductID: "prod-1"})
	if err != nil {
		t.Fatalf("SaveForLater: %v", err)
	}
	if len(view.Cart.Items) != 1 || view.Cart.Items[0].ProductID != "prod-2" {
		t.Fatalf("expected only prod-2 active, got %+v", view.Cart.Items)
	}
	if len(view.Cart.Saved) != 1 || view.Cart.Saved[0].ProductID != "prod-1" {
		t.Fatalf("expected prod-1 on shelf, got %+v", view.Cart.Saved)
	}
	if view.Totals.Subtotal != 700 {
		t.Fatalf("shelf lines must not count toward totals, got %+v", view.Totals)
	}

	view, err = svc.MoveToCart(ctx, MoveCartItemCommand{UserID: "user-1", ProductID: "prod-1"})
	if err != nil {
		t.Fatalf("MoveToCart: %v", err)
	}
	if len(view.Cart.Saved) != 0 {
		t.Fatalf("expected empty shelf, got %+v", view.Cart.Saved)
	}
	if len(view.Cart.Items) != 2 {
		t.Fatalf("expected two active lines, got %+v", view.Cart.Items)
	}
}

func TestCartServiceMoveToCartMergesQuantities(t *testing.T) {
	catalog := &stubCatalog{products: map[string]Product{
		"prod-1": {ID: "prod-1", Title: "Organiser", Price: 300},
	}}
	svc := newTestCartService(t, memory.NewCartRepository(), catalog)

	ctx := context.Background()
	if _, err := svc.AddItem(ctx, AddCartItemCommand{UserID: "user-1", ProductID: "prod-1"}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := svc.SaveForLater(ctx, MoveCartItemCommand{UserID: "user-1", ProductID: "prod-1"}); err != nil {
		t.Fatalf("SaveForLater: %v", err)
	}
	if _, err := svc.AddItem(ctx, AddCartItemCommand{UserID: "user-1", ProductID: "prod-1"}); err != nil {
		t.Fatalf("re-add: %v", err)
	}

	view, err := svc.MoveToCart(ctx, MoveCartItemCommand{UserID: "user-1", ProductID: "prod-1"})
	if err != nil {
		t.Fatalf("MoveToCart: %v", err)
	}
	if len(view.Cart.Items) != 1 || view.Cart.Items[0].Quantity != 2 {
		t.Fatalf("expected merged quantity 2, got %+v", view.Cart.Items)
	}
	if len(view.Cart.Saved) != 0 {
		t.Fatalf("expected shelf entry consumed, got %+v", view.Cart.Saved)
	}
}

func TestCartServiceRemoveFromSaved(t *testing.T) {
	catalog := &stubCatalog{products: map[string]Product{
		"prod-1": {ID: "prod-1", Title: "Organiser", Price: 300},
	}}
	svc := newTestCartService(t, memory.NewCartRepository(), catalog)

	ctx := context.Background()
	if _, err := svc.AddItem(ctx, AddCartItemCommand{UserID: "user-1", ProductID: "prod-1"}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := svc.SaveForLater(ctx, MoveCartItemCommand{UserID: "user-1", ProductID: "prod-1"}); err != nil {
		t.Fatalf("SaveForLater: %v", err)
	}

	view, err := svc.RemoveFromSaved(ctx, MoveCartItemCommand{UserID: "user-1", ProductID: "prod-1"})
	if err != nil {
		t.Fatalf("RemoveFromSaved: %v", err)
	}
	if len(view.Cart.Saved) != 0 || len(view.Cart.Items) != 0 {
		t.Fatalf("expected empty cart and shelf, got %+v", view.Cart)
	}
}

func TestCartServiceClearCartKeepsShelf(t *testing.T) {
	catalog := &stubCatalog{products: map[string]Product{
		"prod-1": {ID: "prod-1", Title: "Organiser", Price: 300},
		"prod-2": {ID: "prod-2", Title: "Lamp", Price: 700},
	}}
	svc := newTestCartService(t, memory.NewCartRepository(), catalog)

	ctx := context.Background()
	for _, id := range []string{"prod-1", "prod-2"} {
		if _, err := svc.AddItem(ctx, AddCartItemCommand{UserID: "user-1", ProductID: id}); err != nil {
			t.Fatalf("AddItem %s: %v", id, err)
		}
	}
	if _, err := svc.SaveForLater(ctx, MoveCartItemCommand{UserID: "user-1", ProductID: "prod-2"}); err != nil {
		t.Fatalf("SaveForLater: %v", err)
	}

	view, err := svc.ClearCart(ctx, "user-1")
	if err != nil {
		t.Fatalf("ClearCart: %v", err)
	}
	if len(view.Cart.Items) != 0 {
		t.Fatalf("expected active lines cleared, got %+v", view.Cart.Items)
	}
	if len(view.Cart.Saved) != 1 || view.Cart.Saved[0].ProductID != "prod-2" {
		t.Fatalf("expected shelf untouched, got %+v", view.Cart.Saved)
	}
}

func TestCartServicePlaceOrderSnapshotsAndClears(t *testing.T) {
	catalog := &stubCatalog{products: map[string]Product{
		"prod-1": {ID: "prod-1", Title: "Organiser", Price: 1000},
	}}
	repo := memory.NewCartRepository()
	svc := newTestCartService(t, repo, catalog)

	ctx := context.Background()
	if _, err := svc.AddItem(ctx, AddCartItemCommand{UserID: "user-1", ProductID: "prod-1"}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	order, err := svc.PlaceOrder(ctx, "user-1")
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if order == nil {
		t.Fatal("expected draft order")
	}
	if order.ID != "ORD-01TESTULID" {
		t.Fatalf("unexpected order id %q", order.ID)
	}
	if order.Status != domain.OrderStatusPending || order.StockSync != domain.StockSyncPending {
		t.Fatalf("unexpected order state status=%q stock_sync=%q", order.Status, order.StockSync)
	}
	if order.Subtotal != 1000 || order.Tax != 180 || order.Total != 1180 {
		t.Fatalf("unexpected totals %+v", order)
	}
	if len(order.Items) != 1 || order.Items[0].ProductID != "prod-1" {
		t.Fatalf("unexpected items %+v", order.Items)
	}

	stored, err := repo.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("repo.Get: %v", err)
	}
	if len(stored.Items) != 0 {
		t.Fatalf("expected cart cleared after place, got %+v", stored.Items)
	}
}

func TestCartServicePlaceOrderEmptyCart(t *testing.T) {
	svc := newTestCartService(t, memory.NewCartRepository(), &stubCatalog{})

	order, err := svc.PlaceOrder(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if order != nil {
		t.Fatalf("expected nil order for empty cart, got %+v", order)
	}
}

// staleReadCartRepo serves one pre-recorded stale snapshot before delegating
// reads to the backing store, simulating a concurrent write landing between
// a session's read and its save.
type staleReadCartRepo struct {
	inner *memory.CartRepository
	stale *domain.Cart
}

func (r *staleReadCartRepo) Get(ctx context.Context, userID string) (domain.Cart, error) {
	if r.stale != nil {
		snapshot := *r.stale
		r.stale = nil
		return snapshot, nil
	}
	return r.inner.Get(ctx, userID)
}

func (r *staleReadCartRepo) Save(ctx context.Context, cart domain.Cart, expectedVersion int64) (domain.Cart, error) {
	return r.inner.Save(ctx, cart, expectedVersion)
}

func TestCartServiceConflictTriggersUnionMerge(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewCartRepository()

	seed := domain.Cart{
		ID:     "user-1",
		UserID: "user-1",
		Items:  []domain.CartLine{{ProductID: "prod-1", Title: "Organiser", UnitPrice: 300, Quantity: 1}},
	}
	v1, err := inner.Save(ctx, seed, 0)
	if err != nil {
		t.Fatalf("seed save: %v", err)
	}

	// A second session lands a write before ours, adding a lamp.
	remote := v1
	remote.Items = append(cloneLines(remote.Items), domain.CartLine{ProductID: "prod-2", Title: "Lamp", UnitPrice: 700, Quantity: 1})
	if _, err := inner.Save(ctx, remote, v1.Version); err != nil {
		t.Fatalf("remote save: %v", err)
	}

	repo := &staleReadCartRepo{inner: inner, stale: &v1}
	catalog := &stubCatalog{products: map[string]Product{
		"prod-1": {ID: "prod-1", Title: "Organiser", Price: 300},
	}}
	svc := newTestCartService(t, repo, catalog)

	view, err := svc.AddItem(ctx, AddCartItemCommand{UserID: "user-1", ProductID: "prod-1"})
	if err != nil {
		t.Fatalf("conflicting AddItem: %v", err)
	}
	if len(view.Cart.Items) != 2 {
		t.Fatalf("expected union of both sessions, got %+v", view.Cart.Items)
	}
	for _, line := range view.Cart.Items {
		if line.ProductID == "prod-1" && line.Quantity != 2 {
			t.Fatalf("expected local increment to survive merge, got %+v", line)
		}
	}

	stored, err := inner.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("inner.Get: %v", err)
	}
	if len(stored.Items) != 2 {
		t.Fatalf("expected merged cart persisted, got %+v", stored.Items)
	}
}
