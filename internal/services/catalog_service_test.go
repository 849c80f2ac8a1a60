package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/drift-commerce/api/internal/domain"
	"github.com/drift-commerce/api/internal/repositories/memory"
)

func newTestCatalogService(t *testing.T, seed ...domain.Product) CatalogService {
	t.Helper()
	svc, err := NewCatalogService(CatalogServiceDeps{
		Products: memory.NewProductRepository(seed...),
		Clock:    testClock(),
	})
	if err != nil {
		t.Fatalf("NewCatalogService: %v", err)
	}
	return svc
}

func TestCatalogGetProduct(t *testing.T) {
	svc := newTestCatalogService(t, domain.Product{ID: "prod-1", Title: "Organiser", Price: 1000, Stock: 5, Active: true})

	product, err := svc.GetProduct(context.Background(), "prod-1")
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if product.Title != "Organiser" || product.Price != 1000 {
		t.Fatalf("unexpected product %+v", product)
	}
}

func TestCatalogHidesInactiveProducts(t *testing.T) {
	svc := newTestCatalogService(t, domain.Product{ID: "prod-1", Title: "Retired", Price: 1000, Active: false})

	_, err := svc.GetProduct(context.Background(), "prod-1")
	if !errors.Is(err, ErrCatalogNotFound) {
		t.Fatalf("expected ErrCatalogNotFound for inactive product, got %v", err)
	}
}

func TestCatalogGetProductMissing(t *testing.T) {
	svc := newTestCatalogService(t)

	if _, err := svc.GetProduct(context.Background(), "ghost"); !errors.Is(err, ErrCatalogNotFound) {
		t.Fatalf("expected ErrCatalogNotFound, got %v", err)
	}
	if _, err := svc.GetProduct(context.Background(), "  "); !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected ErrCatalogInvalidInput, got %v", err)
	}
}
