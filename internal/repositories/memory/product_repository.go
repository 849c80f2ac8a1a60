package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	domain "github.com/drift-commerce/api/internal/domain"
	"github.com/drift-commerce/api/internal/repositories"
)

// ProductRepository keeps catalog snapshots in process memory.
type ProductRepository struct {
	mu       sync.RWMutex
	products map[string]domain.Product
}

// NewProductRepository constructs an in-memory product repository seeded with
// the provided catalog entries.
func NewProductRepository(seed ...domain.Product) *ProductRepository {
	products := make(map[string]domain.Product, len(seed))
	for _, product := range seed {
		products[product.ID] = product
	}
	return &ProductRepository{products: products}
}

// Upsert replaces or adds a catalog entry. Intended for test setup.
func (r *ProductRepository) Upsert(product domain.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[product.ID] = product
}

func (r *ProductRepository) FindByID(_ context.Context, productID string) (domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[productID]
	if !ok {
		return domain.Product{}, notFoundError(fmt.Sprintf("product %s not found", productID))
	}
	return product, nil
}

func (r *ProductRepository) SetStock(_ context.Context, productID string, stock int, now time.Time) (domain.Product, error) {
	if stock < 0 {
		stock = 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[productID]
	if !ok {
		return domain.Product{}, notFoundError(fmt.Sprintf("product %s not found", productID))
	}
	product.Stock = stock
	product.UpdatedAt = now
	r.products[productID] = product
	return product, nil
}

func (r *ProductRepository) DecrementStock(_ context.Context, productID string, quantity int, now time.Time) (int, error) {
	if quantity <= 0 {
		return 0, errors.New("decrement quantity must be positive")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[productID]
	if !ok {
		return 0, notFoundError(fmt.Sprintf("product %s not found", productID))
	}
	next := product.Stock - quantity
	if next < 0 {
		next = 0
	}
	product.Stock = next
	product.UpdatedAt = now
	r.products[productID] = product
	return next, nil
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)
