package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/drift-commerce/api/internal/repositories"
)

var (
	// ErrCatalogInvalidInput indicates the caller supplied invalid data.
	ErrCatalogInvalidInput = errors.New("catalog: invalid input")
	// ErrCatalogNotFound indicates the product does not exist or is inactive.
	ErrCatalogNotFound = errors.New("catalog: product not found")
	// ErrCatalogUnavailable indicates the catalog store cannot be reached.
	ErrCatalogUnavailable = errors.New("catalog: unavailable")
)

// CatalogServiceDeps bundles constructor inputs for the catalog service.
type CatalogServiceDeps struct {
	Products repositories.ProductRepository
	Clock    func() time.Time
}

type catalogService struct {
	products repositories.ProductRepository
	clock    func() time.Time
}

// NewCatalogService constructs the catalog read surface.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Products == nil {
		return nil, errors.New("catalog service: product repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &catalogService{
		products: deps.Products,
		clock:    func() time.Time { return clock().UTC() },
	}, nil
}

func (s *catalogService) GetProduct(ctx context.Context, productID string) (Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) {
			if repoErr.IsNotFound() {
				return Product{}, fmt.Errorf("%w: %s", ErrCatalogNotFound, productID)
			}
			if repoErr.IsUnavailable() {
				return Product{}, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
			}
		}
		return Product{}, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	if !product.Active {
		return Product{}, fmt.Errorf("%w: %s", ErrCatalogNotFound, productID)
	}
	return product, nil
}
