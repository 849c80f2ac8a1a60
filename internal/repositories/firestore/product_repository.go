package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/drift-commerce/api/internal/domain"
	pfirestore "github.com/drift-commerce/api/internal/platform/firestore"
	"github.com/drift-commerce/api/internal/repositories"
)

const productCollection = "products"

// ProductRepository reads catalog snapshots and owns the stock counter.
type ProductRepository struct {
	base     *pfirestore.BaseRepository[productDocument]
	provider *pfirestore.Provider
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[productDocument](provider, productCollection, nil, nil)
	return &ProductRepository{
		base:     base,
		provider: provider,
	}, nil
}

// FindByID loads a product document.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	doc, err := r.base.Get(ctx, strings.TrimSpace(productID))
	if err != nil {
		return domain.Product{}, err
	}
	return productFromDocument(doc.ID, doc.Data), nil
}

// SetStock overwrites the stock level for a product.
func (r *ProductRepository) SetStock(ctx context.Context, productID string, stock int, now time.Time) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, errors.New("product repository: product id is required")
	}
	if stock < 0 {
		stock = 0
	}

	updates := []firestore.Update{
		{Path: "stock", Value: stock},
		{Path: "updatedAt", Value: now.UTC()},
	}
	if _, err := r.base.Update(ctx, productID, updates); err != nil {
		return domain.Product{}, err
	}
	return r.FindByID(ctx, productID)
}

// DecrementStock atomically reduces the stock level by quantity, never below
// zero, and returns the resulting level.
func (r *ProductRepository) DecrementStock(ctx context.Context, productID string, quantity int, now time.Time) (int, error) {
	if r == nil || r.base == nil {
		return 0, errors.New("product repository not initialised")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return 0, errors.New("product repository: product id is required")
	}
	if quantity <= 0 {
		return 0, errors.New("product repository: quantity must be positive")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return 0, err
	}
	ref, err := r.base.DocumentRef(ctx, productID)
	if err != nil {
		return 0, err
	}

	remaining := 0
	err = pfirestore.RunTransaction(ctx, client, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc productDocument
		if err := snap.DataTo(&doc); err != nil {
			return err
		}

		next := doc.Stock - quantity
		if next < 0 {
			next = 0
		}
		remaining = next
		return tx.Update(ref, []firestore.Update{
			{Path: "stock", Value: next},
			{Path: "updatedAt", Value: now.UTC()},
		})
	})
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

func productFromDocument(id string, doc productDocument) domain.Product {
	return domain.Product{
		ID:        id,
		Title:     doc.Title,
		Price:     doc.Price,
		ImageRef:  doc.ImageRef,
		Stock:     doc.Stock,
		Active:    doc.Active,
		UpdatedAt: doc.UpdatedAt,
	}
}

type productDocument struct {
	Title     string    `firestore:"title"`
	Price     int64     `firestore:"price"`
	ImageRef  string    `firestore:"imageRef,omitempty"`
	Stock     int       `firestore:"stock"`
	Active    bool      `firestore:"active"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)
