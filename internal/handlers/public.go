package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/drift-commerce/api/internal/platform/httpx"
	"github.com/drift-commerce/api/internal/repositories"
	"github.com/drift-commerce/api/internal/services"
)

// PublicHandlers serves unauthenticated catalog reads.
type PublicHandlers struct {
	catalog services.CatalogService
	limiter rateLimiter
}

// PublicOption customises the public handlers.
type PublicOption func(*PublicHandlers)

// WithPublicRateLimit throttles unauthenticated reads per client IP.
func WithPublicRateLimit(limit int, window time.Duration) PublicOption {
	return func(h *PublicHandlers) {
		h.limiter = newSimpleRateLimiter(limit, window, nil)
	}
}

// NewPublicHandlers constructs the public catalog endpoints.
func NewPublicHandlers(catalog services.CatalogService, opts ...PublicOption) *PublicHandlers {
	h := &PublicHandlers{catalog: catalog}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /public endpoints.
func (h *PublicHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/products/{productID}", h.getProduct)
}

type productPayload struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Price     int64  `json:"price"`
	ImageRef  string `json:"image_ref,omitempty"`
	Stock     int    `json:"stock"`
	Active    bool   `json:"active"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

func (h *PublicHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	if h.limiter != nil && !h.limiter.Allow(r.RemoteAddr) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many requests", http.StatusTooManyRequests))
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return
	}

	product, err := h.catalog.GetProduct(ctx, productID)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	if !product.Active {
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	writeJSONResponse(w, http.StatusOK, productPayload{
		ID:        strings.TrimSpace(product.ID),
		Title:     strings.TrimSpace(product.Title),
		Price:     product.Price,
		ImageRef:  strings.TrimSpace(product.ImageRef),
		Stock:     product.Stock,
		Active:    product.Active,
		UpdatedAt: formatTime(product.UpdatedAt),
	})
}

func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	case errors.Is(err, services.ErrCatalogNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
		return
	case errors.Is(err, services.ErrCatalogUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
		return
	}

	httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "failed to fetch product", http.StatusInternalServerError))
}
