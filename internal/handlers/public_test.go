package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/drift-commerce/api/internal/services"
)

type stubCatalogService struct {
	getProductFunc func(ctx context.Context, productID string) (services.Product, error)
}

func (s *stubCatalogService) GetProduct(ctx context.Context, productID string) (services.Product, error) {
	if s.getProductFunc == nil {
		return services.Product{}, errors.New("unexpected GetProduct call")
	}
	return s.getProductFunc(ctx, productID)
}

func newPublicTestRouter(handler *PublicHandlers) chi.Router {
	router := chi.NewRouter()
	router.Route("/public", handler.Routes)
	return router
}

func TestPublicHandlersGetProduct(t *testing.T) {
	updated := time.Date(2025, 5, 1, 6, 0, 0, 0, time.UTC)
	service := &stubCatalogService{
		getProductFunc: func(ctx context.Context, productID string) (services.Product, error) {
			return services.Product{
				ID:        productID,
				Title:     "Desk Lamp",
				Price:     1500,
				Stock:     4,
				Active:    true,
				UpdatedAt: updated,
			}, nil
		},
	}
	router := newPublicTestRouter(NewPublicHandlers(service))

	req := httptest.NewRequest(http.MethodGet, "/public/products/prod-1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if cc := rr.Header().Get("Cache-Control"); cc != "public, max-age=60" {
		t.Fatalf("unexpected Cache-Control %q", cc)
	}

	var resp productPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != "prod-1" || resp.Price != 1500 || resp.Stock != 4 {
		t.Fatalf("unexpected payload %#v", resp)
	}
}

func TestPublicHandlersInactiveProductHidden(t *testing.T) {
	service := &stubCatalogService{
		getProductFunc: func(ctx context.Context, productID string) (services.Product, error) {
			return services.Product{ID: productID, Title: "Retired", Active: false}, nil
		},
	}
	router := newPublicTestRouter(NewPublicHandlers(service))

	req := httptest.NewRequest(http.MethodGet, "/public/products/prod-2", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	if body["error"] != "product_not_found" {
		t.Fatalf("expected product_not_found, got %v", body["error"])
	}
}

func TestPublicHandlersProductNotFound(t *testing.T) {
	service := &stubCatalogService{
		getProductFunc: func(ctx context.Context, productID string) (services.Product, error) {
			return services.Product{}, services.ErrCatalogNotFound
		},
	}
	router := newPublicTestRouter(NewPublicHandlers(service))

	req := httptest.NewRequest(http.MethodGet, "/public/products/ghost", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestPublicHandlersRateLimit(t *testing.T) {
	service := &stubCatalogService{
		getProductFunc: func(ctx context.Context, productID string) (services.Product, error) {
			return services.Product{ID: productID, Active: true}, nil
		},
	}
	router := newPublicTestRouter(NewPublicHandlers(service, WithPublicRateLimit(2, time.Minute)))

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/public/products/prod-1", nil)
		req.RemoteAddr = "203.0.113.7:1234"
		last = httptest.NewRecorder()
		router.ServeHTTP(last, req)
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429 on third request, got %d", last.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(last.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	if body["error"] != "rate_limited" {
		t.Fatalf("expected rate_limited, got %v", body["error"])
	}
}

func TestPublicHandlersCatalogUnavailable(t *testing.T) {
	router := newPublicTestRouter(NewPublicHandlers(nil))

	req := httptest.NewRequest(http.MethodGet, "/public/products/prod-1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}
