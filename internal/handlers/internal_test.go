package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/drift-commerce/api/internal/platform/auth"
	"github.com/drift-commerce/api/internal/services"
)

func newInternalTestRouter(handler *InternalHandlers) chi.Router {
	router := chi.NewRouter()
	router.Route("/internal", handler.Routes)
	return router
}

func TestInternalHandlersRunStockSync(t *testing.T) {
	var got services.ReconcileStockSyncCommand
	inventory := &stubInventoryService{
		reconcileFunc: func(ctx context.Context, cmd services.ReconcileStockSyncCommand) (services.ReconcileStockSyncResult, error) {
			got = cmd
			return services.ReconcileStockSyncResult{Scanned: 5, Completed: 4, Failed: 1}, nil
		},
	}
	router := newInternalTestRouter(NewInternalHandlers(inventory))

	req := httptest.NewRequest(http.MethodPost, "/internal/jobs/stock-sync", strings.NewReader(`{"limit":25}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got.Limit != 25 {
		t.Fatalf("expected limit 25, got %d", got.Limit)
	}
	if got.ActorID != "internal" {
		t.Fatalf("expected fallback actor internal, got %q", got.ActorID)
	}

	var resp runStockSyncResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Scanned != 5 || resp.Completed != 4 || resp.Failed != 1 {
		t.Fatalf("unexpected result %#v", resp)
	}
}

func TestInternalHandlersRunStockSyncServiceActor(t *testing.T) {
	var got services.ReconcileStockSyncCommand
	inventory := &stubInventoryService{
		reconcileFunc: func(ctx context.Context, cmd services.ReconcileStockSyncCommand) (services.ReconcileStockSyncResult, error) {
			got = cmd
			return services.ReconcileStockSyncResult{}, nil
		},
	}
	router := newInternalTestRouter(NewInternalHandlers(inventory))

	req := httptest.NewRequest(http.MethodPost, "/internal/jobs/stock-sync", nil)
	req = req.WithContext(auth.WithServiceIdentity(req.Context(), &auth.ServiceIdentity{
		Subject: "scheduler@jobs.iam.gserviceaccount.com",
	}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if got.ActorID != "scheduler@jobs.iam.gserviceaccount.com" {
		t.Fatalf("expected service subject as actor, got %q", got.ActorID)
	}
	if got.Limit != 0 {
		t.Fatalf("expected zero limit without body, got %d", got.Limit)
	}
}

func TestInternalHandlersRunStockSyncBadJSON(t *testing.T) {
	router := newInternalTestRouter(NewInternalHandlers(&stubInventoryService{}))

	req := httptest.NewRequest(http.MethodPost, "/internal/jobs/stock-sync", strings.NewReader(`{"limit":`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestInternalHandlersRunStockSyncUnavailable(t *testing.T) {
	router := newInternalTestRouter(NewInternalHandlers(nil))

	req := httptest.NewRequest(http.MethodPost, "/internal/jobs/stock-sync", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}
