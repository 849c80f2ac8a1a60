package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/drift-commerce/api/internal/platform/auth"
	"github.com/drift-commerce/api/internal/platform/httpx"
	"github.com/drift-commerce/api/internal/services"
)

const maxInternalBodySize = 16 * 1024

// InternalHandlers serves machine-to-machine endpoints. Authentication is
// enforced by the OIDC/HMAC middlewares installed on the /internal group.
type InternalHandlers struct {
	inventory services.InventoryService
}

// NewInternalHandlers constructs the internal job endpoints.
func NewInternalHandlers(inventory services.InventoryService) *InternalHandlers {
	return &InternalHandlers{inventory: inventory}
}

// Routes registers the /internal endpoints.
func (h *InternalHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/jobs/stock-sync", h.runStockSync)
}

type runStockSyncRequest struct {
	Limit int `json:"limit"`
}

type runStockSyncResponse struct {
	Scanned   int `json:"scanned"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// runStockSync executes one reconciliation sweep synchronously. This is the
// push target for the stock sync job queue.
func (h *InternalHandlers) runStockSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.inventory == nil {
		httpx.WriteError(ctx, w, httpx.NewError("inventory_service_unavailable", "inventory service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req runStockSyncRequest
	body, err := readLimitedBody(r, maxInternalBodySize)
	if err != nil && !errors.Is(err, errEmptyBody) {
		writeBodyError(ctx, w, err)
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
			return
		}
	}

	actor := "internal"
	if svc, ok := auth.ServiceIdentityFromContext(ctx); ok && svc != nil && strings.TrimSpace(svc.Subject) != "" {
		actor = strings.TrimSpace(svc.Subject)
	}

	result, err := h.inventory.ReconcileStockSync(ctx, services.ReconcileStockSyncCommand{
		Limit:   req.Limit,
		ActorID: actor,
	})
	if err != nil {
		writeInventoryError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, runStockSyncResponse{
		Scanned:   result.Scanned,
		Completed: result.Completed,
		Failed:    result.Failed,
	})
}
