package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/drift-commerce/api/internal/domain"
	"github.com/drift-commerce/api/internal/platform/auth"
	"github.com/drift-commerce/api/internal/platform/httpx"
	"github.com/drift-commerce/api/internal/repositories"
	"github.com/drift-commerce/api/internal/services"
)

const (
	adminRole              = "admin"
	maxAdminBodySize       = 16 * 1024
	defaultInvoiceURLValid = 15 * time.Minute
	maxInvoiceURLValid     = 24 * time.Hour
	defaultAuditPageSize   = 50
	maxAuditPageSize       = 200
)

// AdminHandlers exposes the operator surface: cross-user order reads, the
// status workflow, stock management, invoice retrieval, audit logs, and the
// stock reconciliation trigger.
type AdminHandlers struct {
	authn     *auth.Authenticator
	orders    services.OrderService
	inventory services.InventoryService
	invoices  services.InvoiceArchiver
	system    services.SystemService
	jobs      services.BackgroundJobDispatcher
}

// AdminDeps bundles the services the admin surface depends on.
type AdminDeps struct {
	Orders    services.OrderService
	Inventory services.InventoryService
	Invoices  services.InvoiceArchiver
	System    services.SystemService
	Jobs      services.BackgroundJobDispatcher
}

// NewAdminHandlers constructs handlers requiring the admin role on every route.
func NewAdminHandlers(authn *auth.Authenticator, deps AdminDeps) *AdminHandlers {
	return &AdminHandlers{
		authn:     authn,
		orders:    deps.Orders,
		inventory: deps.Inventory,
		invoices:  deps.Invoices,
		system:    deps.System,
		jobs:      deps.Jobs,
	}
}

// Routes registers the /admin endpoints.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(adminRole))
	}
	r.Get("/orders", h.listOrders)
	r.Route("/orders/{orderID}", func(r chi.Router) {
		r.Get("/", h.getOrder)
		r.Post("/status", h.transitionStatus)
		r.Get("/invoice", h.invoiceURL)
	})
	r.Route("/products/{productID}/stock", func(r chi.Router) {
		r.Get("/", h.getStock)
		r.Put("/", h.setStock)
	})
	r.Post("/jobs/stock-sync", h.enqueueStockSync)
	r.Get("/audit-logs", h.listAuditLogs)
}

func (h *AdminHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	filter, err := parseOrderListQuery(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	filter.UserID = strings.TrimSpace(r.URL.Query().Get("user_id"))

	page, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildOrderListResponse(page))
}

func (h *AdminHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

type statusTransitionRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (h *AdminHandlers) transitionStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	actor, ok := adminActor(ctx, w)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxAdminBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req statusTransitionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	target := domain.OrderStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if _, ok := validOrderStatuses[target]; !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status must be a valid order status", http.StatusBadRequest))
		return
	}

	order, err := h.orders.TransitionStatus(ctx, services.OrderStatusTransitionCommand{
		OrderID:      orderID,
		TargetStatus: target,
		ActorID:      actor,
		Reason:       strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

type invoiceURLResponse struct {
	URL       string `json:"url"`
	ExpiresAt string `json:"expires_at"`
}

func (h *AdminHandlers) invoiceURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.invoices == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invoice_service_unavailable", "invoice archive unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	expiry := defaultInvoiceURLValid
	if raw := strings.TrimSpace(r.URL.Query().Get("valid_for")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "valid_for must be a positive duration", http.StatusBadRequest))
			return
		}
		if parsed > maxInvoiceURLValid {
			parsed = maxInvoiceURLValid
		}
		expiry = parsed
	}

	url, err := h.invoices.InvoiceURL(ctx, orderID, expiry)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invoice_error", "failed to sign invoice url", http.StatusInternalServerError))
		return
	}

	writeJSONResponse(w, http.StatusOK, invoiceURLResponse{
		URL:       url,
		ExpiresAt: time.Now().UTC().Add(expiry).Format(time.RFC3339Nano),
	})
}

type stockResponse struct {
	ProductID string `json:"product_id"`
	Title     string `json:"title,omitempty"`
	Stock     int    `json:"stock"`
	Active    bool   `json:"active"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

type setStockRequest struct {
	Stock *int `json:"stock"`
}

func (h *AdminHandlers) getStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.inventory == nil {
		httpx.WriteError(ctx, w, httpx.NewError("inventory_service_unavailable", "inventory service unavailable", http.StatusServiceUnavailable))
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return
	}

	product, err := h.inventory.GetStock(ctx, productID)
	if err != nil {
		writeInventoryError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildStockResponse(product))
}

func (h *AdminHandlers) setStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.inventory == nil {
		httpx.WriteError(ctx, w, httpx.NewError("inventory_service_unavailable", "inventory service unavailable", http.StatusServiceUnavailable))
		return
	}

	actor, ok := adminActor(ctx, w)
	if !ok {
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxAdminBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req setStockRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}
	if req.Stock == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "stock is required", http.StatusBadRequest))
		return
	}

	product, err := h.inventory.SetStock(ctx, services.SetStockCommand{
		ProductID: productID,
		Stock:     *req.Stock,
		ActorID:   actor,
	})
	if err != nil {
		writeInventoryError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildStockResponse(product))
}

type stockSyncJobRequest struct {
	OrderIDs []string `json:"order_ids"`
	Reason   string   `json:"reason"`
}

type stockSyncJobResponse struct {
	Enqueued bool `json:"enqueued"`
}

func (h *AdminHandlers) enqueueStockSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.jobs == nil {
		httpx.WriteError(ctx, w, httpx.NewError("jobs_unavailable", "job dispatcher unavailable", http.StatusServiceUnavailable))
		return
	}

	if _, ok := adminActor(ctx, w); !ok {
		return
	}

	var req stockSyncJobRequest
	body, err := readLimitedBody(r, maxAdminBodySize)
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

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "manual"
	}

	err = h.jobs.EnqueueStockSync(ctx, services.StockSyncJobPayload{
		OrderIDs: req.OrderIDs,
		Reason:   reason,
	})
	if err != nil {
		if errors.Is(err, services.ErrJobInvalidInput) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("jobs_error", "failed to enqueue stock sync job", http.StatusInternalServerError))
		return
	}

	writeJSONResponse(w, http.StatusAccepted, stockSyncJobResponse{Enqueued: true})
}

type auditLogListResponse struct {
	Items         []auditLogPayload `json:"items"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}

type auditLogPayload struct {
	ID        string         `json:"id"`
	Actor     string         `json:"actor"`
	ActorType string         `json:"actor_type,omitempty"`
	Action    string         `json:"action"`
	TargetRef string         `json:"target_ref,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Severity  string         `json:"severity,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	CreatedAt string         `json:"created_at"`
}

func (h *AdminHandlers) listAuditLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.system == nil {
		httpx.WriteError(ctx, w, httpx.NewError("system_service_unavailable", "system service unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	filter := services.AuditLogFilter{
		TargetRef: strings.TrimSpace(query.Get("target_ref")),
		Actor:     strings.TrimSpace(query.Get("actor")),
		ActorType: strings.TrimSpace(query.Get("actor_type")),
		Action:    strings.TrimSpace(query.Get("action")),
	}

	if raw := strings.TrimSpace(query.Get("created_after")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_after must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		filter.DateRange.From = &ts
	}
	if raw := strings.TrimSpace(query.Get("created_before")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_before must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		filter.DateRange.To = &ts
	}

	pageSize := defaultAuditPageSize
	if sizeRaw := strings.TrimSpace(query.Get("page_size")); sizeRaw != "" {
		size, err := strconv.Atoi(sizeRaw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "page_size must be an integer", http.StatusBadRequest))
			return
		}
		switch {
		case size <= 0:
			pageSize = defaultAuditPageSize
		case size > maxAuditPageSize:
			pageSize = maxAuditPageSize
		default:
			pageSize = size
		}
	}
	filter.Pagination = services.Pagination{
		PageSize:  pageSize,
		PageToken: strings.TrimSpace(query.Get("page_token")),
	}

	page, err := h.system.ListAuditLogs(ctx, filter)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("audit_log_error", "failed to list audit logs", http.StatusInternalServerError))
		return
	}

	items := make([]auditLogPayload, 0, len(page.Items))
	for _, entry := range page.Items {
		items = append(items, buildAuditLogPayload(entry))
	}

	writeJSONResponse(w, http.StatusOK, auditLogListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func buildAuditLogPayload(entry services.AuditLogEntry) auditLogPayload {
	return auditLogPayload{
		ID:        strings.TrimSpace(entry.ID),
		Actor:     strings.TrimSpace(entry.Actor),
		ActorType: strings.TrimSpace(entry.ActorType),
		Action:    strings.TrimSpace(entry.Action),
		TargetRef: strings.TrimSpace(entry.TargetRef),
		Metadata:  cloneMap(entry.Metadata),
		Severity:  strings.TrimSpace(entry.Severity),
		RequestID: strings.TrimSpace(entry.RequestID),
		CreatedAt: formatTime(entry.CreatedAt),
	}
}

func buildStockResponse(product services.Product) stockResponse {
	return stockResponse{
		ProductID: strings.TrimSpace(product.ID),
		Title:     strings.TrimSpace(product.Title),
		Stock:     product.Stock,
		Active:    product.Active,
		UpdatedAt: formatTime(product.UpdatedAt),
	}
}

func adminActor(ctx context.Context, w http.ResponseWriter) (string, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return "", false
	}
	return strings.TrimSpace(identity.UID), true
}

func writeInventoryError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInventoryInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	case errors.Is(err, services.ErrInventoryNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
		return
	case errors.Is(err, services.ErrInventoryUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("inventory_service_unavailable", "inventory service unavailable", http.StatusServiceUnavailable))
		return
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
			return
		case repoErr.IsConflict():
			httpx.WriteError(ctx, w, httpx.NewError("stock_conflict", "stock was modified concurrently", http.StatusConflict))
			return
		}
	}

	httpx.WriteError(ctx, w, httpx.NewError("inventory_error", "failed to process inventory request", http.StatusInternalServerError))
}
