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
	defaultOrderPageSize   = 20
	maxOrderPageSize       = 100
	maxOrderCancelBodySize = 4 * 1024
)

var validOrderStatuses = map[domain.OrderStatus]struct{}{
	domain.OrderStatusPending:   {},
	domain.OrderStatusShipped:   {},
	domain.OrderStatusDelivered: {},
	domain.OrderStatusCancelled: {},
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

// OrderHandlers exposes order endpoints for authenticated customers.
type OrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{
		authn:  authn,
		orders: orders,
	}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Post("/{orderID}/cancel", h.cancelOrder)
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	filter, err := parseOrderListQuery(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	filter.UserID = strings.TrimSpace(identity.UID)

	page, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildOrderListResponse(page))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
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

	if !strings.EqualFold(strings.TrimSpace(order.UserID), strings.TrimSpace(identity.UID)) {
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	var req cancelOrderRequest
	body, err := readLimitedBody(r, maxOrderCancelBodySize)
	if err != nil && !errors.Is(err, errEmptyBody) {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
			return
		}
	}

	cancelled, err := h.orders.Cancel(ctx, services.CancelOrderCommand{
		OrderID: orderID,
		UserID:  strings.TrimSpace(identity.UID),
		Reason:  strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(cancelled)})
}

func parseOrderListQuery(r *http.Request) (services.OrderListFilter, error) {
	query := r.URL.Query()

	var filter services.OrderListFilter
	filter.Status = parseFilterValues(query["status"])
	for _, status := range filter.Status {
		if _, ok := validOrderStatuses[domain.OrderStatus(status)]; !ok {
			return services.OrderListFilter{}, errors.New("status must be a valid order status")
		}
	}

	if raw := strings.TrimSpace(query.Get("placed_after")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			return services.OrderListFilter{}, errors.New("placed_after must be a valid RFC3339 timestamp")
		}
		filter.DateRange.From = &ts
	}
	if raw := strings.TrimSpace(query.Get("placed_before")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			return services.OrderListFilter{}, errors.New("placed_before must be a valid RFC3339 timestamp")
		}
		filter.DateRange.To = &ts
	}

	pageSize := defaultOrderPageSize
	if sizeRaw := strings.TrimSpace(query.Get("page_size")); sizeRaw != "" {
		size, err := strconv.Atoi(sizeRaw)
		if err != nil {
			return services.OrderListFilter{}, errors.New("page_size must be an integer")
		}
		switch {
		case size <= 0:
			pageSize = defaultOrderPageSize
		case size > maxOrderPageSize:
			pageSize = maxOrderPageSize
		default:
			pageSize = size
		}
	}

	filter.Pagination = services.Pagination{
		PageSize:  pageSize,
		PageToken: strings.TrimSpace(query.Get("page_token")),
	}
	return filter, nil
}

type orderListResponse struct {
	Items         []orderSummaryPayload `json:"items"`
	NextPageToken string                `json:"next_page_token,omitempty"`
}

type orderSummaryPayload struct {
	ID          string `json:"id"`
	OrderNumber string `json:"order_number"`
	Status      string `json:"status"`
	StockSync   string `json:"stock_sync,omitempty"`
	ItemCount   int    `json:"item_count"`
	Total       int64  `json:"total"`
	PlacedAt    string `json:"placed_at"`
}

type orderResponse struct {
	Order fullOrderPayload `json:"order"`
}

type fullOrderPayload struct {
	ID              string             `json:"id"`
	OrderNumber     string             `json:"order_number"`
	UserID          string             `json:"user_id"`
	CustomerEmail   string             `json:"customer_email,omitempty"`
	Status          string             `json:"status"`
	StockSync       string             `json:"stock_sync,omitempty"`
	Items           []orderItemPayload `json:"items"`
	Subtotal        int64              `json:"subtotal"`
	Tax             int64              `json:"tax"`
	Discount        int64              `json:"discount,omitempty"`
	Total           int64              `json:"total"`
	PromoCode       string             `json:"promo_code,omitempty"`
	PaymentMethod   string             `json:"payment_method,omitempty"`
	ShippingAddress addressPayload     `json:"shipping_address"`
	PlacedAt        string             `json:"placed_at"`
	UpdatedAt       string             `json:"updated_at,omitempty"`
	ShippedAt       string             `json:"shipped_at,omitempty"`
	DeliveredAt     string             `json:"delivered_at,omitempty"`
	CancelledAt     string             `json:"cancelled_at,omitempty"`
	CancelReason    *string            `json:"cancel_reason,omitempty"`
}

type orderItemPayload struct {
	ProductID string `json:"product_id"`
	Title     string `json:"title"`
	UnitPrice int64  `json:"unit_price"`
	ImageRef  string `json:"image_ref,omitempty"`
	Quantity  int    `json:"quantity"`
}

func buildOrderListResponse(page domain.CursorPage[services.Order]) orderListResponse {
	items := make([]orderSummaryPayload, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, buildOrderSummary(order))
	}
	return orderListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	}
}

func buildOrderSummary(order services.Order) orderSummaryPayload {
	count := 0
	for _, item := range order.Items {
		count += item.Quantity
	}
	return orderSummaryPayload{
		ID:          strings.TrimSpace(order.ID),
		OrderNumber: strings.TrimSpace(order.OrderNumber),
		Status:      strings.TrimSpace(string(order.Status)),
		StockSync:   stockSyncValue(order),
		ItemCount:   count,
		Total:       order.Total,
		PlacedAt:    formatTime(order.PlacedAt),
	}
}

func buildOrderPayload(order services.Order) fullOrderPayload {
	items := make([]orderItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemPayload{
			ProductID: strings.TrimSpace(item.ProductID),
			Title:     strings.TrimSpace(item.Title),
			UnitPrice: item.UnitPrice,
			ImageRef:  strings.TrimSpace(item.ImageRef),
			Quantity:  item.Quantity,
		})
	}

	return fullOrderPayload{
		ID:              strings.TrimSpace(order.ID),
		OrderNumber:     strings.TrimSpace(order.OrderNumber),
		UserID:          strings.TrimSpace(order.UserID),
		CustomerEmail:   strings.TrimSpace(strings.ToLower(order.CustomerEmail)),
		Status:          strings.TrimSpace(string(order.Status)),
		StockSync:       stockSyncValue(order),
		Items:           items,
		Subtotal:        order.Subtotal,
		Tax:             order.Tax,
		Discount:        order.Discount,
		Total:           order.Total,
		PromoCode:       strings.ToUpper(strings.TrimSpace(order.PromoCode)),
		PaymentMethod:   strings.TrimSpace(order.PaymentMethod),
		ShippingAddress: buildAddressPayload(order.ShippingAddress),
		PlacedAt:        formatTime(order.PlacedAt),
		UpdatedAt:       formatTime(order.UpdatedAt),
		ShippedAt:       formatTime(pointerTime(order.ShippedAt)),
		DeliveredAt:     formatTime(pointerTime(order.DeliveredAt)),
		CancelledAt:     formatTime(pointerTime(order.CancelledAt)),
		CancelReason:    cloneStringPointer(order.CancelReason),
	}
}

// stockSyncValue only surfaces the sub-state while deduction is outstanding.
func stockSyncValue(order services.Order) string {
	if order.StockSync == domain.StockSyncPending {
		return string(order.StockSync)
	}
	return ""
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_state", err.Error(), http.StatusConflict))
	default:
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) {
			switch {
			case repoErr.IsNotFound():
				httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
				return
			case repoErr.IsConflict():
				httpx.WriteError(ctx, w, httpx.NewError("order_conflict", "order was modified concurrently", http.StatusConflict))
				return
			}
		}
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}

func parseFilterValues(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	filters := make([]string, 0, len(values))
	for _, raw := range values {
		for _, part := range strings.Split(raw, ",") {
			trimmed := strings.ToLower(strings.TrimSpace(part))
			if trimmed == "" {
				continue
			}
			if _, exists := seen[trimmed]; exists {
				continue
			}
			seen[trimmed] = struct{}{}
			filters = append(filters, trimmed)
		}
	}
	return filters
}

func parseTimeParam(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("timestamp is empty")
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts.UTC(), nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.UTC(), nil
	}
	return time.Time{}, errors.New("must be RFC3339 timestamp")
}
