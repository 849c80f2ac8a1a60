package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/drift-commerce/api/internal/platform/auth"
	"github.com/drift-commerce/api/internal/platform/httpx"
	"github.com/drift-commerce/api/internal/repositories"
	"github.com/drift-commerce/api/internal/services"
)

// CartHandlers exposes authenticated cart endpoints for the current user.
type CartHandlers struct {
	authn *auth.Authenticator
	carts services.CartService
}

const maxCartBodySize = 16 * 1024

// NewCartHandlers constructs handlers enforcing Firebase authentication before invoking the cart service.
func NewCartHandlers(authn *auth.Authenticator, carts services.CartService) *CartHandlers {
	return &CartHandlers{
		authn: authn,
		carts: carts,
	}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.getCart)
	r.Post("/", h.placeOrder)
	r.Delete("/", h.clearCart)
	r.Post("/items", h.addItem)
	r.Route("/items/{productID}", func(r chi.Router) {
		r.Patch("/", h.updateQuantity)
		r.Delete("/", h.removeItem)
		r.Post("/save-for-later", h.saveForLater)
	})
	r.Route("/saved/{productID}", func(r chi.Router) {
		r.Delete("/", h.removeFromSaved)
		r.Post("/move-to-cart", h.moveToCart)
	})
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	view, err := h.carts.GetCart(ctx, uid)
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}

	h.writeCartView(w, view)
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxCartBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req addCartItemRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}
	productID := strings.TrimSpace(req.ProductID)
	if productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product_id is required", http.StatusBadRequest))
		return
	}

	view, err := h.carts.AddItem(ctx, services.AddCartItemCommand{
		UserID:    uid,
		ProductID: productID,
	})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}

	h.writeCartView(w, view)
}

func (h *CartHandlers) updateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxCartBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req updateQuantityRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}
	if req.Quantity == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "quantity is required", http.StatusBadRequest))
		return
	}

	view, err := h.carts.UpdateQuantity(ctx, services.UpdateQuantityCommand{
		UserID:    uid,
		ProductID: productID,
		Quantity:  *req.Quantity,
	})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}

	h.writeCartView(w, view)
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	h.moveLine(w, r, func(ctx context.Context, cmd services.MoveCartItemCommand) (services.CartView, error) {
		return h.carts.RemoveItem(ctx, services.RemoveCartItemCommand{
			UserID:    cmd.UserID,
			ProductID: cmd.ProductID,
		})
	})
}

func (h *CartHandlers) saveForLater(w http.ResponseWriter, r *http.Request) {
	h.moveLine(w, r, h.carts.SaveForLater)
}

func (h *CartHandlers) moveToCart(w http.ResponseWriter, r *http.Request) {
	h.moveLine(w, r, h.carts.MoveToCart)
}

func (h *CartHandlers) removeFromSaved(w http.ResponseWriter, r *http.Request) {
	h.moveLine(w, r, h.carts.RemoveFromSaved)
}

func (h *CartHandlers) moveLine(w http.ResponseWriter, r *http.Request, op func(context.Context, services.MoveCartItemCommand) (services.CartView, error)) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return
	}

	view, err := op(ctx, services.MoveCartItemCommand{
		UserID:    uid,
		ProductID: productID,
	})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}

	h.writeCartView(w, view)
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	view, err := h.carts.ClearCart(ctx, uid)
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}

	h.writeCartView(w, view)
}

// placeOrder is the legacy one-shot checkout path: it snapshots the active
// lines into an order using the user's default address and COD payment.
func (h *CartHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	order, err := h.carts.PlaceOrder(ctx, uid)
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	if order == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "cart is empty", http.StatusConflict))
		return
	}

	payload := orderResponse{Order: buildOrderPayload(*order)}
	writeJSONResponse(w, http.StatusCreated, payload)
}

func (h *CartHandlers) requireUser(ctx context.Context, w http.ResponseWriter) (string, bool) {
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return "", false
	}
	return strings.TrimSpace(identity.UID), true
}

func (h *CartHandlers) writeCartView(w http.ResponseWriter, view services.CartView) {
	payload := cartResponse{
		Cart:   buildCartPayload(view.Cart),
		Totals: buildCartTotals(view.Totals),
	}
	setCartResponseHeaders(w, view.Cart)
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *CartHandlers) writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("cart_item_not_found", "item not found in cart", http.StatusNotFound))
	case errors.Is(err, services.ErrCartUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
	default:
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsConflict() {
			httpx.WriteError(ctx, w, httpx.NewError("cart_conflict", "cart has been modified; refresh and retry", http.StatusConflict))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("cart_error", "failed to process cart request", http.StatusInternalServerError))
	}
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

func setCartResponseHeaders(w http.ResponseWriter, cart services.Cart) {
	w.Header().Set("Cache-Control", "no-store, no-cache, max-age=0, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	if !cart.UpdatedAt.IsZero() {
		w.Header().Set("Last-Modified", cart.UpdatedAt.UTC().Format(http.TimeFormat))
	}
	if etag := buildCartETag(cart); etag != "" {
		w.Header().Set("ETag", etag)
	}
}

func buildCartETag(cart services.Cart) string {
	if strings.TrimSpace(cart.ID) == "" {
		return ""
	}
	input := fmt.Sprintf("%s:%d", strings.TrimSpace(cart.ID), cart.Version)
	sum := sha256.Sum256([]byte(input))
	token := hex.EncodeToString(sum[:8])
	return fmt.Sprintf(`W/"%s"`, token)
}

type cartResponse struct {
	Cart   cartPayload       `json:"cart"`
	Totals cartTotalsPayload `json:"totals"`
}

type cartPayload struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Items     []cartLinePayload `json:"items"`
	Saved     []cartLinePayload `json:"saved_for_later"`
	Version   int64             `json:"version"`
	UpdatedAt string            `json:"updated_at,omitempty"`
}

type cartLinePayload struct {
	ProductID string `json:"product_id"`
	Title     string `json:"title"`
	UnitPrice int64  `json:"unit_price"`
	ImageRef  string `json:"image_ref,omitempty"`
	Quantity  int    `json:"quantity"`
	AddedAt   string `json:"added_at,omitempty"`
}

type cartTotalsPayload struct {
	ItemCount  int   `json:"item_count"`
	Subtotal   int64 `json:"subtotal"`
	Tax        int64 `json:"tax"`
	GrandTotal int64 `json:"grand_total"`
}

type addCartItemRequest struct {
	ProductID string `json:"product_id"`
}

type updateQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

func buildCartPayload(cart services.Cart) cartPayload {
	return cartPayload{
		ID:        strings.TrimSpace(cart.ID),
		UserID:    strings.TrimSpace(cart.UserID),
		Items:     buildCartLines(cart.Items),
		Saved:     buildCartLines(cart.Saved),
		Version:   cart.Version,
		UpdatedAt: formatTime(cart.UpdatedAt),
	}
}

func buildCartLines(lines []services.CartLine) []cartLinePayload {
	payload := make([]cartLinePayload, 0, len(lines))
	for _, line := range lines {
		payload = append(payload, cartLinePayload{
			ProductID: strings.TrimSpace(line.ProductID),
			Title:     strings.TrimSpace(line.Title),
			UnitPrice: line.UnitPrice,
			ImageRef:  strings.TrimSpace(line.ImageRef),
			Quantity:  line.Quantity,
			AddedAt:   formatTime(line.AddedAt),
		})
	}
	return payload
}

func buildCartTotals(totals services.CartTotals) cartTotalsPayload {
	return cartTotalsPayload{
		ItemCount:  totals.ItemCount,
		Subtotal:   totals.Subtotal,
		Tax:        totals.Tax,
		GrandTotal: totals.GrandTotal,
	}
}
