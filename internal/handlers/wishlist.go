package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/drift-commerce/api/internal/platform/auth"
	"github.com/drift-commerce/api/internal/platform/httpx"
	"github.com/drift-commerce/api/internal/repositories"
	"github.com/drift-commerce/api/internal/services"
)

const (
	defaultWishlistPageSize = 50
	maxWishlistPageSize     = 200
)

// WishlistHandlers exposes the per-user wishlist surface.
type WishlistHandlers struct {
	authn *auth.Authenticator
	users services.UserService
}

// NewWishlistHandlers constructs wishlist handlers guarded by Firebase authentication.
func NewWishlistHandlers(authn *auth.Authenticator, users services.UserService) *WishlistHandlers {
	return &WishlistHandlers{
		authn: authn,
		users: users,
	}
}

// Routes registers the /wishlist endpoints.
func (h *WishlistHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.listWishlist)
	r.Put("/{productID}", h.addToWishlist)
	r.Delete("/{productID}", h.removeFromWishlist)
}

type wishlistListResponse struct {
	Items         []wishlistItemPayload `json:"items"`
	NextPageToken string                `json:"next_page_token,omitempty"`
}

type wishlistItemPayload struct {
	ProductID string `json:"product_id"`
	AddedAt   string `json:"added_at,omitempty"`
}

func (h *WishlistHandlers) listWishlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	query := r.URL.Query()
	pageSize := defaultWishlistPageSize
	if sizeRaw := strings.TrimSpace(query.Get("page_size")); sizeRaw != "" {
		size, err := strconv.Atoi(sizeRaw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "page_size must be an integer", http.StatusBadRequest))
			return
		}
		switch {
		case size <= 0:
			pageSize = defaultWishlistPageSize
		case size > maxWishlistPageSize:
			pageSize = maxWishlistPageSize
		default:
			pageSize = size
		}
	}

	page, err := h.users.ListWishlist(ctx, uid, services.Pagination{
		PageSize:  pageSize,
		PageToken: strings.TrimSpace(query.Get("page_token")),
	})
	if err != nil {
		writeWishlistError(ctx, w, err)
		return
	}

	items := make([]wishlistItemPayload, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, wishlistItemPayload{
			ProductID: strings.TrimSpace(item.ProductID),
			AddedAt:   formatTime(item.AddedAt),
		})
	}

	writeJSONResponse(w, http.StatusOK, wishlistListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *WishlistHandlers) addToWishlist(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, true)
}

func (h *WishlistHandlers) removeFromWishlist(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, false)
}

func (h *WishlistHandlers) toggle(w http.ResponseWriter, r *http.Request, mark bool) {
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

	err := h.users.ToggleWishlist(ctx, services.ToggleWishlistCommand{
		UserID:    uid,
		ProductID: productID,
		Mark:      mark,
	})
	if err != nil {
		writeWishlistError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *WishlistHandlers) requireUser(ctx context.Context, w http.ResponseWriter) (string, bool) {
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("wishlist_service_unavailable", "wishlist service is unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return "", false
	}
	return strings.TrimSpace(identity.UID), true
}

func writeWishlistError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrUserInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	case errors.Is(err, services.ErrUserWishlistFull):
		httpx.WriteError(ctx, w, httpx.NewError("wishlist_full", "wishlist item limit reached", http.StatusConflict))
		return
	case errors.Is(err, services.ErrUserUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("wishlist_service_unavailable", "wishlist service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			httpx.WriteError(ctx, w, httpx.NewError("wishlist_item_not_found", "wishlist item not found", http.StatusNotFound))
			return
		case repoErr.IsConflict():
			httpx.WriteError(ctx, w, httpx.NewError("wishlist_conflict", "wishlist conflict", http.StatusConflict))
			return
		}
	}

	httpx.WriteError(ctx, w, httpx.NewError("wishlist_error", err.Error(), http.StatusInternalServerError))
}
