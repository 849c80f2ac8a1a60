package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/drift-commerce/api/internal/platform/auth"
	"github.com/drift-commerce/api/internal/platform/httpx"
	"github.com/drift-commerce/api/internal/repositories"
	"github.com/drift-commerce/api/internal/services"
)

func (h *MeHandlers) addressRoutes(r chi.Router) {
	r.Get("/", h.listAddresses)
	r.Post("/", h.createAddress)
	r.Route("/{addressID}", func(r chi.Router) {
		r.Get("/", h.getAddress)
		r.Delete("/", h.deleteAddress)
	})
}

func (h *MeHandlers) listAddresses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("profile_service_unavailable", "profile service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	addresses, err := h.users.ListAddresses(ctx, identity.UID)
	if err != nil {
		writeAddressError(ctx, w, err)
		return
	}

	payload := make([]addressPayload, 0, len(addresses))
	for _, addr := range addresses {
		payload = append(payload, buildAddressPayload(addr))
	}

	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *MeHandlers) getAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("profile_service_unavailable", "profile service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	addressID := strings.TrimSpace(chi.URLParam(r, "addressID"))
	if addressID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "address id is required", http.StatusBadRequest))
		return
	}

	addr, err := h.users.GetAddress(ctx, identity.UID, addressID)
	if err != nil {
		writeAddressError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildAddressPayload(addr))
}

func (h *MeHandlers) createAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("profile_service_unavailable", "profile service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	body, err := readLimitedBody(r, maxProfileBodySize)
	if err != nil {
		status := http.StatusBadRequest
		code := "invalid_request"
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
			code = "payload_too_large"
		}
		httpx.WriteError(ctx, w, httpx.NewError(code, err.Error(), status))
		return
	}

	req, err := decodeAddressRequest(body)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	cmd := services.AddAddressCommand{
		UserID:    identity.UID,
		Address:   req.toDomainAddress(),
		IsDefault: req.IsDefault,
	}

	saved, err := h.users.AddAddress(ctx, cmd)
	if err != nil {
		writeAddressError(ctx, w, err)
		return
	}

	payload := buildAddressPayload(saved)
	w.Header().Set("Location", strings.TrimSuffix(r.URL.Path, "/")+"/"+saved.ID)
	writeJSONResponse(w, http.StatusCreated, payload)
}

func (h *MeHandlers) deleteAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("profile_service_unavailable", "profile service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	addressID := strings.TrimSpace(chi.URLParam(r, "addressID"))
	if addressID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "address id is required", http.StatusBadRequest))
		return
	}

	err := h.users.DeleteAddress(ctx, services.DeleteAddressCommand{
		UserID:    identity.UID,
		AddressID: addressID,
	})
	if err != nil {
		writeAddressError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type addressRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone"`
	Address   *string `json:"address"`
	City      *string `json:"city"`
	State     *string `json:"state"`
	Pincode   *string `json:"pincode"`
	IsDefault bool    `json:"is_default"`
}

func decodeAddressRequest(data []byte) (addressRequest, error) {
	var req addressRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return addressRequest{}, err
	}
	if req.FirstName == nil || strings.TrimSpace(*req.FirstName) == "" {
		return addressRequest{}, errors.New("first_name is required")
	}
	if req.Address == nil || strings.TrimSpace(*req.Address) == "" {
		return addressRequest{}, errors.New("address is required")
	}
	if req.City == nil || strings.TrimSpace(*req.City) == "" {
		return addressRequest{}, errors.New("city is required")
	}
	if req.Pincode == nil || strings.TrimSpace(*req.Pincode) == "" {
		return addressRequest{}, errors.New("pincode is required")
	}
	return req, nil
}

func (req addressRequest) toDomainAddress() services.Address {
	return services.Address{
		FirstName: trimOrEmpty(req.FirstName),
		LastName:  trimOrEmpty(req.LastName),
		Phone:     trimOrEmpty(req.Phone),
		Line1:     trimOrEmpty(req.Address),
		City:      trimOrEmpty(req.City),
		State:     trimOrEmpty(req.State),
		Pincode:   trimOrEmpty(req.Pincode),
	}
}

type addressPayload struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state,omitempty"`
	Pincode   string `json:"pincode"`
	IsDefault bool   `json:"is_default"`
	CreatedAt string `json:"created_at,omitempty"`
}

func buildAddressPayload(addr services.Address) addressPayload {
	return addressPayload{
		ID:        addr.ID,
		FirstName: addr.FirstName,
		LastName:  addr.LastName,
		Phone:     addr.Phone,
		Address:   addr.Line1,
		City:      addr.City,
		State:     addr.State,
		Pincode:   addr.Pincode,
		IsDefault: addr.IsDefault,
		CreatedAt: formatTime(addr.CreatedAt),
	}
}

func trimOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

func writeAddressError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrUserAddressNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("address_not_found", "address not found", http.StatusNotFound))
		return
	case errors.Is(err, services.ErrUserInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_address", err.Error(), http.StatusBadRequest))
		return
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			httpx.WriteError(ctx, w, httpx.NewError("address_not_found", "address not found", http.StatusNotFound))
			return
		case repoErr.IsConflict():
			httpx.WriteError(ctx, w, httpx.NewError("address_conflict", "address conflict", http.StatusConflict))
			return
		default:
			httpx.WriteError(ctx, w, httpx.NewError("address_error", err.Error(), http.StatusInternalServerError))
			return
		}
	}

	httpx.WriteError(ctx, w, httpx.NewError("address_error", err.Error(), http.StatusInternalServerError))
}
