package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/drift-commerce/api/internal/services"
)

func TestMeHandlersListAddresses(t *testing.T) {
	created := time.Date(2025, 1, 10, 7, 0, 0, 0, time.UTC)
	service := &stubUserService{
		listAddressesFunc: func(ctx context.Context, userID string) ([]services.Address, error) {
			return []services.Address{
				{ID: "addr-1", FirstName: "Asha", Line1: "12 Lake Road", City: "Bengaluru", Pincode: "560001", IsDefault: true, CreatedAt: created},
				{ID: "addr-2", FirstName: "Asha", Line1: "8 Hill Street", City: "Mysuru", Pincode: "570001", CreatedAt: created},
			}, nil
		},
	}
	router := newMeTestRouter(NewMeHandlers(nil, service))

	req := authedRequest(http.MethodGet, "/me/addresses", nil, "user-40")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp []addressPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("expected two addresses, got %d", len(resp))
	}
	if resp[0].ID != "addr-1" || !resp[0].IsDefault {
		t.Fatalf("unexpected first address %#v", resp[0])
	}
	if resp[0].Address != "12 Lake Road" {
		t.Fatalf("expected line1 mapped to address field, got %q", resp[0].Address)
	}
}

func TestMeHandlersCreateAddress(t *testing.T) {
	var got services.AddAddressCommand
	service := &stubUserService{
		addAddressFunc: func(ctx context.Context, cmd services.AddAddressCommand) (services.Address, error) {
			got = cmd
			saved := cmd.Address
			saved.ID = "addr-9"
			saved.IsDefault = cmd.IsDefault
			saved.CreatedAt = time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)
			return saved, nil
		},
	}
	router := newMeTestRouter(NewMeHandlers(nil, service))

	body := `{
		"first_name": "Asha",
		"phone": "9876543210",
		"address": "12 Lake Road",
		"city": "Bengaluru",
		"state": "KA",
		"pincode": "560001",
		"is_default": true
	}`
	req := authedRequest(http.MethodPost, "/me/addresses", strings.NewReader(body), "user-40")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if got.UserID != "user-40" || !got.IsDefault {
		t.Fatalf("unexpected command %#v", got)
	}
	if got.Address.Line1 != "12 Lake Road" || got.Address.Pincode != "560001" {
		t.Fatalf("unexpected address %#v", got.Address)
	}
	if loc := rr.Header().Get("Location"); !strings.HasSuffix(loc, "/addr-9") {
		t.Fatalf("expected Location header ending in /addr-9, got %q", loc)
	}

	var resp addressPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != "addr-9" {
		t.Fatalf("unexpected address id %q", resp.ID)
	}
}

func TestMeHandlersCreateAddressValidation(t *testing.T) {
	router := newMeTestRouter(NewMeHandlers(nil, &stubUserService{}))

	cases := []struct {
		name string
		body string
		want string
	}{
		{"missing first name", `{"address":"12 Lake Road","city":"Bengaluru","pincode":"560001"}`, "first_name is required"},
		{"missing address", `{"first_name":"Asha","city":"Bengaluru","pincode":"560001"}`, "address is required"},
		{"missing city", `{"first_name":"Asha","address":"12 Lake Road","pincode":"560001"}`, "city is required"},
		{"missing pincode", `{"first_name":"Asha","address":"12 Lake Road","city":"Bengaluru"}`, "pincode is required"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := authedRequest(http.MethodPost, "/me/addresses", strings.NewReader(tc.body), "user-40")
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", rr.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("expected JSON body: %v", err)
			}
			if msg, _ := body["message"].(string); !strings.Contains(msg, tc.want) {
				t.Fatalf("expected message containing %q, got %v", tc.want, body["message"])
			}
		})
	}
}

func TestMeHandlersGetAddressNotFound(t *testing.T) {
	service := &stubUserService{
		getAddressFunc: func(ctx context.Context, userID string, addressID string) (services.Address, error) {
			return services.Address{}, services.ErrUserAddressNotFound
		},
	}
	router := newMeTestRouter(NewMeHandlers(nil, service))

	req := authedRequest(http.MethodGet, "/me/addresses/addr-missing", nil, "user-40")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	if body["error"] != "address_not_found" {
		t.Fatalf("expected address_not_found, got %v", body["error"])
	}
}

func TestMeHandlersDeleteAddress(t *testing.T) {
	var got services.DeleteAddressCommand
	service := &stubUserService{
		deleteAddressFunc: func(ctx context.Context, cmd services.DeleteAddressCommand) error {
			got = cmd
			return nil
		},
	}
	router := newMeTestRouter(NewMeHandlers(nil, service))

	req := authedRequest(http.MethodDelete, "/me/addresses/addr-1", nil, "user-40")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if got.UserID != "user-40" || got.AddressID != "addr-1" {
		t.Fatalf("unexpected command %#v", got)
	}
}

func TestMeHandlersDeleteAddressRepositoryNotFound(t *testing.T) {
	service := &stubUserService{
		deleteAddressFunc: func(ctx context.Context, cmd services.DeleteAddressCommand) error {
			return &stubRepoError{notFound: true}
		},
	}
	router := newMeTestRouter(NewMeHandlers(nil, service))

	req := authedRequest(http.MethodDelete, "/me/addresses/addr-2", nil, "user-40")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}
