package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/drift-commerce/api/internal/repositories/memory"
)

type stubUserGetter struct {
	record *firebaseauth.UserRecord
	err    error
	calls  int
}

func (s *stubUserGetter) GetUser(context.Context, string) (*firebaseauth.UserRecord, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.record, nil
}

// tickingClock returns a monotonically advancing clock so records created in
// sequence get distinct timestamps.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		base = base.Add(time.Second)
		return base
	}
}

func sequentialIDs(prefix string) func() string {
	var n int
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

type userFixture struct {
	svc       UserService
	users     *memory.UserRepository
	addresses *memory.AddressRepository
	wishlists *memory.WishlistRepository
	firebase  *stubUserGetter
}

func newUserFixture(t *testing.T, opts ...func(*UserServiceDeps)) *userFixture {
	t.Helper()

	users := memory.NewUserRepository()
	addresses := memory.NewAddressRepository()
	wishlists := memory.NewWishlistRepository()
	firebase := &stubUserGetter{}

	deps := UserServiceDeps{
		Users:       users,
		Addresses:   addresses,
		Wishlists:   wishlists,
		Firebase:    firebase,
		Clock:       tickingClock(),
		IDGenerator: sequentialIDs("addr"),
	}
	for _, opt := range opts {
		opt(&deps)
	}

	svc, err := NewUserService(deps)
	if err != nil {
		t.Fatalf("NewUserService: %v", err)
	}
	return &userFixture{svc: svc, users: users, addresses: addresses, wishlists: wishlists, firebase: firebase}
}

func validAddress() Address {
	return Address{
		FirstName: "Asha",
		LastName:  "Nair",
		Phone:     "9876543210",
		Line1:     "14 Residency Road",
		City:      "Bengaluru",
		State:     "Karnataka",
		Pincode:   "560001",
	}
}

func TestUserGetProfileSeedsFromFirebase(t *testing.T) {
	f := newUserFixture(t)
	f.firebase.record = &firebaseauth.UserRecord{
		UserInfo: &firebaseauth.UserInfo{
			UID:         "user-1",
			DisplayName: "Asha Nair",
			Email:       "Asha@Example.COM",
			PhoneNumber: "+919876543210",
		},
		CustomClaims: map[string]any{"role": "admin"},
	}

	profile, err := f.svc.GetProfile(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if profile.Email != "asha@example.com" {
		t.Fatalf("expected lowercased email, got %q", profile.Email)
	}
	if profile.DisplayName != "Asha Nair" {
		t.Fatalf("unexpected display name %q", profile.DisplayName)
	}
	if strings.Join(profile.Roles, ",") != "admin,user" {
		t.Fatalf("expected sorted roles [admin user], got %v", profile.Roles)
	}
	if !profile.IsActive {
		t.Fatal("expected seeded profile active")
	}

	// Second read must hit the stored projection, not the auth provider.
	if _, err := f.svc.GetProfile(context.Background(), "user-1"); err != nil {
		t.Fatalf("second GetProfile: %v", err)
	}
	if f.firebase.calls != 1 {
		t.Fatalf("expected one firebase lookup, got %d", f.firebase.calls)
	}
}

func TestUserGetProfileFirebaseError(t *testing.T) {
	f := newUserFixture(t)
	f.firebase.err = errors.New("token service down")

	if _, err := f.svc.GetProfile(context.Background(), "user-1"); err == nil {
		t.Fatal("expected error when seeding fails")
	}
}

func TestUserAddAddressValidation(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Address)
		message string
	}{
		{"missing first name", func(a *Address) { a.FirstName = " " }, "firstName is required"},
		{"missing line", func(a *Address) { a.Line1 = "" }, "address is required"},
		{"missing city", func(a *Address) { a.City = "" }, "city is required"},
		{"bad phone", func(a *Address) { a.Phone = "12345" }, "10-digit phone"},
		{"bad pincode", func(a *Address) { a.Pincode = "5600" }, "6-digit pincode"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newUserFixture(t)
			addr := validAddress()
			tc.mutate(&addr)

			_, err := f.svc.AddAddress(context.Background(), AddAddressCommand{UserID: "user-1", Address: addr})
			if !errors.Is(err, ErrUserInvalidInput) {
				t.Fatalf("expected ErrUserInvalidInput, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.message) {
				t.Fatalf("expected message containing %q, got %q", tc.message, err.Error())
			}
		})
	}
}

func TestUserAddAddressFirstBecomesDefault(t *testing.T) {
	f := newUserFixture(t)

	first, err := f.svc.AddAddress(context.Background(), AddAddressCommand{UserID: "user-1", Address: validAddress()})
	if err != nil {
		t.Fatalf("AddAddress: %v", err)
	}
	if !first.IsDefault {
		t.Fatal("first address must become the default")
	}

	second, err := f.svc.AddAddress(context.Background(), AddAddressCommand{UserID: "user-1", Address: validAddress()})
	if err != nil {
		t.Fatalf("second AddAddress: %v", err)
	}
	if second.IsDefault {
		t.Fatal("second address must not steal the default")
	}
}

func TestUserAddAddressExplicitDefaultSwitches(t *testing.T) {
	f := newUserFixture(t)

	first, err := f.svc.AddAddress(context.Background(), AddAddressCommand{UserID: "user-1", Address: validAddress()})
	if err != nil {
		t.Fatalf("AddAddress: %v", err)
	}

	second, err := f.svc.AddAddress(context.Background(), AddAddressCommand{UserID: "user-1", Address: validAddress(), IsDefault: true})
	if err != nil {
		t.Fatalf("second AddAddress: %v", err)
	}
	if !second.IsDefault {
		t.Fatal("expected explicit default honoured")
	}

	refreshed, err := f.svc.GetAddress(context.Background(), "user-1", first.ID)
	if err != nil {
		t.Fatalf("GetAddress: %v", err)
	}
	if refreshed.IsDefault {
		t.Fatal("previous default must be cleared")
	}
}

func TestUserDeleteAddressPromotesOldest(t *testing.T) {
	f := newUserFixture(t)

	var ids []string
	for i := 0; i < 3; i++ {
		addr, err := f.svc.AddAddress(context.Background(), AddAddressCommand{UserID: "user-1", Address: validAddress()})
		if err != nil {
			t.Fatalf("AddAddress %d: %v", i, err)
		}
		ids = append(ids, addr.ID)
	}

	if err := f.svc.DeleteAddress(context.Background(), DeleteAddressCommand{UserID: "user-1", AddressID: ids[0]}); err != nil {
		t.Fatalf("DeleteAddress: %v", err)
	}

	promoted, err := f.svc.GetAddress(context.Background(), "user-1", ids[1])
	if err != nil {
		t.Fatalf("GetAddress: %v", err)
	}
	if !promoted.IsDefault {
		t.Fatal("expected oldest remaining address promoted to default")
	}
}

func TestUserDeleteAddressMissing(t *testing.T) {
	f := newUserFixture(t)

	err := f.svc.DeleteAddress(context.Background(), DeleteAddressCommand{UserID: "user-1", AddressID: "ghost"})
	if !errors.Is(err, ErrUserAddressNotFound) {
		t.Fatalf("expected ErrUserAddressNotFound, got %v", err)
	}
}

func TestUserListAddressesDefaultFirst(t *testing.T) {
	f := newUserFixture(t)

	for i := 0; i < 2; i++ {
		if _, err := f.svc.AddAddress(context.Background(), AddAddressCommand{UserID: "user-1", Address: validAddress()}); err != nil {
			t.Fatalf("AddAddress %d: %v", i, err)
		}
	}

	list, err := f.svc.ListAddresses(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListAddresses: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected two addresses, got %d", len(list))
	}
	if !list[0].IsDefault {
		t.Fatalf("expected default address first, got %+v", list)
	}
}

func TestUserToggleWishlist(t *testing.T) {
	f := newUserFixture(t)

	if err := f.svc.ToggleWishlist(context.Background(), ToggleWishlistCommand{UserID: "user-1", ProductID: "prod-1", Mark: true}); err != nil {
		t.Fatalf("mark: %v", err)
	}
	// Marking twice is idempotent.
	if err := f.svc.ToggleWishlist(context.Background(), ToggleWishlistCommand{UserID: "user-1", ProductID: "prod-1", Mark: true}); err != nil {
		t.Fatalf("re-mark: %v", err)
	}

	page, err := f.svc.ListWishlist(context.Background(), "user-1", Pagination{})
	if err != nil {
		t.Fatalf("ListWishlist: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ProductID != "prod-1" {
		t.Fatalf("unexpected wishlist %+v", page.Items)
	}

	if err := f.svc.ToggleWishlist(context.Background(), ToggleWishlistCommand{UserID: "user-1", ProductID: "prod-1", Mark: false}); err != nil {
		t.Fatalf("unmark: %v", err)
	}
	// Unmarking an absent entry is a no-op.
	if err := f.svc.ToggleWishlist(context.Background(), ToggleWishlistCommand{UserID: "user-1", ProductID: "prod-1", Mark: false}); err != nil {
		t.Fatalf("re-unmark: %v", err)
	}

	page, err = f.svc.ListWishlist(context.Background(), "user-1", Pagination{})
	if err != nil {
		t.Fatalf("ListWishlist: %v", err)
	}
	if len(page.Items) != 0 {
		t.Fatalf("expected empty wishlist, got %+v", page.Items)
	}
}

func TestUserToggleWishlistEnforcesLimit(t *testing.T) {
	f := newUserFixture(t, func(deps *UserServiceDeps) { deps.WishlistLimit = 2 })

	for _, id := range []string{"prod-1", "prod-2"} {
		if err := f.svc.ToggleWishlist(context.Background(), ToggleWishlistCommand{UserID: "user-1", ProductID: id, Mark: true}); err != nil {
			t.Fatalf("mark %s: %v", id, err)
		}
	}

	err := f.svc.ToggleWishlist(context.Background(), ToggleWishlistCommand{UserID: "user-1", ProductID: "prod-3", Mark: true})
	if !errors.Is(err, ErrUserWishlistFull) {
		t.Fatalf("expected ErrUserWishlistFull, got %v", err)
	}
}
