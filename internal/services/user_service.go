package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"

	domain "github.com/drift-commerce/api/internal/domain"
	"github.com/drift-commerce/api/internal/platform/auth"
	"github.com/drift-commerce/api/internal/platform/textutil"
	"github.com/drift-commerce/api/internal/repositories"
)

const defaultWishlistLimit = 200

var (
	// ErrUserInvalidInput indicates the caller supplied invalid data.
	ErrUserInvalidInput = errors.New("user: invalid input")
	// ErrUserNotFound indicates the profile could not be located.
	ErrUserNotFound = errors.New("user: not found")
	// ErrUserAddressNotFound indicates the requested address does not exist.
	ErrUserAddressNotFound = errors.New("user: address not found")
	// ErrUserWishlistFull indicates the wishlist has reached its size cap.
	ErrUserWishlistFull = errors.New("user: wishlist full")
	// ErrUserUnavailable indicates the profile store cannot be reached.
	ErrUserUnavailable = errors.New("user: unavailable")
)

// UserServiceDeps bundles the dependencies required to construct a user service.
type UserServiceDeps struct {
	Users         repositories.UserRepository
	Addresses     repositories.AddressRepository
	Wishlists     repositories.WishlistRepository
	Firebase      auth.UserGetter
	WishlistLimit int
	Clock         func() time.Time
	IDGenerator   func() string
}

type userService struct {
	users         repositories.UserRepository
	addresses     repositories.AddressRepository
	wishlists     repositories.WishlistRepository
	firebase      auth.UserGetter
	wishlistLimit int
	clock         func() time.Time
	newID         func() string
}

// NewUserService wires dependencies into a concrete UserService implementation.
func NewUserService(deps UserServiceDeps) (UserService, error) {
	if deps.Users == nil {
		return nil, errors.New("user service: user repository is required")
	}
	if deps.Addresses == nil {
		return nil, errors.New("user service: address repository is required")
	}
	if deps.Wishlists == nil {
		return nil, errors.New("user service: wishlist repository is required")
	}
	if deps.Firebase == nil {
		return nil, errors.New("user service: firebase user getter is required")
	}
	if deps.IDGenerator == nil {
		return nil, errors.New("user service: id generator is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	limit := deps.WishlistLimit
	if limit <= 0 {
		limit = defaultWishlistLimit
	}

	return &userService{
		users:         deps.Users,
		addresses:     deps.Addresses,
		wishlists:     deps.Wishlists,
		firebase:      deps.Firebase,
		wishlistLimit: limit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID: deps.IDGenerator,
	}, nil
}

// GetProfile returns the stored profile projection, seeding it from the auth
// provider record on first access.
func (s *userService) GetProfile(ctx context.Context, userID string) (UserProfile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return UserProfile{}, fmt.Errorf("%w: user id is required", ErrUserInvalidInput)
	}

	profile, err := s.users.FindByID(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !isRepoNotFound(err) {
		return UserProfile{}, s.mapRepositoryError(err)
	}

	record, err := s.firebase.GetUser(ctx, userID)
	if err != nil {
		return UserProfile{}, fmt.Errorf("fetch firebase user: %w", err)
	}

	fresh := profileFromFirebase(record, s.clock())
	fresh.ID = userID
	saved, err := s.users.UpdateProfile(ctx, fresh)
	if err != nil {
		return UserProfile{}, s.mapRepositoryError(err)
	}
	return saved, nil
}

func (s *userService) ListAddresses(ctx context.Context, userID string) ([]Address, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrUserInvalidInput)
	}
	items, err := s.addresses.List(ctx, userID)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	slices.SortStableFunc(items, func(a, b Address) int {
		if a.IsDefault != b.IsDefault {
			if a.IsDefault {
				return -1
			}
			return 1
		}
		switch {
		case a.CreatedAt.After(b.CreatedAt):
			return -1
		case a.CreatedAt.Before(b.CreatedAt):
			return 1
		default:
			return strings.Compare(a.ID, b.ID)
		}
	})
	return items, nil
}

func (s *userService) GetAddress(ctx context.Context, userID string, addressID string) (Address, error) {
	userID = strings.TrimSpace(userID)
	addressID = strings.TrimSpace(addressID)
	if userID == "" || addressID == "" {
		return Address{}, fmt.Errorf("%w: user id and address id are required", ErrUserInvalidInput)
	}
	addr, err := s.addresses.Get(ctx, userID, addressID)
	if err != nil {
		if isRepoNotFound(err) {
			return Address{}, fmt.Errorf("%w: %s", ErrUserAddressNotFound, addressID)
		}
		return Address{}, s.mapRepositoryError(err)
	}
	return addr, nil
}

func (s *userService) AddAddress(ctx context.Context, cmd AddAddressCommand) (Address, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Address{}, fmt.Errorf("%w: user id is required", ErrUserInvalidInput)
	}

	addr, err := sanitizeAddress(cmd.Address)
	if err != nil {
		return Address{}, err
	}

	existing, err := s.addresses.List(ctx, userID)
	if err != nil {
		return Address{}, s.mapRepositoryError(err)
	}

	addr.ID = s.newID()
	addr.IsDefault = cmd.IsDefault || len(existing) == 0
	addr.CreatedAt = s.clock()

	saved, err := s.addresses.Insert(ctx, userID, addr)
	if err != nil {
		return Address{}, s.mapRepositoryError(err)
	}

	if saved.IsDefault {
		if updated, err := s.addresses.SetDefault(ctx, userID, saved.ID); err == nil {
			saved = updated
		}
	}
	return saved, nil
}

func (s *userService) DeleteAddress(ctx context.Context, cmd DeleteAddressCommand) error {
	userID := strings.TrimSpace(cmd.UserID)
	addressID := strings.TrimSpace(cmd.AddressID)
	if userID == "" || addressID == "" {
		return fmt.Errorf("%w: user id and address id are required", ErrUserInvalidInput)
	}

	target, err := s.addresses.Get(ctx, userID, addressID)
	if err != nil {
		if isRepoNotFound(err) {
			return fmt.Errorf("%w: %s", ErrUserAddressNotFound, addressID)
		}
		return s.mapRepositoryError(err)
	}

	if err := s.addresses.Delete(ctx, userID, addressID); err != nil {
		if isRepoNotFound(err) {
			return fmt.Errorf("%w: %s", ErrUserAddressNotFound, addressID)
		}
		return s.mapRepositoryError(err)
	}

	if !target.IsDefault {
		return nil
	}

	// Promote the oldest remaining address when the default was removed.
	remaining, err := s.addresses.List(ctx, userID)
	if err != nil {
		return s.mapRepositoryError(err)
	}
	if len(remaining) == 0 {
		return nil
	}
	next := remaining[0]
	for _, addr := range remaining[1:] {
		if addr.CreatedAt.Before(next.CreatedAt) {
			next = addr
		}
	}
	if _, err := s.addresses.SetDefault(ctx, userID, next.ID); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *userService) ListWishlist(ctx context.Context, userID string, pager Pagination) (domain.CursorPage[WishlistItem], error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.CursorPage[WishlistItem]{}, fmt.Errorf("%w: user id is required", ErrUserInvalidInput)
	}
	page, err := s.wishlists.List(ctx, userID, domain.Pagination{
		PageSize:  pager.PageSize,
		PageToken: strings.TrimSpace(pager.PageToken),
	})
	if err != nil {
		return domain.CursorPage[WishlistItem]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *userService) ToggleWishlist(ctx context.Context, cmd ToggleWishlistCommand) error {
	userID := strings.TrimSpace(cmd.UserID)
	productID := strings.TrimSpace(cmd.ProductID)
	if userID == "" || productID == "" {
		return fmt.Errorf("%w: user id and product id are required", ErrUserInvalidInput)
	}

	if !cmd.Mark {
		if err := s.wishlists.Delete(ctx, userID, productID); err != nil && !isRepoNotFound(err) {
			return s.mapRepositoryError(err)
		}
		return nil
	}

	inserted, err := s.wishlists.Put(ctx, userID, productID, s.clock(), s.wishlistLimit)
	if err != nil {
		if isRepoConflict(err) {
			return fmt.Errorf("%w: limit %d", ErrUserWishlistFull, s.wishlistLimit)
		}
		return s.mapRepositoryError(err)
	}
	_ = inserted
	return nil
}

func (s *userService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrUserNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrUserUnavailable, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrUserUnavailable, err)
}

func sanitizeAddress(addr Address) (Address, error) {
	cleaned := Address{
		FirstName: textutil.CleanLine(addr.FirstName),
		LastName:  textutil.CleanLine(addr.LastName),
		Phone:     strings.TrimSpace(addr.Phone),
		Line1:     textutil.CleanLine(addr.Line1),
		City:      textutil.CleanLine(addr.City),
		State:     textutil.CleanLine(addr.State),
		Pincode:   strings.TrimSpace(addr.Pincode),
		IsDefault: addr.IsDefault,
	}

	required := []struct {
		field string
		value string
	}{
		{"firstName", cleaned.FirstName},
		{"lastName", cleaned.LastName},
		{"phone", cleaned.Phone},
		{"address", cleaned.Line1},
		{"city", cleaned.City},
		{"state", cleaned.State},
		{"pincode", cleaned.Pincode},
	}
	for _, entry := range required {
		if entry.value == "" {
			return Address{}, fmt.Errorf("%w: %s is required", ErrUserInvalidInput, entry.field)
		}
	}
	if !validPhone(cleaned.Phone) {
		return Address{}, fmt.Errorf("%w: please enter a valid 10-digit phone number", ErrUserInvalidInput)
	}
	if !validPincode(cleaned.Pincode) {
		return Address{}, fmt.Errorf("%w: please enter a valid 6-digit pincode", ErrUserInvalidInput)
	}
	return cleaned, nil
}

func profileFromFirebase(record *firebaseauth.UserRecord, now time.Time) domain.UserProfile {
	if record == nil {
		return domain.UserProfile{}
	}

	profile := domain.UserProfile{
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if record.UserInfo != nil {
		profile.ID = strings.TrimSpace(record.UserInfo.UID)
		profile.DisplayName = strings.TrimSpace(record.UserInfo.DisplayName)
		profile.Email = strings.ToLower(strings.TrimSpace(record.UserInfo.Email))
		profile.PhoneNumber = strings.TrimSpace(record.UserInfo.PhoneNumber)
	}
	profile.Roles = deriveRoles(record)
	return profile
}

func deriveRoles(record *firebaseauth.UserRecord) []string {
	roles := map[string]struct{}{auth.RoleUser: {}}
	if record != nil {
		if value, ok := record.CustomClaims["role"].(string); ok {
			addRole(roles, value)
		}
		if raw, ok := record.CustomClaims["roles"]; ok {
			switch v := raw.(type) {
			case []any:
				for _, item := range v {
					if str, ok := item.(string); ok {
						addRole(roles, str)
					}
				}
			case []string:
				for _, str := range v {
					addRole(roles, str)
				}
			}
		}
	}
	keys := make([]string, 0, len(roles))
	for key := range roles {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

func addRole(target map[string]struct{}, role string) {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return
	}
	target[role] = struct{}{}
}
