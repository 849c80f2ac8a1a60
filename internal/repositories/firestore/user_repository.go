package firestore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	domain "github.com/drift-commerce/api/internal/domain"
	pfirestore "github.com/drift-commerce/api/internal/platform/firestore"
	"github.com/drift-commerce/api/internal/repositories"
)

const userCollection = "users"

// UserRepository persists user profile projections in Firestore.
type UserRepository struct {
	base *pfirestore.BaseRepository[userDocument]
}

// NewUserRepository constructs a Firestore-backed user repository.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}

	base := pfirestore.NewBaseRepository[userDocument](provider, userCollection, nil, nil)
	return &UserRepository{base: base}, nil
}

// FindByID loads the user profile by UID.
func (r *UserRepository) FindByID(ctx context.Context, userID string) (domain.UserProfile, error) {
	if r == nil || r.base == nil {
		return domain.UserProfile{}, errors.New("user repository not initialised")
	}
	if strings.TrimSpace(userID) == "" {
		return domain.UserProfile{}, errors.New("user id is required")
	}

	doc, err := r.base.Get(ctx, userID)
	if err != nil {
		return domain.UserProfile{}, err
	}

	profile := doc.Data.toDomain(doc.ID)
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = doc.CreateTime
	}
	if profile.UpdatedAt.IsZero() {
		profile.UpdatedAt = doc.UpdateTime
	}
	return profile, nil
}

// UpdateProfile upserts the user profile projection.
func (r *UserRepository) UpdateProfile(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error) {
	if r == nil || r.base == nil {
		return domain.UserProfile{}, errors.New("user repository not initialised")
	}
	if strings.TrimSpace(profile.ID) == "" {
		return domain.UserProfile{}, errors.New("profile id is required")
	}

	now := time.Now().UTC()
	doc := userDocumentFromProfile(profile, now)
	if _, err := r.base.Set(ctx, profile.ID, doc); err != nil {
		return domain.UserProfile{}, err
	}
	return doc.toDomain(profile.ID), nil
}

type userDocument struct {
	UID         string    `firestore:"uid"`
	DisplayName string    `firestore:"displayName"`
	Email       string    `firestore:"email"`
	PhoneNumber string    `firestore:"phoneNumber"`
	Roles       []string  `firestore:"roles"`
	IsActive    bool      `firestore:"isActive"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

func (d userDocument) toDomain(id string) domain.UserProfile {
	return domain.UserProfile{
		ID:          id,
		DisplayName: d.DisplayName,
		Email:       strings.TrimSpace(d.Email),
		PhoneNumber: strings.TrimSpace(d.PhoneNumber),
		Roles:       cloneStringSlice(d.Roles),
		IsActive:    d.IsActive,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func userDocumentFromProfile(profile domain.UserProfile, now time.Time) userDocument {
	doc := userDocument{
		UID:         profile.ID,
		DisplayName: strings.TrimSpace(profile.DisplayName),
		Email:       strings.ToLower(strings.TrimSpace(profile.Email)),
		PhoneNumber: strings.TrimSpace(profile.PhoneNumber),
		Roles:       normaliseRoles(profile.Roles),
		IsActive:    profile.IsActive,
		CreatedAt:   profile.CreatedAt,
		UpdatedAt:   now,
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.Roles == nil {
		doc.Roles = []string{}
	}
	return doc
}

func cloneStringSlice(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}

func normaliseRoles(roles []string) []string {
	if len(roles) == 0 {
		return nil
	}
	uniq := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		trimmed := strings.ToLower(strings.TrimSpace(role))
		if trimmed == "" {
			continue
		}
		uniq[trimmed] = struct{}{}
	}
	if len(uniq) == 0 {
		return nil
	}
	normalised := make([]string, 0, len(uniq))
	for role := range uniq {
		normalised = append(normalised, role)
	}
	sort.Strings(normalised)
	return normalised
}

var _ repositories.UserRepository = (*UserRepository)(nil)
