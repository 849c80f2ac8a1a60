package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/drift-commerce/api/internal/domain"
	"github.com/drift-commerce/api/internal/repositories"
)

// UserRepository keeps user profile projections in process memory.
type UserRepository struct {
	mu       sync.RWMutex
	profiles map[string]domain.UserProfile
}

// NewUserRepository constructs an empty in-memory user repository.
func NewUserRepository() *UserRepository {
	return &UserRepository{profiles: map[string]domain.UserProfile{}}
}

func (r *UserRepository) FindByID(_ context.Context, userID string) (domain.UserProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profile, ok := r.profiles[userID]
	if !ok {
		return domain.UserProfile{}, notFoundError(fmt.Sprintf("user %s not found", userID))
	}
	return cloneProfile(profile), nil
}

func (r *UserRepository) UpdateProfile(_ context.Context, profile domain.UserProfile) (domain.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.profiles[profile.ID] = cloneProfile(profile)
	return cloneProfile(profile), nil
}

func cloneProfile(profile domain.UserProfile) domain.UserProfile {
	cloned := profile
	cloned.Roles = append([]string(nil), profile.Roles...)
	return cloned
}

var _ repositories.UserRepository = (*UserRepository)(nil)
