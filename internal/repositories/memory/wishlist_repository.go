package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	domain "github.com/drift-commerce/api/internal/domain"
	"github.com/drift-commerce/api/internal/repositories"
)

// WishlistRepository keeps wishlist membership in process memory.
type WishlistRepository struct {
	mu    sync.RWMutex
	lists map[string]map[string]time.Time
}

// NewWishlistRepository constructs an empty in-memory wishlist repository.
func NewWishlistRepository() *WishlistRepository {
	return &WishlistRepository{lists: map[string]map[string]time.Time{}}
}

func (r *WishlistRepository) List(_ context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.WishlistItem], error) {
	r.mu.RLock()
	list := r.lists[userID]
	items := make([]domain.WishlistItem, 0, len(list))
	for productID, addedAt := range list {
		items = append(items, domain.WishlistItem{ProductID: productID, AddedAt: addedAt})
	}
	r.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if !items[i].AddedAt.Equal(items[j].AddedAt) {
			return items[i].AddedAt.After(items[j].AddedAt)
		}
		return items[i].ProductID > items[j].ProductID
	})

	return paginate(items, pager)
}

func (r *WishlistRepository) Put(_ context.Context, userID string, productID string, addedAt time.Time, limit int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.lists[userID]
	if list == nil {
		list = map[string]time.Time{}
		r.lists[userID] = list
	}
	if _, exists := list[productID]; exists {
		return false, nil
	}
	if limit > 0 && len(list) >= limit {
		return false, conflictError(fmt.Sprintf("wishlist for %s is full", userID))
	}
	list[productID] = addedAt
	return true, nil
}

func (r *WishlistRepository) Delete(_ context.Context, userID string, productID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.lists[userID]
	if _, ok := list[productID]; !ok {
		return notFoundError(fmt.Sprintf("wishlist entry %s not found", productID))
	}
	delete(list, productID)
	return nil
}

var _ repositories.WishlistRepository = (*WishlistRepository)(nil)
