package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/drift-commerce/api/internal/domain"
)

// CartRepository keeps cart mirrors in process memory. Saves enforce the same
// version counter semantics as the durable store.
type CartRepository struct {
	mu    sync.RWMutex
	carts map[string]domain.Cart
}

// NewCartRepository constructs an empty in-memory cart repository.
func NewCartRepository() *CartRepository {
	return &CartRepository{carts: map[string]domain.Cart{}}
}

func (r *CartRepository) Get(_ context.Context, userID string) (domain.Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cart, ok := r.carts[userID]
	if !ok {
		return domain.Cart{}, notFoundError(fmt.Sprintf("cart %s not found", userID))
	}
	return cloneCart(cart), nil
}

func (r *CartRepository) Save(_ context.Context, cart domain.Cart, expectedVersion int64) (domain.Cart, error) {
	userID := cart.UserID
	if userID == "" {
		userID = cart.ID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var currentVersion int64
	if existing, ok := r.carts[userID]; ok {
		currentVersion = existing.Version
	}
	if currentVersion != expectedVersion {
		return domain.Cart{}, conflictError(fmt.Sprintf("cart %s version mismatch", userID))
	}

	saved := cloneCart(cart)
	saved.ID = userID
	saved.UserID = userID
	saved.Version = currentVersion + 1
	r.carts[userID] = saved
	return cloneCart(saved), nil
}

func cloneCart(cart domain.Cart) domain.Cart {
	cloned := cart
	cloned.Items = cloneCartLines(cart.Items)
	cloned.Saved = cloneCartLines(cart.Saved)
	return cloned
}

func cloneCartLines(lines []domain.CartLine) []domain.CartLine {
	if lines == nil {
		return nil
	}
	out := make([]domain.CartLine, len(lines))
	copy(out, lines)
	return out
}
