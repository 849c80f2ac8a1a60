package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	domain "github.com/drift-commerce/api/internal/domain"
	"github.com/drift-commerce/api/internal/repositories"
)

// AddressRepository keeps saved address books in process memory.
type AddressRepository struct {
	mu    sync.RWMutex
	books map[string]map[string]domain.Address
}

// NewAddressRepository constructs an empty in-memory address repository.
func NewAddressRepository() *AddressRepository {
	return &AddressRepository{books: map[string]map[string]domain.Address{}}
}

func (r *AddressRepository) List(_ context.Context, userID string) ([]domain.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	book := r.books[userID]
	addresses := make([]domain.Address, 0, len(book))
	for _, addr := range book {
		addresses = append(addresses, addr)
	}
	sort.Slice(addresses, func(i, j int) bool {
		if !addresses[i].CreatedAt.Equal(addresses[j].CreatedAt) {
			return addresses[i].CreatedAt.After(addresses[j].CreatedAt)
		}
		return addresses[i].ID > addresses[j].ID
	})
	return addresses, nil
}

func (r *AddressRepository) Get(_ context.Context, userID string, addressID string) (domain.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	addr, ok := r.books[userID][addressID]
	if !ok {
		return domain.Address{}, notFoundError(fmt.Sprintf("address %s not found", addressID))
	}
	return addr, nil
}

func (r *AddressRepository) Insert(_ context.Context, userID string, addr domain.Address) (domain.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	book := r.books[userID]
	if book == nil {
		book = map[string]domain.Address{}
		r.books[userID] = book
	}
	if _, exists := book[addr.ID]; exists {
		return domain.Address{}, conflictError(fmt.Sprintf("address %s already exists", addr.ID))
	}
	book[addr.ID] = addr
	return addr, nil
}

func (r *AddressRepository) Delete(_ context.Context, userID string, addressID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	book := r.books[userID]
	if _, ok := book[addressID]; !ok {
		return notFoundError(fmt.Sprintf("address %s not found", addressID))
	}
	delete(book, addressID)
	return nil
}

func (r *AddressRepository) SetDefault(_ context.Context, userID string, addressID string) (domain.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	book := r.books[userID]
	target, ok := book[addressID]
	if !ok {
		return domain.Address{}, notFoundError(fmt.Sprintf("address %s not found", addressID))
	}

	for id, addr := range book {
		if addr.IsDefault && id != addressID {
			addr.IsDefault = false
			book[id] = addr
		}
	}
	target.IsDefault = true
	book[addressID] = target
	return target, nil
}

var _ repositories.AddressRepository = (*AddressRepository)(nil)
