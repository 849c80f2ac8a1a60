package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/drift-commerce/api/internal/platform/firestore"
	"github.com/drift-commerce/api/internal/repositories"
)

// Registry bundles all Firestore-backed repositories behind the
// repositories.Registry interface.
type Registry struct {
	provider *pfirestore.Provider

	carts     *CartRepository
	orders    *OrderRepository
	products  *ProductRepository
	addresses *AddressRepository
	wishlists *WishlistRepository
	users     *UserRepository
	auditLogs *AuditLogRepository
	counters  *CounterRepository
	idem      *IdempotencyRepository
	health    repositories.HealthRepository
}

// NewRegistry wires every Firestore repository against the shared provider.
// The health repository is injected because its probe set depends on which
// external services the process is configured to talk to.
func NewRegistry(provider *pfirestore.Provider, health repositories.HealthRepository) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}
	if health == nil {
		return nil, errors.New("registry requires health repository")
	}

	carts, err := NewCartRepository(provider)
	if err != nil {
		return nil, err
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	products, err := NewProductRepository(provider)
	if err != nil {
		return nil, err
	}
	addresses, err := NewAddressRepository(provider)
	if err != nil {
		return nil, err
	}
	wishlists, err := NewWishlistRepository(provider)
	if err != nil {
		return nil, err
	}
	users, err := NewUserRepository(provider)
	if err != nil {
		return nil, err
	}
	auditLogs, err := NewAuditLogRepository(provider)
	if err != nil {
		return nil, err
	}
	counters, err := NewCounterRepository(provider)
	if err != nil {
		return nil, err
	}
	idem, err := NewIdempotencyRepository(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider:  provider,
		carts:     carts,
		orders:    orders,
		products:  products,
		addresses: addresses,
		wishlists: wishlists,
		users:     users,
		auditLogs: auditLogs,
		counters:  counters,
		idem:      idem,
		health:    health,
	}, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

func (r *Registry) Carts() repositories.CartRepository         { return r.carts }
func (r *Registry) Orders() repositories.OrderRepository       { return r.orders }
func (r *Registry) Products() repositories.ProductRepository   { return r.products }
func (r *Registry) Addresses() repositories.AddressRepository  { return r.addresses }
func (r *Registry) Wishlists() repositories.WishlistRepository { return r.wishlists }
func (r *Registry) Users() repositories.UserRepository         { return r.users }
func (r *Registry) AuditLogs() repositories.AuditLogRepository { return r.auditLogs }
func (r *Registry) Counters() repositories.CounterRepository   { return r.counters }
func (r *Registry) Idempotency() repositories.IdempotencyRepository {
	return r.idem
}
func (r *Registry) Health() repositories.HealthRepository      { return r.health }

var _ repositories.Registry = (*Registry)(nil)
