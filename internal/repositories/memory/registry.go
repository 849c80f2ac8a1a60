package memory

import (
	"context"
	"time"

	domain "github.com/drift-commerce/api/internal/domain"
	"github.com/drift-commerce/api/internal/repositories"
)

// Registry bundles the in-memory repositories. It backs local development and
// handler tests where no Firestore emulator is available.
type Registry struct {
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

// NewRegistry constructs a registry with empty stores and an always-ok health
// repository.
func NewRegistry() *Registry {
	return &Registry{
		carts:     NewCartRepository(),
		orders:    NewOrderRepository(),
		products:  NewProductRepository(),
		addresses: NewAddressRepository(),
		wishlists: NewWishlistRepository(),
		users:     NewUserRepository(),
		auditLogs: NewAuditLogRepository(),
		counters:  NewCounterRepository(),
		idem:      NewIdempotencyRepository(),
		health:    staticHealthRepository{},
	}
}

func (r *Registry) Close(context.Context) error { return nil }

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

// SeedProducts replaces catalog entries in the product store.
func (r *Registry) SeedProducts(products ...domain.Product) {
	for _, product := range products {
		r.products.Upsert(product)
	}
}

type staticHealthRepository struct{}

func (staticHealthRepository) Collect(context.Context) (domain.SystemHealthReport, error) {
	now := time.Now().UTC()
	return domain.SystemHealthReport{
		Status: domain.HealthStatusOK,
		Checks: map[string]domain.SystemHealthCheck{
			"memory": {Status: domain.HealthStatusOK, Detail: "ok", CheckedAt: now},
		},
		GeneratedAt: now,
	}, nil
}

var _ repositories.Registry = (*Registry)(nil)
