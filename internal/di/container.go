package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/drift-commerce/api/internal/platform/auth"
	"github.com/drift-commerce/api/internal/platform/config"
	"github.com/drift-commerce/api/internal/repositories"
	"github.com/drift-commerce/api/internal/services"

	"github.com/oklog/ulid/v2"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Cart       services.CartService
	Checkout   services.CheckoutService
	Orders     services.OrderService
	Inventory  services.InventoryService
	Catalog    services.CatalogService
	Promotions services.PromotionService
	Users      services.UserService
	System     services.SystemService
	Audit      services.AuditLogService
	Jobs       services.BackgroundJobDispatcher
}

// Deps carries the external collaborators the container cannot construct
// itself: persistence, identity, messaging, and archival infrastructure.
type Deps struct {
	Config   config.Config
	Registry repositories.Registry
	Firebase auth.UserGetter
	Events   services.OrderEventPublisher
	JobQueue services.StockSyncJobPublisher
	Archive  services.InvoiceArchiver
	Build    services.BuildInfo
	Logger   *zap.Logger
	Clock    func() time.Time
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime service graph. Production wiring provides
// Firestore-backed repositories and Pub/Sub publishers, while tests can supply
// in-memory registries and nil messaging.
func NewContainer(deps Deps) (*Container, error) {
	if deps.Registry == nil {
		return nil, errors.New("container: repositories registry is required")
	}
	if deps.Firebase == nil {
		return nil, errors.New("container: firebase user getter is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	svc, err := buildServices(deps, clock)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       deps.Config,
		Repositories: deps.Registry,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients, background workers, or caches.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(deps Deps, clock func() time.Time) (Services, error) {
	reg := deps.Registry
	cfg := deps.Config
	var svc Services

	auditDeps := services.AuditLogServiceDeps{
		Repository: reg.AuditLogs(),
		Clock:      clock,
	}
	if deps.Logger != nil {
		auditDeps.Logger = deps.Logger.Named("audit").Sugar()
	}
	audit, err := services.NewAuditLogService(auditDeps)
	if err != nil {
		return Services{}, fmt.Errorf("build audit log service: %w", err)
	}
	svc.Audit = audit

	users, err := services.NewUserService(services.UserServiceDeps{
		Users:         reg.Users(),
		Addresses:     reg.Addresses(),
		Wishlists:     reg.Wishlists(),
		Firebase:      deps.Firebase,
		WishlistLimit: cfg.Commerce.WishlistLimit,
		Clock:         clock,
		IDGenerator:   func() string { return ulid.Make().String() },
	})
	if err != nil {
		return Services{}, fmt.Errorf("build user service: %w", err)
	}
	svc.Users = users

	catalog, err := services.NewCatalogService(services.CatalogServiceDeps{
		Products: reg.Products(),
		Clock:    clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalog

	promoTable := cfg.Commerce.PromoCodes
	if !cfg.Features.EnablePromotions {
		promoTable = map[string]int64{}
	}
	promotions, err := services.NewPromotionService(services.PromotionServiceDeps{
		Table: promoTable,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build promotion service: %w", err)
	}
	svc.Promotions = promotions

	inventory, err := services.NewInventoryService(services.InventoryServiceDeps{
		Products: reg.Products(),
		Orders:   reg.Orders(),
		Audit:    audit,
		Clock:    clock,
		Logger:   serviceLogger(deps.Logger, "inventory"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build inventory service: %w", err)
	}
	svc.Inventory = inventory

	cart, err := services.NewCartService(services.CartServiceDeps{
		Repository: reg.Carts(),
		Catalog:    catalog,
		TaxRateBps: int64(cfg.Commerce.TaxRateBps),
		Clock:      clock,
		Logger:     serviceLogger(deps.Logger, "cart"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}
	svc.Cart = cart

	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Orders: reg.Orders(),
		Events: deps.Events,
		Audit:  audit,
		Clock:  clock,
		Logger: serviceLogger(deps.Logger, "orders"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orders

	checkout, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Carts:       cart,
		Orders:      reg.Orders(),
		Inventory:   inventory,
		Promotions:  promotions,
		Addresses:   users,
		Counters:    reg.Counters(),
		Idempotency: reg.Idempotency(),
		Events:      deps.Events,
		Archive:     deps.Archive,
		Clock:       clock,
		Logger:      serviceLogger(deps.Logger, "checkout"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build checkout service: %w", err)
	}
	svc.Checkout = checkout

	system, err := services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: reg.Health(),
		Counters:         reg.Counters(),
		Audit:            audit,
		Clock:            clock,
		Build:            deps.Build,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build system service: %w", err)
	}
	svc.System = system

	if deps.JobQueue != nil {
		jobs, err := services.NewBackgroundJobDispatcher(services.BackgroundJobDispatcherDeps{
			Publisher: deps.JobQueue,
			Clock:     clock,
			Logger:    serviceLogger(deps.Logger, "jobs"),
		})
		if err != nil {
			return Services{}, fmt.Errorf("build background job dispatcher: %w", err)
		}
		svc.Jobs = jobs
	}

	return svc, nil
}

// serviceLogger adapts a zap logger to the event callback signature the
// service layer accepts. A nil logger yields a nil callback, which services
// treat as a no-op.
func serviceLogger(logger *zap.Logger, name string) func(context.Context, string, map[string]any) {
	if logger == nil {
		return nil
	}
	named := logger.Named(name)
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields)+1)
		zFields = append(zFields, zap.String("event", event))
		for key, value := range fields {
			zFields = append(zFields, zap.Any(key, value))
		}
		named.Debug("service event", zFields...)
	}
}
