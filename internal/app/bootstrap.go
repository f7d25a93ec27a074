package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/toolroom-erp/toolroom/internal/inventory"
	"github.com/toolroom-erp/toolroom/internal/platform/cache"
	"github.com/toolroom-erp/toolroom/internal/platform/db"
	"github.com/toolroom-erp/toolroom/internal/platform/lock"
	"github.com/toolroom-erp/toolroom/internal/procurement"
	"github.com/toolroom-erp/toolroom/internal/rbac"
	"github.com/toolroom-erp/toolroom/internal/shared"
	"github.com/toolroom-erp/toolroom/internal/store"
)

// Store is the persistence surface both binaries run against.
type Store interface {
	procurement.RepositoryPort
	Inventory() inventory.RepositoryPort
	Ping(ctx context.Context) error
	Close()
}

// OpenStore connects the configured store driver; postgres is migrated on open.
func OpenStore(ctx context.Context, cfg *Config, logger *slog.Logger) (Store, error) {
	if cfg.StoreDriver != "postgres" {
		logger.Info("using in-memory store")
		return store.NewMemory(), nil
	}
	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		return nil, err
	}
	pg := store.NewPostgres(pool)
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, err
	}
	logger.Info("using postgres store")
	return pg, nil
}

// OpenRedis connects to Redis when a component needs it.
func OpenRedis(ctx context.Context, cfg *Config) (*redis.Client, error) {
	return cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
}

// NewLocker builds the per-entity locker. A redis locker requires client.
func NewLocker(cfg *Config, client redis.UniversalClient) (lock.Locker, error) {
	if cfg.LockDriver != "redis" {
		return lock.NewLocal(), nil
	}
	if client == nil {
		return nil, errors.New("app: redis lock driver needs a redis client")
	}
	return lock.NewRedis(client, cfg.LockTTL), nil
}

// Services bundles the workflow services sharing one store, locker and policy.
type Services struct {
	Procurement *procurement.Service
	Inventory   *inventory.Service
	Policy      *rbac.Policy
}

// NewServices wires both services against the same collaborators so lock keys
// and transactions are shared between them.
func NewServices(cfg *Config, st Store, locker lock.Locker, observer shared.TransitionObserver) Services {
	policy := rbac.DefaultPolicy()
	clock := shared.NewMonotonicClock(nil)
	minStock := cfg.MinStockPolicy()
	return Services{
		Procurement: procurement.NewService(st, locker, policy, clock, observer, procurement.ServiceConfig{MinStockPolicy: minStock}),
		Inventory:   inventory.NewService(st.Inventory(), locker, policy, clock, observer, inventory.ServiceConfig{MinStockPolicy: minStock}),
		Policy:      policy,
	}
}
