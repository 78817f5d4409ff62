package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/sitecost/internal/actors"
	"github.com/odyssey-erp/sitecost/internal/catalog"
	"github.com/odyssey-erp/sitecost/internal/costs"
	"github.com/odyssey-erp/sitecost/internal/demo"
	"github.com/odyssey-erp/sitecost/internal/partition"
)

// Infra carries the process-wide clients the aggregation stack is built on.
// Pool may be nil when the memory driver is selected; Redis may be nil to
// run without the result cache.
type Infra struct {
	Pool       *pgxpool.Pool
	Redis      *redis.Client
	Registerer prometheus.Registerer
	Logger     *slog.Logger
}

// Components is the aggregation stack shared by the API server and the worker.
type Components struct {
	Registry  *partition.Registry
	Directory actors.Directory
	Catalog   catalog.Source
	Cache     *costs.Cache
	Metrics   *costs.Metrics
	Engine    *costs.Engine
	Service   *costs.Service
	// Demo holds the demo actors by username when DEMO_DATA loaded them.
	Demo map[string]actors.Actor
}

// BuildComponents selects the storage backends named by cfg and wires the
// engine, cache and service on top of them.
func BuildComponents(ctx context.Context, cfg *Config, infra Infra) (*Components, error) {
	if cfg == nil {
		return nil, errors.New("app: config required")
	}
	logger := infra.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		store      partition.Store
		directory  actors.Directory
		source     catalog.Source
		memDir     *actors.MemoryDirectory
		memCatalog *catalog.MemoryCatalog
	)
	switch cfg.StoreDriver {
	case StoreDriverMemory:
		memDir = actors.NewMemoryDirectory()
		memCatalog = catalog.NewMemoryCatalog()
		store = partition.NewMemoryStore()
		directory = memDir
		source = memCatalog
	case StoreDriverPostgres:
		if infra.Pool == nil {
			return nil, errors.New("app: postgres driver requires a pool")
		}
		actorRepo := actors.NewRepository(infra.Pool)
		if err := actorRepo.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("app: migrate actors: %w", err)
		}
		catalogRepo := catalog.NewRepository(infra.Pool)
		if err := catalogRepo.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("app: migrate catalog: %w", err)
		}
		store = partition.NewPostgresStore(infra.Pool)
		directory = actorRepo
		source = catalogRepo
	default:
		return nil, fmt.Errorf("app: unknown store driver %q", cfg.StoreDriver)
	}

	registry := partition.NewRegistry(store)
	var demoActors map[string]actors.Actor
	switch {
	case memDir != nil && cfg.DemoData:
		seeded, err := demo.Seed(ctx, memDir, memCatalog, registry, time.Now())
		if err != nil {
			_ = registry.Close()
			return nil, fmt.Errorf("app: load demo data: %w", err)
		}
		demoActors = seeded
		logger.Warn("using in-memory stores with demo data; data is lost on restart",
			slog.String("tenant", demo.Tenant.String()))
	case memDir != nil:
		logger.Warn("using empty in-memory stores; set DEMO_DATA=true to load the demo tenant")
	}
	metrics := costs.NewMetrics(infra.Registerer)
	engine := costs.NewEngine(partition.NewDiscovery(store), registry, source, metrics, logger, costs.EngineOptions{
		Fanout:      cfg.CostFanout,
		ReadTimeout: cfg.PartitionReadTimeout,
	})
	cache := costs.NewCache(infra.Redis, cfg.CostCacheTTL)
	service := costs.NewService(engine, actors.NewResolver(directory, logger), cache, metrics, logger)

	return &Components{
		Registry:  registry,
		Directory: directory,
		Catalog:   source,
		Cache:     cache,
		Metrics:   metrics,
		Engine:    engine,
		Service:   service,
		Demo:      demoActors,
	}, nil
}

// Close releases partition handles and the underlying store.
func (c *Components) Close() error {
	if c == nil || c.Registry == nil {
		return nil
	}
	return c.Registry.Close()
}
