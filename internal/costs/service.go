package costs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/sitecost/internal/actors"
	"github.com/odyssey-erp/sitecost/internal/platform/httpx"
	"github.com/odyssey-erp/sitecost/internal/shared"
)

// VisibilityResolver computes the actors a caller may see.
type VisibilityResolver interface {
	ForCaller(ctx context.Context, caller shared.Caller) (actors.Scope, error)
}

// Service is the role-scoped entry point to the engine.
type Service struct {
	engine   *Engine
	resolver VisibilityResolver
	cache    *Cache
	metrics  *Metrics
	logger   *slog.Logger
	flight   flight
}

// NewService wires the engine with visibility resolution and caching.
func NewService(engine *Engine, resolver VisibilityResolver, cache *Cache, metrics *Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{engine: engine, resolver: resolver, cache: cache, metrics: metrics, logger: logger}
}

// AdminAggregate returns the full tenant view. The caller must be an admin
// of the requested tenant.
func (s *Service) AdminAggregate(ctx context.Context, caller shared.Caller, req Request) (Result, error) {
	if err := authorize(caller, req.Tenant, shared.RoleAdmin); err != nil {
		return Result{}, err
	}
	return s.aggregate(ctx, ScopeAdmin, req, actors.Scope{All: true})
}

// ManagerAggregate returns the view limited to the caller's creation
// lineage. Admins pass through unfiltered.
func (s *Service) ManagerAggregate(ctx context.Context, caller shared.Caller, req Request) (Result, error) {
	if err := authorize(caller, req.Tenant, shared.RoleManager, shared.RoleAdmin); err != nil {
		return Result{}, err
	}
	visible, err := s.resolver.ForCaller(ctx, caller)
	if err != nil {
		return Result{}, err
	}
	return s.aggregate(ctx, ScopeManager, req, visible)
}

// Warm computes and caches the admin view of req without a caller. Used by
// background jobs.
func (s *Service) Warm(ctx context.Context, req Request) (Result, error) {
	if !req.Tenant.Valid() {
		return Result{}, fmt.Errorf("%w: tenant required", httpx.ErrValidation)
	}
	return s.aggregate(ctx, ScopeAdmin, req, actors.Scope{All: true})
}

// Partitions lists the partitions of the caller's tenant with record counts.
func (s *Service) Partitions(ctx context.Context, caller shared.Caller, tenant shared.Tenant) ([]PartitionStatus, error) {
	if err := authorize(caller, tenant, shared.RoleAdmin); err != nil {
		return nil, err
	}
	return s.engine.Overview(ctx, tenant)
}

// Invalidate drops every cached aggregation.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func (s *Service) aggregate(ctx context.Context, scope string, req Request, visible actors.Scope) (Result, error) {
	start := time.Now()
	cacheable := s.cache.Enabled()
	key, err := s.cache.BuildKey(ctx, scope, req, visible)
	if err != nil {
		// Without a version the key would never be looked up again; it only
		// de-duplicates concurrent calls.
		s.logger.Warn("cache key unavailable", slog.Any("error", err))
		key = aggregateKey(scope, req, visible)
		cacheable = false
	} else if cacheable {
		var cached Result
		hit, err := s.cache.Lookup(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("cache lookup failed", slog.String("key", key), slog.Any("error", err))
		}
		s.metrics.cacheLookup(hit)
		if hit {
			return cached, nil
		}
	}

	res, joined, err := s.flight.do(ctx, key, func(ctx context.Context) (Result, error) {
		res, err := s.engine.Aggregate(ctx, req.Tenant, req.Range, visible)
		if err != nil {
			return Result{}, err
		}
		// Results missing partitions are not cached so the next call retries them.
		if cacheable && res.Summary.PartitionsSkipped == 0 {
			if err := s.cache.Store(ctx, key, res); err != nil {
				s.logger.Warn("cache store failed", slog.String("key", key), slog.Any("error", err))
			}
		}
		return res, nil
	})
	if err != nil {
		return Result{}, err
	}
	s.metrics.observeAggregation(scope, res.Summary.DataSource, res.Summary.PartitionsScanned, time.Since(start))
	s.logger.Debug("aggregation complete",
		slog.String("scope", scope),
		slog.String("tenant", req.Tenant.String()),
		slog.Int("lines", res.Summary.LineItemCount),
		slog.Bool("shared", joined))
	return res, nil
}

func authorize(caller shared.Caller, tenant shared.Tenant, roles ...string) error {
	if !caller.Valid() {
		return fmt.Errorf("%w: caller identity incomplete", httpx.ErrUnauthorized)
	}
	if !caller.HasRole(roles...) {
		return fmt.Errorf("%w: role %q not permitted", httpx.ErrForbidden, caller.Role)
	}
	if !tenant.Valid() {
		return fmt.Errorf("%w: tenant and org are required", httpx.ErrValidation)
	}
	if caller.Tenant != tenant {
		return fmt.Errorf("%w: tenant %s is outside the caller's tenant", httpx.ErrForbidden, tenant)
	}
	return nil
}
