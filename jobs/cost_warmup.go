package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/sitecost/internal/costs"
	jobmetrics "github.com/odyssey-erp/sitecost/internal/jobs"
	"github.com/odyssey-erp/sitecost/internal/shared"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

const tenantWarmTimeout = 30 * time.Second

// CostWarmer runs an unscoped aggregation and caches it.
type CostWarmer interface {
	Warm(ctx context.Context, req costs.Request) (costs.Result, error)
}

// TenantLister enumerates known tenants.
type TenantLister interface {
	Tenants(ctx context.Context) ([]shared.Tenant, error)
}

// CostWarmupJob pre-populates the aggregation cache for the current month.
type CostWarmupJob struct {
	Costs   CostWarmer
	Tenants TenantLister
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewCostWarmupJob wires dependencies for the warm-up handler.
func NewCostWarmupJob(warmer CostWarmer, tenants TenantLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *CostWarmupJob {
	return &CostWarmupJob{
		Costs:   warmer,
		Tenants: tenants,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskCostWarmup tasks. Every tenant is attempted; the
// task fails if any of them failed so Asynq retries it.
func (j *CostWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Costs == nil {
		return errors.New("cost warmup: handler not configured")
	}
	var payload CostWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("cost warmup: decode payload: %v: %w", err, asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskCostWarmup)
	logger := j.logger()

	tenants, err := j.targets(ctx, payload)
	if err != nil {
		logger.Error("load warmup tenants", slog.Any("error", err))
		return tracker.End(err)
	}
	if len(tenants) == 0 {
		logger.Info("no tenants discovered for warmup")
		return tracker.End(nil)
	}

	rng := shared.MonthToDate(j.now())
	var errs []error
	warmed := 0
	for _, tenant := range tenants {
		if err := j.warmTenant(ctx, tenant, rng); err != nil {
			logger.Warn("warm tenant", slog.String("tenant", tenant.String()), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("%s: %w", tenant, err))
			continue
		}
		warmed++
	}
	j.metrics().AddWarmed("ok", warmed)
	j.metrics().AddWarmed("failed", len(errs))
	logger.Info("completed cost warmup",
		slog.Int("tenants", warmed),
		slog.Int("failed", len(errs)),
		slog.String("from", rng.StartString()),
		slog.String("to", rng.EndString()))
	return tracker.End(errors.Join(errs...))
}

func (j *CostWarmupJob) targets(ctx context.Context, payload CostWarmupPayload) ([]shared.Tenant, error) {
	if tenant, ok := payload.Tenant(); ok {
		return []shared.Tenant{tenant}, nil
	}
	if j.Tenants == nil {
		return nil, errors.New("cost warmup: tenant directory not configured")
	}
	return j.Tenants.Tenants(ctx)
}

func (j *CostWarmupJob) warmTenant(ctx context.Context, tenant shared.Tenant, rng shared.DateRange) error {
	tenantCtx, cancel := context.WithTimeout(ctx, tenantWarmTimeout)
	defer cancel()
	_, err := j.Costs.Warm(tenantCtx, costs.Request{Tenant: tenant, Range: rng})
	return err
}

func (j *CostWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskCostWarmup))
	}
	return slog.Default().With(slog.String("job", TaskCostWarmup))
}

func (j *CostWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *CostWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
