package costs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/sitecost/internal/actors"
	"github.com/odyssey-erp/sitecost/internal/catalog"
	"github.com/odyssey-erp/sitecost/internal/partition"
	"github.com/odyssey-erp/sitecost/internal/shared"
)

// Defaults applied when EngineOptions leaves a field zero.
const (
	DefaultFanout      = 8
	DefaultReadTimeout = 5 * time.Second
)

// PartitionLister enumerates the partitions of a tenant.
type PartitionLister interface {
	ListPartitions(ctx context.Context, tenant shared.Tenant) ([]string, error)
}

// HandleResolver opens partition handles.
type HandleResolver interface {
	Resolve(ctx context.Context, tenant shared.Tenant, actor string) (partition.Handle, error)
}

// EngineOptions tunes the scatter step.
type EngineOptions struct {
	// Fanout caps concurrent partition reads.
	Fanout int
	// ReadTimeout bounds the reads of a single partition.
	ReadTimeout time.Duration
}

// Engine scatters reads over the partitions of a tenant and reduces them to
// per-material totals.
type Engine struct {
	lister   PartitionLister
	resolver HandleResolver
	catalog  catalog.Source
	metrics  *Metrics
	logger   *slog.Logger
	opts     EngineOptions
}

// NewEngine wires the engine collaborators.
func NewEngine(lister PartitionLister, resolver HandleResolver, cat catalog.Source, metrics *Metrics, logger *slog.Logger, opts EngineOptions) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Fanout <= 0 {
		opts.Fanout = DefaultFanout
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	return &Engine{
		lister:   lister,
		resolver: resolver,
		catalog:  cat,
		metrics:  metrics,
		logger:   logger,
		opts:     opts,
	}
}

// Aggregate totals material costs of tenant over rng for the partitions
// allowed by scope. Unreadable partitions are skipped; only a failed
// discovery, or a failed catalog read while usage needs pricing, is returned
// as an error.
func (e *Engine) Aggregate(ctx context.Context, tenant shared.Tenant, rng shared.DateRange, scope actors.Scope) (Result, error) {
	selected, err := e.discover(ctx, tenant, scope)
	if err != nil {
		return Result{}, err
	}

	reads := e.scatter(ctx, tenant, len(selected), func(ctx context.Context, i int) partitionRead {
		return e.readRange(ctx, tenant, rng, selected[i])
	})
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var (
		healthy    []partitionRead
		priceCount int
		usageCount int
	)
	for _, read := range reads {
		if read.err != nil {
			continue
		}
		healthy = append(healthy, read)
		priceCount += len(read.prices)
		usageCount += len(read.usage)
	}

	res := Result{Tenant: tenant, Range: rng}
	var siteMaterials int
	if priceCount > 0 {
		res.LineItems = reconcileTotals(healthy)
		res.Summary = summarize(res.LineItems)
		res.Summary.DataSource = SourceTotalPrices
	} else if usageCount == 0 {
		res.LineItems = []LineItem{}
		res.Summary = summarize(res.LineItems)
		res.Summary.DataSource = SourceDailyReports
	} else {
		entries, err := e.catalog.Entries(ctx, tenant)
		if err != nil {
			e.logger.Error("catalog read failed",
				slog.String("tenant", tenant.String()),
				slog.Any("error", err))
			return Result{}, fmt.Errorf("%w: %w", ErrCatalog, err)
		}
		siteMaterials = len(entries)
		res.LineItems = reconcileUsage(healthy, catalog.Index(entries), func(material string) {
			e.metrics.catalogMiss()
			e.logger.Warn("material missing from catalog",
				slog.String("tenant", tenant.String()),
				slog.String("material", material))
		})
		res.Summary = summarize(res.LineItems)
		res.Summary.DataSource = SourceDailyReports
	}
	res.Summary.TotalDailyReports = usageCount
	res.Summary.TotalSiteMaterials = siteMaterials
	res.Summary.PartitionsScanned = len(reads)
	res.Summary.PartitionsSkipped = len(reads) - len(healthy)
	return res, nil
}

// Overview reports record counts for every partition of tenant.
func (e *Engine) Overview(ctx context.Context, tenant shared.Tenant) ([]PartitionStatus, error) {
	selected, err := e.discover(ctx, tenant, actors.Scope{All: true})
	if err != nil {
		return nil, err
	}
	out := make([]PartitionStatus, len(selected))
	e.scatter(ctx, tenant, len(selected), func(ctx context.Context, i int) partitionRead {
		out[i].Actor = selected[i]
		counts, err := e.readCounts(ctx, tenant, selected[i])
		if err != nil {
			out[i].Error = err.Error()
			return partitionRead{actor: selected[i], err: err}
		}
		out[i].DailyUsage = counts.DailyUsage
		out[i].TotalPrices = counts.TotalPrices
		return partitionRead{actor: selected[i]}
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) discover(ctx context.Context, tenant shared.Tenant, scope actors.Scope) ([]string, error) {
	all, err := e.lister.ListPartitions(ctx, tenant)
	if err != nil {
		e.logger.Error("partition discovery failed",
			slog.String("tenant", tenant.String()),
			slog.Any("error", err))
		return nil, fmt.Errorf("%w: %w", ErrDiscovery, err)
	}
	if scope.All {
		return all, nil
	}
	selected := make([]string, 0, len(all))
	for _, actor := range all {
		if scope.Allows(actor) {
			selected = append(selected, actor)
		}
	}
	return selected, nil
}

// scatter runs read for n partitions with bounded concurrency. Each result
// lands in its own slot so the reduction stays single-threaded and ordered.
func (e *Engine) scatter(ctx context.Context, tenant shared.Tenant, n int, read func(context.Context, int) partitionRead) []partitionRead {
	reads := make([]partitionRead, n)
	var g errgroup.Group
	g.SetLimit(e.opts.Fanout)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, e.opts.ReadTimeout)
			defer cancel()
			reads[i] = read(pctx, i)
			e.recordRead(tenant, reads[i])
			return nil
		})
	}
	_ = g.Wait()
	return reads
}

func (e *Engine) readRange(ctx context.Context, tenant shared.Tenant, rng shared.DateRange, actor string) partitionRead {
	read := partitionRead{actor: actor}
	h, err := e.resolver.Resolve(ctx, tenant, actor)
	if err != nil {
		read.err = err
		return read
	}
	if read.prices, err = h.TotalPrices(ctx, rng); err != nil {
		read.err = fmt.Errorf("total prices: %w", err)
		return read
	}
	if read.usage, err = h.DailyUsage(ctx, rng); err != nil {
		read.err = fmt.Errorf("daily usage: %w", err)
		return read
	}
	return read
}

func (e *Engine) readCounts(ctx context.Context, tenant shared.Tenant, actor string) (partition.Counts, error) {
	h, err := e.resolver.Resolve(ctx, tenant, actor)
	if err != nil {
		return partition.Counts{}, err
	}
	return h.Counts(ctx)
}

func (e *Engine) recordRead(tenant shared.Tenant, read partitionRead) {
	switch {
	case read.err == nil:
		e.metrics.partitionRead(readOK)
	case errors.Is(read.err, context.DeadlineExceeded):
		e.metrics.partitionRead(readTimeout)
		e.logger.Warn("partition read timed out",
			slog.String("tenant", tenant.String()),
			slog.String("actor", read.actor),
			slog.Any("error", read.err))
	default:
		e.metrics.partitionRead(readFailed)
		e.logger.Warn("partition read failed",
			slog.String("tenant", tenant.String()),
			slog.String("actor", read.actor),
			slog.Any("error", read.err))
	}
}
