package costs

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/sitecost/internal/catalog"
	"github.com/odyssey-erp/sitecost/internal/partition"
	"github.com/odyssey-erp/sitecost/internal/shared"
)

var tower = shared.NewTenant("Tower A", "Acme")

type fixture struct {
	store    *partition.MemoryStore
	registry *partition.Registry
	catalog  *catalog.MemoryCatalog
	logs     *syncBuffer
	engine   *Engine
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newFixture(t *testing.T, opts EngineOptions) *fixture {
	t.Helper()
	store := partition.NewMemoryStore()
	registry := partition.NewRegistry(store)
	t.Cleanup(func() { _ = registry.Close() })
	logs := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	cat := catalog.NewMemoryCatalog()
	return &fixture{
		store:    store,
		registry: registry,
		catalog:  cat,
		logs:     logs,
		engine:   NewEngine(partition.NewDiscovery(store), registry, cat, nil, logger, opts),
	}
}

func (f *fixture) usage(t *testing.T, actor, date, material string, qty string) {
	t.Helper()
	h, err := f.registry.ResolveForWrite(context.Background(), tower, actor)
	require.NoError(t, err)
	require.NoError(t, h.AppendUsage(context.Background(), partition.DailyUsageRecord{
		Date:         day(date),
		MaterialName: material,
		Quantity:     dec(qty),
		Unit:         "bag",
		Location:     "Block 1",
	}))
}

func (f *fixture) total(t *testing.T, actor, date, material string, qty, materialCost, laborCost, totalPrice string) {
	t.Helper()
	h, err := f.registry.ResolveForWrite(context.Background(), tower, actor)
	require.NoError(t, err)
	require.NoError(t, h.AppendTotalPrices(context.Background(), partition.TotalPriceRecord{
		Date:         day(date),
		MaterialName: material,
		Quantity:     dec(qty),
		Unit:         "bag",
		MaterialCost: dec(materialCost),
		LaborCost:    dec(laborCost),
		TotalPrice:   dec(totalPrice),
		Location:     "Block 1",
	}))
}

func (f *fixture) price(t *testing.T, material, materialPrice, laborPrice string) {
	t.Helper()
	require.NoError(t, f.catalog.Upsert(context.Background(), tower, catalog.Entry{
		MaterialName:      material,
		Unit:              "unit",
		MaterialUnitPrice: dec(materialPrice),
		LaborUnitPrice:    dec(laborPrice),
	}))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(s string) time.Time {
	t, err := time.Parse(shared.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func march(t *testing.T) shared.DateRange {
	t.Helper()
	rng, err := shared.ParseDateRange("2024-03-01", "2024-03-31")
	require.NoError(t, err)
	return rng
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))
