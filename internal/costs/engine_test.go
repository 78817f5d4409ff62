package costs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/sitecost/internal/actors"
	"github.com/odyssey-erp/sitecost/internal/partition"
	"github.com/odyssey-erp/sitecost/internal/shared"
)

var everyone = actors.Scope{All: true}

func TestAggregatePrefersStoredTotalsTenantWide(t *testing.T) {
	f := newFixture(t, EngineOptions{})
	f.total(t, "asha", "2024-03-04", "Cement", "10", "500", "200", "700")
	f.usage(t, "ravi", "2024-03-04", "Cement", "5")
	f.usage(t, "ravi", "2024-03-04", "Sand", "9")
	f.price(t, "Cement", "60", "10")
	f.price(t, "Sand", "5", "1")

	res, err := f.engine.Aggregate(context.Background(), tower, march(t), everyone)
	require.NoError(t, err)

	require.Len(t, res.LineItems, 1)
	line := res.LineItems[0]
	assert.Equal(t, "Cement", line.MaterialName)
	assert.True(t, line.Quantity.Equal(dec("10")))
	assert.True(t, line.TotalPrice.Equal(dec("700")))
	assert.Equal(t, []string{"asha"}, line.ContributingActors)
	assert.Equal(t, SourceTotalPrices, res.Summary.DataSource)
	assert.Equal(t, 2, res.Summary.TotalDailyReports)
	assert.Equal(t, 0, res.Summary.TotalSiteMaterials)
}

func TestAggregatePricesUsageFromCatalog(t *testing.T) {
	f := newFixture(t, EngineOptions{})
	f.usage(t, "asha", "2024-03-02", "Steel", "12")
	f.usage(t, "ravi", "2024-03-09", "Steel", "8")
	f.price(t, "Steel", "80", "30")

	res, err := f.engine.Aggregate(context.Background(), tower, march(t), everyone)
	require.NoError(t, err)

	line, ok := res.Line("Steel")
	require.True(t, ok)
	assert.True(t, line.Quantity.Equal(dec("20")))
	assert.True(t, line.MaterialCost.Equal(dec("1600")))
	assert.True(t, line.LaborCost.Equal(dec("600")))
	assert.True(t, line.TotalPrice.Equal(dec("2200")))
	assert.True(t, line.MaterialUnitPrice.Equal(dec("80")))
	assert.Equal(t, []string{"asha", "ravi"}, line.ContributingActors)
	assert.Equal(t, "bag", line.Unit)

	assert.Equal(t, SourceDailyReports, res.Summary.DataSource)
	assert.Equal(t, 1, res.Summary.LineItemCount)
	assert.True(t, res.Summary.GrandTotal.Equal(dec("2200")))
	assert.Equal(t, 1, res.Summary.TotalSiteMaterials)
	assert.Equal(t, 2, res.Summary.PartitionsScanned)
}

func TestAggregateDropsMaterialsMissingFromCatalog(t *testing.T) {
	f := newFixture(t, EngineOptions{})
	f.usage(t, "asha", "2024-03-02", "Glass", "4")
	f.usage(t, "asha", "2024-03-02", "Steel", "1")
	f.price(t, "Steel", "80", "30")

	res, err := f.engine.Aggregate(context.Background(), tower, march(t), everyone)
	require.NoError(t, err)

	_, ok := res.Line("Glass")
	assert.False(t, ok)
	assert.Equal(t, 1, res.Summary.LineItemCount)
	assert.True(t, res.Summary.GrandTotal.Equal(dec("110")))
	assert.Contains(t, f.logs.String(), "material missing from catalog")
	assert.Contains(t, f.logs.String(), "material=Glass")
}

func TestAggregateTrustsStoredTotalPrice(t *testing.T) {
	f := newFixture(t, EngineOptions{})
	f.total(t, "asha", "2024-03-04", "Brick", "100", "100", "50", "160")

	res, err := f.engine.Aggregate(context.Background(), tower, march(t), everyone)
	require.NoError(t, err)
	line, ok := res.Line("Brick")
	require.True(t, ok)
	assert.True(t, line.TotalPrice.Equal(dec("160")))
	assert.True(t, res.Summary.TotalMaterialCost.Equal(dec("100")))
	assert.True(t, res.Summary.GrandTotal.Equal(dec("160")))
}

func TestAggregateFallbackTotalsAreExact(t *testing.T) {
	f := newFixture(t, EngineOptions{})
	f.usage(t, "asha", "2024-03-01", "Sand", "0.1")
	f.usage(t, "ravi", "2024-03-01", "Sand", "0.2")
	f.usage(t, "ravi", "2024-03-03", "Gravel", "1.005")
	f.price(t, "Sand", "3.33", "1.17")
	f.price(t, "Gravel", "19.99", "0.01")

	res, err := f.engine.Aggregate(context.Background(), tower, march(t), everyone)
	require.NoError(t, err)
	require.Len(t, res.LineItems, 2)
	for _, line := range res.LineItems {
		assert.True(t, line.TotalPrice.Equal(line.MaterialCost.Add(line.LaborCost)), line.MaterialName)
	}
	sand, _ := res.Line("Sand")
	assert.True(t, sand.Quantity.Equal(dec("0.3")))
	assert.True(t, sand.TotalPrice.Equal(dec("1.35")))
}

func TestAggregateIsAdditiveAcrossPartitions(t *testing.T) {
	f := newFixture(t, EngineOptions{})
	f.usage(t, "asha", "2024-03-02", "Cement", "3")
	f.usage(t, "asha", "2024-03-05", "Cement", "2.5")
	f.usage(t, "ravi", "2024-03-07", "Cement", "4")
	f.price(t, "Cement", "60", "15")
	ctx := context.Background()

	one, err := f.engine.Aggregate(ctx, tower, march(t), actors.Scope{Usernames: []string{"asha"}})
	require.NoError(t, err)
	two, err := f.engine.Aggregate(ctx, tower, march(t), actors.Scope{Usernames: []string{"ravi"}})
	require.NoError(t, err)
	both, err := f.engine.Aggregate(ctx, tower, march(t), everyone)
	require.NoError(t, err)

	a, _ := one.Line("Cement")
	b, _ := two.Line("Cement")
	sum, _ := both.Line("Cement")
	assert.True(t, sum.Quantity.Equal(a.Quantity.Add(b.Quantity)))
	assert.True(t, sum.MaterialCost.Equal(a.MaterialCost.Add(b.MaterialCost)))
	assert.True(t, sum.LaborCost.Equal(a.LaborCost.Add(b.LaborCost)))
	assert.True(t, sum.TotalPrice.Equal(a.TotalPrice.Add(b.TotalPrice)))
}

func TestAggregateIsDeterministic(t *testing.T) {
	f := newFixture(t, EngineOptions{Fanout: 3})
	for _, actor := range []string{"e", "d", "c", "b", "a"} {
		f.usage(t, actor, "2024-03-02", "Steel", "1")
		f.usage(t, actor, "2024-03-02", "Cement", "2")
		f.usage(t, actor, "2024-03-02", "Brick", "3")
	}
	f.price(t, "Steel", "1", "1")
	f.price(t, "Cement", "1", "1")
	f.price(t, "Brick", "1", "1")

	first, err := f.engine.Aggregate(context.Background(), tower, march(t), everyone)
	require.NoError(t, err)
	second, err := f.engine.Aggregate(context.Background(), tower, march(t), everyone)
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(firstJSON), string(secondJSON))
	names := make([]string, 0, len(first.LineItems))
	for _, line := range first.LineItems {
		names = append(names, line.MaterialName)
	}
	assert.Equal(t, []string{"Brick", "Cement", "Steel"}, names)
}

func TestAggregateSingleDayRange(t *testing.T) {
	f := newFixture(t, EngineOptions{})
	f.usage(t, "asha", "2024-03-14", "Steel", "1")
	f.usage(t, "asha", "2024-03-15", "Steel", "2")
	f.usage(t, "asha", "2024-03-16", "Steel", "4")
	f.price(t, "Steel", "10", "0")

	rng, err := shared.ParseDateRange("2024-03-15", "2024-03-15")
	require.NoError(t, err)
	res, err := f.engine.Aggregate(context.Background(), tower, rng, everyone)
	require.NoError(t, err)
	line, ok := res.Line("Steel")
	require.True(t, ok)
	assert.True(t, line.Quantity.Equal(dec("2")))
	assert.Equal(t, 1, res.Summary.TotalDailyReports)
}

func TestAggregateEmptyTenant(t *testing.T) {
	f := newFixture(t, EngineOptions{})
	res, err := f.engine.Aggregate(context.Background(), tower, march(t), everyone)
	require.NoError(t, err)
	assert.NotNil(t, res.LineItems)
	assert.Empty(t, res.LineItems)
	assert.Equal(t, 0, res.Summary.LineItemCount)
	assert.True(t, res.Summary.GrandTotal.IsZero())
	assert.True(t, res.Summary.TotalMaterialCost.IsZero())
	assert.True(t, res.Summary.TotalLaborCost.IsZero())
	assert.Equal(t, SourceDailyReports, res.Summary.DataSource)
}

func TestAggregateSkipsFailingPartition(t *testing.T) {
	f := newFixture(t, EngineOptions{})
	f.usage(t, "asha", "2024-03-02", "Steel", "1")
	f.usage(t, "ravi", "2024-03-02", "Steel", "2")
	f.price(t, "Steel", "10", "5")
	f.store.FailReads(partition.NewKey(tower, "ravi"), errors.New("corrupt page"))

	res, err := f.engine.Aggregate(context.Background(), tower, march(t), everyone)
	require.NoError(t, err)
	line, ok := res.Line("Steel")
	require.True(t, ok)
	assert.True(t, line.Quantity.Equal(dec("1")))
	assert.Equal(t, 2, res.Summary.PartitionsScanned)
	assert.Equal(t, 1, res.Summary.PartitionsSkipped)
	assert.Contains(t, f.logs.String(), "partition read failed")
}

func TestAggregateSkipsSlowPartition(t *testing.T) {
	f := newFixture(t, EngineOptions{ReadTimeout: 20 * time.Millisecond})
	f.usage(t, "asha", "2024-03-02", "Steel", "1")
	f.usage(t, "ravi", "2024-03-02", "Steel", "2")
	f.price(t, "Steel", "10", "5")
	f.store.DelayReads(partition.NewKey(tower, "ravi"), 5*time.Second)

	started := time.Now()
	res, err := f.engine.Aggregate(context.Background(), tower, march(t), everyone)
	require.NoError(t, err)
	assert.Less(t, time.Since(started), 2*time.Second)
	assert.Equal(t, 1, res.Summary.PartitionsSkipped)
	line, _ := res.Line("Steel")
	assert.True(t, line.Quantity.Equal(dec("1")))
	assert.Contains(t, f.logs.String(), "partition read timed out")
}

func TestAggregateFiltersByScope(t *testing.T) {
	f := newFixture(t, EngineOptions{})
	f.usage(t, "asha", "2024-03-02", "Steel", "1")
	f.usage(t, "zed", "2024-03-02", "Steel", "50")
	f.price(t, "Steel", "10", "5")

	res, err := f.engine.Aggregate(context.Background(), tower, march(t), actors.Scope{Usernames: []string{"asha", "nobody"}})
	require.NoError(t, err)
	line, _ := res.Line("Steel")
	assert.True(t, line.Quantity.Equal(dec("1")))
	assert.Equal(t, 1, res.Summary.PartitionsScanned)
}

func TestAggregateDiscoveryFailureIsSystemic(t *testing.T) {
	f := newFixture(t, EngineOptions{})
	boom := errors.New("connection refused")
	f.store.FailKeys(boom)

	_, err := f.engine.Aggregate(context.Background(), tower, march(t), everyone)
	assert.ErrorIs(t, err, ErrDiscovery)
	assert.ErrorIs(t, err, boom)
}

func TestAggregateCatalogFailureOnFallback(t *testing.T) {
	f := newFixture(t, EngineOptions{})
	f.usage(t, "asha", "2024-03-02", "Steel", "1")
	f.catalog.Fail(errors.New("catalog offline"))

	_, err := f.engine.Aggregate(context.Background(), tower, march(t), everyone)
	assert.ErrorIs(t, err, ErrCatalog)
}

func TestAggregateWithoutUsageSkipsCatalog(t *testing.T) {
	f := newFixture(t, EngineOptions{})
	f.catalog.Fail(errors.New("catalog offline"))

	res, err := f.engine.Aggregate(context.Background(), tower, march(t), everyone)
	require.NoError(t, err)
	assert.Empty(t, res.LineItems)
	assert.True(t, res.Summary.GrandTotal.IsZero())
	assert.Equal(t, SourceDailyReports, res.Summary.DataSource)

	f.usage(t, "asha", "2024-02-10", "Steel", "4")
	res, err = f.engine.Aggregate(context.Background(), tower, march(t), everyone)
	require.NoError(t, err, "usage outside the range needs no pricing")
	assert.Empty(t, res.LineItems)
	assert.Equal(t, 1, res.Summary.PartitionsScanned)
	assert.Equal(t, 0, res.Summary.TotalDailyReports)
}

func TestOverviewReportsCountsAndErrors(t *testing.T) {
	f := newFixture(t, EngineOptions{})
	f.usage(t, "asha", "2024-03-02", "Steel", "1")
	f.usage(t, "asha", "2024-04-02", "Steel", "1")
	f.total(t, "asha", "2024-03-02", "Steel", "1", "1", "1", "2")
	f.usage(t, "ravi", "2024-03-02", "Steel", "1")
	f.store.FailReads(partition.NewKey(tower, "ravi"), errors.New("unreadable"))

	overview, err := f.engine.Overview(context.Background(), tower)
	require.NoError(t, err)
	require.Len(t, overview, 2)
	assert.Equal(t, PartitionStatus{Actor: "asha", DailyUsage: 2, TotalPrices: 1}, overview[0])
	assert.Equal(t, "ravi", overview[1].Actor)
	assert.Contains(t, overview[1].Error, "unreadable")
}
