package costs

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/sitecost/internal/catalog"
	"github.com/odyssey-erp/sitecost/internal/partition"
)

// partitionRead holds what one partition returned for the range.
type partitionRead struct {
	actor  string
	prices []partition.TotalPriceRecord
	usage  []partition.DailyUsageRecord
	err    error
}

type accumulator struct {
	item   LineItem
	actors map[string]struct{}
}

type ledger struct {
	lines map[string]*accumulator
}

func newLedger() *ledger {
	return &ledger{lines: make(map[string]*accumulator)}
}

// line returns the accumulator for material, seeding unit and location from
// the first record seen.
func (l *ledger) line(material, unit, location string) (*accumulator, bool) {
	if acc, ok := l.lines[material]; ok {
		return acc, false
	}
	acc := &accumulator{
		item:   LineItem{MaterialName: material, Unit: unit, Location: location},
		actors: make(map[string]struct{}),
	}
	l.lines[material] = acc
	return acc, true
}

// reconcileTotals sums stored total price records. Stored totals are trusted
// as they are, even where they disagree with their cost parts.
func reconcileTotals(reads []partitionRead) []LineItem {
	l := newLedger()
	for _, read := range reads {
		for _, rec := range read.prices {
			acc, created := l.line(rec.MaterialName, rec.Unit, rec.Location)
			if created {
				acc.item.MaterialUnitPrice = rec.MaterialUnitPrice
				acc.item.LaborUnitPrice = rec.LaborUnitPrice
			}
			acc.item.Quantity = acc.item.Quantity.Add(rec.Quantity)
			acc.item.MaterialCost = acc.item.MaterialCost.Add(rec.MaterialCost)
			acc.item.LaborCost = acc.item.LaborCost.Add(rec.LaborCost)
			acc.item.TotalPrice = acc.item.TotalPrice.Add(rec.TotalPrice)
			acc.actors[read.actor] = struct{}{}
		}
	}
	return l.items()
}

// reconcileUsage sums usage quantities per material and prices them from the
// catalog. Materials missing from the catalog are reported through onMiss
// and left out.
func reconcileUsage(reads []partitionRead, prices catalog.Prices, onMiss func(material string)) []LineItem {
	l := newLedger()
	for _, read := range reads {
		for _, rec := range read.usage {
			acc, _ := l.line(rec.MaterialName, rec.Unit, rec.Location)
			acc.item.Quantity = acc.item.Quantity.Add(rec.Quantity)
			acc.actors[read.actor] = struct{}{}
		}
	}
	for material, acc := range l.lines {
		entry, ok := prices[material]
		if !ok {
			delete(l.lines, material)
			if onMiss != nil {
				onMiss(material)
			}
			continue
		}
		if acc.item.Unit == "" {
			acc.item.Unit = entry.Unit
		}
		acc.item.MaterialUnitPrice = entry.MaterialUnitPrice
		acc.item.LaborUnitPrice = entry.LaborUnitPrice
		acc.item.MaterialCost = acc.item.Quantity.Mul(entry.MaterialUnitPrice)
		acc.item.LaborCost = acc.item.Quantity.Mul(entry.LaborUnitPrice)
		acc.item.TotalPrice = acc.item.MaterialCost.Add(acc.item.LaborCost)
	}
	return l.items()
}

// items returns the ledger lines sorted by material name.
func (l *ledger) items() []LineItem {
	out := make([]LineItem, 0, len(l.lines))
	for _, acc := range l.lines {
		item := acc.item
		item.ContributingActors = make([]string, 0, len(acc.actors))
		for actor := range acc.actors {
			item.ContributingActors = append(item.ContributingActors, actor)
		}
		sort.Strings(item.ContributingActors)
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MaterialName < out[j].MaterialName })
	return out
}

// summarize totals line items.
func summarize(items []LineItem) Summary {
	s := Summary{
		LineItemCount:     len(items),
		GrandTotal:        decimal.Zero,
		TotalMaterialCost: decimal.Zero,
		TotalLaborCost:    decimal.Zero,
	}
	for _, item := range items {
		s.GrandTotal = s.GrandTotal.Add(item.TotalPrice)
		s.TotalMaterialCost = s.TotalMaterialCost.Add(item.MaterialCost)
		s.TotalLaborCost = s.TotalLaborCost.Add(item.LaborCost)
	}
	return s
}
