// Package costs aggregates material usage and cost across the partitions of
// a tenant.
package costs

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/sitecost/internal/shared"
)

var (
	// ErrDiscovery marks a store that could not be enumerated at all.
	ErrDiscovery = errors.New("costs: partition discovery failed")
	// ErrCatalog marks a catalog that could not be read for pricing.
	ErrCatalog = errors.New("costs: catalog unavailable")
)

// DataSource names the record family a result was computed from.
type DataSource string

const (
	// SourceTotalPrices means stored total price records were summed.
	SourceTotalPrices DataSource = "existing_total_prices"
	// SourceDailyReports means usage was priced against the catalog.
	SourceDailyReports DataSource = "calculated_from_daily_reports"
)

// Scope labels used for caching and metrics.
const (
	ScopeAdmin   = "admin"
	ScopeManager = "manager"
)

// LineItem is the aggregate of one material across partitions.
type LineItem struct {
	MaterialName       string          `json:"materialName"`
	Quantity           decimal.Decimal `json:"quantity"`
	Unit               string          `json:"unit"`
	Location           string          `json:"location"`
	MaterialUnitPrice  decimal.Decimal `json:"materialUnitPrice"`
	LaborUnitPrice     decimal.Decimal `json:"laborUnitPrice"`
	MaterialCost       decimal.Decimal `json:"materialCost"`
	LaborCost          decimal.Decimal `json:"laborCost"`
	TotalPrice         decimal.Decimal `json:"totalPrice"`
	ContributingActors []string        `json:"contributingActors"`
}

// Summary totals a result.
type Summary struct {
	LineItemCount      int             `json:"lineItemCount"`
	GrandTotal         decimal.Decimal `json:"grandTotal"`
	TotalMaterialCost  decimal.Decimal `json:"totalMaterialCost"`
	TotalLaborCost     decimal.Decimal `json:"totalLaborCost"`
	DataSource         DataSource      `json:"dataSource"`
	TotalDailyReports  int             `json:"totalDailyReports"`
	TotalSiteMaterials int             `json:"totalSiteMaterials"`
	PartitionsScanned  int             `json:"partitionsScanned"`
	PartitionsSkipped  int             `json:"partitionsSkipped"`
}

// Result is the outcome of one aggregation.
type Result struct {
	Tenant    shared.Tenant    `json:"tenant"`
	Range     shared.DateRange `json:"range"`
	LineItems []LineItem       `json:"lineItems"`
	Summary   Summary          `json:"summary"`
}

// Line returns the item for material.
func (r Result) Line(material string) (LineItem, bool) {
	for _, item := range r.LineItems {
		if item.MaterialName == material {
			return item, true
		}
	}
	return LineItem{}, false
}

// PartitionStatus describes one partition of a tenant.
type PartitionStatus struct {
	Actor       string `json:"actor"`
	DailyUsage  int64  `json:"dailyUsage"`
	TotalPrices int64  `json:"totalPrices"`
	Error       string `json:"error,omitempty"`
}

// Request selects the tenant and days to aggregate.
type Request struct {
	Tenant shared.Tenant
	Range  shared.DateRange
}
