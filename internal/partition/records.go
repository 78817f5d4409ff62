package partition

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyUsageRecord is one material usage entry made by an actor.
type DailyUsageRecord struct {
	Date                      time.Time
	MaterialName              string
	Quantity                  decimal.Decimal
	Unit                      string
	Location                  string
	MaterialUnitPriceSnapshot decimal.NullDecimal
	LaborUnitPriceSnapshot    decimal.NullDecimal
}

// TotalPriceRecord is an already priced usage event.
type TotalPriceRecord struct {
	Date              time.Time
	MaterialName      string
	Quantity          decimal.Decimal
	Unit              string
	MaterialUnitPrice decimal.Decimal
	LaborUnitPrice    decimal.Decimal
	MaterialCost      decimal.Decimal
	LaborCost         decimal.Decimal
	TotalPrice        decimal.Decimal
	Location          string
}

// Counts summarises the size of a partition.
type Counts struct {
	DailyUsage  int64
	TotalPrices int64
}
