// Package catalog holds the tenant-shared material price list.
package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/sitecost/internal/shared"
)

// ErrInvalidEntry rejects entries without a name or with negative prices.
var ErrInvalidEntry = errors.New("catalog: invalid entry")

// Entry prices one material within a tenant.
type Entry struct {
	MaterialName      string
	Unit              string
	MaterialUnitPrice decimal.Decimal
	LaborUnitPrice    decimal.Decimal
}

// Validate checks the entry can be priced.
func (e Entry) Validate() error {
	if strings.TrimSpace(e.MaterialName) == "" {
		return errors.Join(ErrInvalidEntry, errors.New("material name required"))
	}
	if e.MaterialUnitPrice.IsNegative() || e.LaborUnitPrice.IsNegative() {
		return errors.Join(ErrInvalidEntry, errors.New("unit prices must not be negative"))
	}
	return nil
}

// Prices indexes a tenant catalog by material name.
type Prices map[string]Entry

// Index builds a lookup from entries. Later duplicates win.
func Index(entries []Entry) Prices {
	out := make(Prices, len(entries))
	for _, e := range entries {
		out[e.MaterialName] = e
	}
	return out
}

// Source reads a tenant catalog.
type Source interface {
	Entries(ctx context.Context, tenant shared.Tenant) ([]Entry, error)
}
