package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/sitecost/internal/shared"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository is the PostgreSQL backed catalog.
type Repository struct {
	db querier
}

var _ Source = (*Repository)(nil)

// NewRepository constructs a repository.
func NewRepository(db querier) *Repository {
	return &Repository{db: db}
}

// Migrate creates the catalog table when missing.
func (r *Repository) Migrate(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
CREATE TABLE IF NOT EXISTS catalog_entries (
	site                TEXT NOT NULL,
	company             TEXT NOT NULL,
	material_name       TEXT NOT NULL,
	unit                TEXT NOT NULL DEFAULT '',
	material_unit_price NUMERIC(18,4) NOT NULL DEFAULT 0,
	labor_unit_price    NUMERIC(18,4) NOT NULL DEFAULT 0,
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (site, company, material_name)
)`)
	return err
}

// Upsert stores or replaces an entry.
func (r *Repository) Upsert(ctx context.Context, tenant shared.Tenant, e Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx, `
INSERT INTO catalog_entries (site, company, material_name, unit, material_unit_price, labor_unit_price)
VALUES ($1, $2, $3, $4, $5::text::numeric, $6::text::numeric)
ON CONFLICT (site, company, material_name) DO UPDATE
SET unit = EXCLUDED.unit,
    material_unit_price = EXCLUDED.material_unit_price,
    labor_unit_price = EXCLUDED.labor_unit_price,
    updated_at = now()`,
		tenant.Site, tenant.Company, e.MaterialName, e.Unit, e.MaterialUnitPrice.String(), e.LaborUnitPrice.String())
	return err
}

// Entries implements Source.
func (r *Repository) Entries(ctx context.Context, tenant shared.Tenant) ([]Entry, error) {
	rows, err := r.db.Query(ctx, `
SELECT material_name, unit, material_unit_price::text, labor_unit_price::text
FROM catalog_entries
WHERE site = $1 AND company = $2
ORDER BY material_name`, tenant.Site, tenant.Company)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e               Entry
			material, labor string
		)
		if err := rows.Scan(&e.MaterialName, &e.Unit, &material, &labor); err != nil {
			return nil, err
		}
		if e.MaterialUnitPrice, err = decimal.NewFromString(material); err != nil {
			return nil, fmt.Errorf("catalog: %s material price: %w", e.MaterialName, err)
		}
		if e.LaborUnitPrice, err = decimal.NewFromString(labor); err != nil {
			return nil, fmt.Errorf("catalog: %s labor price: %w", e.MaterialName, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
