package actors

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/odyssey-erp/sitecost/internal/shared"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository is the PostgreSQL backed Directory.
type Repository struct {
	db querier
}

var _ Directory = (*Repository)(nil)

// NewRepository constructs a repository over a pool or transaction.
func NewRepository(db querier) *Repository {
	return &Repository{db: db}
}

// Migrate creates the actors table when missing.
func (r *Repository) Migrate(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
CREATE TABLE IF NOT EXISTS actors (
	id         UUID PRIMARY KEY,
	username   TEXT NOT NULL,
	role       TEXT NOT NULL,
	site       TEXT NOT NULL,
	company    TEXT NOT NULL,
	created_by UUID REFERENCES actors(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (site, company, username)
);
CREATE INDEX IF NOT EXISTS actors_created_by_idx ON actors (site, company, created_by);`)
	return err
}

// Create inserts an actor.
func (r *Repository) Create(ctx context.Context, a Actor) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO actors (id, username, role, site, company, created_by) VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.Username, a.Role, a.Tenant.Site, a.Tenant.Company, a.CreatedBy)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicateActor, a.Username)
	}
	return err
}

// CreatedBy implements Directory.
func (r *Repository) CreatedBy(ctx context.Context, tenant shared.Tenant, creatorID uuid.UUID) ([]Actor, error) {
	rows, err := r.db.Query(ctx, `
SELECT id, username, role, site, company, created_by
FROM actors
WHERE site = $1 AND company = $2 AND created_by = $3
ORDER BY username`, tenant.Site, tenant.Company, creatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Actor
	for rows.Next() {
		var a Actor
		if err := rows.Scan(&a.ID, &a.Username, &a.Role, &a.Tenant.Site, &a.Tenant.Company, &a.CreatedBy); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Tenants implements Directory.
func (r *Repository) Tenants(ctx context.Context) ([]shared.Tenant, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT site, company FROM actors ORDER BY site, company`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []shared.Tenant
	for rows.Next() {
		var t shared.Tenant
		if err := rows.Scan(&t.Site, &t.Company); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
