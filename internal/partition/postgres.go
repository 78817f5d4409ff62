package partition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/sitecost/internal/platform/db"
	"github.com/odyssey-erp/sitecost/internal/shared"
)

// pgxDB is the subset of *pgxpool.Pool used by the store.
type pgxDB interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error)
}

// PostgresStore keeps each partition in its own schema.
type PostgresStore struct {
	db pgxDB
}

// NewPostgresStore constructs a store over a connection pool. The pool is
// owned by the caller.
func NewPostgresStore(pool pgxDB) *PostgresStore {
	return &PostgresStore{db: pool}
}

const listSchemasSQL = `
SELECT n.nspname, COALESCE(obj_description(n.oid, 'pg_namespace'), '')
FROM pg_namespace n
WHERE n.nspname LIKE 'du\_%'
ORDER BY n.nspname`

// Keys implements KeyLister by scanning partition schemas.
func (s *PostgresStore) Keys(ctx context.Context) ([]Key, error) {
	rows, err := s.db.Query(ctx, listSchemasSQL)
	if err != nil {
		return nil, fmt.Errorf("partition: list schemas: %w", err)
	}
	defer rows.Close()
	keys := make([]Key, 0)
	for rows.Next() {
		var name, comment string
		if err := rows.Scan(&name, &comment); err != nil {
			return nil, fmt.Errorf("partition: scan schema: %w", err)
		}
		if key, ok := decodeSchema(name, comment); ok {
			keys = append(keys, key)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("partition: list schemas: %w", err)
	}
	return keys, nil
}

// Open implements Store.
func (s *PostgresStore) Open(key Key) Handle {
	schema := schemaName(key)
	return &pgHandle{
		db:     s.db,
		key:    key,
		schema: schema,
		usage:  pgx.Identifier{schema, "daily_usage"}.Sanitize(),
		prices: pgx.Identifier{schema, "total_prices"}.Sanitize(),
	}
}

// Ensure implements Store. It is idempotent; losing a creation race to a
// concurrent writer is retried once.
func (s *PostgresStore) Ensure(ctx context.Context, key Key) error {
	if !key.Valid() {
		return ErrInvalidKey
	}
	comment, err := schemaComment(key)
	if err != nil {
		return err
	}
	schema := pgx.Identifier{schemaName(key)}.Sanitize()
	stmts := []string{
		"CREATE SCHEMA IF NOT EXISTS " + schema,
		`CREATE TABLE IF NOT EXISTS ` + schema + `.daily_usage (
			id BIGSERIAL PRIMARY KEY,
			entry_date DATE NOT NULL,
			material_name TEXT NOT NULL,
			quantity NUMERIC(18,4) NOT NULL,
			unit TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			material_unit_price NUMERIC(18,4),
			labor_unit_price NUMERIC(18,4),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS daily_usage_entry_date_idx ON ` + schema + `.daily_usage (entry_date)`,
		`CREATE TABLE IF NOT EXISTS ` + schema + `.total_prices (
			id BIGSERIAL PRIMARY KEY,
			entry_date DATE NOT NULL,
			material_name TEXT NOT NULL,
			quantity NUMERIC(18,4) NOT NULL,
			unit TEXT NOT NULL DEFAULT '',
			material_unit_price NUMERIC(18,4) NOT NULL DEFAULT 0,
			labor_unit_price NUMERIC(18,4) NOT NULL DEFAULT 0,
			material_cost NUMERIC(18,4) NOT NULL DEFAULT 0,
			labor_cost NUMERIC(18,4) NOT NULL DEFAULT 0,
			total_price NUMERIC(18,4) NOT NULL DEFAULT 0,
			location TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS total_prices_entry_date_idx ON ` + schema + `.total_prices (entry_date)`,
		"COMMENT ON SCHEMA " + schema + " IS " + quoteLiteral(comment),
	}
	return retryOnDuplicate(func() error {
		return db.WithTx(ctx, s.db, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
			for _, stmt := range stmts {
				if _, err := tx.Exec(ctx, stmt); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// retryOnDuplicate reruns create once after losing a race to a concurrent
// creator. The loser's error fires before the winner commits, so success is
// only reported once the IF NOT EXISTS statements pass on their own.
func retryOnDuplicate(create func() error) error {
	err := create()
	if isDuplicateObject(err) {
		err = create()
	}
	return err
}

// Close implements Store. The pool is closed by its owner.
func (s *PostgresStore) Close() error {
	return nil
}

type pgHandle struct {
	db     pgxDB
	key    Key
	schema string
	usage  string
	prices string
}

func (h *pgHandle) Key() Key { return h.key }

func (h *pgHandle) TotalPrices(ctx context.Context, rng shared.DateRange) ([]TotalPriceRecord, error) {
	query := `SELECT entry_date, material_name, quantity::text, unit,
		material_unit_price::text, labor_unit_price::text,
		material_cost::text, labor_cost::text, total_price::text, location
		FROM ` + h.prices + `
		WHERE entry_date >= $1 AND entry_date < $2
		ORDER BY entry_date, id`
	rows, err := h.db.Query(ctx, query, rng.Start, rng.EndExclusive())
	if err != nil {
		if isMissingRelation(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("partition %s: total prices: %w", h.key, err)
	}
	defer rows.Close()
	out := make([]TotalPriceRecord, 0)
	for rows.Next() {
		var rec TotalPriceRecord
		var qty, matPrice, labPrice, matCost, labCost, total string
		if err := rows.Scan(&rec.Date, &rec.MaterialName, &qty, &rec.Unit, &matPrice, &labPrice, &matCost, &labCost, &total, &rec.Location); err != nil {
			return nil, fmt.Errorf("partition %s: scan total price: %w", h.key, err)
		}
		if err := parseDecimals(
			decimalField{&rec.Quantity, qty},
			decimalField{&rec.MaterialUnitPrice, matPrice},
			decimalField{&rec.LaborUnitPrice, labPrice},
			decimalField{&rec.MaterialCost, matCost},
			decimalField{&rec.LaborCost, labCost},
			decimalField{&rec.TotalPrice, total},
		); err != nil {
			return nil, fmt.Errorf("partition %s: malformed total price: %w", h.key, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		if isMissingRelation(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("partition %s: total prices: %w", h.key, err)
	}
	return out, nil
}

func (h *pgHandle) DailyUsage(ctx context.Context, rng shared.DateRange) ([]DailyUsageRecord, error) {
	query := `SELECT entry_date, material_name, quantity::text, unit, location,
		material_unit_price::text, labor_unit_price::text
		FROM ` + h.usage + `
		WHERE entry_date >= $1 AND entry_date < $2
		ORDER BY entry_date, id`
	rows, err := h.db.Query(ctx, query, rng.Start, rng.EndExclusive())
	if err != nil {
		if isMissingRelation(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("partition %s: daily usage: %w", h.key, err)
	}
	defer rows.Close()
	out := make([]DailyUsageRecord, 0)
	for rows.Next() {
		var (
			rec                DailyUsageRecord
			qty                string
			matPrice, labPrice *string
		)
		if err := rows.Scan(&rec.Date, &rec.MaterialName, &qty, &rec.Unit, &rec.Location, &matPrice, &labPrice); err != nil {
			return nil, fmt.Errorf("partition %s: scan usage: %w", h.key, err)
		}
		if err := parseDecimals(decimalField{&rec.Quantity, qty}); err != nil {
			return nil, fmt.Errorf("partition %s: malformed usage: %w", h.key, err)
		}
		if rec.MaterialUnitPriceSnapshot, err = parseNullDecimal(matPrice); err != nil {
			return nil, fmt.Errorf("partition %s: malformed usage: %w", h.key, err)
		}
		if rec.LaborUnitPriceSnapshot, err = parseNullDecimal(labPrice); err != nil {
			return nil, fmt.Errorf("partition %s: malformed usage: %w", h.key, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		if isMissingRelation(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("partition %s: daily usage: %w", h.key, err)
	}
	return out, nil
}

func (h *pgHandle) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	query := `SELECT (SELECT count(*) FROM ` + h.usage + `), (SELECT count(*) FROM ` + h.prices + `)`
	if err := h.db.QueryRow(ctx, query).Scan(&c.DailyUsage, &c.TotalPrices); err != nil {
		if isMissingRelation(err) {
			return Counts{}, nil
		}
		return Counts{}, fmt.Errorf("partition %s: counts: %w", h.key, err)
	}
	return c, nil
}

func (h *pgHandle) AppendUsage(ctx context.Context, records ...DailyUsageRecord) error {
	if len(records) == 0 {
		return nil
	}
	query := `INSERT INTO ` + h.usage + ` (entry_date, material_name, quantity, unit, location, material_unit_price, labor_unit_price)
		VALUES ($1, $2, $3::text::numeric, $4, $5, $6::text::numeric, $7::text::numeric)`
	return db.WithTx(ctx, h.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range records {
			if _, err := tx.Exec(ctx, query, dayOf(rec.Date), rec.MaterialName, rec.Quantity.String(), rec.Unit, rec.Location,
				nullDecimalArg(rec.MaterialUnitPriceSnapshot), nullDecimalArg(rec.LaborUnitPriceSnapshot)); err != nil {
				return h.insertError("usage", err)
			}
		}
		return nil
	})
}

func (h *pgHandle) AppendTotalPrices(ctx context.Context, records ...TotalPriceRecord) error {
	if len(records) == 0 {
		return nil
	}
	query := `INSERT INTO ` + h.prices + ` (entry_date, material_name, quantity, unit, material_unit_price, labor_unit_price, material_cost, labor_cost, total_price, location)
		VALUES ($1, $2, $3::text::numeric, $4, $5::text::numeric, $6::text::numeric, $7::text::numeric, $8::text::numeric, $9::text::numeric, $10)`
	return db.WithTx(ctx, h.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range records {
			if _, err := tx.Exec(ctx, query, dayOf(rec.Date), rec.MaterialName, rec.Quantity.String(), rec.Unit,
				rec.MaterialUnitPrice.String(), rec.LaborUnitPrice.String(), rec.MaterialCost.String(),
				rec.LaborCost.String(), rec.TotalPrice.String(), rec.Location); err != nil {
				return h.insertError("total price", err)
			}
		}
		return nil
	})
}

func (h *pgHandle) insertError(what string, err error) error {
	if isMissingRelation(err) {
		return fmt.Errorf("partition %s: insert %s: %w: %w", h.key, what, ErrNotEnsured, err)
	}
	return fmt.Errorf("partition %s: insert %s: %w", h.key, what, err)
}

// isMissingRelation reports whether err means the partition was never created.
func isMissingRelation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "42P01", "3F000": // undefined_table, invalid_schema_name
		return true
	}
	return false
}

func isDuplicateObject(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "42P06", "42P07", "23505": // duplicate_schema, duplicate_table, unique_violation on catalog
		return true
	}
	return false
}

type decimalField struct {
	dst *decimal.Decimal
	raw string
}

func parseDecimals(fields ...decimalField) error {
	for _, f := range fields {
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return err
		}
		*f.dst = d
	}
	return nil
}

func parseNullDecimal(raw *string) (decimal.NullDecimal, error) {
	if raw == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(*raw)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}

func nullDecimalArg(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}

func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
