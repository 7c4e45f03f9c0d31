package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/MrKriegler/go-policyadmin/internal/core"
)

type productRow struct {
	ID             string          `db:"id"`
	Name           string          `db:"name"`
	PolicyType     string          `db:"policy_type"`
	BaseMultiplier decimal.Decimal `db:"base_multiplier"`
	MinSumAssured  decimal.Decimal `db:"min_sum_assured"`
	MaxSumAssured  decimal.Decimal `db:"max_sum_assured"`
	IncludeADB     bool            `db:"include_adb"`
	ADBPercent     decimal.Decimal `db:"adb_percent"`
	IncludePTD     bool            `db:"include_ptd"`
	PTDPercent     decimal.Decimal `db:"ptd_percent"`
}

const productColumns = `id, name, policy_type, base_multiplier, min_sum_assured, max_sum_assured,
	include_adb, adb_percent, include_ptd, ptd_percent`

func fromProductRow(r productRow) core.Product {
	return core.Product{
		ID:             r.ID,
		Name:           r.Name,
		PolicyType:     core.PolicyType(r.PolicyType),
		BaseMultiplier: r.BaseMultiplier,
		MinSumAssured:  r.MinSumAssured,
		MaxSumAssured:  r.MaxSumAssured,
		IncludeADB:     r.IncludeADB,
		ADBPercent:     r.ADBPercent,
		IncludePTD:     r.IncludePTD,
		PTDPercent:     r.PTDPercent,
	}
}

type bandRow struct {
	ID               string          `db:"id"`
	Table            string          `db:"rate_table"`
	Key              string          `db:"band_key"`
	Min              int             `db:"min_value"`
	Max              int             `db:"max_value"`
	Value            decimal.Decimal `db:"value"`
	EligibilityYears int             `db:"eligibility_years"`
}

const bandColumns = `id, rate_table, band_key, min_value, max_value, value, eligibility_years`

// RateRepo keeps products and rate bands next to the ledger.
type RateRepo struct {
	db *sqlx.DB
}

var _ core.RateTableRepo = (*RateRepo)(nil)

func NewRateRepo(db *sqlx.DB) *RateRepo {
	return &RateRepo{db: db}
}

func (r *RateRepo) ListProducts(ctx context.Context) ([]core.Product, error) {
	var rows []productRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+productColumns+` FROM products ORDER BY id`); err != nil {
		return nil, fmt.Errorf("products.list: %w", err)
	}
	out := make([]core.Product, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromProductRow(row))
	}
	return out, nil
}

func (r *RateRepo) GetProduct(ctx context.Context, id string) (core.Product, error) {
	var row productRow
	err := r.db.GetContext(ctx, &row, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Product{}, core.ErrProductNotFound
		}
		return core.Product{}, fmt.Errorf("products.get: %w", err)
	}
	return fromProductRow(row), nil
}

func (r *RateRepo) UpsertProduct(ctx context.Context, p core.Product) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES (:id, :name, :policy_type, :base_multiplier, :min_sum_assured, :max_sum_assured,
			:include_adb, :adb_percent, :include_ptd, :ptd_percent)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			policy_type = EXCLUDED.policy_type,
			base_multiplier = EXCLUDED.base_multiplier,
			min_sum_assured = EXCLUDED.min_sum_assured,
			max_sum_assured = EXCLUDED.max_sum_assured,
			include_adb = EXCLUDED.include_adb,
			adb_percent = EXCLUDED.adb_percent,
			include_ptd = EXCLUDED.include_ptd,
			ptd_percent = EXCLUDED.ptd_percent`,
		productRow{
			ID:             p.ID,
			Name:           p.Name,
			PolicyType:     string(p.PolicyType),
			BaseMultiplier: p.BaseMultiplier,
			MinSumAssured:  p.MinSumAssured,
			MaxSumAssured:  p.MaxSumAssured,
			IncludeADB:     p.IncludeADB,
			ADBPercent:     p.ADBPercent,
			IncludePTD:     p.IncludePTD,
			PTDPercent:     p.PTDPercent,
		})
	if err != nil {
		return fmt.Errorf("products.upsert: %w", err)
	}
	return nil
}

func (r *RateRepo) ListBands(ctx context.Context, table core.RateTable) ([]core.RateBand, error) {
	query := `SELECT ` + bandColumns + ` FROM rate_bands`
	var args []any
	if table != "" {
		query += ` WHERE rate_table = $1`
		args = append(args, string(table))
	}
	query += ` ORDER BY rate_table, band_key, min_value`

	var rows []bandRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("rate_bands.list: %w", err)
	}
	out := make([]core.RateBand, 0, len(rows))
	for _, row := range rows {
		out = append(out, core.RateBand{
			ID:               row.ID,
			Table:            core.RateTable(row.Table),
			Key:              row.Key,
			Min:              row.Min,
			Max:              row.Max,
			Value:            row.Value,
			EligibilityYears: row.EligibilityYears,
		})
	}
	return out, nil
}

func (r *RateRepo) CreateBand(ctx context.Context, b core.RateBand) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO rate_bands (`+bandColumns+`)
		VALUES (:id, :rate_table, :band_key, :min_value, :max_value, :value, :eligibility_years)`,
		bandRow{
			ID:               b.ID,
			Table:            string(b.Table),
			Key:              b.Key,
			Min:              b.Min,
			Max:              b.Max,
			Value:            b.Value,
			EligibilityYears: b.EligibilityYears,
		})
	if err != nil {
		return mapWriteErr("rate_bands.insert", err, fmt.Errorf("%w: rate band %s exists", core.ErrConflict, b.ID))
	}
	return nil
}

func (r *RateRepo) DeleteBand(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM rate_bands WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("rate_bands.delete: %w", err)
	}
	return checkAffected("rate_bands.delete", res, core.ErrRateBandNotFound)
}
