package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrKriegler/go-policyadmin/internal/core"
)

type holderRow struct {
	ID              string          `db:"id"`
	PolicyNumber    sql.NullString  `db:"policy_number"`
	ProductID       string          `db:"product_id"`
	AgentID         string          `db:"agent_id"`
	Name            string          `db:"name"`
	DateOfBirth     time.Time       `db:"date_of_birth"`
	SumAssured      decimal.Decimal `db:"sum_assured"`
	DurationYears   int             `db:"duration_years"`
	PaymentInterval string          `db:"payment_interval"`
	StartDate       *time.Time      `db:"start_date"`
	MaturityDate    *time.Time      `db:"maturity_date"`
	Status          string          `db:"status"`
	RiskCategory    string          `db:"risk_category"`
	Risk            string          `db:"risk"`
	Term            int             `db:"term"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

const holderColumns = `id, policy_number, product_id, agent_id, name, date_of_birth, sum_assured,
	duration_years, payment_interval, start_date, maturity_date, status, risk_category, risk,
	term, created_at, updated_at`

func toHolderRow(h core.PolicyHolder) (holderRow, error) {
	risk, err := json.Marshal(h.Risk)
	if err != nil {
		return holderRow{}, fmt.Errorf("encode risk profile: %w", err)
	}
	return holderRow{
		ID:              h.ID,
		PolicyNumber:    sql.NullString{String: h.PolicyNumber, Valid: h.PolicyNumber != ""},
		ProductID:       h.ProductID,
		AgentID:         h.AgentID,
		Name:            h.Name,
		DateOfBirth:     utc(h.DateOfBirth),
		SumAssured:      h.SumAssured,
		DurationYears:   h.DurationYears,
		PaymentInterval: string(h.PaymentInterval),
		StartDate:       utcPtr(h.StartDate),
		MaturityDate:    utcPtr(h.MaturityDate),
		Status:          string(h.Status),
		RiskCategory:    string(h.RiskCategory),
		Risk:            string(risk),
		Term:            h.Term,
		CreatedAt:       utc(h.CreatedAt),
		UpdatedAt:       utc(h.UpdatedAt),
	}, nil
}

func fromHolderRow(r holderRow) (core.PolicyHolder, error) {
	var risk core.RiskProfile
	if r.Risk != "" {
		if err := json.Unmarshal([]byte(r.Risk), &risk); err != nil {
			return core.PolicyHolder{}, fmt.Errorf("decode risk profile of %s: %w", r.ID, err)
		}
	}
	return core.PolicyHolder{
		ID:              r.ID,
		PolicyNumber:    r.PolicyNumber.String,
		ProductID:       r.ProductID,
		AgentID:         r.AgentID,
		Name:            r.Name,
		DateOfBirth:     utc(r.DateOfBirth),
		SumAssured:      r.SumAssured,
		DurationYears:   r.DurationYears,
		PaymentInterval: core.PaymentInterval(r.PaymentInterval),
		StartDate:       utcPtr(r.StartDate),
		MaturityDate:    utcPtr(r.MaturityDate),
		Status:          core.PolicyStatus(r.Status),
		RiskCategory:    core.RiskCategory(r.RiskCategory),
		Risk:            risk,
		Term:            r.Term,
		CreatedAt:       utc(r.CreatedAt),
		UpdatedAt:       utc(r.UpdatedAt),
	}, nil
}

type holderRepo struct{ q queryer }

func (r holderRepo) Create(ctx context.Context, h core.PolicyHolder) error {
	row, err := toHolderRow(h)
	if err != nil {
		return err
	}
	_, err = r.q.NamedExecContext(ctx, `
		INSERT INTO policy_holders (`+holderColumns+`)
		VALUES (:id, :policy_number, :product_id, :agent_id, :name, :date_of_birth, :sum_assured,
			:duration_years, :payment_interval, :start_date, :maturity_date, :status, :risk_category,
			:risk, :term, :created_at, :updated_at)`, row)
	if err != nil {
		return mapWriteErr("policy_holders.insert", err, core.ErrPolicyHolderExists)
	}
	return nil
}

func (r holderRepo) get(ctx context.Context, op, id, suffix string) (core.PolicyHolder, error) {
	var row holderRow
	err := r.q.GetContext(ctx, &row, `SELECT `+holderColumns+` FROM policy_holders WHERE id = $1`+suffix, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.PolicyHolder{}, core.ErrPolicyHolderNotFound
		}
		if suffix != "" {
			return core.PolicyHolder{}, mapLockErr(op, id, err)
		}
		return core.PolicyHolder{}, fmt.Errorf("%s: %w", op, err)
	}
	return fromHolderRow(row)
}

func (r holderRepo) Get(ctx context.Context, id string) (core.PolicyHolder, error) {
	return r.get(ctx, "policy_holders.get", id, "")
}

func (r holderRepo) Lock(ctx context.Context, id string) (core.PolicyHolder, error) {
	return r.get(ctx, "policy_holders.lock", id, " FOR UPDATE")
}

func (r holderRepo) TryLock(ctx context.Context, id string) (core.PolicyHolder, error) {
	return r.get(ctx, "policy_holders.tryLock", id, " FOR UPDATE NOWAIT")
}

func (r holderRepo) Update(ctx context.Context, h core.PolicyHolder) error {
	row, err := toHolderRow(h)
	if err != nil {
		return err
	}
	res, err := r.q.NamedExecContext(ctx, `
		UPDATE policy_holders SET
			policy_number = :policy_number,
			product_id = :product_id,
			agent_id = :agent_id,
			name = :name,
			date_of_birth = :date_of_birth,
			sum_assured = :sum_assured,
			duration_years = :duration_years,
			payment_interval = :payment_interval,
			start_date = :start_date,
			maturity_date = :maturity_date,
			status = :status,
			risk_category = :risk_category,
			risk = :risk,
			term = :term,
			updated_at = :updated_at
		WHERE id = :id`, row)
	if err != nil {
		return mapWriteErr("policy_holders.update", err, core.ErrPolicyHolderExists)
	}
	return checkAffected("policy_holders.update", res, core.ErrPolicyHolderNotFound)
}

func (r holderRepo) List(ctx context.Context, f core.PolicyHolderFilter, limit, offset int) ([]core.PolicyHolder, int64, error) {
	var (
		where []string
		args  []any
	)
	add := func(col, val string) {
		if val == "" {
			return
		}
		args = append(args, val)
		where = append(where, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	add("status", string(f.Status))
	add("product_id", f.ProductID)
	add("agent_id", f.AgentID)

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := r.q.GetContext(ctx, &total, `SELECT COUNT(*) FROM policy_holders`+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("policy_holders.count: %w", err)
	}

	query := `SELECT ` + holderColumns + ` FROM policy_holders` + clause + ` ORDER BY created_at DESC, id`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	var rows []holderRow
	if err := r.q.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("policy_holders.list: %w", err)
	}
	out := make([]core.PolicyHolder, 0, len(rows))
	for _, row := range rows {
		h, err := fromHolderRow(row)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, h)
	}
	return out, total, nil
}

// NextPolicyNumber increments the per-year counter inside the caller's
// transaction, so a rolled back issuance does not burn a number.
func (r holderRepo) NextPolicyNumber(ctx context.Context, year int) (string, error) {
	var seq int64
	err := r.q.GetContext(ctx, &seq, `
		INSERT INTO policy_counters (year, value) VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET value = policy_counters.value + 1
		RETURNING value`, year)
	if err != nil {
		return "", fmt.Errorf("policy_counters.next: %w", err)
	}
	return core.FormatPolicyNumber(year, seq), nil
}
