package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrKriegler/go-policyadmin/internal/core"
)

type claimRow struct {
	ID               string          `db:"id"`
	PolicyHolderID   string          `db:"policy_holder_id"`
	Reason           string          `db:"reason"`
	OtherReason      string          `db:"other_reason"`
	ClaimAmount      decimal.Decimal `db:"claim_amount"`
	Status           string          `db:"status"`
	ProcessingStatus string          `db:"processing_status"`
	PayoutStatus     string          `db:"payout_status"`
	PaidAmount       decimal.Decimal `db:"paid_amount"`
	Remarks          string          `db:"remarks"`
	ClaimDate        time.Time       `db:"claim_date"`
	DecidedAt        *time.Time      `db:"decided_at"`
	ProcessedAt      *time.Time      `db:"processed_at"`
	PaidAt           *time.Time      `db:"paid_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

const claimColumns = `id, policy_holder_id, reason, other_reason, claim_amount, status,
	processing_status, payout_status, paid_amount, remarks, claim_date, decided_at,
	processed_at, paid_at, updated_at`

func toClaimRow(c core.ClaimRequest) claimRow {
	return claimRow{
		ID:               c.ID,
		PolicyHolderID:   c.PolicyHolderID,
		Reason:           string(c.Reason),
		OtherReason:      c.OtherReason,
		ClaimAmount:      c.ClaimAmount,
		Status:           string(c.Status),
		ProcessingStatus: string(c.ProcessingStatus),
		PayoutStatus:     string(c.PayoutStatus),
		PaidAmount:       c.PaidAmount,
		Remarks:          c.Remarks,
		ClaimDate:        utc(c.ClaimDate),
		DecidedAt:        utcPtr(c.DecidedAt),
		ProcessedAt:      utcPtr(c.ProcessedAt),
		PaidAt:           utcPtr(c.PaidAt),
		UpdatedAt:        utc(c.UpdatedAt),
	}
}

func fromClaimRow(r claimRow) core.ClaimRequest {
	return core.ClaimRequest{
		ID:               r.ID,
		PolicyHolderID:   r.PolicyHolderID,
		Reason:           core.ClaimReason(r.Reason),
		OtherReason:      r.OtherReason,
		ClaimAmount:      r.ClaimAmount,
		Status:           core.ClaimStatus(r.Status),
		ProcessingStatus: core.ClaimProcessingStatus(r.ProcessingStatus),
		PayoutStatus:     core.ClaimPayoutStatus(r.PayoutStatus),
		PaidAmount:       r.PaidAmount,
		Remarks:          r.Remarks,
		ClaimDate:        utc(r.ClaimDate),
		DecidedAt:        utcPtr(r.DecidedAt),
		ProcessedAt:      utcPtr(r.ProcessedAt),
		PaidAt:           utcPtr(r.PaidAt),
		UpdatedAt:        utc(r.UpdatedAt),
	}
}

type claimRepo struct{ q queryer }

func (r claimRepo) Create(ctx context.Context, c core.ClaimRequest) error {
	_, err := r.q.NamedExecContext(ctx, `
		INSERT INTO claim_requests (`+claimColumns+`)
		VALUES (:id, :policy_holder_id, :reason, :other_reason, :claim_amount, :status,
			:processing_status, :payout_status, :paid_amount, :remarks, :claim_date, :decided_at,
			:processed_at, :paid_at, :updated_at)`, toClaimRow(c))
	if err != nil {
		return mapWriteErr("claim_requests.insert", err, fmt.Errorf("%w: claim %s exists", core.ErrConflict, c.ID))
	}
	return nil
}

func (r claimRepo) Get(ctx context.Context, id string) (core.ClaimRequest, error) {
	var row claimRow
	err := r.q.GetContext(ctx, &row, `SELECT `+claimColumns+` FROM claim_requests WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.ClaimRequest{}, core.ErrClaimNotFound
		}
		return core.ClaimRequest{}, fmt.Errorf("claim_requests.get: %w", err)
	}
	return fromClaimRow(row), nil
}

func (r claimRepo) Update(ctx context.Context, c core.ClaimRequest) error {
	res, err := r.q.NamedExecContext(ctx, `
		UPDATE claim_requests SET
			status = :status,
			processing_status = :processing_status,
			payout_status = :payout_status,
			paid_amount = :paid_amount,
			remarks = :remarks,
			decided_at = :decided_at,
			processed_at = :processed_at,
			paid_at = :paid_at,
			updated_at = :updated_at
		WHERE id = :id`, toClaimRow(c))
	if err != nil {
		return fmt.Errorf("claim_requests.update: %w", err)
	}
	return checkAffected("claim_requests.update", res, core.ErrClaimNotFound)
}

func (r claimRepo) List(ctx context.Context, f core.ClaimFilter) ([]core.ClaimRequest, error) {
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
	add("policy_holder_id", f.PolicyHolderID)
	add("status", string(f.Status))

	q := `SELECT ` + claimColumns + ` FROM claim_requests`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY claim_date, id`

	var rows []claimRow
	if err := r.q.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("claim_requests.list: %w", err)
	}
	out := make([]core.ClaimRequest, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromClaimRow(row))
	}
	return out, nil
}
