package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrKriegler/go-policyadmin/internal/core"
)

type surrenderRow struct {
	ID               string          `db:"id"`
	PolicyHolderID   string          `db:"policy_holder_id"`
	Type             string          `db:"surrender_type"`
	Status           string          `db:"status"`
	GSVAmount        decimal.Decimal `db:"gsv_amount"`
	SSVAmount        decimal.Decimal `db:"ssv_amount"`
	OutstandingLoans decimal.Decimal `db:"outstanding_loans"`
	ProcessingFee    decimal.Decimal `db:"processing_fee"`
	TaxDeduction     decimal.Decimal `db:"tax_deduction"`
	SurrenderAmount  decimal.Decimal `db:"surrender_amount"`
	Reason           string          `db:"reason"`
	Remarks          string          `db:"remarks"`
	RequestedAt      time.Time       `db:"requested_at"`
	DecidedAt        *time.Time      `db:"decided_at"`
	ProcessedAt      *time.Time      `db:"processed_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

const surrenderColumns = `id, policy_holder_id, surrender_type, status, gsv_amount, ssv_amount,
	outstanding_loans, processing_fee, tax_deduction, surrender_amount, reason, remarks,
	requested_at, decided_at, processed_at, updated_at`

func toSurrenderRow(s core.PolicySurrender) surrenderRow {
	return surrenderRow{
		ID:               s.ID,
		PolicyHolderID:   s.PolicyHolderID,
		Type:             string(s.Type),
		Status:           string(s.Status),
		GSVAmount:        s.GSVAmount,
		SSVAmount:        s.SSVAmount,
		OutstandingLoans: s.OutstandingLoans,
		ProcessingFee:    s.ProcessingFee,
		TaxDeduction:     s.TaxDeduction,
		SurrenderAmount:  s.SurrenderAmount,
		Reason:           s.Reason,
		Remarks:          s.Remarks,
		RequestedAt:      utc(s.RequestedAt),
		DecidedAt:        utcPtr(s.DecidedAt),
		ProcessedAt:      utcPtr(s.ProcessedAt),
		UpdatedAt:        utc(s.UpdatedAt),
	}
}

func fromSurrenderRow(r surrenderRow) core.PolicySurrender {
	return core.PolicySurrender{
		ID:               r.ID,
		PolicyHolderID:   r.PolicyHolderID,
		Type:             core.SurrenderType(r.Type),
		Status:           core.SurrenderStatus(r.Status),
		GSVAmount:        r.GSVAmount,
		SSVAmount:        r.SSVAmount,
		OutstandingLoans: r.OutstandingLoans,
		ProcessingFee:    r.ProcessingFee,
		TaxDeduction:     r.TaxDeduction,
		SurrenderAmount:  r.SurrenderAmount,
		Reason:           r.Reason,
		Remarks:          r.Remarks,
		RequestedAt:      utc(r.RequestedAt),
		DecidedAt:        utcPtr(r.DecidedAt),
		ProcessedAt:      utcPtr(r.ProcessedAt),
		UpdatedAt:        utc(r.UpdatedAt),
	}
}

type surrenderRepo struct{ q queryer }

func (r surrenderRepo) Create(ctx context.Context, s core.PolicySurrender) error {
	_, err := r.q.NamedExecContext(ctx, `
		INSERT INTO policy_surrenders (`+surrenderColumns+`)
		VALUES (:id, :policy_holder_id, :surrender_type, :status, :gsv_amount, :ssv_amount,
			:outstanding_loans, :processing_fee, :tax_deduction, :surrender_amount, :reason, :remarks,
			:requested_at, :decided_at, :processed_at, :updated_at)`, toSurrenderRow(s))
	if err != nil {
		return mapWriteErr("policy_surrenders.insert", err, fmt.Errorf("%w: surrender %s exists", core.ErrConflict, s.ID))
	}
	return nil
}

func (r surrenderRepo) Get(ctx context.Context, id string) (core.PolicySurrender, error) {
	var row surrenderRow
	err := r.q.GetContext(ctx, &row, `SELECT `+surrenderColumns+` FROM policy_surrenders WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.PolicySurrender{}, core.ErrSurrenderNotFound
		}
		return core.PolicySurrender{}, fmt.Errorf("policy_surrenders.get: %w", err)
	}
	return fromSurrenderRow(row), nil
}

func (r surrenderRepo) Update(ctx context.Context, s core.PolicySurrender) error {
	res, err := r.q.NamedExecContext(ctx, `
		UPDATE policy_surrenders SET
			surrender_type = :surrender_type,
			status = :status,
			gsv_amount = :gsv_amount,
			ssv_amount = :ssv_amount,
			outstanding_loans = :outstanding_loans,
			processing_fee = :processing_fee,
			tax_deduction = :tax_deduction,
			surrender_amount = :surrender_amount,
			reason = :reason,
			remarks = :remarks,
			decided_at = :decided_at,
			processed_at = :processed_at,
			updated_at = :updated_at
		WHERE id = :id`, toSurrenderRow(s))
	if err != nil {
		return fmt.Errorf("policy_surrenders.update: %w", err)
	}
	return checkAffected("policy_surrenders.update", res, core.ErrSurrenderNotFound)
}

func (r surrenderRepo) ListByHolder(ctx context.Context, holderID string) ([]core.PolicySurrender, error) {
	var rows []surrenderRow
	err := r.q.SelectContext(ctx, &rows, `
		SELECT `+surrenderColumns+` FROM policy_surrenders
		WHERE policy_holder_id = $1
		ORDER BY requested_at, id`, holderID)
	if err != nil {
		return nil, fmt.Errorf("policy_surrenders.listByHolder: %w", err)
	}
	out := make([]core.PolicySurrender, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromSurrenderRow(row))
	}
	return out, nil
}

type renewalRow struct {
	ID                 string     `db:"id"`
	PolicyHolderID     string     `db:"policy_holder_id"`
	DueDate            time.Time  `db:"due_date"`
	GracePeriodEnd     time.Time  `db:"grace_period_end"`
	Status             string     `db:"status"`
	FirstReminderSent  *time.Time `db:"first_reminder_sent"`
	SecondReminderSent *time.Time `db:"second_reminder_sent"`
	FinalReminderSent  *time.Time `db:"final_reminder_sent"`
	RenewedAt          *time.Time `db:"renewed_at"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
}

const renewalColumns = `id, policy_holder_id, due_date, grace_period_end, status, first_reminder_sent,
	second_reminder_sent, final_reminder_sent, renewed_at, created_at, updated_at`

func toRenewalRow(rn core.PolicyRenewal) renewalRow {
	return renewalRow{
		ID:                 rn.ID,
		PolicyHolderID:     rn.PolicyHolderID,
		DueDate:            utc(rn.DueDate),
		GracePeriodEnd:     utc(rn.GracePeriodEnd),
		Status:             string(rn.Status),
		FirstReminderSent:  utcPtr(rn.FirstReminderSent),
		SecondReminderSent: utcPtr(rn.SecondReminderSent),
		FinalReminderSent:  utcPtr(rn.FinalReminderSent),
		RenewedAt:          utcPtr(rn.RenewedAt),
		CreatedAt:          utc(rn.CreatedAt),
		UpdatedAt:          utc(rn.UpdatedAt),
	}
}

func fromRenewalRow(r renewalRow) core.PolicyRenewal {
	return core.PolicyRenewal{
		ID:                 r.ID,
		PolicyHolderID:     r.PolicyHolderID,
		DueDate:            utc(r.DueDate),
		GracePeriodEnd:     utc(r.GracePeriodEnd),
		Status:             core.RenewalStatus(r.Status),
		FirstReminderSent:  utcPtr(r.FirstReminderSent),
		SecondReminderSent: utcPtr(r.SecondReminderSent),
		FinalReminderSent:  utcPtr(r.FinalReminderSent),
		RenewedAt:          utcPtr(r.RenewedAt),
		CreatedAt:          utc(r.CreatedAt),
		UpdatedAt:          utc(r.UpdatedAt),
	}
}

type renewalRepo struct{ q queryer }

func (r renewalRepo) Create(ctx context.Context, rn core.PolicyRenewal) error {
	_, err := r.q.NamedExecContext(ctx, `
		INSERT INTO policy_renewals (`+renewalColumns+`)
		VALUES (:id, :policy_holder_id, :due_date, :grace_period_end, :status, :first_reminder_sent,
			:second_reminder_sent, :final_reminder_sent, :renewed_at, :created_at, :updated_at)`, toRenewalRow(rn))
	if err != nil {
		return mapWriteErr("policy_renewals.insert", err, fmt.Errorf("%w: renewal %s exists", core.ErrConflict, rn.ID))
	}
	return nil
}

func (r renewalRepo) Get(ctx context.Context, id string) (core.PolicyRenewal, error) {
	var row renewalRow
	err := r.q.GetContext(ctx, &row, `SELECT `+renewalColumns+` FROM policy_renewals WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.PolicyRenewal{}, core.ErrRenewalNotFound
		}
		return core.PolicyRenewal{}, fmt.Errorf("policy_renewals.get: %w", err)
	}
	return fromRenewalRow(row), nil
}

func (r renewalRepo) Update(ctx context.Context, rn core.PolicyRenewal) error {
	res, err := r.q.NamedExecContext(ctx, `
		UPDATE policy_renewals SET
			due_date = :due_date,
			grace_period_end = :grace_period_end,
			status = :status,
			first_reminder_sent = :first_reminder_sent,
			second_reminder_sent = :second_reminder_sent,
			final_reminder_sent = :final_reminder_sent,
			renewed_at = :renewed_at,
			updated_at = :updated_at
		WHERE id = :id`, toRenewalRow(rn))
	if err != nil {
		return fmt.Errorf("policy_renewals.update: %w", err)
	}
	return checkAffected("policy_renewals.update", res, core.ErrRenewalNotFound)
}

func (r renewalRepo) ListByHolder(ctx context.Context, holderID string) ([]core.PolicyRenewal, error) {
	var rows []renewalRow
	err := r.q.SelectContext(ctx, &rows, `
		SELECT `+renewalColumns+` FROM policy_renewals
		WHERE policy_holder_id = $1
		ORDER BY due_date, id`, holderID)
	if err != nil {
		return nil, fmt.Errorf("policy_renewals.listByHolder: %w", err)
	}
	out := make([]core.PolicyRenewal, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRenewalRow(row))
	}
	return out, nil
}
