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

type loanRow struct {
	ID               string          `db:"id"`
	PolicyHolderID   string          `db:"policy_holder_id"`
	LoanAmount       decimal.Decimal `db:"loan_amount"`
	InterestRate     decimal.Decimal `db:"interest_rate"`
	RemainingBalance decimal.Decimal `db:"remaining_balance"`
	AccruedInterest  decimal.Decimal `db:"accrued_interest"`
	Status           string          `db:"status"`
	LastInterestDate time.Time       `db:"last_interest_date"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

const loanColumns = `id, policy_holder_id, loan_amount, interest_rate, remaining_balance,
	accrued_interest, status, last_interest_date, created_at, updated_at`

func toLoanRow(l core.Loan) loanRow {
	return loanRow{
		ID:               l.ID,
		PolicyHolderID:   l.PolicyHolderID,
		LoanAmount:       l.LoanAmount,
		InterestRate:     l.InterestRate,
		RemainingBalance: l.RemainingBalance,
		AccruedInterest:  l.AccruedInterest,
		Status:           string(l.Status),
		LastInterestDate: utc(l.LastInterestDate),
		CreatedAt:        utc(l.CreatedAt),
		UpdatedAt:        utc(l.UpdatedAt),
	}
}

func fromLoanRow(r loanRow) core.Loan {
	return core.Loan{
		ID:               r.ID,
		PolicyHolderID:   r.PolicyHolderID,
		LoanAmount:       r.LoanAmount,
		InterestRate:     r.InterestRate,
		RemainingBalance: r.RemainingBalance,
		AccruedInterest:  r.AccruedInterest,
		Status:           core.LoanStatus(r.Status),
		LastInterestDate: utc(r.LastInterestDate),
		CreatedAt:        utc(r.CreatedAt),
		UpdatedAt:        utc(r.UpdatedAt),
	}
}

type repaymentRow struct {
	ID                   string          `db:"id"`
	LoanID               string          `db:"loan_id"`
	PolicyHolderID       string          `db:"policy_holder_id"`
	Amount               decimal.Decimal `db:"amount"`
	Type                 string          `db:"repayment_type"`
	InterestPaid         decimal.Decimal `db:"interest_paid"`
	PrincipalPaid        decimal.Decimal `db:"principal_paid"`
	RemainingLoanBalance decimal.Decimal `db:"remaining_loan_balance"`
	Settlement           bool            `db:"settlement"`
	CreatedAt            time.Time       `db:"created_at"`
}

const repaymentColumns = `id, loan_id, policy_holder_id, amount, repayment_type, interest_paid,
	principal_paid, remaining_loan_balance, settlement, created_at`

func fromRepaymentRow(r repaymentRow) core.LoanRepayment {
	return core.LoanRepayment{
		ID:                   r.ID,
		LoanID:               r.LoanID,
		PolicyHolderID:       r.PolicyHolderID,
		Amount:               r.Amount,
		Type:                 core.RepaymentType(r.Type),
		InterestPaid:         r.InterestPaid,
		PrincipalPaid:        r.PrincipalPaid,
		RemainingLoanBalance: r.RemainingLoanBalance,
		Settlement:           r.Settlement,
		CreatedAt:            utc(r.CreatedAt),
	}
}

type loanRepo struct{ q queryer }

func (r loanRepo) Create(ctx context.Context, l core.Loan) error {
	_, err := r.q.NamedExecContext(ctx, `
		INSERT INTO loans (`+loanColumns+`)
		VALUES (:id, :policy_holder_id, :loan_amount, :interest_rate, :remaining_balance,
			:accrued_interest, :status, :last_interest_date, :created_at, :updated_at)`, toLoanRow(l))
	if err != nil {
		return mapWriteErr("loans.insert", err, fmt.Errorf("%w: loan %s exists", core.ErrConflict, l.ID))
	}
	return nil
}

func (r loanRepo) Get(ctx context.Context, id string) (core.Loan, error) {
	var row loanRow
	err := r.q.GetContext(ctx, &row, `SELECT `+loanColumns+` FROM loans WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Loan{}, core.ErrLoanNotFound
		}
		return core.Loan{}, fmt.Errorf("loans.get: %w", err)
	}
	return fromLoanRow(row), nil
}

func (r loanRepo) Update(ctx context.Context, l core.Loan) error {
	res, err := r.q.NamedExecContext(ctx, `
		UPDATE loans SET
			remaining_balance = :remaining_balance,
			accrued_interest = :accrued_interest,
			interest_rate = :interest_rate,
			status = :status,
			last_interest_date = :last_interest_date,
			updated_at = :updated_at
		WHERE id = :id`, toLoanRow(l))
	if err != nil {
		return fmt.Errorf("loans.update: %w", err)
	}
	return checkAffected("loans.update", res, core.ErrLoanNotFound)
}

func (r loanRepo) ListByHolder(ctx context.Context, holderID string) ([]core.Loan, error) {
	var rows []loanRow
	err := r.q.SelectContext(ctx, &rows, `
		SELECT `+loanColumns+` FROM loans
		WHERE policy_holder_id = $1
		ORDER BY created_at, id`, holderID)
	if err != nil {
		return nil, fmt.Errorf("loans.listByHolder: %w", err)
	}
	out := make([]core.Loan, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromLoanRow(row))
	}
	return out, nil
}

func (r loanRepo) GetRepayment(ctx context.Context, id string) (core.LoanRepayment, error) {
	var row repaymentRow
	err := r.q.GetContext(ctx, &row, `SELECT `+repaymentColumns+` FROM loan_repayments WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.LoanRepayment{}, core.ErrRepaymentNotFound
		}
		return core.LoanRepayment{}, fmt.Errorf("loan_repayments.get: %w", err)
	}
	return fromRepaymentRow(row), nil
}

func (r loanRepo) AddRepayment(ctx context.Context, rep core.LoanRepayment) error {
	_, err := r.q.NamedExecContext(ctx, `
		INSERT INTO loan_repayments (`+repaymentColumns+`)
		VALUES (:id, :loan_id, :policy_holder_id, :amount, :repayment_type, :interest_paid,
			:principal_paid, :remaining_loan_balance, :settlement, :created_at)`,
		repaymentRow{
			ID:                   rep.ID,
			LoanID:               rep.LoanID,
			PolicyHolderID:       rep.PolicyHolderID,
			Amount:               rep.Amount,
			Type:                 string(rep.Type),
			InterestPaid:         rep.InterestPaid,
			PrincipalPaid:        rep.PrincipalPaid,
			RemainingLoanBalance: rep.RemainingLoanBalance,
			Settlement:           rep.Settlement,
			CreatedAt:            utc(rep.CreatedAt),
		})
	if err != nil {
		return mapWriteErr("loan_repayments.insert", err, core.ErrRepaymentExists)
	}
	return nil
}

func (r loanRepo) ListRepayments(ctx context.Context, loanID string) ([]core.LoanRepayment, error) {
	var rows []repaymentRow
	err := r.q.SelectContext(ctx, &rows, `
		SELECT `+repaymentColumns+` FROM loan_repayments
		WHERE loan_id = $1
		ORDER BY seq`, loanID)
	if err != nil {
		return nil, fmt.Errorf("loan_repayments.list: %w", err)
	}
	out := make([]core.LoanRepayment, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRepaymentRow(row))
	}
	return out, nil
}
