package core

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type LoanStatus string

const (
	LoanActive LoanStatus = "Active"
	LoanPaid   LoanStatus = "Paid"
)

type RepaymentType string

const (
	RepayPrincipal RepaymentType = "Principal"
	RepayInterest  RepaymentType = "Interest"
	RepayBoth      RepaymentType = "Both"
)

func (t RepaymentType) Valid() bool {
	return t == RepayPrincipal || t == RepayInterest || t == RepayBoth
}

// Loan is a policy loan secured on the surrender value.
type Loan struct {
	ID               string          `json:"id"`
	PolicyHolderID   string          `json:"policy_holder_id"`
	LoanAmount       decimal.Decimal `json:"loan_amount"`
	InterestRate     decimal.Decimal `json:"interest_rate"` // annual %
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	AccruedInterest  decimal.Decimal `json:"accrued_interest"`
	Status           LoanStatus      `json:"loan_status"`
	LastInterestDate time.Time       `json:"last_interest_date"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// LoanRepayment is an append-only ledger entry. RemainingLoanBalance is the
// balance right after this repayment was applied.
type LoanRepayment struct {
	ID                   string          `json:"id"`
	LoanID               string          `json:"loan_id"`
	PolicyHolderID       string          `json:"policy_holder_id"`
	Amount               decimal.Decimal `json:"amount"`
	Type                 RepaymentType   `json:"repayment_type"`
	InterestPaid         decimal.Decimal `json:"interest_paid"`
	PrincipalPaid        decimal.Decimal `json:"principal_paid"`
	RemainingLoanBalance decimal.Decimal `json:"remaining_loan_balance"`
	Settlement           bool            `json:"settlement,omitempty"` // deducted from a surrender payout
	CreatedAt            time.Time       `json:"created_at"`
}

// MaxLoan is the loan-to-value share of the current GSV, truncated to the
// cent so the cap never exceeds the share.
func MaxLoan(gsv decimal.Decimal, t Terms) decimal.Decimal {
	return gsv.Mul(t.LoanToValue).RoundDown(2)
}

// ValidateLoanRequest accepts amounts in (0, maxAllowed].
func ValidateLoanRequest(requested, maxAllowed decimal.Decimal) error {
	if !requested.IsPositive() {
		return fmt.Errorf("%w: loan amount must be positive", ErrValidation)
	}
	if requested.GreaterThan(maxAllowed) {
		return fmt.Errorf("%w: loan amount %s exceeds the maximum of %s",
			ErrValidation, requested.StringFixed(2), maxAllowed.StringFixed(2))
	}
	return nil
}

func NewLoan(id, holderID string, amount, rate decimal.Decimal, today, now time.Time) Loan {
	return Loan{
		ID:               id,
		PolicyHolderID:   holderID,
		LoanAmount:       amount,
		InterestRate:     rate,
		RemainingBalance: amount,
		AccruedInterest:  decimal.Zero,
		Status:           LoanActive,
		LastInterestDate: DateOf(today),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Outstanding is principal plus unpaid interest.
func (l Loan) Outstanding() decimal.Decimal {
	return l.RemainingBalance.Add(l.AccruedInterest)
}

// AccrueInterest adds simple daily interest since the last accrual and stamps
// today. A second call on the same day adds nothing.
func (l *Loan) AccrueInterest(today time.Time) decimal.Decimal {
	today = DateOf(today)
	if l.Status != LoanActive {
		return decimal.Zero
	}
	days := DaysBetween(l.LastInterestDate, today)
	if days <= 0 {
		return decimal.Zero
	}
	interest := RoundMoney(l.RemainingBalance.
		Mul(l.InterestRate).Div(hundred).
		Div(decimal.NewFromInt(365)).
		Mul(decimal.NewFromInt(int64(days))))
	l.AccruedInterest = l.AccruedInterest.Add(interest)
	l.LastInterestDate = today
	l.UpdatedAt = today
	return interest
}

// ApplyRepayment splits r across interest then principal according to its
// type and fills in the split and the balance snapshot. Amounts the type
// cannot absorb are rejected rather than silently dropped.
func (l *Loan) ApplyRepayment(r *LoanRepayment) error {
	if l.Status != LoanActive {
		return fmt.Errorf("%w: loan %s is already paid", ErrInvalidState, l.ID)
	}
	if !r.Type.Valid() {
		return fmt.Errorf("%w: unknown repayment type %q", ErrValidation, r.Type)
	}
	if !r.Amount.IsPositive() {
		return fmt.Errorf("%w: repayment amount must be positive", ErrValidation)
	}

	var limit decimal.Decimal
	switch r.Type {
	case RepayInterest:
		limit = l.AccruedInterest
	case RepayPrincipal:
		limit = l.RemainingBalance
	default:
		limit = l.Outstanding()
	}
	if r.Amount.GreaterThan(limit) {
		return fmt.Errorf("%w: repayment %s exceeds the %s owed (%s)",
			ErrValidation, r.Amount.StringFixed(2), r.Type, limit.StringFixed(2))
	}

	left := r.Amount
	r.InterestPaid, r.PrincipalPaid = decimal.Zero, decimal.Zero
	if r.Type == RepayInterest || r.Type == RepayBoth {
		r.InterestPaid = decimal.Min(left, l.AccruedInterest)
		l.AccruedInterest = l.AccruedInterest.Sub(r.InterestPaid)
		left = left.Sub(r.InterestPaid)
	}
	if r.Type == RepayPrincipal || r.Type == RepayBoth {
		r.PrincipalPaid = decimal.Min(left, l.RemainingBalance)
		l.RemainingBalance = l.RemainingBalance.Sub(r.PrincipalPaid)
	}

	if l.RemainingBalance.IsZero() && l.AccruedInterest.IsZero() {
		l.Status = LoanPaid
	}
	r.LoanID = l.ID
	r.PolicyHolderID = l.PolicyHolderID
	r.RemainingLoanBalance = l.RemainingBalance
	return nil
}

// Settle closes the loan against a surrender payout and returns the ledger entry.
func (l *Loan) Settle(id string, now time.Time) (LoanRepayment, error) {
	r := LoanRepayment{ID: id, Amount: l.Outstanding(), Type: RepayBoth, Settlement: true, CreatedAt: now}
	if !r.Amount.IsPositive() {
		l.Status = LoanPaid
		r.LoanID, r.PolicyHolderID = l.ID, l.PolicyHolderID
		return r, nil
	}
	if err := l.ApplyRepayment(&r); err != nil {
		return LoanRepayment{}, err
	}
	l.UpdatedAt = now
	return r, nil
}

type LoanRepo interface {
	Create(ctx context.Context, l Loan) error
	Get(ctx context.Context, id string) (Loan, error)
	Update(ctx context.Context, l Loan) error
	ListByHolder(ctx context.Context, policyHolderID string) ([]Loan, error)

	GetRepayment(ctx context.Context, id string) (LoanRepayment, error)
	AddRepayment(ctx context.Context, r LoanRepayment) error
	ListRepayments(ctx context.Context, loanID string) ([]LoanRepayment, error)
}

var (
	ErrLoanNotFound      = fmt.Errorf("%w: loan not found", ErrNotFound)
	ErrRepaymentNotFound = fmt.Errorf("%w: loan repayment not found", ErrNotFound)
	ErrRepaymentExists   = fmt.Errorf("%w: loan repayment already recorded", ErrConflict)
)
