package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/MrKriegler/go-policyadmin/internal/platform/ids"
)

type LoanService interface {
	// MaxLoan sizes a loan against a freshly computed GSV.
	MaxLoan(ctx context.Context, holderID string) (LoanQuote, error)
	CreateLoan(ctx context.Context, holderID string, amount decimal.Decimal) (Loan, error)
	GetLoan(ctx context.Context, loanID string) (LoanView, error)
	// AccrueInterest is safe to call any number of times a day.
	AccrueInterest(ctx context.Context, loanID string) (Loan, error)
	// RepayLoan applies a repayment once; replaying the same repayment ID returns the original.
	RepayLoan(ctx context.Context, loanID string, in RepaymentInput) (RepaymentResult, error)
}

type LoanQuote struct {
	GSV         decimal.Decimal `json:"gsv"`
	MaxAllowed  decimal.Decimal `json:"max_allowed"` // loan-to-value share of GSV
	Outstanding decimal.Decimal `json:"outstanding"` // owed on active loans
	Available   decimal.Decimal `json:"available"`
}

type LoanView struct {
	Loan       Loan            `json:"loan"`
	Repayments []LoanRepayment `json:"repayments"`
}

type RepaymentInput struct {
	ID     string          `json:"id,omitempty"` // idempotency key; generated when empty
	Amount decimal.Decimal `json:"amount"`
	Type   RepaymentType   `json:"repayment_type"`
}

type RepaymentResult struct {
	Repayment LoanRepayment `json:"repayment"`
	Loan      Loan          `json:"loan"`
	Replayed  bool          `json:"replayed"`
}

func (s *Lifecycle) MaxLoan(ctx context.Context, holderID string) (LoanQuote, error) {
	var q LoanQuote
	err := s.inPolicyTx(ctx, holderID, lockWait, func(ctx context.Context, pc *policyTx) error {
		var err error
		q, err = s.quoteLoan(ctx, pc)
		return err
	})
	return q, err
}

func (s *Lifecycle) quoteLoan(ctx context.Context, pc *policyTx) (LoanQuote, error) {
	if pc.holder.Status == PolicyStatusSurrendered {
		return LoanQuote{}, ErrPolicySurrendered
	}
	pay, err := pc.Payments().Current(ctx, pc.holder.ID)
	if errors.Is(err, ErrNotFound) {
		return LoanQuote{}, fmt.Errorf("%w: policy has no premium payment record", ErrValidation)
	}
	if err != nil {
		return LoanQuote{}, err
	}

	values, err := s.value(ctx, pc, &pay)
	if err != nil {
		return LoanQuote{}, err
	}
	pay.UpdatedAt = pc.now
	if err := pc.Payments().Update(ctx, pay); err != nil {
		return LoanQuote{}, err
	}

	outstanding, err := s.outstandingLoans(ctx, pc, false)
	if err != nil {
		return LoanQuote{}, err
	}
	maxAllowed := MaxLoan(values.GSV, s.terms)
	return LoanQuote{
		GSV:         values.GSV,
		MaxAllowed:  maxAllowed,
		Outstanding: outstanding,
		Available:   maxZero(maxAllowed.Sub(outstanding)),
	}, nil
}

func (s *Lifecycle) CreateLoan(ctx context.Context, holderID string, amount decimal.Decimal) (Loan, error) {
	var loan Loan
	err := s.inPolicyTx(ctx, holderID, lockWait, func(ctx context.Context, pc *policyTx) error {
		// 1) Size against current GSV
		q, err := s.quoteLoan(ctx, pc)
		if err != nil {
			return err
		}
		if pc.holder.Status != PolicyStatusActive {
			return fmt.Errorf("%w: loans require an active policy (%s)", ErrValidation, pc.holder.Status)
		}
		if err := ValidateLoanRequest(amount, q.Available); err != nil {
			return err
		}

		// 2) Create
		loan = NewLoan(ids.New(), holderID, amount, s.terms.LoanInterestRate, pc.today, pc.now)
		return pc.Loans().Create(ctx, loan)
	})
	if err != nil {
		return Loan{}, err
	}

	s.log.Info("policy loan created",
		"policy_holder_id", holderID,
		"loan_id", loan.ID,
		"amount", loan.LoanAmount.StringFixed(2),
	)
	return loan, nil
}

func (s *Lifecycle) GetLoan(ctx context.Context, loanID string) (LoanView, error) {
	if loanID == "" {
		return LoanView{}, fmt.Errorf("%w: missing loan ID", ErrValidation)
	}
	var view LoanView
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		loan, err := tx.Loans().Get(ctx, loanID)
		if err != nil {
			return err
		}
		reps, err := tx.Loans().ListRepayments(ctx, loanID)
		if err != nil {
			return err
		}
		if reps == nil {
			reps = []LoanRepayment{}
		}
		view = LoanView{Loan: loan, Repayments: reps}
		return nil
	})
	return view, err
}

func (s *Lifecycle) loanOwner(ctx context.Context, loanID string) (string, error) {
	if loanID == "" {
		return "", fmt.Errorf("%w: missing loan ID", ErrValidation)
	}
	return s.ownerOf(ctx, func(ctx context.Context, tx Tx) (string, error) {
		l, err := tx.Loans().Get(ctx, loanID)
		return l.PolicyHolderID, err
	})
}

func (s *Lifecycle) AccrueInterest(ctx context.Context, loanID string) (Loan, error) {
	holderID, err := s.loanOwner(ctx, loanID)
	if err != nil {
		return Loan{}, err
	}
	var loan Loan
	err = s.inPolicyTx(ctx, holderID, lockWait, func(ctx context.Context, pc *policyTx) error {
		var err error
		loan, err = pc.Loans().Get(ctx, loanID)
		if err != nil {
			return err
		}
		if loan.AccrueInterest(pc.today).IsZero() {
			return nil
		}
		loan.UpdatedAt = pc.now
		return pc.Loans().Update(ctx, loan)
	})
	return loan, err
}

// accrueAll accrues interest on every active loan of the holder.
func (s *Lifecycle) accrueAll(ctx context.Context, pc *policyTx) (bool, error) {
	loans, err := pc.Loans().ListByHolder(ctx, pc.holder.ID)
	if err != nil {
		return false, err
	}
	changed := false
	for _, l := range loans {
		if l.AccrueInterest(pc.today).IsZero() {
			continue
		}
		l.UpdatedAt = pc.now
		if err := pc.Loans().Update(ctx, l); err != nil {
			return changed, err
		}
		changed = true
	}
	return changed, nil
}

func (s *Lifecycle) RepayLoan(ctx context.Context, loanID string, in RepaymentInput) (RepaymentResult, error) {
	holderID, err := s.loanOwner(ctx, loanID)
	if err != nil {
		return RepaymentResult{}, err
	}
	var res RepaymentResult
	err = s.inPolicyTx(ctx, holderID, lockWait, func(ctx context.Context, pc *policyTx) error {
		// 1) Replays return the recorded entry untouched
		if in.ID != "" {
			prev, err := pc.Loans().GetRepayment(ctx, in.ID)
			if err == nil {
				if prev.LoanID != loanID {
					return fmt.Errorf("%w: repayment %s belongs to another loan", ErrConflict, in.ID)
				}
				loan, err := pc.Loans().Get(ctx, loanID)
				res = RepaymentResult{Repayment: prev, Loan: loan, Replayed: true}
				return err
			}
			if !errors.Is(err, ErrNotFound) {
				return err
			}
		}

		// 2) Lockout
		if pc.holder.Status == PolicyStatusSurrendered {
			return ErrPolicySurrendered
		}

		// 3) Interest up to today, then apply
		loan, err := pc.Loans().Get(ctx, loanID)
		if err != nil {
			return err
		}
		loan.AccrueInterest(pc.today)
		r := LoanRepayment{ID: in.ID, Amount: in.Amount, Type: in.Type, CreatedAt: pc.now}
		if r.ID == "" {
			r.ID = ids.New()
		}
		if err := loan.ApplyRepayment(&r); err != nil {
			return err
		}
		loan.UpdatedAt = pc.now

		// 4) Persist loan and ledger entry together
		if err := pc.Loans().Update(ctx, loan); err != nil {
			return err
		}
		if err := pc.Loans().AddRepayment(ctx, r); err != nil {
			return err
		}
		res = RepaymentResult{Repayment: r, Loan: loan}
		return nil
	})
	if err != nil {
		return RepaymentResult{}, err
	}
	if !res.Replayed {
		s.log.Info("loan repayment applied",
			"loan_id", loanID,
			"repayment_id", res.Repayment.ID,
			"interest_paid", res.Repayment.InterestPaid.StringFixed(2),
			"principal_paid", res.Repayment.PrincipalPaid.StringFixed(2),
			"remaining_balance", res.Repayment.RemainingLoanBalance.StringFixed(2),
		)
	}
	return res, nil
}
