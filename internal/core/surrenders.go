package core

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type SurrenderType string

const (
	SurrenderVoluntary SurrenderType = "Voluntary"
	SurrenderAutomatic SurrenderType = "Automatic"
	SurrenderMaturity  SurrenderType = "Maturity"
)

// AutoApproved reports whether surrenders of this type skip manual approval.
func (t SurrenderType) AutoApproved() bool {
	return t == SurrenderAutomatic || t == SurrenderMaturity
}

type SurrenderStatus string

const (
	SurrenderPending   SurrenderStatus = "Pending"
	SurrenderApproved  SurrenderStatus = "Approved"
	SurrenderRejected  SurrenderStatus = "Rejected"
	SurrenderProcessed SurrenderStatus = "Processed"
)

// CanTransitionTo checks if a surrender status transition is valid.
// Rejected and Processed are terminal.
func (s SurrenderStatus) CanTransitionTo(next SurrenderStatus) bool {
	transitions := map[SurrenderStatus][]SurrenderStatus{
		SurrenderPending:  {SurrenderApproved, SurrenderRejected},
		SurrenderApproved: {SurrenderProcessed},
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PolicySurrender is a request to pay out and close a policy.
type PolicySurrender struct {
	ID               string          `json:"id"`
	PolicyHolderID   string          `json:"policy_holder_id"`
	Type             SurrenderType   `json:"surrender_type"`
	Status           SurrenderStatus `json:"status"`
	GSVAmount        decimal.Decimal `json:"gsv_amount"`
	SSVAmount        decimal.Decimal `json:"ssv_amount"`
	OutstandingLoans decimal.Decimal `json:"outstanding_loans"`
	ProcessingFee    decimal.Decimal `json:"processing_fee"`
	TaxDeduction     decimal.Decimal `json:"tax_deduction"`
	SurrenderAmount  decimal.Decimal `json:"surrender_amount"`
	Reason           string          `json:"reason,omitempty"`
	Remarks          string          `json:"remarks,omitempty"`
	RequestedAt      time.Time       `json:"requested_at"`
	DecidedAt        *time.Time      `json:"decided_at,omitempty"`
	ProcessedAt      *time.Time      `json:"processed_at,omitempty"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// SurrenderAmount is max(max(gsv, ssv) - loans - fee - tax, 0).
func SurrenderAmount(gsv, ssv, loans, fee, tax decimal.Decimal) decimal.Decimal {
	return maxZero(decimal.Max(gsv, ssv).Sub(loans).Sub(fee).Sub(tax))
}

// Price snapshots values and deductions. Tax is charged on the gross value.
func (s *PolicySurrender) Price(v SurrenderValues, loans decimal.Decimal, t Terms) {
	s.GSVAmount = v.GSV
	s.SSVAmount = v.SSV
	s.OutstandingLoans = RoundMoney(loans)
	s.ProcessingFee = t.SurrenderFee
	s.TaxDeduction = RoundMoney(PercentOf(v.Best(), t.SurrenderTaxPercent))
	s.SurrenderAmount = SurrenderAmount(s.GSVAmount, s.SSVAmount, s.OutstandingLoans, s.ProcessingFee, s.TaxDeduction)
}

// TransitionTo moves the surrender to next or fails with ErrInvalidState.
func (s *PolicySurrender) TransitionTo(next SurrenderStatus, now time.Time) error {
	if !s.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: surrender %s cannot move from %s to %s", ErrInvalidState, s.ID, s.Status, next)
	}
	s.Status = next
	switch next {
	case SurrenderApproved, SurrenderRejected:
		s.DecidedAt = &now
	case SurrenderProcessed:
		s.ProcessedAt = &now
	}
	s.UpdatedAt = now
	return nil
}

func (s PolicySurrender) Open() bool {
	return s.Status == SurrenderPending || s.Status == SurrenderApproved
}

type SurrenderRepo interface {
	Create(ctx context.Context, s PolicySurrender) error
	Get(ctx context.Context, id string) (PolicySurrender, error)
	Update(ctx context.Context, s PolicySurrender) error
	ListByHolder(ctx context.Context, policyHolderID string) ([]PolicySurrender, error)
}

var ErrSurrenderNotFound = fmt.Errorf("%w: surrender not found", ErrNotFound)
