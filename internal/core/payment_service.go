package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentService interface {
	// AddPayment applies a premium payment to the holder's current ledger.
	AddPayment(ctx context.Context, holderID string, amount decimal.Decimal) (PaymentResult, error)

	// Fine reports the late fine as of today without changing the ledger.
	Fine(ctx context.Context, holderID string) (FineView, error)

	// SurrenderValues recomputes GSV and SSV and refreshes the cached copy.
	SurrenderValues(ctx context.Context, holderID string) (SurrenderValues, error)
}

type PaymentResult struct {
	Receipt    PaymentReceipt  `json:"receipt"`
	Payment    PremiumPayment  `json:"premium_payment"`
	Values     SurrenderValues `json:"surrender_values"`
	Commission decimal.Decimal `json:"commission,omitempty"`
}

type FineView struct {
	NextPaymentDate *time.Time      `json:"next_payment_date,omitempty"`
	DaysLate        int             `json:"days_late"`
	CurrentFine     decimal.Decimal `json:"current_fine"` // fine on the period now overdue
	FineDue         decimal.Decimal `json:"fine_due"`
	FinePaid        decimal.Decimal `json:"fine_paid"`
	Outstanding     decimal.Decimal `json:"outstanding"`
}

func (s *Lifecycle) AddPayment(ctx context.Context, holderID string, amount decimal.Decimal) (PaymentResult, error) {
	var res PaymentResult
	err := s.inPolicyTx(ctx, holderID, lockWait, func(ctx context.Context, pc *policyTx) error {
		// 1) Load ledger
		pay, err := pc.Payments().Current(ctx, holderID)
		if err != nil {
			return err
		}

		// 2) Apply
		receipt, err := pay.AddPayment(amount, pc.holder.Status, pc.today, s.terms)
		if err != nil {
			return err
		}
		pay.UpdatedAt = pc.now
		if receipt.FineCarried.IsPositive() {
			s.log.Info("fine carried to next period",
				"policy_holder_id", holderID,
				"fine", receipt.FineCarried.StringFixed(2),
			)
		}

		// 3) Refresh surrender values before saving
		values, err := s.value(ctx, pc, &pay)
		if err != nil {
			return err
		}
		if err := pc.Payments().Update(ctx, pay); err != nil {
			return err
		}

		// 4) Agent commission on the premium portion
		commission := decimal.Zero
		if pc.holder.AgentID != "" && receipt.Principal.IsPositive() {
			commission, err = s.recordCommission(ctx, pc, receipt)
			if err != nil {
				return err
			}
		}

		pc.emit(EventPaymentAccepted, map[string]any{
			"amount":            receipt.Amount.StringFixed(2),
			"principal":         receipt.Principal.StringFixed(2),
			"fine_payment":      receipt.FinePayment.StringFixed(2),
			"payment_status":    pay.Status,
			"next_payment_date": pay.NextPaymentDate,
		})
		res = PaymentResult{Receipt: receipt, Payment: pay, Values: values, Commission: commission}
		return nil
	})
	if err != nil {
		return PaymentResult{}, err
	}

	s.log.Info("premium payment accepted",
		"policy_holder_id", holderID,
		"amount", res.Receipt.Amount.StringFixed(2),
		"total_paid", res.Payment.TotalPaid.StringFixed(2),
		"payment_status", res.Payment.Status,
	)
	return res, nil
}

func (s *Lifecycle) recordCommission(ctx context.Context, pc *policyTx, receipt PaymentReceipt) (decimal.Decimal, error) {
	agent, err := pc.Agents().Get(ctx, pc.holder.AgentID)
	if errors.Is(err, ErrNotFound) {
		s.log.Warn("agent missing, no commission recorded",
			"policy_holder_id", pc.holder.ID,
			"agent_id", pc.holder.AgentID,
		)
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	report, err := pc.Agents().GetReport(ctx, agent.ID, pc.today)
	if err != nil {
		return decimal.Zero, err
	}
	commission := report.Record(receipt.Principal, agent.CommissionRate, receipt.FirstPayment)
	if err := pc.Agents().SaveReport(ctx, report); err != nil {
		return decimal.Zero, err
	}
	return commission, nil
}

func (s *Lifecycle) Fine(ctx context.Context, holderID string) (FineView, error) {
	var view FineView
	err := s.inPolicyTx(ctx, holderID, lockWait, func(ctx context.Context, pc *policyTx) error {
		pay, err := pc.Payments().Current(ctx, holderID)
		if err != nil {
			return err
		}
		view.NextPaymentDate = pay.NextPaymentDate
		if pay.NextPaymentDate != nil {
			view.DaysLate = max(0, DaysBetween(*pay.NextPaymentDate, pc.today))
		}
		view.CurrentFine = CalculateFine(pay.NextPaymentDate, pay.IntervalPayment, pc.today, s.terms)
		view.Outstanding = pay.AssessFine(pc.today, s.terms)
		view.FineDue = pay.FineDue
		view.FinePaid = pay.FinePaid
		return nil
	})
	return view, err
}

func (s *Lifecycle) SurrenderValues(ctx context.Context, holderID string) (SurrenderValues, error) {
	var values SurrenderValues
	err := s.inPolicyTx(ctx, holderID, lockWait, func(ctx context.Context, pc *policyTx) error {
		pay, err := pc.Payments().Current(ctx, holderID)
		if err != nil {
			return err
		}
		values, err = s.value(ctx, pc, &pay)
		if err != nil {
			return err
		}
		pay.UpdatedAt = pc.now
		return pc.Payments().Update(ctx, pay)
	})
	return values, err
}

// applyFine brings the holder's fine up to date; it reports whether it changed.
func (s *Lifecycle) applyFine(ctx context.Context, pc *policyTx) (bool, error) {
	if pc.holder.Status != PolicyStatusActive {
		return false, nil
	}
	pay, err := pc.Payments().Current(ctx, pc.holder.ID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	before := pay.FineDue
	pay.AssessFine(pc.today, s.terms)
	if pay.FineDue.Equal(before) {
		return false, nil
	}
	pay.UpdatedAt = pc.now
	if err := pc.Payments().Update(ctx, pay); err != nil {
		return false, fmt.Errorf("save fine: %w", err)
	}
	return true, nil
}
