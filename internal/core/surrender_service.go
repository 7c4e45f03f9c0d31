package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/MrKriegler/go-policyadmin/internal/platform/ids"
)

type SurrenderService interface {
	// RequestSurrender opens a Voluntary surrender awaiting approval.
	RequestSurrender(ctx context.Context, holderID, reason string) (PolicySurrender, error)
	GetSurrender(ctx context.Context, id string) (PolicySurrender, error)
	ApproveSurrender(ctx context.Context, id, remarks string) (PolicySurrender, error)
	RejectSurrender(ctx context.Context, id, remarks string) (PolicySurrender, error)
	// ProcessSurrenderPayment pays out an Approved surrender, settling loans first.
	ProcessSurrenderPayment(ctx context.Context, id string) (PolicySurrender, error)
}

func (s *Lifecycle) RequestSurrender(ctx context.Context, holderID, reason string) (PolicySurrender, error) {
	var sur PolicySurrender
	err := s.inPolicyTx(ctx, holderID, lockWait, func(ctx context.Context, pc *policyTx) error {
		switch pc.holder.Status {
		case PolicyStatusSurrendered:
			return ErrPolicySurrendered
		case PolicyStatusPending:
			return fmt.Errorf("%w: policy %s has not been issued", ErrInvalidState, holderID)
		}
		var err error
		sur, err = s.openSurrender(ctx, pc, SurrenderVoluntary, reason)
		return err
	})
	if err != nil {
		return PolicySurrender{}, err
	}

	s.log.Info("surrender requested",
		"policy_holder_id", holderID,
		"surrender_id", sur.ID,
		"surrender_amount", sur.SurrenderAmount.StringFixed(2),
	)
	return sur, nil
}

// openSurrender prices and records a surrender of the given type. Automatic
// and maturity surrenders are approved on the spot and supersede a pending
// voluntary request; a second open surrender of the same kind is not created.
func (s *Lifecycle) openSurrender(ctx context.Context, pc *policyTx, typ SurrenderType, reason string) (PolicySurrender, error) {
	// 1) At most one open surrender per holder
	existing, err := pc.Surrenders().ListByHolder(ctx, pc.holder.ID)
	if err != nil {
		return PolicySurrender{}, err
	}
	var superseded []PolicySurrender
	for _, e := range existing {
		if !e.Open() {
			continue
		}
		switch {
		case e.Type == typ && typ.AutoApproved():
			return e, nil
		case e.Type == SurrenderVoluntary && e.Status == SurrenderPending && typ.AutoApproved():
			superseded = append(superseded, e)
		default:
			return PolicySurrender{}, fmt.Errorf("%w: policy already has an open %s surrender (%s)", ErrConflict, e.Type, e.ID)
		}
	}

	// 2) Fresh values and loan balances
	values := SurrenderValues{GSV: decimal.Zero, SSV: decimal.Zero}
	pay, err := pc.Payments().Current(ctx, pc.holder.ID)
	switch {
	case err == nil:
		if values, err = s.value(ctx, pc, &pay); err != nil {
			return PolicySurrender{}, err
		}
		pay.UpdatedAt = pc.now
		if err := pc.Payments().Update(ctx, pay); err != nil {
			return PolicySurrender{}, err
		}
	case !errors.Is(err, ErrNotFound):
		return PolicySurrender{}, err
	}
	loans, err := s.outstandingLoans(ctx, pc, true)
	if err != nil {
		return PolicySurrender{}, err
	}

	// 3) Price and record
	sur := PolicySurrender{
		ID:             ids.New(),
		PolicyHolderID: pc.holder.ID,
		Type:           typ,
		Status:         SurrenderPending,
		Reason:         reason,
		RequestedAt:    pc.now,
		UpdatedAt:      pc.now,
	}
	sur.Price(values, loans, s.terms)

	if typ.AutoApproved() {
		for _, old := range superseded {
			if err := old.TransitionTo(SurrenderRejected, pc.now); err != nil {
				return PolicySurrender{}, err
			}
			old.Remarks = fmt.Sprintf("superseded by %s surrender %s", typ, sur.ID)
			if err := pc.Surrenders().Update(ctx, old); err != nil {
				return PolicySurrender{}, err
			}
		}
		if err := sur.TransitionTo(SurrenderApproved, pc.now); err != nil {
			return PolicySurrender{}, err
		}
		if err := s.onApproved(pc, sur); err != nil {
			return PolicySurrender{}, err
		}
	}
	if err := pc.Surrenders().Create(ctx, sur); err != nil {
		return PolicySurrender{}, err
	}
	return sur, nil
}

// onApproved moves the holder once a surrender is approved: a lapse, or a
// maturity after an unrenewed term expired, leaves the policy Expired until
// the payout is processed; anything else ends it.
func (s *Lifecycle) onApproved(pc *policyTx, sur PolicySurrender) error {
	next := PolicyStatusSurrendered
	switch {
	case sur.Type == SurrenderAutomatic:
		next = PolicyStatusExpired
	case sur.Type == SurrenderMaturity && pc.holder.Status == PolicyStatusExpired:
		return nil
	}
	if pc.holder.Status == next || !pc.holder.Status.CanTransitionTo(next) {
		return nil
	}
	return pc.setStatus(next)
}

func (s *Lifecycle) GetSurrender(ctx context.Context, id string) (PolicySurrender, error) {
	if id == "" {
		return PolicySurrender{}, fmt.Errorf("%w: missing surrender ID", ErrValidation)
	}
	var sur PolicySurrender
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		sur, err = tx.Surrenders().Get(ctx, id)
		return err
	})
	return sur, err
}

// inSurrenderTx locks the owning holder and loads the surrender inside that lock.
func (s *Lifecycle) inSurrenderTx(ctx context.Context, id string, fn func(context.Context, *policyTx, *PolicySurrender) error) (PolicySurrender, error) {
	if id == "" {
		return PolicySurrender{}, fmt.Errorf("%w: missing surrender ID", ErrValidation)
	}
	holderID, err := s.ownerOf(ctx, func(ctx context.Context, tx Tx) (string, error) {
		sur, err := tx.Surrenders().Get(ctx, id)
		return sur.PolicyHolderID, err
	})
	if err != nil {
		return PolicySurrender{}, err
	}
	var sur PolicySurrender
	err = s.inPolicyTx(ctx, holderID, lockWait, func(ctx context.Context, pc *policyTx) error {
		var err error
		sur, err = pc.Surrenders().Get(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(ctx, pc, &sur); err != nil {
			return err
		}
		return pc.Surrenders().Update(ctx, sur)
	})
	return sur, err
}

func (s *Lifecycle) ApproveSurrender(ctx context.Context, id, remarks string) (PolicySurrender, error) {
	sur, err := s.inSurrenderTx(ctx, id, func(ctx context.Context, pc *policyTx, sur *PolicySurrender) error {
		if err := sur.TransitionTo(SurrenderApproved, pc.now); err != nil {
			return err
		}
		sur.Remarks = remarks
		return s.onApproved(pc, *sur)
	})
	if err != nil {
		return PolicySurrender{}, err
	}
	s.log.Info("surrender approved", "surrender_id", sur.ID, "policy_holder_id", sur.PolicyHolderID)
	return sur, nil
}

func (s *Lifecycle) RejectSurrender(ctx context.Context, id, remarks string) (PolicySurrender, error) {
	if remarks == "" {
		return PolicySurrender{}, fmt.Errorf("%w: remarks are required to reject a surrender", ErrValidation)
	}
	sur, err := s.inSurrenderTx(ctx, id, func(ctx context.Context, pc *policyTx, sur *PolicySurrender) error {
		if err := sur.TransitionTo(SurrenderRejected, pc.now); err != nil {
			return err
		}
		sur.Remarks = remarks
		return nil
	})
	if err != nil {
		return PolicySurrender{}, err
	}
	s.log.Info("surrender rejected", "surrender_id", sur.ID, "policy_holder_id", sur.PolicyHolderID)
	return sur, nil
}

func (s *Lifecycle) ProcessSurrenderPayment(ctx context.Context, id string) (PolicySurrender, error) {
	sur, err := s.inSurrenderTx(ctx, id, func(ctx context.Context, pc *policyTx, sur *PolicySurrender) error {
		// 1) Approved only
		if err := sur.TransitionTo(SurrenderProcessed, pc.now); err != nil {
			return err
		}

		// 2) Settle every active loan out of the payout
		loans, err := pc.Loans().ListByHolder(ctx, pc.holder.ID)
		if err != nil {
			return err
		}
		settled := decimal.Zero
		for _, l := range loans {
			if l.Status != LoanActive {
				continue
			}
			l.AccrueInterest(pc.today)
			r, err := l.Settle(ids.New(), pc.now)
			if err != nil {
				return err
			}
			if err := pc.Loans().Update(ctx, l); err != nil {
				return err
			}
			if r.Amount.IsPositive() {
				if err := pc.Loans().AddRepayment(ctx, r); err != nil {
					return err
				}
			}
			settled = settled.Add(r.Amount)
		}

		// 3) Deduct what was actually owed at payout
		sur.OutstandingLoans = RoundMoney(settled)
		sur.SurrenderAmount = SurrenderAmount(sur.GSVAmount, sur.SSVAmount, sur.OutstandingLoans, sur.ProcessingFee, sur.TaxDeduction)

		// 4) Close the policy
		if pc.holder.Status != PolicyStatusSurrendered {
			if err := pc.setStatus(PolicyStatusSurrendered); err != nil {
				return err
			}
		}
		pc.emit(EventSurrenderProcessed, map[string]any{
			"surrender_id":      sur.ID,
			"surrender_type":    sur.Type,
			"surrender_amount":  sur.SurrenderAmount.StringFixed(2),
			"outstanding_loans": sur.OutstandingLoans.StringFixed(2),
		})
		return nil
	})
	if err != nil {
		return PolicySurrender{}, err
	}

	s.log.Info("surrender processed",
		"surrender_id", sur.ID,
		"policy_holder_id", sur.PolicyHolderID,
		"surrender_amount", sur.SurrenderAmount.StringFixed(2),
	)
	return sur, nil
}
