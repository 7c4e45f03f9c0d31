package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/MrKriegler/go-policyadmin/internal/platform/ids"
)

func (s *Lifecycle) Register(ctx context.Context, in RegisterInput) (PolicyHolder, error) {
	// 1) Validate input
	if err := in.Validate(); err != nil {
		return PolicyHolder{}, err
	}
	rates, err := s.rates.Snapshot(ctx)
	if err != nil {
		return PolicyHolder{}, err
	}
	product, ok := rates.Product(in.ProductID)
	if !ok {
		return PolicyHolder{}, ErrProductNotFound
	}

	now := s.clock()
	h := PolicyHolder{
		ID:              ids.New(),
		ProductID:       in.ProductID,
		AgentID:         in.AgentID,
		Name:            in.Name,
		DateOfBirth:     DateOf(in.DateOfBirth),
		SumAssured:      in.SumAssured,
		DurationYears:   in.DurationYears,
		PaymentInterval: in.PaymentInterval,
		Status:          PolicyStatusPending,
		Risk:            in.Risk,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := h.Validate(product, s.terms, now); err != nil {
		return PolicyHolder{}, err
	}

	err = s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		// 2) Agent must exist and be active
		if h.AgentID != "" {
			agent, err := tx.Agents().Get(ctx, h.AgentID)
			if err != nil {
				return err
			}
			if !agent.Active {
				return fmt.Errorf("%w: agent %s is inactive", ErrValidation, agent.ID)
			}
		}

		// 3) Policy number
		number, err := tx.PolicyHolders().NextPolicyNumber(ctx, now.Year())
		if err != nil {
			return fmt.Errorf("failed to generate policy number: %w", err)
		}
		h.PolicyNumber = number

		if err := tx.PolicyHolders().Create(ctx, h); err != nil {
			return err
		}

		// 4) Initial underwriting; no ledger until approval
		pc := &policyTx{Tx: tx, rates: rates, holder: h, product: product, today: DateOf(now), now: now}
		if err := s.recompute(ctx, pc); err != nil {
			return err
		}
		if pc.dirty {
			if err := tx.PolicyHolders().Update(ctx, pc.holder); err != nil {
				return err
			}
		}
		h = pc.holder
		return nil
	})
	if err != nil {
		return PolicyHolder{}, err
	}

	s.log.Info("policy holder registered",
		"policy_holder_id", h.ID,
		"policy_number", h.PolicyNumber,
		"risk_category", h.RiskCategory,
	)
	return h, nil
}

func (s *Lifecycle) UpdateProfile(ctx context.Context, id string, in ProfileUpdate) (PolicyView, error) {
	var view PolicyView
	err := s.inPolicyTx(ctx, id, lockWait, func(ctx context.Context, pc *policyTx) error {
		// 1) Check state
		switch pc.holder.Status {
		case PolicyStatusSurrendered:
			return ErrPolicySurrendered
		case PolicyStatusPending:
		default:
			if in.changesContract() {
				return fmt.Errorf("%w: sum assured, duration and interval are fixed once the policy is %s",
					ErrValidation, pc.holder.Status)
			}
		}

		// 2) Apply and validate against the product
		in.apply(&pc.holder)
		if err := pc.holder.Validate(pc.product, s.terms, pc.holder.IssueDate(pc.today)); err != nil {
			return err
		}
		pc.dirty = true

		// 3) Underwriting, premium, surrender values
		if err := s.recompute(ctx, pc); err != nil {
			return err
		}
		var err error
		view, err = s.view(ctx, pc.Tx, pc.holder)
		return err
	})
	return view, err
}

func (s *Lifecycle) Approve(ctx context.Context, id string) (PolicyView, error) {
	var view PolicyView
	err := s.inPolicyTx(ctx, id, lockWait, func(ctx context.Context, pc *policyTx) error {
		h := &pc.holder

		// 1) Only pending applications can be approved
		if !h.Status.CanTransitionTo(PolicyStatusActive) {
			return fmt.Errorf("%w: policy %s is %s", ErrInvalidState, h.ID, h.Status)
		}

		// 2) Re-validate on the issue date
		if err := h.Validate(pc.product, s.terms, pc.today); err != nil {
			return err
		}

		// 3) Start the first term
		h.Term = 1
		h.Activate(pc.today)
		pc.dirty = true
		pc.emit(EventPolicyStatusChanged, map[string]any{"from": PolicyStatusPending, "to": PolicyStatusActive})

		// 4) Endowments accrue bonus from day one
		if pc.product.PolicyType == PolicyTypeEndowment {
			if _, err := pc.Bonuses().Get(ctx, h.ID); errors.Is(err, ErrNotFound) {
				if err := pc.Bonuses().Save(ctx, Bonus{PolicyHolderID: h.ID, AccruedAmount: decimal.Zero, UpdatedAt: pc.now}); err != nil {
					return err
				}
			} else if err != nil {
				return err
			}
		}

		// 5) Underwriting, premium ledger, surrender values
		if err := s.recompute(ctx, pc); err != nil {
			return err
		}

		var err error
		view, err = s.view(ctx, pc.Tx, pc.holder)
		return err
	})
	if err != nil {
		return PolicyView{}, err
	}

	s.log.Info("policy approved",
		"policy_holder_id", view.Holder.ID,
		"policy_number", view.Holder.PolicyNumber,
		"maturity_date", view.Holder.MaturityDate,
	)
	return view, nil
}
