package core

import (
	"context"
	"fmt"
)

type RenewalService interface {
	GetRenewal(ctx context.Context, id string) (PolicyRenewal, error)
	// MarkRenewed starts the next term on the renewal date with a fresh ledger.
	MarkRenewed(ctx context.Context, id string) (PolicyView, error)
	SendRenewalReminder(ctx context.Context, id string, kind ReminderType) (PolicyRenewal, error)
}

func (s *Lifecycle) GetRenewal(ctx context.Context, id string) (PolicyRenewal, error) {
	if id == "" {
		return PolicyRenewal{}, fmt.Errorf("%w: missing renewal ID", ErrValidation)
	}
	var r PolicyRenewal
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		r, err = tx.Renewals().Get(ctx, id)
		return err
	})
	return r, err
}

func (s *Lifecycle) renewalOwner(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: missing renewal ID", ErrValidation)
	}
	return s.ownerOf(ctx, func(ctx context.Context, tx Tx) (string, error) {
		r, err := tx.Renewals().Get(ctx, id)
		return r.PolicyHolderID, err
	})
}

func (s *Lifecycle) MarkRenewed(ctx context.Context, id string) (PolicyView, error) {
	holderID, err := s.renewalOwner(ctx, id)
	if err != nil {
		return PolicyView{}, err
	}
	var view PolicyView
	err = s.inPolicyTx(ctx, holderID, lockWait, func(ctx context.Context, pc *policyTx) error {
		h := &pc.holder

		// 1) Check state
		if h.Status == PolicyStatusSurrendered {
			return ErrPolicySurrendered
		}
		if h.Status != PolicyStatusActive {
			return fmt.Errorf("%w: policy %s is %s", ErrInvalidState, h.ID, h.Status)
		}
		r, err := pc.Renewals().Get(ctx, id)
		if err != nil {
			return err
		}
		if r.GraceLapsed(pc.today) {
			return fmt.Errorf("%w: renewal grace period ended on %s", ErrInvalidState, r.GracePeriodEnd.Format("2006-01-02"))
		}
		if err := r.TransitionTo(RenewalRenewed, pc.now); err != nil {
			return err
		}
		if err := pc.Renewals().Update(ctx, r); err != nil {
			return err
		}

		// 2) Next term starts on the renewal date
		h.Term++
		h.Activate(pc.today)
		pc.dirty = true

		// 3) New ledger priced at the current age
		if err := s.recompute(ctx, pc); err != nil {
			return err
		}
		view, err = s.view(ctx, pc.Tx, pc.holder)
		return err
	})
	if err != nil {
		return PolicyView{}, err
	}

	s.log.Info("policy renewed",
		"policy_holder_id", holderID,
		"renewal_id", id,
		"term", view.Holder.Term,
		"maturity_date", view.Holder.MaturityDate,
	)
	return view, nil
}

func (s *Lifecycle) SendRenewalReminder(ctx context.Context, id string, kind ReminderType) (PolicyRenewal, error) {
	holderID, err := s.renewalOwner(ctx, id)
	if err != nil {
		return PolicyRenewal{}, err
	}
	var r PolicyRenewal
	err = s.inPolicyTx(ctx, holderID, lockWait, func(ctx context.Context, pc *policyTx) error {
		if pc.holder.Status == PolicyStatusSurrendered {
			return ErrPolicySurrendered
		}
		var err error
		r, err = pc.Renewals().Get(ctx, id)
		if err != nil {
			return err
		}
		return s.remindRenewal(ctx, pc, &r, kind)
	})
	return r, err
}

func (s *Lifecycle) remindRenewal(ctx context.Context, pc *policyTx, r *PolicyRenewal, kind ReminderType) error {
	if err := r.MarkReminder(kind, pc.today); err != nil {
		return err
	}
	r.UpdatedAt = pc.now
	if err := pc.Renewals().Update(ctx, *r); err != nil {
		return err
	}
	pc.emit(EventRenewalReminder, map[string]any{
		"renewal_id": r.ID,
		"reminder":   kind,
		"due_date":   r.DueDate,
	})
	return nil
}

// sendDueRenewalReminders sends whatever reminder each pending renewal is due today.
func (s *Lifecycle) sendDueRenewalReminders(ctx context.Context, pc *policyTx) (bool, error) {
	if pc.holder.Status != PolicyStatusActive {
		return false, nil
	}
	renewals, err := pc.Renewals().ListByHolder(ctx, pc.holder.ID)
	if err != nil {
		return false, err
	}
	sent := false
	for i := range renewals {
		r := &renewals[i]
		kind, due := r.DueReminder(pc.today, s.terms)
		if !due {
			continue
		}
		if err := s.remindRenewal(ctx, pc, r, kind); err != nil {
			return sent, err
		}
		sent = true
	}
	return sent, nil
}
