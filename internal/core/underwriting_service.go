package core

import (
	"context"
	"errors"
	"fmt"
)

type UnderwritingService interface {
	GetUnderwriting(ctx context.Context, holderID string) (Underwriting, error)

	// OverrideRisk pins a manual score and reprices the policy.
	OverrideRisk(ctx context.Context, holderID string, in OverrideInput) (PolicyView, error)

	// ClearOverride returns the policy to automatic scoring.
	ClearOverride(ctx context.Context, holderID string) (PolicyView, error)

	// CompleteMedicalExam records the exam; review is no longer needed unless the risk is High.
	CompleteMedicalExam(ctx context.Context, holderID, remarks string) (PolicyView, error)
}

type OverrideInput struct {
	Score   int    `json:"risk_assessment_score"`
	Remarks string `json:"remarks"`
}

func (s *Lifecycle) GetUnderwriting(ctx context.Context, holderID string) (Underwriting, error) {
	if holderID == "" {
		return Underwriting{}, fmt.Errorf("%w: missing policy holder ID", ErrValidation)
	}
	var uw Underwriting
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		uw, err = tx.Underwriting().Get(ctx, holderID)
		return err
	})
	return uw, err
}

// withUnderwriting loads the record under the holder lock, lets fn change it,
// saves it and reruns the recompute pipeline.
func (s *Lifecycle) withUnderwriting(ctx context.Context, holderID string, fn func(pc *policyTx, uw *Underwriting) error) (PolicyView, error) {
	var view PolicyView
	err := s.inPolicyTx(ctx, holderID, lockWait, func(ctx context.Context, pc *policyTx) error {
		if pc.holder.Status == PolicyStatusSurrendered {
			return ErrPolicySurrendered
		}
		uw, err := pc.Underwriting().Get(ctx, holderID)
		if errors.Is(err, ErrNotFound) {
			uw, err = Underwriting{PolicyHolderID: holderID}, nil
		}
		if err != nil {
			return err
		}
		if err := fn(pc, &uw); err != nil {
			return err
		}
		uw.UpdatedAt = pc.now
		if err := pc.Underwriting().Save(ctx, uw); err != nil {
			return err
		}
		if err := s.recompute(ctx, pc); err != nil {
			return err
		}
		view, err = s.view(ctx, pc.Tx, pc.holder)
		return err
	})
	return view, err
}

func (s *Lifecycle) OverrideRisk(ctx context.Context, holderID string, in OverrideInput) (PolicyView, error) {
	view, err := s.withUnderwriting(ctx, holderID, func(pc *policyTx, uw *Underwriting) error {
		return uw.Override(in.Score, in.Remarks, pc.now)
	})
	if err != nil {
		return PolicyView{}, err
	}
	s.log.Info("risk score overridden",
		"policy_holder_id", holderID,
		"score", in.Score,
		"risk_category", view.Holder.RiskCategory,
	)
	return view, nil
}

func (s *Lifecycle) ClearOverride(ctx context.Context, holderID string) (PolicyView, error) {
	return s.withUnderwriting(ctx, holderID, func(_ *policyTx, uw *Underwriting) error {
		if !uw.ManualOverride {
			return fmt.Errorf("%w: no manual override in force", ErrValidation)
		}
		uw.ManualOverride = false
		return nil
	})
}

func (s *Lifecycle) CompleteMedicalExam(ctx context.Context, holderID, remarks string) (PolicyView, error) {
	return s.withUnderwriting(ctx, holderID, func(_ *policyTx, uw *Underwriting) error {
		if uw.MedicalExamCompleted {
			return fmt.Errorf("%w: medical examination already recorded", ErrConflict)
		}
		uw.MedicalExamCompleted = true
		if remarks != "" {
			uw.Remarks = remarks
		}
		if uw.ManualOverride {
			return nil
		}
		uw.NeedsReview = uw.RiskCategory == RiskHigh
		return nil
	})
}
