package core

import (
	"context"
	"fmt"

	"github.com/MrKriegler/go-policyadmin/internal/platform/ids"
)

type ClaimService interface {
	// FileClaim opens a Pending claim against an Active policy.
	FileClaim(ctx context.Context, holderID string, in ClaimInput) (ClaimRequest, error)
	GetClaim(ctx context.Context, id string) (ClaimRequest, error)
	ListClaims(ctx context.Context, f ClaimFilter) ([]ClaimRequest, error)
	ApproveClaim(ctx context.Context, id, remarks string) (ClaimRequest, error)
	RejectClaim(ctx context.Context, id, remarks string) (ClaimRequest, error)
	// StartClaimProcessing and CompleteClaimProcessing track the assessment of an approved claim.
	StartClaimProcessing(ctx context.Context, id string) (ClaimRequest, error)
	CompleteClaimProcessing(ctx context.Context, id string) (ClaimRequest, error)
	// PayClaim pays out a completed claim.
	PayClaim(ctx context.Context, id string) (ClaimRequest, error)
}

func (s *Lifecycle) FileClaim(ctx context.Context, holderID string, in ClaimInput) (ClaimRequest, error) {
	var c ClaimRequest
	err := s.inPolicyTx(ctx, holderID, lockWait, func(ctx context.Context, pc *policyTx) error {
		if err := claimable(pc.holder); err != nil {
			return err
		}
		if pc.holder.Status != PolicyStatusActive {
			return fmt.Errorf("%w: policy %s is %s", ErrInvalidState, holderID, pc.holder.Status)
		}
		if err := in.Validate(pc.holder.SumAssured); err != nil {
			return err
		}
		c = ClaimRequest{
			ID:             ids.New(),
			PolicyHolderID: pc.holder.ID,
			Reason:         in.Reason,
			OtherReason:    in.OtherReason,
			ClaimAmount:    RoundMoney(in.ClaimAmount),
			Status:         ClaimPending,
			ClaimDate:      pc.today,
			UpdatedAt:      pc.now,
		}
		return pc.Claims().Create(ctx, c)
	})
	if err != nil {
		return ClaimRequest{}, err
	}

	s.log.Info("claim filed",
		"policy_holder_id", holderID,
		"claim_id", c.ID,
		"reason", c.Reason,
		"claim_amount", c.ClaimAmount.StringFixed(2),
	)
	return c, nil
}

// claimable rejects every claim operation on a surrendered policy.
func claimable(h PolicyHolder) error {
	if h.Status == PolicyStatusSurrendered {
		return ErrPolicySurrendered
	}
	return nil
}

func (s *Lifecycle) GetClaim(ctx context.Context, id string) (ClaimRequest, error) {
	if id == "" {
		return ClaimRequest{}, fmt.Errorf("%w: missing claim ID", ErrValidation)
	}
	var c ClaimRequest
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		c, err = tx.Claims().Get(ctx, id)
		return err
	})
	return c, err
}

func (s *Lifecycle) ListClaims(ctx context.Context, f ClaimFilter) ([]ClaimRequest, error) {
	if f.Status != "" && f.Status != ClaimPending && f.Status != ClaimApproved && f.Status != ClaimRejected {
		return nil, fmt.Errorf("%w: unknown claim status %q", ErrValidation, f.Status)
	}
	var out []ClaimRequest
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		out, err = tx.Claims().List(ctx, f)
		return err
	})
	if out == nil {
		out = []ClaimRequest{}
	}
	return out, err
}

// inClaimTx locks the owning holder, loads the claim and saves it after fn.
func (s *Lifecycle) inClaimTx(ctx context.Context, id string, fn func(context.Context, *policyTx, *ClaimRequest) error) (ClaimRequest, error) {
	if id == "" {
		return ClaimRequest{}, fmt.Errorf("%w: missing claim ID", ErrValidation)
	}
	holderID, err := s.ownerOf(ctx, func(ctx context.Context, tx Tx) (string, error) {
		c, err := tx.Claims().Get(ctx, id)
		return c.PolicyHolderID, err
	})
	if err != nil {
		return ClaimRequest{}, err
	}
	var c ClaimRequest
	err = s.inPolicyTx(ctx, holderID, lockWait, func(ctx context.Context, pc *policyTx) error {
		if err := claimable(pc.holder); err != nil {
			return err
		}
		var err error
		c, err = pc.Claims().Get(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(ctx, pc, &c); err != nil {
			return err
		}
		return pc.Claims().Update(ctx, c)
	})
	return c, err
}

func (s *Lifecycle) ApproveClaim(ctx context.Context, id, remarks string) (ClaimRequest, error) {
	c, err := s.inClaimTx(ctx, id, func(_ context.Context, pc *policyTx, c *ClaimRequest) error {
		return c.Decide(ClaimApproved, remarks, pc.now)
	})
	if err != nil {
		return ClaimRequest{}, err
	}
	s.log.Info("claim approved", "claim_id", c.ID, "policy_holder_id", c.PolicyHolderID)
	return c, nil
}

func (s *Lifecycle) RejectClaim(ctx context.Context, id, remarks string) (ClaimRequest, error) {
	if remarks == "" {
		return ClaimRequest{}, fmt.Errorf("%w: remarks are required to reject a claim", ErrValidation)
	}
	c, err := s.inClaimTx(ctx, id, func(_ context.Context, pc *policyTx, c *ClaimRequest) error {
		return c.Decide(ClaimRejected, remarks, pc.now)
	})
	if err != nil {
		return ClaimRequest{}, err
	}
	s.log.Info("claim rejected", "claim_id", c.ID, "policy_holder_id", c.PolicyHolderID)
	return c, nil
}

func (s *Lifecycle) StartClaimProcessing(ctx context.Context, id string) (ClaimRequest, error) {
	return s.inClaimTx(ctx, id, func(_ context.Context, pc *policyTx, c *ClaimRequest) error {
		return c.Advance(ClaimProcessingInProgress, pc.now)
	})
}

func (s *Lifecycle) CompleteClaimProcessing(ctx context.Context, id string) (ClaimRequest, error) {
	return s.inClaimTx(ctx, id, func(_ context.Context, pc *policyTx, c *ClaimRequest) error {
		return c.Advance(ClaimProcessingCompleted, pc.now)
	})
}

func (s *Lifecycle) PayClaim(ctx context.Context, id string) (ClaimRequest, error) {
	c, err := s.inClaimTx(ctx, id, func(_ context.Context, pc *policyTx, c *ClaimRequest) error {
		if err := c.Pay(pc.now); err != nil {
			return err
		}
		pc.emit(EventClaimPaid, map[string]any{
			"claim_id":    c.ID,
			"reason":      c.Reason,
			"paid_amount": c.PaidAmount.StringFixed(2),
		})
		return nil
	})
	if err != nil {
		return ClaimRequest{}, err
	}

	s.log.Info("claim paid",
		"claim_id", c.ID,
		"policy_holder_id", c.PolicyHolderID,
		"paid_amount", c.PaidAmount.StringFixed(2),
	)
	return c, nil
}
