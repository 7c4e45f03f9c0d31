package core

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type ClaimReason string

const (
	ClaimReasonMaturity        ClaimReason = "Maturity of Insurance"
	ClaimReasonAccident        ClaimReason = "Accident"
	ClaimReasonCriticalIllness ClaimReason = "Critical Illness"
	ClaimReasonDisability      ClaimReason = "Disability"
	ClaimReasonOthers          ClaimReason = "Others"
)

var claimReasons = []ClaimReason{
	ClaimReasonMaturity,
	ClaimReasonAccident,
	ClaimReasonCriticalIllness,
	ClaimReasonDisability,
	ClaimReasonOthers,
}

func (r ClaimReason) Valid() bool {
	return slices.Contains(claimReasons, r)
}

type ClaimStatus string

const (
	ClaimPending  ClaimStatus = "Pending"
	ClaimApproved ClaimStatus = "Approved"
	ClaimRejected ClaimStatus = "Rejected"
)

// ClaimProcessingStatus tracks the assessment of an approved claim.
type ClaimProcessingStatus string

const (
	ClaimProcessingNone       ClaimProcessingStatus = ""
	ClaimProcessingInProgress ClaimProcessingStatus = "In Progress"
	ClaimProcessingCompleted  ClaimProcessingStatus = "Completed"
)

type ClaimPayoutStatus string

const (
	ClaimPayoutNone      ClaimPayoutStatus = ""
	ClaimPayoutCompleted ClaimPayoutStatus = "Completed"
)

// ClaimRequest is a benefit claim against an in-force policy. It moves
// Pending -> Approved -> In Progress -> Completed -> paid, or ends Rejected.
type ClaimRequest struct {
	ID               string                `json:"id"`
	PolicyHolderID   string                `json:"policy_holder_id"`
	Reason           ClaimReason           `json:"reason"`
	OtherReason      string                `json:"other_reason,omitempty"`
	ClaimAmount      decimal.Decimal       `json:"claim_amount"`
	Status           ClaimStatus           `json:"status"`
	ProcessingStatus ClaimProcessingStatus `json:"processing_status,omitempty"`
	PayoutStatus     ClaimPayoutStatus     `json:"payout_status,omitempty"`
	PaidAmount       decimal.Decimal       `json:"paid_amount"`
	Remarks          string                `json:"remarks,omitempty"`
	ClaimDate        time.Time             `json:"claim_date"`
	DecidedAt        *time.Time            `json:"decided_at,omitempty"`
	ProcessedAt      *time.Time            `json:"processed_at,omitempty"`
	PaidAt           *time.Time            `json:"paid_at,omitempty"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

// ClaimInput is what a policyholder files.
type ClaimInput struct {
	Reason      ClaimReason     `json:"reason"`
	OtherReason string          `json:"other_reason,omitempty"`
	ClaimAmount decimal.Decimal `json:"claim_amount"`
}

// Validate checks the claim against the sum assured it draws on.
func (in ClaimInput) Validate(sumAssured decimal.Decimal) error {
	if !in.Reason.Valid() {
		return fmt.Errorf("%w: unknown claim reason %q", ErrValidation, in.Reason)
	}
	if in.Reason == ClaimReasonOthers && strings.TrimSpace(in.OtherReason) == "" {
		return fmt.Errorf("%w: other_reason is required when the reason is %s", ErrValidation, ClaimReasonOthers)
	}
	if !in.ClaimAmount.IsPositive() {
		return fmt.Errorf("%w: claim amount must be positive", ErrValidation)
	}
	if in.ClaimAmount.GreaterThan(sumAssured) {
		return fmt.Errorf("%w: claim amount %s exceeds sum assured %s",
			ErrValidation, in.ClaimAmount.StringFixed(2), sumAssured.StringFixed(2))
	}
	return nil
}

// Decide approves or rejects a Pending claim.
func (c *ClaimRequest) Decide(next ClaimStatus, remarks string, now time.Time) error {
	if c.Status != ClaimPending || (next != ClaimApproved && next != ClaimRejected) {
		return fmt.Errorf("%w: claim %s cannot move from %s to %s", ErrInvalidState, c.ID, c.Status, next)
	}
	c.Status = next
	c.Remarks = remarks
	c.DecidedAt = &now
	c.UpdatedAt = now
	return nil
}

// Advance moves an approved claim through assessment: none -> In Progress -> Completed.
func (c *ClaimRequest) Advance(next ClaimProcessingStatus, now time.Time) error {
	ok := c.Status == ClaimApproved &&
		((c.ProcessingStatus == ClaimProcessingNone && next == ClaimProcessingInProgress) ||
			(c.ProcessingStatus == ClaimProcessingInProgress && next == ClaimProcessingCompleted))
	if !ok {
		return fmt.Errorf("%w: claim %s cannot move from processing %q to %q", ErrInvalidState, c.ID, c.ProcessingStatus, next)
	}
	c.ProcessingStatus = next
	if next == ClaimProcessingCompleted {
		c.ProcessedAt = &now
	}
	c.UpdatedAt = now
	return nil
}

// Pay records the payout of a completed claim, once.
func (c *ClaimRequest) Pay(now time.Time) error {
	if c.ProcessingStatus != ClaimProcessingCompleted || c.PayoutStatus == ClaimPayoutCompleted {
		return fmt.Errorf("%w: claim %s is not ready for payout", ErrInvalidState, c.ID)
	}
	c.PayoutStatus = ClaimPayoutCompleted
	c.PaidAmount = RoundMoney(c.ClaimAmount)
	c.PaidAt = &now
	c.UpdatedAt = now
	return nil
}

// ClaimFilter narrows ListClaims. Empty fields match everything.
type ClaimFilter struct {
	PolicyHolderID string
	Status         ClaimStatus
}

type ClaimRepo interface {
	Create(ctx context.Context, c ClaimRequest) error
	Get(ctx context.Context, id string) (ClaimRequest, error)
	Update(ctx context.Context, c ClaimRequest) error
	// List returns matching claims oldest first.
	List(ctx context.Context, f ClaimFilter) ([]ClaimRequest, error)
}

var ErrClaimNotFound = fmt.Errorf("%w: claim not found", ErrNotFound)
