package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RegisterInput is a new policy application.
type RegisterInput struct {
	ProductID       string          `json:"product_id"`
	AgentID         string          `json:"agent_id,omitempty"`
	Name            string          `json:"name"`
	DateOfBirth     time.Time       `json:"date_of_birth"`
	SumAssured      decimal.Decimal `json:"sum_assured"`
	DurationYears   int             `json:"duration_years"`
	PaymentInterval PaymentInterval `json:"payment_interval"`
	Risk            RiskProfile     `json:"risk"`
}

func (in RegisterInput) Validate() error {
	if in.ProductID == "" {
		return fmt.Errorf("%w: missing product_id", ErrValidation)
	}
	if in.Name == "" {
		return fmt.Errorf("%w: missing name", ErrValidation)
	}
	if in.DateOfBirth.IsZero() {
		return fmt.Errorf("%w: missing date_of_birth", ErrValidation)
	}
	return nil
}

// ProfileUpdate changes holder attributes. Contract fields (sum assured,
// duration, interval) can only change while the policy is Pending.
type ProfileUpdate struct {
	Name            *string          `json:"name,omitempty"`
	Risk            *RiskProfile     `json:"risk,omitempty"`
	SumAssured      *decimal.Decimal `json:"sum_assured,omitempty"`
	DurationYears   *int             `json:"duration_years,omitempty"`
	PaymentInterval *PaymentInterval `json:"payment_interval,omitempty"`
}

func (u ProfileUpdate) changesContract() bool {
	return u.SumAssured != nil || u.DurationYears != nil || u.PaymentInterval != nil
}

func (u ProfileUpdate) apply(h *PolicyHolder) {
	if u.Name != nil {
		h.Name = *u.Name
	}
	if u.Risk != nil {
		h.Risk = *u.Risk
	}
	if u.SumAssured != nil {
		h.SumAssured = *u.SumAssured
	}
	if u.DurationYears != nil {
		h.DurationYears = *u.DurationYears
	}
	if u.PaymentInterval != nil {
		h.PaymentInterval = *u.PaymentInterval
	}
}
