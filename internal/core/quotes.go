package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// QuoteInput prices a prospective policy. Risk is optional; without it no
// underwriting loading is applied.
type QuoteInput struct {
	ProductID       string          `json:"product_id"`
	DateOfBirth     time.Time       `json:"date_of_birth"`
	SumAssured      decimal.Decimal `json:"sum_assured"`
	DurationYears   int             `json:"duration_years"`
	PaymentInterval PaymentInterval `json:"payment_interval"`
	Risk            *RiskProfile    `json:"risk,omitempty"`
}

func (in QuoteInput) Validate(p Product, t Terms, asOf time.Time) error {
	h := PolicyHolder{
		Name:            "quote",
		DateOfBirth:     in.DateOfBirth,
		SumAssured:      in.SumAssured,
		DurationYears:   in.DurationYears,
		PaymentInterval: in.PaymentInterval,
		Risk:            RiskProfile{Occupation: OccupationLow, Exercise: ExerciseNone},
	}
	if in.Risk != nil {
		h.Risk = *in.Risk
	}
	if err := h.Validate(p, t, asOf); err != nil {
		return fmt.Errorf("quote: %w", err)
	}
	return nil
}
