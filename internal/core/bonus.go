package core

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Bonus accumulates anniversary bonuses of an endowment policy.
type Bonus struct {
	PolicyHolderID           string          `json:"policy_holder_id"`
	AccruedAmount            decimal.Decimal `json:"accrued_amount"`
	LastAnniversaryProcessed *time.Time      `json:"last_anniversary_processed,omitempty"`
	UpdatedAt                time.Time       `json:"updated_at"`
}

// CalculateBonus returns sum_assured/1000 * bonus_per_thousand for the policy year.
func CalculateBonus(rates *RateTables, pt PolicyType, sumAssured decimal.Decimal, policyYear int) decimal.Decimal {
	if pt != PolicyTypeEndowment {
		return decimal.Zero
	}
	perThousand, ok := rates.BonusPerThousand(pt, policyYear)
	if !ok {
		return decimal.Zero
	}
	return RoundMoney(sumAssured.Div(thousand).Mul(perThousand))
}

// UpdateAnniversary credits the bonus for the latest anniversary on or before
// today, once. It returns the amount credited and whether the anniversary was
// newly stamped.
func (b *Bonus) UpdateAnniversary(rates *RateTables, h PolicyHolder, pt PolicyType, today time.Time) (decimal.Decimal, bool) {
	if h.StartDate == nil {
		return decimal.Zero, false
	}
	anniversary := AnniversaryOnOrBefore(*h.StartDate, today)
	if b.LastAnniversaryProcessed != nil && !b.LastAnniversaryProcessed.Before(anniversary) {
		return decimal.Zero, false
	}

	policyYear := anniversary.Year() - h.StartDate.Year()
	if policyYear <= 0 {
		return decimal.Zero, false
	}

	credit := CalculateBonus(rates, pt, h.SumAssured, policyYear)
	b.AccruedAmount = b.AccruedAmount.Add(credit)
	b.LastAnniversaryProcessed = &anniversary
	b.UpdatedAt = today
	return credit, true
}

type BonusRepo interface {
	Get(ctx context.Context, policyHolderID string) (Bonus, error)
	Save(ctx context.Context, b Bonus) error
}

var ErrBonusNotFound = fmt.Errorf("%w: bonus record not found", ErrNotFound)
