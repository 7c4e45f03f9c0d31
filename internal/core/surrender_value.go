package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// SurrenderValues is a point-in-time valuation of a policy.
type SurrenderValues struct {
	GSV          decimal.Decimal `json:"gsv"`
	SSV          decimal.Decimal `json:"ssv"`
	ElapsedYears int             `json:"elapsed_years"`
	PaidYears    int             `json:"paid_years"`
	GSVBand      bool            `json:"gsv_band_found"`
	SSVBand      bool            `json:"ssv_band_found"`
}

// Best is the larger of GSV and SSV.
func (v SurrenderValues) Best() decimal.Decimal {
	return decimal.Max(v.GSV, v.SSV)
}

// CalculateGSV applies the GSV rate for the elapsed policy year to the
// configured basis. No band means nothing is guaranteed yet: zero, not an error.
func CalculateGSV(rates *RateTables, h PolicyHolder, p PremiumPayment, basis GSVBasis, today time.Time) (decimal.Decimal, bool) {
	if h.StartDate == nil {
		return decimal.Zero, false
	}
	rate, ok := rates.GSVRate(h.ProductID, WholeYearsBetween(*h.StartDate, today))
	if !ok {
		return decimal.Zero, false
	}
	amount := maxZero(p.TotalPaid.Sub(p.AnnualPremium))
	if basis == GSVBasisSumAssured {
		amount = h.SumAssured
	}
	return RoundMoney(PercentOf(amount, rate)), true
}

// CalculateSSV is zero for term policies, without a band, or before the
// band's eligibility years have been paid. Otherwise it is the SSV factor
// applied to total paid, plus accrued bonus.
func CalculateSSV(rates *RateTables, h PolicyHolder, product Product, p PremiumPayment, bonusAccrued decimal.Decimal, today time.Time) (decimal.Decimal, bool) {
	if product.PolicyType != PolicyTypeEndowment || h.StartDate == nil {
		return decimal.Zero, false
	}
	band, ok := rates.SSVConfig(h.ProductID, WholeYearsBetween(*h.StartDate, today))
	if !ok {
		return decimal.Zero, false
	}
	if p.PaidYears(h.DurationYears) < band.EligibilityYears {
		return decimal.Zero, true
	}
	return RoundMoney(PercentOf(p.TotalPaid, band.Value).Add(bonusAccrued)), true
}

// ValueSurrender computes both values and caches them on the ledger.
func ValueSurrender(rates *RateTables, h PolicyHolder, product Product, p *PremiumPayment, bonusAccrued decimal.Decimal, basis GSVBasis, today time.Time) SurrenderValues {
	v := SurrenderValues{PaidYears: p.PaidYears(h.DurationYears)}
	if h.StartDate != nil {
		v.ElapsedYears = WholeYearsBetween(*h.StartDate, today)
	}
	v.GSV, v.GSVBand = CalculateGSV(rates, h, *p, basis, today)
	v.SSV, v.SSVBand = CalculateSSV(rates, h, product, *p, bonusAccrued, today)
	p.GSVValue, p.SSVValue = v.GSV, v.SSV
	return v
}
