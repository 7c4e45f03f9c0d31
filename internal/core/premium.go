package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PremiumInput is everything the premium calculation reads.
type PremiumInput struct {
	Product        Product
	SumAssured     decimal.Decimal
	DateOfBirth    time.Time
	DurationYears  int
	Interval       PaymentInterval
	LoadingPercent decimal.Decimal // zero when no underwriting applies
	AsOf           time.Time       // age is taken on this date
}

// PremiumQuote is the breakdown of a premium calculation.
type PremiumQuote struct {
	Age             int             `json:"age"`
	MortalityRate   decimal.Decimal `json:"mortality_rate"`
	DurationFactor  decimal.Decimal `json:"duration_factor"`
	BasePremium     decimal.Decimal `json:"base_premium"`
	AdjustedPremium decimal.Decimal `json:"adjusted_premium"`
	ADBCharge       decimal.Decimal `json:"adb_charge"`
	PTDCharge       decimal.Decimal `json:"ptd_charge"`
	Loading         decimal.Decimal `json:"loading"`
	AnnualPremium   decimal.Decimal `json:"annual_premium"`
	IntervalPayment decimal.Decimal `json:"interval_payment"`
	TotalPremium    decimal.Decimal `json:"total_premium"`
	Interval        PaymentInterval `json:"payment_interval"`
	DurationYears   int             `json:"duration_years"`
}

// CalculatePremium prices a policy. Missing inputs or reference data fail with
// ErrCalculation; intermediate values keep full precision and only the annual
// and interval amounts are rounded.
func CalculatePremium(rates *RateTables, in PremiumInput) (PremiumQuote, error) {
	if in.Product.ID == "" {
		return PremiumQuote{}, fmt.Errorf("%w: missing product", ErrCalculation)
	}
	if !in.SumAssured.IsPositive() {
		return PremiumQuote{}, fmt.Errorf("%w: missing sum assured", ErrCalculation)
	}
	if in.DateOfBirth.IsZero() {
		return PremiumQuote{}, fmt.Errorf("%w: missing date of birth", ErrCalculation)
	}
	if in.DurationYears < 1 || !in.Interval.Valid() {
		return PremiumQuote{}, fmt.Errorf("%w: missing duration or payment interval", ErrCalculation)
	}

	q := PremiumQuote{
		Age:            AgeOn(in.DateOfBirth, in.AsOf),
		DurationFactor: decimal.NewFromInt(1),
		Interval:       in.Interval,
		DurationYears:  in.DurationYears,
	}

	// 1) Base premium from the mortality table
	rate, ok := rates.MortalityRate(q.Age)
	if !ok {
		return PremiumQuote{}, fmt.Errorf("%w: no mortality rate for age %d", ErrCalculation, q.Age)
	}
	q.MortalityRate = rate
	q.BasePremium = in.SumAssured.Mul(rate).Div(thousand)

	// 2) Endowments scale by multiplier and duration factor; term stays flat
	q.AdjustedPremium = q.BasePremium
	if in.Product.PolicyType == PolicyTypeEndowment {
		factor, ok := rates.DurationFactor(PolicyTypeEndowment, in.DurationYears)
		if !ok {
			return PremiumQuote{}, fmt.Errorf("%w: no duration factor for %s over %d years",
				ErrCalculation, PolicyTypeEndowment, in.DurationYears)
		}
		q.DurationFactor = factor
		q.AdjustedPremium = q.BasePremium.Mul(in.Product.BaseMultiplier).Mul(factor)
	}

	// 3) Riders
	if in.Product.IncludeADB {
		q.ADBCharge = PercentOf(in.SumAssured, in.Product.ADBPercent)
	}
	if in.Product.IncludePTD {
		q.PTDCharge = PercentOf(in.SumAssured, in.Product.PTDPercent)
	}

	// 4) Underwriting loading applies to the adjusted premium only
	q.Loading = PercentOf(q.AdjustedPremium, in.LoadingPercent)

	// 5) Annual premium
	q.AnnualPremium = RoundMoney(q.AdjustedPremium.Add(q.ADBCharge).Add(q.PTDCharge).Add(q.Loading))

	// 6) Interval split; a single premium is charged for the whole duration at once
	q.TotalPremium = q.AnnualPremium.Mul(decimal.NewFromInt(int64(in.DurationYears)))
	if in.Interval == IntervalSingle {
		q.IntervalPayment = q.TotalPremium
	} else {
		q.IntervalPayment = RoundMoney(q.AnnualPremium.Div(decimal.NewFromInt(int64(in.Interval.PerYear()))))
	}
	return q, nil
}
