package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type PolicyType string

const (
	PolicyTypeTerm      PolicyType = "Term"
	PolicyTypeEndowment PolicyType = "Endowment"
)

func (t PolicyType) Valid() bool {
	return t == PolicyTypeTerm || t == PolicyTypeEndowment
}

// Product is the static configuration a policy is sold under.
type Product struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	PolicyType     PolicyType      `json:"policy_type"`
	BaseMultiplier decimal.Decimal `json:"base_multiplier"`
	MinSumAssured  decimal.Decimal `json:"min_sum_assured"`
	MaxSumAssured  decimal.Decimal `json:"max_sum_assured"`
	IncludeADB     bool            `json:"include_adb"`
	ADBPercent     decimal.Decimal `json:"adb_percent"`
	IncludePTD     bool            `json:"include_ptd"`
	PTDPercent     decimal.Decimal `json:"ptd_percent"`
}

func (p Product) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: missing product id", ErrValidation)
	}
	if p.Name == "" {
		return fmt.Errorf("%w: missing name", ErrValidation)
	}
	if !p.PolicyType.Valid() {
		return fmt.Errorf("%w: unknown policy type %q", ErrValidation, p.PolicyType)
	}
	if !p.BaseMultiplier.IsPositive() {
		return fmt.Errorf("%w: base multiplier must be > 0", ErrValidation)
	}
	if p.PolicyType == PolicyTypeTerm && !p.BaseMultiplier.Equal(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: base multiplier must be 1.0 for term policies", ErrValidation)
	}
	if !p.MinSumAssured.IsPositive() || p.MaxSumAssured.LessThan(p.MinSumAssured) {
		return fmt.Errorf("%w: invalid sum assured range", ErrValidation)
	}
	if p.ADBPercent.IsNegative() || p.PTDPercent.IsNegative() {
		return fmt.Errorf("%w: rider percentages must be >= 0", ErrValidation)
	}
	return nil
}

// CoversSumAssured reports whether amount is within the product bounds.
func (p Product) CoversSumAssured(amount decimal.Decimal) bool {
	return !amount.LessThan(p.MinSumAssured) && !amount.GreaterThan(p.MaxSumAssured)
}

// Error helpers pertaining to products.
var (
	ErrProductNotFound = fmt.Errorf("%w: product not found", ErrNotFound)
	ErrProductConflict = fmt.Errorf("%w: product already exists", ErrConflict)
)
