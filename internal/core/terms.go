package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// GSVBasis selects the amount the GSV rate is applied to.
type GSVBasis string

const (
	// GSVBasisNetPaid uses total premiums paid less the first-year premium.
	GSVBasisNetPaid    GSVBasis = "net_paid"
	GSVBasisSumAssured GSVBasis = "sum_assured"
)

// Terms holds the business constants shared by every policy.
type Terms struct {
	MinIssueAge int `json:"min_issue_age"`
	MaxIssueAge int `json:"max_issue_age"`

	FineGraceDays      int             `json:"fine_grace_days"`
	FineMonthlyPercent decimal.Decimal `json:"fine_monthly_percent"` // of the interval payment, per 30 days late
	FineCapPercent     decimal.Decimal `json:"fine_cap_percent"`     // zero: uncapped
	LapseDays          int             `json:"lapse_days"`

	LoanToValue      decimal.Decimal `json:"loan_to_value"`
	LoanInterestRate decimal.Decimal `json:"loan_interest_rate"` // annual %

	RenewalWindowDays  int `json:"renewal_window_days"`
	RenewalGraceDays   int `json:"renewal_grace_days"`
	SecondReminderDays int `json:"second_reminder_days"` // before due date
	FinalReminderDays  int `json:"final_reminder_days"`

	GSVBasis            GSVBasis        `json:"gsv_basis"`
	SurrenderFee        decimal.Decimal `json:"surrender_fee"`
	SurrenderTaxPercent decimal.Decimal `json:"surrender_tax_percent"`

	// AgentCommissionPercent is the rate given to agents onboarded from an application.
	AgentCommissionPercent decimal.Decimal `json:"agent_commission_percent"`
}

func DefaultTerms() Terms {
	return Terms{
		MinIssueAge:         18,
		MaxIssueAge:         60,
		FineGraceDays:       15,
		FineMonthlyPercent:  decimal.NewFromInt(1),
		FineCapPercent:      decimal.Zero,
		LapseDays:           1095,
		LoanToValue:         decimal.RequireFromString("0.90"),
		LoanInterestRate:    decimal.NewFromInt(10),
		RenewalWindowDays:   60,
		RenewalGraceDays:    30,
		SecondReminderDays:  30,
		FinalReminderDays:   7,
		GSVBasis:            GSVBasisNetPaid,
		SurrenderFee:        decimal.Zero,
		SurrenderTaxPercent: decimal.Zero,

		AgentCommissionPercent: decimal.NewFromInt(5),
	}
}

func (t Terms) Validate() error {
	if t.MinIssueAge <= 0 || t.MaxIssueAge < t.MinIssueAge {
		return fmt.Errorf("%w: invalid issue age range", ErrValidation)
	}
	if t.FineGraceDays < 0 || t.LapseDays <= 0 {
		return fmt.Errorf("%w: invalid fine or lapse window", ErrValidation)
	}
	if t.FineMonthlyPercent.IsNegative() || t.FineCapPercent.IsNegative() {
		return fmt.Errorf("%w: fine percentages must be >= 0", ErrValidation)
	}
	if !t.LoanToValue.IsPositive() || t.LoanToValue.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: loan to value must be in (0, 1]", ErrValidation)
	}
	if t.LoanInterestRate.IsNegative() {
		return fmt.Errorf("%w: loan interest rate must be >= 0", ErrValidation)
	}
	if t.RenewalWindowDays < 0 || t.RenewalGraceDays < 0 {
		return fmt.Errorf("%w: invalid renewal windows", ErrValidation)
	}
	if t.GSVBasis != GSVBasisNetPaid && t.GSVBasis != GSVBasisSumAssured {
		return fmt.Errorf("%w: unknown gsv basis %q", ErrValidation, t.GSVBasis)
	}
	if t.SurrenderFee.IsNegative() || t.SurrenderTaxPercent.IsNegative() {
		return fmt.Errorf("%w: surrender deductions must be >= 0", ErrValidation)
	}
	if t.AgentCommissionPercent.IsNegative() || t.AgentCommissionPercent.GreaterThan(hundred) {
		return fmt.Errorf("%w: agent commission must be 0-100", ErrValidation)
	}
	return nil
}
