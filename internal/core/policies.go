package core

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type PolicyStatus string

const (
	PolicyStatusPending     PolicyStatus = "Pending"
	PolicyStatusActive      PolicyStatus = "Active"
	PolicyStatusExpired     PolicyStatus = "Expired"
	PolicyStatusSurrendered PolicyStatus = "Surrendered"
)

// CanTransitionTo checks if a policy status transition is valid.
// Expired may still move to Surrendered when its surrender payout is processed.
func (s PolicyStatus) CanTransitionTo(next PolicyStatus) bool {
	transitions := map[PolicyStatus][]PolicyStatus{
		PolicyStatusPending: {PolicyStatusActive},
		PolicyStatusActive:  {PolicyStatusExpired, PolicyStatusSurrendered},
		PolicyStatusExpired: {PolicyStatusSurrendered},
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type PaymentInterval string

const (
	IntervalSingle     PaymentInterval = "Single"
	IntervalQuarterly  PaymentInterval = "quarterly"
	IntervalSemiAnnual PaymentInterval = "semi_annual"
	IntervalAnnual     PaymentInterval = "annual"
)

func (i PaymentInterval) Valid() bool {
	switch i {
	case IntervalSingle, IntervalQuarterly, IntervalSemiAnnual, IntervalAnnual:
		return true
	}
	return false
}

// Months between due dates; zero for a single premium.
func (i PaymentInterval) Months() int {
	switch i {
	case IntervalQuarterly:
		return 3
	case IntervalSemiAnnual:
		return 6
	case IntervalAnnual:
		return 12
	}
	return 0
}

// PerYear is the divisor applied to the annual premium.
func (i PaymentInterval) PerYear() int {
	switch i {
	case IntervalQuarterly:
		return 4
	case IntervalSemiAnnual:
		return 2
	}
	return 1
}

type RiskCategory string

const (
	RiskLow      RiskCategory = "Low"
	RiskModerate RiskCategory = "Moderate"
	RiskHigh     RiskCategory = "High"
)

type OccupationRisk string

const (
	OccupationLow    OccupationRisk = "low"
	OccupationMedium OccupationRisk = "medium"
	OccupationHigh   OccupationRisk = "high"
)

type ExerciseFrequency string

const (
	ExerciseNone       ExerciseFrequency = "none"
	ExerciseOccasional ExerciseFrequency = "occasional"
	ExerciseRegular    ExerciseFrequency = "regular"
	ExerciseDaily      ExerciseFrequency = "daily"
)

// RiskProfile carries the policyholder attributes underwriting scores.
type RiskProfile struct {
	Occupation      OccupationRisk    `json:"occupation"`
	Smoker          bool              `json:"smoker"`
	Alcoholic       bool              `json:"alcoholic"`
	Exercise        ExerciseFrequency `json:"exercise"`
	WorkEnvironment int               `json:"work_environment"` // 0-10
	MedicalHistory  bool              `json:"medical_history"`
	FamilyHistory   bool              `json:"family_history"`
	HazardZone      int               `json:"hazard_zone"` // 0-5
}

func (p RiskProfile) Validate() error {
	switch p.Occupation {
	case OccupationLow, OccupationMedium, OccupationHigh:
	default:
		return fmt.Errorf("%w: unknown occupation risk %q", ErrValidation, p.Occupation)
	}
	switch p.Exercise {
	case ExerciseNone, ExerciseOccasional, ExerciseRegular, ExerciseDaily:
	default:
		return fmt.Errorf("%w: unknown exercise frequency %q", ErrValidation, p.Exercise)
	}
	if p.WorkEnvironment < 0 || p.WorkEnvironment > 10 {
		return fmt.Errorf("%w: work environment risk must be 0-10", ErrValidation)
	}
	if p.HazardZone < 0 || p.HazardZone > 5 {
		return fmt.Errorf("%w: hazard zone risk must be 0-5", ErrValidation)
	}
	return nil
}

// PolicyHolder is an insured person and the policy they hold.
type PolicyHolder struct {
	ID              string          `json:"id"`
	PolicyNumber    string          `json:"policy_number"` // e.g. POL-2026-000001
	ProductID       string          `json:"product_id"`
	AgentID         string          `json:"agent_id,omitempty"`
	Name            string          `json:"name"`
	DateOfBirth     time.Time       `json:"date_of_birth"`
	SumAssured      decimal.Decimal `json:"sum_assured"`
	DurationYears   int             `json:"duration_years"`
	PaymentInterval PaymentInterval `json:"payment_interval"`
	StartDate       *time.Time      `json:"start_date,omitempty"`
	MaturityDate    *time.Time      `json:"maturity_date,omitempty"`
	Status          PolicyStatus    `json:"status"`
	RiskCategory    RiskCategory    `json:"risk_category"`
	Risk            RiskProfile     `json:"risk"`
	Term            int             `json:"term"` // 1 for the first term, incremented on renewal
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Validate checks the holder against its product at issue date asOf.
func (h PolicyHolder) Validate(p Product, t Terms, asOf time.Time) error {
	if h.Name == "" {
		return fmt.Errorf("%w: missing name", ErrValidation)
	}
	if h.DateOfBirth.IsZero() {
		return fmt.Errorf("%w: missing date of birth", ErrValidation)
	}
	if age := AgeOn(h.DateOfBirth, asOf); age < t.MinIssueAge || age > t.MaxIssueAge {
		return fmt.Errorf("%w: age %d at issuance outside %d-%d", ErrValidation, age, t.MinIssueAge, t.MaxIssueAge)
	}
	if !p.CoversSumAssured(h.SumAssured) {
		return fmt.Errorf("%w: sum assured %s outside product bounds %s-%s",
			ErrValidation, h.SumAssured.StringFixed(2), p.MinSumAssured.StringFixed(2), p.MaxSumAssured.StringFixed(2))
	}
	if h.DurationYears < 1 {
		return fmt.Errorf("%w: duration must be at least 1 year", ErrValidation)
	}
	if !h.PaymentInterval.Valid() {
		return fmt.Errorf("%w: unknown payment interval %q", ErrValidation, h.PaymentInterval)
	}
	return h.Risk.Validate()
}

// IssueDate is the start date once active, otherwise asOf.
func (h PolicyHolder) IssueDate(asOf time.Time) time.Time {
	if h.StartDate != nil {
		return *h.StartDate
	}
	return DateOf(asOf)
}

// Activate starts a term on start and sets maturity.
func (h *PolicyHolder) Activate(start time.Time) {
	start = DateOf(start)
	maturity := AddYears(start, h.DurationYears)
	h.StartDate = &start
	h.MaturityDate = &maturity
	h.Status = PolicyStatusActive
}

// TransitionTo moves the holder to next or fails with ErrInvalidState.
func (h *PolicyHolder) TransitionTo(next PolicyStatus) error {
	if h.Status == PolicyStatusSurrendered {
		return ErrPolicySurrendered
	}
	if !h.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: policy %s cannot move from %s to %s", ErrInvalidState, h.ID, h.Status, next)
	}
	h.Status = next
	return nil
}

type PolicyHolderFilter struct {
	Status    PolicyStatus
	ProductID string
	AgentID   string
}

type PolicyHolderRepo interface {
	Create(ctx context.Context, h PolicyHolder) error
	Get(ctx context.Context, id string) (PolicyHolder, error)
	// Lock reads the holder and blocks until its row lock is held for the transaction.
	Lock(ctx context.Context, id string) (PolicyHolder, error)
	// TryLock is Lock without waiting: a row held elsewhere yields ErrLocked.
	TryLock(ctx context.Context, id string) (PolicyHolder, error)
	Update(ctx context.Context, h PolicyHolder) error
	List(ctx context.Context, filter PolicyHolderFilter, limit, offset int) ([]PolicyHolder, int64, error)
	NextPolicyNumber(ctx context.Context, year int) (string, error)
}

var (
	ErrPolicyHolderNotFound = fmt.Errorf("%w: policy holder not found", ErrNotFound)
	ErrPolicyHolderExists   = fmt.Errorf("%w: policy holder already exists", ErrConflict)
)

// FormatPolicyNumber renders a yearly sequence as POL-YYYY-NNNNNN.
func FormatPolicyNumber(year int, seq int64) string {
	return fmt.Sprintf("POL-%d-%06d", year, seq)
}
