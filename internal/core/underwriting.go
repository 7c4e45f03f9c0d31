package core

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Underwriting is the risk assessment attached 1:1 to a policy holder.
type Underwriting struct {
	PolicyHolderID       string          `json:"policy_holder_id"`
	Score                int             `json:"risk_assessment_score"` // 0-100, higher = riskier
	RiskCategory         RiskCategory    `json:"risk_category"`
	LoadingPercent       decimal.Decimal `json:"premium_loading_percentage"`
	Factors              map[string]int  `json:"factors,omitempty"`
	NeedsReview          bool            `json:"needs_review"`
	MedicalExamRequired  bool            `json:"medical_examination_required"`
	MedicalExamCompleted bool            `json:"medical_examination_completed"`
	ManualOverride       bool            `json:"manual_override"`
	Remarks              string          `json:"remarks,omitempty"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// RiskAssessment is the output of the scoring rules.
type RiskAssessment struct {
	Score               int             `json:"score"`
	Category            RiskCategory    `json:"category"`
	LoadingPercent      decimal.Decimal `json:"loading_percent"`
	MedicalExamRequired bool            `json:"medical_exam_required"`
	Factors             map[string]int  `json:"factors"`
}

// AssessRisk scores a profile. Each factor is bounded; the total is clamped to [0, 100].
func AssessRisk(p RiskProfile, age int, sumAssured, productMax decimal.Decimal) RiskAssessment {
	factors := map[string]int{
		"age":              ageRisk(age),
		"occupation":       occupationRisk(p.Occupation),
		"health":           healthRisk(p),
		"work_environment": clamp(p.WorkEnvironment, 0, 10),
		"medical_history":  boolRisk(p.MedicalHistory, 15),
		"family_history":   boolRisk(p.FamilyHistory, 10),
		"hazard_zone":      clamp(p.HazardZone, 0, 5),
		"sum_assured":      sumAssuredRisk(sumAssured, productMax),
	}

	score := 0
	for _, v := range factors {
		score += v
	}
	score = clamp(score, 0, 100)

	return RiskAssessment{
		Score:               score,
		Category:            CategoryForScore(score),
		LoadingPercent:      LoadingForScore(score),
		MedicalExamRequired: score > 65 || age > 50,
		Factors:             factors,
	}
}

func ageRisk(age int) int {
	switch {
	case age < 25:
		return 5
	case age < 35:
		return 10
	case age < 45:
		return 15
	case age < 55:
		return 20
	default:
		return 25
	}
}

func occupationRisk(o OccupationRisk) int {
	switch o {
	case OccupationHigh:
		return 20
	case OccupationMedium:
		return 10
	default:
		return 5
	}
}

func healthRisk(p RiskProfile) int {
	score := 0
	if p.Smoker {
		score += 15
	}
	if p.Alcoholic {
		score += 10
	}
	switch p.Exercise {
	case ExerciseOccasional:
		score -= 2
	case ExerciseRegular:
		score -= 4
	case ExerciseDaily:
		score -= 5
	}
	return score
}

// sumAssuredRisk bands the sum assured as a share of the product maximum.
func sumAssuredRisk(sumAssured, productMax decimal.Decimal) int {
	if !productMax.IsPositive() {
		return 0
	}
	ratio := sumAssured.Div(productMax)
	switch {
	case ratio.LessThanOrEqual(decimal.RequireFromString("0.25")):
		return 0
	case ratio.LessThanOrEqual(decimal.RequireFromString("0.50")):
		return 3
	case ratio.LessThanOrEqual(decimal.RequireFromString("0.75")):
		return 6
	default:
		return 10
	}
}

func boolRisk(b bool, weight int) int {
	if b {
		return weight
	}
	return 0
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// CategoryForScore maps a score to its risk category: <30 Low, <60 Moderate, else High.
func CategoryForScore(score int) RiskCategory {
	switch {
	case score < 30:
		return RiskLow
	case score < 60:
		return RiskModerate
	default:
		return RiskHigh
	}
}

// LoadingForScore returns the premium loading percentage, rounded to the nearest 0.5.
func LoadingForScore(score int) decimal.Decimal {
	s := decimal.NewFromInt(int64(score))
	var loading decimal.Decimal
	switch CategoryForScore(score) {
	case RiskLow:
		return decimal.Zero
	case RiskModerate:
		loading = s.Sub(decimal.NewFromInt(30)).Mul(decimal.NewFromInt(5)).Div(decimal.NewFromInt(30)).Add(decimal.NewFromInt(5))
	default:
		loading = s.Sub(decimal.NewFromInt(60)).Mul(decimal.NewFromInt(15)).Div(decimal.NewFromInt(40)).Add(decimal.NewFromInt(10))
	}
	two := decimal.NewFromInt(2)
	return loading.Mul(two).Round(0).Div(two)
}

// Apply stores an assessment unless an underwriter override is in force.
// It reports whether anything was applied.
func (u *Underwriting) Apply(a RiskAssessment, now time.Time) bool {
	if u.ManualOverride {
		return false
	}
	u.Score = a.Score
	u.RiskCategory = a.Category
	u.LoadingPercent = a.LoadingPercent
	u.Factors = a.Factors
	u.MedicalExamRequired = a.MedicalExamRequired
	u.NeedsReview = a.Category == RiskHigh || (a.MedicalExamRequired && !u.MedicalExamCompleted)
	u.UpdatedAt = now
	return true
}

// Override pins a manual score; automatic recalculation is skipped until cleared.
func (u *Underwriting) Override(score int, remarks string, now time.Time) error {
	if score < 0 || score > 100 {
		return fmt.Errorf("%w: score must be 0-100", ErrValidation)
	}
	if remarks == "" {
		return fmt.Errorf("%w: remarks are required for a manual override", ErrValidation)
	}
	u.ManualOverride = true
	u.Score = score
	u.RiskCategory = CategoryForScore(score)
	u.LoadingPercent = LoadingForScore(score)
	u.NeedsReview = false
	u.Remarks = remarks
	u.UpdatedAt = now
	return nil
}

type UnderwritingRepo interface {
	Get(ctx context.Context, policyHolderID string) (Underwriting, error)
	Save(ctx context.Context, u Underwriting) error
}

var ErrUnderwritingNotFound = fmt.Errorf("%w: underwriting not found", ErrNotFound)
