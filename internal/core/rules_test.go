package core_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrKriegler/go-policyadmin/internal/core"
)

func TestDates(t *testing.T) {
	assert.Equal(t, day(2026, time.February, 28), core.AddMonths(day(2026, time.January, 31), 1))
	assert.Equal(t, day(2028, time.February, 29), core.AddMonths(day(2028, time.January, 31), 1))
	assert.Equal(t, day(2025, time.October, 31), core.AddMonths(day(2026, time.January, 31), -3))
	assert.Equal(t, day(2029, time.February, 28), core.AddYears(day(2028, time.February, 29), 1))

	assert.Equal(t, 29, core.AgeOn(day(1996, time.March, 15), day(2026, time.March, 14)))
	assert.Equal(t, 30, core.AgeOn(day(1996, time.March, 15), day(2026, time.March, 15)))
	assert.Equal(t, 0, core.WholeYearsBetween(day(2026, time.March, 15), day(2020, time.March, 15)))

	assert.Equal(t, 40, core.DaysBetween(day(2026, time.April, 10), day(2026, time.May, 20)))
	assert.Equal(t, -40, core.DaysBetween(day(2026, time.May, 20), day(2026, time.April, 10)))
	assert.Equal(t, 0, core.DaysBetween(day(2026, time.May, 20), day(2026, time.May, 20).Add(23*time.Hour)))

	start := day(2026, time.January, 10)
	assert.Equal(t, start, core.AnniversaryOnOrBefore(start, day(2027, time.January, 9)))
	assert.Equal(t, day(2027, time.January, 10), core.AnniversaryOnOrBefore(start, day(2027, time.January, 10)))
}

func TestRateTables(t *testing.T) {
	t.Run("overlapping bands are rejected", func(t *testing.T) {
		bands := append(testBands(), core.RateBand{ID: "mort-2", Table: core.TableMortality, Min: 60, Max: 70, Value: dec("5")})
		_, err := core.NewRateTables(testProducts(), bands)
		require.ErrorIs(t, err, core.ErrValidation)
	})

	t.Run("same range under a different key is fine", func(t *testing.T) {
		b := core.RateBand{Table: core.TableGSVRate, Key: "OTHER", Min: 2, Max: 5, Value: dec("30")}
		require.NoError(t, core.CheckOverlap(testBands(), b))
	})

	t.Run("a band does not overlap itself", func(t *testing.T) {
		b := testBands()[0]
		b.Value = dec("3.5")
		require.NoError(t, core.CheckOverlap(testBands(), b))
	})

	t.Run("band validation", func(t *testing.T) {
		require.ErrorIs(t, core.RateBand{Table: core.TableMortality, Key: "x", Min: 1, Max: 2}.Validate(), core.ErrValidation)
		require.ErrorIs(t, core.RateBand{Table: core.TableGSVRate, Key: "P", Min: 5, Max: 2}.Validate(), core.ErrValidation)
		require.ErrorIs(t, core.RateBand{Table: core.TableGSVRate, Key: "P", Min: 1, Max: 2, EligibilityYears: 3}.Validate(), core.ErrValidation)
		require.ErrorIs(t, core.RateBand{Table: core.TableDurationFactor, Key: "Whole", Min: 1, Max: 2}.Validate(), core.ErrValidation)
		require.ErrorIs(t, core.RateBand{Table: "lapse", Min: 1, Max: 2}.Validate(), core.ErrValidation)
	})

	t.Run("lookups", func(t *testing.T) {
		rt := testRates(t)
		rate, ok := rt.MortalityRate(40)
		require.True(t, ok)
		requireDec(t, "3.00", rate)

		_, ok = rt.GSVRate(endowmentID, 1)
		assert.False(t, ok)
		gsv, ok := rt.GSVRate(endowmentID, 6)
		require.True(t, ok)
		requireDec(t, "50", gsv)

		ssv, ok := rt.SSVConfig(endowmentID, 4)
		require.True(t, ok)
		assert.Equal(t, 3, ssv.EligibilityYears)

		assert.Equal(t, []int{16, 17}, rt.MortalityGaps(16, 20))
	})
}

func TestAssessRisk(t *testing.T) {
	t.Run("healthy young applicant", func(t *testing.T) {
		a := core.AssessRisk(lowRisk(), 29, dec("1000000"), dec("5000000"))
		assert.Equal(t, 11, a.Score)
		assert.Equal(t, core.RiskLow, a.Category)
		assert.True(t, a.LoadingPercent.IsZero())
		assert.False(t, a.MedicalExamRequired)
		assert.Equal(t, -4, a.Factors["health"])
	})

	t.Run("everything at once is clamped", func(t *testing.T) {
		p := core.RiskProfile{
			Occupation:      core.OccupationHigh,
			Smoker:          true,
			Alcoholic:       true,
			Exercise:        core.ExerciseNone,
			WorkEnvironment: 10,
			MedicalHistory:  true,
			FamilyHistory:   true,
			HazardZone:      5,
		}
		a := core.AssessRisk(p, 52, dec("5000000"), dec("5000000"))
		assert.Equal(t, 100, a.Score)
		assert.Equal(t, core.RiskHigh, a.Category)
		requireDec(t, "25", a.LoadingPercent)
		assert.True(t, a.MedicalExamRequired)
	})

	t.Run("older applicants need an exam", func(t *testing.T) {
		a := core.AssessRisk(lowRisk(), 51, dec("100000"), dec("5000000"))
		assert.True(t, a.MedicalExamRequired)
	})
}

func TestRiskBands(t *testing.T) {
	assert.Equal(t, core.RiskLow, core.CategoryForScore(29))
	assert.Equal(t, core.RiskModerate, core.CategoryForScore(30))
	assert.Equal(t, core.RiskModerate, core.CategoryForScore(59))
	assert.Equal(t, core.RiskHigh, core.CategoryForScore(60))

	requireDec(t, "0", core.LoadingForScore(29))
	requireDec(t, "5", core.LoadingForScore(31))
	requireDec(t, "5.5", core.LoadingForScore(32))
	requireDec(t, "7.5", core.LoadingForScore(45))
	requireDec(t, "10", core.LoadingForScore(60))
	requireDec(t, "25", core.LoadingForScore(100))
}

func TestUnderwritingOverride(t *testing.T) {
	now := day(2026, time.January, 10)
	var u core.Underwriting

	require.ErrorIs(t, u.Override(101, "too high", now), core.ErrValidation)
	require.ErrorIs(t, u.Override(20, "", now), core.ErrValidation)
	require.NoError(t, u.Override(45, "reviewed by underwriter", now))
	assert.Equal(t, core.RiskModerate, u.RiskCategory)
	requireDec(t, "7.5", u.LoadingPercent)

	applied := u.Apply(core.AssessRisk(lowRisk(), 29, dec("1000000"), dec("5000000")), now)
	assert.False(t, applied, "override in force")
	assert.Equal(t, 45, u.Score)

	u.ManualOverride = false
	assert.True(t, u.Apply(core.AssessRisk(lowRisk(), 29, dec("1000000"), dec("5000000")), now))
	assert.Equal(t, 11, u.Score)
}

func TestPolicyStatusTransitions(t *testing.T) {
	h := core.PolicyHolder{ID: "holder-1", Status: core.PolicyStatusPending}
	require.ErrorIs(t, h.TransitionTo(core.PolicyStatusExpired), core.ErrInvalidState)
	require.NoError(t, h.TransitionTo(core.PolicyStatusActive))
	require.NoError(t, h.TransitionTo(core.PolicyStatusExpired))
	require.ErrorIs(t, h.TransitionTo(core.PolicyStatusActive), core.ErrInvalidState)
	require.NoError(t, h.TransitionTo(core.PolicyStatusSurrendered))
	require.ErrorIs(t, h.TransitionTo(core.PolicyStatusActive), core.ErrPolicySurrendered)
}

func TestRenewalReminders(t *testing.T) {
	terms := core.DefaultTerms()
	due := day(2027, time.January, 10)
	r := core.NewRenewal("ren-1", "holder-1", due, terms, due)
	assert.Equal(t, day(2027, time.February, 9), r.GracePeriodEnd)

	kind, ok := r.DueReminder(day(2026, time.November, 15), terms)
	assert.True(t, ok)
	assert.Equal(t, core.ReminderFirst, kind)

	require.ErrorIs(t, r.MarkReminder(core.ReminderSecond, day(2026, time.November, 15)), core.ErrValidation)
	require.NoError(t, r.MarkReminder(core.ReminderFirst, day(2026, time.November, 15)))
	require.ErrorIs(t, r.MarkReminder(core.ReminderFirst, day(2026, time.November, 16)), core.ErrValidation)
	require.ErrorIs(t, r.MarkReminder(core.ReminderFinal, day(2026, time.November, 16)), core.ErrValidation)

	kind, ok = r.DueReminder(day(2026, time.December, 1), terms)
	assert.Equal(t, core.ReminderSecond, kind)
	assert.False(t, ok, "too early for the second")
	_, ok = r.DueReminder(day(2026, time.December, 11), terms)
	assert.True(t, ok)

	require.NoError(t, r.MarkReminder(core.ReminderSecond, day(2026, time.December, 11)))
	require.NoError(t, r.MarkReminder(core.ReminderFinal, day(2027, time.January, 3)))
	_, ok = r.DueReminder(day(2027, time.January, 5), terms)
	assert.False(t, ok)

	assert.False(t, r.GraceLapsed(day(2027, time.February, 9)))
	assert.True(t, r.GraceLapsed(day(2027, time.February, 10)))

	require.NoError(t, r.TransitionTo(core.RenewalRenewed, due))
	require.ErrorIs(t, r.MarkReminder(core.ReminderFinal, due), core.ErrInvalidState)
	assert.False(t, r.GraceLapsed(day(2027, time.March, 1)))
}
