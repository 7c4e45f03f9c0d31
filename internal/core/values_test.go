package core_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrKriegler/go-policyadmin/internal/core"
)

func activeHolder(productID string, start time.Time, years int) core.PolicyHolder {
	h := core.PolicyHolder{
		ID:              "holder-1",
		ProductID:       productID,
		Name:            "Ada Lovelace",
		DateOfBirth:     day(1996, time.March, 15),
		SumAssured:      dec("1000000"),
		DurationYears:   years,
		PaymentInterval: core.IntervalAnnual,
		Term:            1,
	}
	h.Activate(start)
	return h
}

func paidLedger(years int) core.PremiumPayment {
	p := ledger(core.IntervalAnnual, "3600.00", "36000", day(2026, time.January, 10))
	p.TotalPaid = dec("3600").Mul(decimal.NewFromInt(int64(years)))
	p.PaymentsMade = years
	return p
}

func TestCalculateGSV(t *testing.T) {
	rates := testRates(t)
	start := day(2026, time.January, 10)
	h := activeHolder(endowmentID, start, 10)

	t.Run("no band in the first policy years means zero", func(t *testing.T) {
		gsv, found := core.CalculateGSV(rates, h, paidLedger(1), core.GSVBasisNetPaid, day(2027, time.March, 1))
		assert.False(t, found)
		assert.True(t, gsv.IsZero())
	})

	t.Run("net paid basis excludes the first year premium", func(t *testing.T) {
		gsv, found := core.CalculateGSV(rates, h, paidLedger(3), core.GSVBasisNetPaid, day(2028, time.January, 10))
		assert.True(t, found)
		requireDec(t, "2160.00", gsv)
	})

	t.Run("sum assured basis", func(t *testing.T) {
		gsv, _ := core.CalculateGSV(rates, h, paidLedger(3), core.GSVBasisSumAssured, day(2028, time.January, 10))
		requireDec(t, "300000.00", gsv)
	})

	t.Run("pending policy has no value", func(t *testing.T) {
		pending := h
		pending.StartDate = nil
		gsv, found := core.CalculateGSV(rates, pending, paidLedger(3), core.GSVBasisNetPaid, day(2028, time.January, 10))
		assert.False(t, found)
		assert.True(t, gsv.IsZero())
	})
}

func TestCalculateSSV(t *testing.T) {
	rates := testRates(t)
	start := day(2026, time.January, 10)
	endowment, _ := rates.Product(endowmentID)
	term, _ := rates.Product(termID)

	t.Run("term policies have no special value", func(t *testing.T) {
		h := activeHolder(termID, start, 10)
		ssv, _ := core.CalculateSSV(rates, h, term, paidLedger(5), dec("0"), day(2031, time.January, 10))
		assert.True(t, ssv.IsZero())
	})

	t.Run("zero until the eligibility years are paid", func(t *testing.T) {
		h := activeHolder(endowmentID, start, 10)
		ssv, found := core.CalculateSSV(rates, h, endowment, paidLedger(2), dec("80000"), day(2029, time.January, 10))
		assert.True(t, found)
		assert.True(t, ssv.IsZero())
	})

	t.Run("factor on total paid plus accrued bonus", func(t *testing.T) {
		h := activeHolder(endowmentID, start, 10)
		ssv, found := core.CalculateSSV(rates, h, endowment, paidLedger(3), dec("80000"), day(2029, time.January, 10))
		assert.True(t, found)
		requireDec(t, "84320.00", ssv)
	})

	t.Run("values are cached on the ledger", func(t *testing.T) {
		h := activeHolder(endowmentID, start, 10)
		p := paidLedger(3)
		v := core.ValueSurrender(rates, h, endowment, &p, dec("80000"), core.GSVBasisNetPaid, day(2029, time.January, 10))
		assert.Equal(t, 3, v.ElapsedYears)
		assert.Equal(t, 3, v.PaidYears)
		requireDec(t, "2160.00", p.GSVValue)
		requireDec(t, "84320.00", p.SSVValue)
		requireDec(t, "84320.00", v.Best())
	})
}

func TestBonusAnniversary(t *testing.T) {
	rates := testRates(t)
	h := activeHolder(endowmentID, day(2026, time.January, 10), 10)

	var b core.Bonus
	credit, stamped := b.UpdateAnniversary(rates, h, core.PolicyTypeEndowment, day(2026, time.June, 1))
	assert.False(t, stamped, "no anniversary yet")
	assert.True(t, credit.IsZero())

	credit, stamped = b.UpdateAnniversary(rates, h, core.PolicyTypeEndowment, day(2027, time.January, 10))
	require.True(t, stamped)
	requireDec(t, "40000.00", credit)

	credit, stamped = b.UpdateAnniversary(rates, h, core.PolicyTypeEndowment, day(2027, time.February, 1))
	assert.False(t, stamped, "same anniversary twice")
	assert.True(t, credit.IsZero())
	requireDec(t, "40000", b.AccruedAmount)

	_, stamped = b.UpdateAnniversary(rates, h, core.PolicyTypeEndowment, day(2028, time.January, 10))
	require.True(t, stamped)
	requireDec(t, "80000", b.AccruedAmount)
	assert.Equal(t, day(2028, time.January, 10), *b.LastAnniversaryProcessed)

	assert.True(t, core.CalculateBonus(rates, core.PolicyTypeTerm, dec("1000000"), 2).IsZero())
}
