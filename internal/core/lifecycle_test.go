package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/MrKriegler/go-policyadmin/internal/core"
)

type LifecycleSuite struct {
	suite.Suite
	ctx   context.Context
	start time.Time
	h     *harness
}

func TestLifecycleSuite(t *testing.T) {
	suite.Run(t, new(LifecycleSuite))
}

func (s *LifecycleSuite) SetupTest() {
	s.ctx = context.Background()
	s.start = day(2026, time.January, 10)
	s.h = newHarness(s.T(), s.start)
}

func (s *LifecycleSuite) at(y int, m time.Month, d int) {
	s.h.clock.Set(day(y, m, d))
}

func (s *LifecycleSuite) get(id string) core.PolicyView {
	v, err := s.h.lc.Get(s.ctx, id)
	s.Require().NoError(err)
	return v
}

func (s *LifecycleSuite) TestRegisterAndApprove() {
	holder, err := s.h.lc.Register(s.ctx, application(endowmentID, core.IntervalQuarterly, 10))
	s.Require().NoError(err)
	s.Equal("POL-2026-000001", holder.PolicyNumber)
	s.Equal(core.PolicyStatusPending, holder.Status)
	s.Equal(core.RiskLow, holder.RiskCategory)

	v := s.get(holder.ID)
	s.Require().NotNil(v.Underwriting)
	s.Equal(11, v.Underwriting.Score)
	s.Nil(v.Payment, "no ledger before approval")

	v, err = s.h.lc.Approve(s.ctx, holder.ID)
	s.Require().NoError(err)
	s.Equal(core.PolicyStatusActive, v.Holder.Status)
	s.Equal(1, v.Holder.Term)
	s.Equal(day(2036, time.January, 10), *v.Holder.MaturityDate)
	s.Require().NotNil(v.Payment)
	requireDec(s.T(), "900.00", v.Payment.IntervalPayment)
	requireDec(s.T(), "36000", v.Payment.TotalPremium)
	s.Equal(s.start, *v.Payment.NextPaymentDate)
	s.Equal(core.PaymentUnpaid, v.Payment.Status)
	s.Require().NotNil(v.Bonus)

	_, err = s.h.lc.Approve(s.ctx, holder.ID)
	s.Require().ErrorIs(err, core.ErrInvalidState)
	s.Equal(1, s.h.events.count(core.EventPolicyStatusChanged))

	second, err := s.h.lc.Register(s.ctx, application(termID, core.IntervalAnnual, 10))
	s.Require().NoError(err)
	s.Equal("POL-2026-000002", second.PolicyNumber)
}

func (s *LifecycleSuite) TestRegisterRejectsInvalidApplications() {
	in := application(endowmentID, core.IntervalQuarterly, 10)
	in.SumAssured = dec("50")
	_, err := s.h.lc.Register(s.ctx, in)
	s.Require().ErrorIs(err, core.ErrValidation)

	in = application("NOPE", core.IntervalQuarterly, 10)
	_, err = s.h.lc.Register(s.ctx, in)
	s.Require().ErrorIs(err, core.ErrNotFound)

	in = application(endowmentID, core.IntervalQuarterly, 10)
	in.AgentID = "AG-404"
	_, err = s.h.lc.Register(s.ctx, in)
	s.Require().ErrorIs(err, core.ErrNotFound)
}

func (s *LifecycleSuite) TestPaymentsAndFines() {
	v := s.h.issue(s.T(), application(endowmentID, core.IntervalQuarterly, 10))
	id := v.Holder.ID

	res := s.h.pay(s.T(), id, "900.00")
	s.True(res.Receipt.FirstPayment)
	s.Equal(day(2026, time.April, 10), *res.Payment.NextPaymentDate)

	s.at(2026, time.May, 20)
	fine, err := s.h.lc.Fine(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(40, fine.DaysLate)
	requireDec(s.T(), "7.50", fine.CurrentFine)
	requireDec(s.T(), "7.50", fine.Outstanding)
	s.True(s.get(id).Payment.FineDue.IsZero(), "reading the fine does not persist it")

	_, err = s.h.lc.AddPayment(s.ctx, id, dec("450"))
	s.Require().ErrorIs(err, core.ErrValidation)

	res = s.h.pay(s.T(), id, "907.50")
	requireDec(s.T(), "7.50", res.Receipt.FinePayment)
	requireDec(s.T(), "900", res.Receipt.Principal)
	requireDec(s.T(), "1800", res.Payment.TotalPaid)
	s.Equal(2, s.h.events.count(core.EventPaymentAccepted))
}

func (s *LifecycleSuite) TestAgentCommission() {
	_, err := s.h.lc.SaveAgent(s.ctx, core.SalesAgent{ID: "AG-1", Name: "Grace Hopper", CommissionRate: dec("5"), Active: true})
	s.Require().NoError(err)

	in := application(endowmentID, core.IntervalQuarterly, 10)
	in.AgentID = "AG-1"
	v := s.h.issue(s.T(), in)

	res := s.h.pay(s.T(), v.Holder.ID, "900.00")
	requireDec(s.T(), "45.00", res.Commission)

	reports, err := s.h.lc.AgentReports(s.ctx, s.start)
	s.Require().NoError(err)
	s.Require().Len(reports, 1)
	s.Equal(1, reports[0].PoliciesSold)
	requireDec(s.T(), "900", reports[0].TotalPremium)
	requireDec(s.T(), "45", reports[0].CommissionEarned)
}

func (s *LifecycleSuite) TestLapseOpensAutomaticSurrender() {
	v := s.h.issue(s.T(), application(endowmentID, core.IntervalQuarterly, 10))
	id := v.Holder.ID

	s.at(2029, time.January, 9)
	lapsed, err := s.h.lc.CheckPolicyExpiry(s.ctx, id)
	s.Require().NoError(err)
	s.False(lapsed)

	s.at(2029, time.January, 10)
	lapsed, err = s.h.lc.CheckPolicyExpiry(s.ctx, id)
	s.Require().NoError(err)
	s.True(lapsed)

	v = s.get(id)
	s.Equal(core.PolicyStatusExpired, v.Holder.Status)
	s.Equal(core.PaymentExpired, v.Payment.Status)
	s.Require().Len(v.Surrenders, 1)
	s.Equal(core.SurrenderAutomatic, v.Surrenders[0].Type)
	s.Equal(core.SurrenderApproved, v.Surrenders[0].Status)

	lapsed, err = s.h.lc.CheckPolicyExpiry(s.ctx, id)
	s.Require().NoError(err)
	s.False(lapsed, "already expired")

	sur, err := s.h.lc.ProcessSurrenderPayment(s.ctx, v.Surrenders[0].ID)
	s.Require().NoError(err)
	s.Equal(core.SurrenderProcessed, sur.Status)
	s.Equal(core.PolicyStatusSurrendered, s.get(id).Holder.Status)
}

func (s *LifecycleSuite) TestLapseSupersedesVoluntaryRequest() {
	v := s.h.issue(s.T(), application(endowmentID, core.IntervalQuarterly, 10))
	id := v.Holder.ID

	vol, err := s.h.lc.RequestSurrender(s.ctx, id, "moving abroad")
	s.Require().NoError(err)
	s.Equal(core.SurrenderPending, vol.Status)

	_, err = s.h.lc.RequestSurrender(s.ctx, id, "again")
	s.Require().ErrorIs(err, core.ErrConflict)

	s.at(2029, time.January, 10)
	ev, err := s.h.lc.Evaluate(s.ctx, id)
	s.Require().NoError(err)
	s.True(ev.Lapsed)
	s.Equal(core.PolicyStatusExpired, ev.Status)

	vol, err = s.h.lc.GetSurrender(s.ctx, vol.ID)
	s.Require().NoError(err)
	s.Equal(core.SurrenderRejected, vol.Status)
	s.NotEmpty(vol.Remarks)
}

func (s *LifecycleSuite) TestLoansAndSurrender() {
	v := s.h.issue(s.T(), application(endowmentID, core.IntervalAnnual, 10))
	id := v.Holder.ID

	_, err := s.h.lc.CreateLoan(s.ctx, id, dec("100"))
	s.Require().ErrorIs(err, core.ErrValidation, "no surrender value yet")

	s.h.pay(s.T(), id, "3600.00")
	s.at(2027, time.January, 10)
	s.h.pay(s.T(), id, "3600.00")
	s.at(2028, time.January, 10)
	s.h.pay(s.T(), id, "3600.00")

	q, err := s.h.lc.MaxLoan(s.ctx, id)
	s.Require().NoError(err)
	requireDec(s.T(), "2160.00", q.GSV)
	requireDec(s.T(), "1944.00", q.MaxAllowed)
	requireDec(s.T(), "1944.00", q.Available)

	_, err = s.h.lc.CreateLoan(s.ctx, id, dec("2000"))
	s.Require().ErrorIs(err, core.ErrValidation)

	loan, err := s.h.lc.CreateLoan(s.ctx, id, dec("1000"))
	s.Require().NoError(err)
	s.Equal(core.LoanActive, loan.Status)

	q, err = s.h.lc.MaxLoan(s.ctx, id)
	s.Require().NoError(err)
	requireDec(s.T(), "1000", q.Outstanding)
	requireDec(s.T(), "944.00", q.Available)

	s.at(2028, time.February, 9)
	loan, err = s.h.lc.AccrueInterest(s.ctx, loan.ID)
	s.Require().NoError(err)
	requireDec(s.T(), "8.22", loan.AccruedInterest)
	loan, err = s.h.lc.AccrueInterest(s.ctx, loan.ID)
	s.Require().NoError(err)
	requireDec(s.T(), "8.22", loan.AccruedInterest, "same day twice")

	in := core.RepaymentInput{ID: "rep-1", Amount: dec("108.22"), Type: core.RepayBoth}
	rep, err := s.h.lc.RepayLoan(s.ctx, loan.ID, in)
	s.Require().NoError(err)
	s.False(rep.Replayed)
	requireDec(s.T(), "8.22", rep.Repayment.InterestPaid)
	requireDec(s.T(), "100", rep.Repayment.PrincipalPaid)
	requireDec(s.T(), "900", rep.Repayment.RemainingLoanBalance)

	rep, err = s.h.lc.RepayLoan(s.ctx, loan.ID, in)
	s.Require().NoError(err)
	s.True(rep.Replayed)
	requireDec(s.T(), "900", rep.Loan.RemainingBalance)

	lv, err := s.h.lc.GetLoan(s.ctx, loan.ID)
	s.Require().NoError(err)
	s.Len(lv.Repayments, 1)

	sur, err := s.h.lc.RequestSurrender(s.ctx, id, "need the cash")
	s.Require().NoError(err)
	requireDec(s.T(), "900", sur.OutstandingLoans)
	s.False(sur.SurrenderAmount.IsNegative())

	_, err = s.h.lc.ProcessSurrenderPayment(s.ctx, sur.ID)
	s.Require().ErrorIs(err, core.ErrInvalidState, "not approved yet")
	_, err = s.h.lc.RejectSurrender(s.ctx, sur.ID, "")
	s.Require().ErrorIs(err, core.ErrValidation)

	sur, err = s.h.lc.ApproveSurrender(s.ctx, sur.ID, "ok")
	s.Require().NoError(err)
	s.Equal(core.PolicyStatusSurrendered, s.get(id).Holder.Status)

	sur, err = s.h.lc.ProcessSurrenderPayment(s.ctx, sur.ID)
	s.Require().NoError(err)
	s.Equal(core.SurrenderProcessed, sur.Status)
	requireDec(s.T(), "900", sur.OutstandingLoans)
	s.Equal(1, s.h.events.count(core.EventSurrenderProcessed))

	lv, err = s.h.lc.GetLoan(s.ctx, loan.ID)
	s.Require().NoError(err)
	s.Equal(core.LoanPaid, lv.Loan.Status)
	s.Require().Len(lv.Repayments, 2)
	s.True(lv.Repayments[1].Settlement)

	// Surrendered policies are locked out of every mutation
	_, err = s.h.lc.AddPayment(s.ctx, id, dec("3600"))
	s.Require().ErrorIs(err, core.ErrPolicySurrendered)
	_, err = s.h.lc.MaxLoan(s.ctx, id)
	s.Require().ErrorIs(err, core.ErrPolicySurrendered)
	_, err = s.h.lc.RepayLoan(s.ctx, loan.ID, core.RepaymentInput{Amount: dec("1"), Type: core.RepayBoth})
	s.Require().ErrorIs(err, core.ErrPolicySurrendered)
	_, err = s.h.lc.Recompute(s.ctx, id)
	s.Require().ErrorIs(err, core.ErrPolicySurrendered)
	_, err = s.h.lc.OverrideRisk(s.ctx, id, core.OverrideInput{Score: 40, Remarks: "late"})
	s.Require().ErrorIs(err, core.ErrPolicySurrendered)
	_, err = s.h.lc.RequestSurrender(s.ctx, id, "twice")
	s.Require().ErrorIs(err, core.ErrPolicySurrendered)
}

func (s *LifecycleSuite) TestAnniversaryBonus() {
	v := s.h.issue(s.T(), application(endowmentID, core.IntervalAnnual, 10))
	id := v.Holder.ID
	s.h.pay(s.T(), id, "3600.00")

	s.at(2027, time.January, 10)
	res, err := s.h.lc.UpdateAnniversaryBonus(s.ctx, id)
	s.Require().NoError(err)
	s.True(res.Processed)
	requireDec(s.T(), "40000.00", res.Credited)

	res, err = s.h.lc.UpdateAnniversaryBonus(s.ctx, id)
	s.Require().NoError(err)
	s.False(res.Processed)
	requireDec(s.T(), "40000", s.get(id).Bonus.AccruedAmount)
	s.Equal(1, s.h.events.count(core.EventBonusCredited))
}

func (s *LifecycleSuite) TestRiskOverrideReprices() {
	v := s.h.issue(s.T(), application(endowmentID, core.IntervalQuarterly, 10))
	id := v.Holder.ID

	_, err := s.h.lc.OverrideRisk(s.ctx, id, core.OverrideInput{Score: 45})
	s.Require().ErrorIs(err, core.ErrValidation, "remarks required")

	v, err = s.h.lc.OverrideRisk(s.ctx, id, core.OverrideInput{Score: 45, Remarks: "family history on file"})
	s.Require().NoError(err)
	s.Equal(core.RiskModerate, v.Holder.RiskCategory)
	requireDec(s.T(), "967.50", v.Payment.IntervalPayment)

	v, err = s.h.lc.Recompute(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(45, v.Underwriting.Score, "override survives recompute")

	v, err = s.h.lc.ClearOverride(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(core.RiskLow, v.Holder.RiskCategory)
	requireDec(s.T(), "900.00", v.Payment.IntervalPayment)

	_, err = s.h.lc.ClearOverride(s.ctx, id)
	s.Require().ErrorIs(err, core.ErrValidation)
}

func (s *LifecycleSuite) TestProfileChangeRunsPipeline() {
	v := s.h.issue(s.T(), application(endowmentID, core.IntervalAnnual, 10))
	id := v.Holder.ID
	s.h.pay(s.T(), id, "3600.00")
	s.at(2027, time.January, 10)
	s.h.pay(s.T(), id, "3600.00")
	s.at(2028, time.January, 10)
	s.h.pay(s.T(), id, "3600.00")

	s.at(2029, time.January, 15)
	v, err := s.h.lc.Recompute(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(11, v.Underwriting.Score)
	requireDec(s.T(), "3600.00", v.Payment.AnnualPremium)
	requireDec(s.T(), "2160.00", v.Payment.GSVValue)
	requireDec(s.T(), "4320.00", v.Payment.SSVValue)

	risk := lowRisk()
	risk.Smoker = true
	risk.Alcoholic = true
	v, err = s.h.lc.UpdateProfile(s.ctx, id, core.ProfileUpdate{Risk: &risk})
	s.Require().NoError(err)

	s.Equal(36, v.Underwriting.Score)
	s.Equal(core.RiskModerate, v.Underwriting.RiskCategory)
	s.Equal(core.RiskModerate, v.Holder.RiskCategory)
	requireDec(s.T(), "6.0", v.Underwriting.LoadingPercent)
	requireDec(s.T(), "3816.00", v.Payment.AnnualPremium)
	requireDec(s.T(), "38160.00", v.Payment.TotalPremium)
	requireDec(s.T(), "2095.20", v.Payment.GSVValue, "gsv basis follows the new first-year premium")
	requireDec(s.T(), "4320.00", v.Payment.SSVValue)

	stored := s.get(id)
	requireDec(s.T(), "2095.20", stored.Payment.GSVValue)
	s.Equal(core.RiskModerate, stored.Holder.RiskCategory)
}

func (s *LifecycleSuite) TestProfileChangeCannotTouchContract() {
	v := s.h.issue(s.T(), application(endowmentID, core.IntervalAnnual, 10))
	id := v.Holder.ID

	sum := dec("2000000")
	_, err := s.h.lc.UpdateProfile(s.ctx, id, core.ProfileUpdate{SumAssured: &sum})
	s.Require().ErrorIs(err, core.ErrValidation)
	requireDec(s.T(), "1000000", s.get(id).Holder.SumAssured)

	holder, err := s.h.lc.Register(s.ctx, application(endowmentID, core.IntervalAnnual, 10))
	s.Require().NoError(err)
	v, err = s.h.lc.UpdateProfile(s.ctx, holder.ID, core.ProfileUpdate{SumAssured: &sum})
	s.Require().NoError(err, "pending applications may still change")
	requireDec(s.T(), "2000000", v.Holder.SumAssured)
}

func (s *LifecycleSuite) TestMaturity() {
	v := s.h.issue(s.T(), application(endowmentID, core.IntervalQuarterly, 1))
	id := v.Holder.ID
	for _, m := range []time.Month{time.January, time.April, time.July, time.October} {
		s.at(2026, m, 10)
		s.h.pay(s.T(), id, "900.00")
	}
	s.Equal(core.PaymentPaid, s.get(id).Payment.Status)

	s.at(2027, time.January, 9)
	ev, err := s.h.lc.Evaluate(s.ctx, id)
	s.Require().NoError(err)
	s.False(ev.Changed())

	s.at(2027, time.January, 10)
	ev, err = s.h.lc.Evaluate(s.ctx, id)
	s.Require().NoError(err)
	s.True(ev.Matured)
	s.Equal(core.PolicyStatusSurrendered, ev.Status)

	v = s.get(id)
	s.Require().Len(v.Surrenders, 1)
	s.Equal(core.SurrenderMaturity, v.Surrenders[0].Type)
	s.Equal(core.SurrenderApproved, v.Surrenders[0].Status)
}

func (s *LifecycleSuite) TestRenewal() {
	v := s.h.issue(s.T(), application(endowmentID, core.IntervalAnnual, 1))
	id := v.Holder.ID
	s.h.pay(s.T(), id, "3600.00")

	s.at(2026, time.November, 15)
	ev, err := s.h.lc.Evaluate(s.ctx, id)
	s.Require().NoError(err)
	s.True(ev.RenewalOpened)
	s.Equal(1, s.h.events.count(core.EventRenewalReminder))

	v = s.get(id)
	s.Require().Len(v.Renewals, 1)
	ren := v.Renewals[0]
	s.Equal(day(2027, time.January, 10), ren.DueDate)
	s.NotNil(ren.FirstReminderSent)

	s.at(2026, time.December, 15)
	res, err := s.h.batch.Run(s.ctx, core.JobSendRenewalReminders)
	s.Require().NoError(err)
	s.Equal(1, res.Changed)
	res, err = s.h.batch.Run(s.ctx, core.JobSendRenewalReminders)
	s.Require().NoError(err)
	s.Equal(0, res.Changed)

	s.at(2027, time.January, 10)
	ev, err = s.h.lc.Evaluate(s.ctx, id)
	s.Require().NoError(err)
	s.False(ev.Matured, "renewal pending")

	s.at(2027, time.January, 12)
	v, err = s.h.lc.MarkRenewed(s.ctx, ren.ID)
	s.Require().NoError(err)
	s.Equal(2, v.Holder.Term)
	s.Equal(day(2027, time.January, 12), *v.Holder.StartDate, "new term starts on the renewal date")
	s.Equal(day(2028, time.January, 12), *v.Holder.MaturityDate)
	s.Require().NotNil(v.Payment)
	s.Equal(2, v.Payment.Term)
	s.True(v.Payment.TotalPaid.IsZero())
	s.Equal(day(2027, time.January, 12), *v.Payment.NextPaymentDate)

	_, err = s.h.lc.MarkRenewed(s.ctx, ren.ID)
	s.Require().ErrorIs(err, core.ErrInvalidState)
}

func (s *LifecycleSuite) TestRenewedBeforeMaturityRestartsTerm() {
	v := s.h.issue(s.T(), application(endowmentID, core.IntervalAnnual, 1))
	id := v.Holder.ID
	s.h.pay(s.T(), id, "3600.00")

	s.at(2026, time.November, 20)
	_, err := s.h.lc.Evaluate(s.ctx, id)
	s.Require().NoError(err)
	ren := s.get(id).Renewals[0]

	s.at(2026, time.December, 15)
	v, err = s.h.lc.MarkRenewed(s.ctx, ren.ID)
	s.Require().NoError(err)
	s.Equal(day(2026, time.December, 15), *v.Holder.StartDate)
	s.Equal(day(2027, time.December, 15), *v.Holder.MaturityDate)

	s.at(2027, time.January, 10)
	ev, err := s.h.lc.Evaluate(s.ctx, id)
	s.Require().NoError(err)
	s.False(ev.Matured, "old maturity date no longer applies")
	s.Equal(core.PolicyStatusActive, ev.Status)
}

func (s *LifecycleSuite) TestUnrenewedMaturityStillPaysOut() {
	v := s.h.issue(s.T(), application(endowmentID, core.IntervalAnnual, 3))
	id := v.Holder.ID
	s.h.pay(s.T(), id, "3600.00")
	s.at(2027, time.January, 10)
	s.h.pay(s.T(), id, "3600.00")
	s.at(2028, time.January, 10)
	s.h.pay(s.T(), id, "3600.00")
	s.Equal(core.PaymentPaid, s.get(id).Payment.Status)

	s.at(2028, time.December, 1)
	ev, err := s.h.lc.Evaluate(s.ctx, id)
	s.Require().NoError(err)
	s.True(ev.RenewalOpened)

	s.at(2029, time.January, 10)
	ev, err = s.h.lc.Evaluate(s.ctx, id)
	s.Require().NoError(err)
	s.False(ev.Matured, "renewal still within grace")

	s.at(2029, time.February, 15)
	ev, err = s.h.lc.Evaluate(s.ctx, id)
	s.Require().NoError(err)
	s.True(ev.RenewalExpired)
	s.True(ev.Matured)
	s.Equal(core.PolicyStatusExpired, ev.Status)

	v = s.get(id)
	s.Require().Len(v.Surrenders, 1)
	sur := v.Surrenders[0]
	s.Equal(core.SurrenderMaturity, sur.Type)
	s.Equal(core.SurrenderApproved, sur.Status)
	requireDec(s.T(), "2160.00", sur.GSVAmount)
	s.True(sur.SurrenderAmount.IsPositive())

	sur, err = s.h.lc.ProcessSurrenderPayment(s.ctx, sur.ID)
	s.Require().NoError(err)
	s.Equal(core.SurrenderProcessed, sur.Status)
	s.Equal(core.PolicyStatusSurrendered, s.get(id).Holder.Status)
}

func (s *LifecycleSuite) TestRenewalGraceLapse() {
	v := s.h.issue(s.T(), application(endowmentID, core.IntervalAnnual, 1))
	id := v.Holder.ID
	s.h.pay(s.T(), id, "3600.00")

	s.at(2026, time.November, 15)
	_, err := s.h.lc.Evaluate(s.ctx, id)
	s.Require().NoError(err)
	ren := s.get(id).Renewals[0]

	s.at(2027, time.February, 10)
	_, err = s.h.lc.MarkRenewed(s.ctx, ren.ID)
	s.Require().ErrorIs(err, core.ErrInvalidState)

	ev, err := s.h.lc.Evaluate(s.ctx, id)
	s.Require().NoError(err)
	s.True(ev.RenewalExpired)
	s.Equal(core.PolicyStatusExpired, ev.Status)

	ren, err = s.h.lc.GetRenewal(s.ctx, ren.ID)
	s.Require().NoError(err)
	s.Equal(core.RenewalExpired, ren.Status)
}

func (s *LifecycleSuite) TestBatchApplyFines() {
	v := s.h.issue(s.T(), application(endowmentID, core.IntervalQuarterly, 10))
	id := v.Holder.ID
	s.h.pay(s.T(), id, "900.00")

	s.at(2026, time.May, 20)
	release := s.h.store.Hold(id)
	res, err := s.h.batch.Run(s.ctx, core.JobApplyFines)
	s.Require().NoError(err)
	s.Equal(1, res.Candidates)
	s.Equal(1, res.Skipped)
	s.Equal(0, res.Changed)
	release()

	res, err = s.h.batch.Run(s.ctx, core.JobApplyFines)
	s.Require().NoError(err)
	s.Equal(1, res.Processed)
	s.Equal(1, res.Changed)
	requireDec(s.T(), "7.50", s.get(id).Payment.FineDue)

	res, err = s.h.batch.Run(s.ctx, core.JobApplyFines)
	s.Require().NoError(err)
	s.Equal(0, res.Changed, "fines are assessed once per period")
}

func (s *LifecycleSuite) TestBatchPaymentReminders() {
	v := s.h.issue(s.T(), application(endowmentID, core.IntervalQuarterly, 10))
	id := v.Holder.ID
	s.h.pay(s.T(), id, "900.00")

	s.at(2026, time.April, 3)
	res, err := s.h.batch.Run(s.ctx, core.JobSendPaymentReminders)
	s.Require().NoError(err)
	s.Equal(1, res.Changed)

	s.at(2026, time.April, 4)
	res, err = s.h.batch.Run(s.ctx, core.JobSendPaymentReminders)
	s.Require().NoError(err)
	s.Equal(0, res.Changed, "not a reminder day")

	s.at(2026, time.April, 15)
	res, err = s.h.batch.Run(s.ctx, core.JobSendPaymentReminders)
	s.Require().NoError(err)
	s.Equal(1, res.Changed)
	res, err = s.h.batch.Run(s.ctx, core.JobSendPaymentReminders)
	s.Require().NoError(err)
	s.Equal(0, res.Changed, "sent once")

	s.Equal(2, s.h.events.count(core.EventPaymentReminder))
}

func (s *LifecycleSuite) TestBatchLoanInterestAndExpiries() {
	v := s.h.issue(s.T(), application(endowmentID, core.IntervalAnnual, 10))
	id := v.Holder.ID
	s.h.pay(s.T(), id, "3600.00")
	s.at(2027, time.January, 10)
	s.h.pay(s.T(), id, "3600.00")
	s.at(2028, time.January, 10)
	s.h.pay(s.T(), id, "3600.00")
	loan, err := s.h.lc.CreateLoan(s.ctx, id, dec("1000"))
	s.Require().NoError(err)

	s.at(2028, time.February, 9)
	res, err := s.h.batch.Run(s.ctx, core.JobAccrueLoanInterest)
	s.Require().NoError(err)
	s.Equal(1, res.Changed)

	lv, err := s.h.lc.GetLoan(s.ctx, loan.ID)
	s.Require().NoError(err)
	requireDec(s.T(), "8.22", lv.Loan.AccruedInterest)

	res, err = s.h.batch.Run(s.ctx, core.JobCheckExpiries)
	s.Require().NoError(err)
	s.Equal(1, res.Processed)
	s.Equal(0, res.Changed)
}

func (s *LifecycleSuite) TestBatchRejectsUnknownJob() {
	_, err := s.h.batch.Run(s.ctx, core.BatchJob("reindex"))
	s.Require().ErrorIs(err, core.ErrValidation)
}

func (s *LifecycleSuite) TestBatchStopsOnCancel() {
	s.h.issue(s.T(), application(endowmentID, core.IntervalQuarterly, 10))
	s.h.issue(s.T(), application(endowmentID, core.IntervalQuarterly, 10))

	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	_, err := s.h.batch.Run(ctx, core.JobApplyFines)
	s.Require().ErrorIs(err, context.Canceled)
}

func TestListPolicyHolders(t *testing.T) {
	h := newHarness(t, day(2026, time.January, 10))
	ctx := context.Background()
	for range 3 {
		h.issue(t, application(endowmentID, core.IntervalQuarterly, 10))
	}
	_, err := h.lc.Register(ctx, application(termID, core.IntervalAnnual, 10))
	require.NoError(t, err)

	all, total, err := h.lc.List(ctx, core.PolicyHolderFilter{}, 2, 0)
	require.NoError(t, err)
	require.EqualValues(t, 4, total)
	require.Len(t, all, 2)

	pending, total, err := h.lc.List(ctx, core.PolicyHolderFilter{Status: core.PolicyStatusPending}, 10, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, termID, pending[0].ProductID)
}
