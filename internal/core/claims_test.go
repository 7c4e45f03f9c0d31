package core_test

import (
	"time"

	"github.com/MrKriegler/go-policyadmin/internal/core"
)

func (s *LifecycleSuite) TestClaimLifecycle() {
	v := s.h.issue(s.T(), application(endowmentID, core.IntervalAnnual, 10))
	id := v.Holder.ID

	for name, in := range map[string]core.ClaimInput{
		"unknown reason":        {Reason: "Boredom", ClaimAmount: dec("100")},
		"others without text":   {Reason: core.ClaimReasonOthers, ClaimAmount: dec("100")},
		"zero amount":           {Reason: core.ClaimReasonAccident, ClaimAmount: dec("0")},
		"above the sum assured": {Reason: core.ClaimReasonAccident, ClaimAmount: dec("1000000.01")},
	} {
		_, err := s.h.lc.FileClaim(s.ctx, id, in)
		s.Require().ErrorIs(err, core.ErrValidation, name)
	}

	s.at(2026, time.March, 2)
	c, err := s.h.lc.FileClaim(s.ctx, id, core.ClaimInput{Reason: core.ClaimReasonAccident, ClaimAmount: dec("50000")})
	s.Require().NoError(err)
	s.Equal(core.ClaimPending, c.Status)
	s.Equal(day(2026, time.March, 2), c.ClaimDate)

	_, err = s.h.lc.PayClaim(s.ctx, c.ID)
	s.Require().ErrorIs(err, core.ErrInvalidState, "not assessed yet")
	_, err = s.h.lc.StartClaimProcessing(s.ctx, c.ID)
	s.Require().ErrorIs(err, core.ErrInvalidState, "not approved yet")

	c, err = s.h.lc.ApproveClaim(s.ctx, c.ID, "police report attached")
	s.Require().NoError(err)
	s.Equal(core.ClaimApproved, c.Status)
	s.NotNil(c.DecidedAt)

	_, err = s.h.lc.CompleteClaimProcessing(s.ctx, c.ID)
	s.Require().ErrorIs(err, core.ErrInvalidState, "assessment must start first")
	c, err = s.h.lc.StartClaimProcessing(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(core.ClaimProcessingInProgress, c.ProcessingStatus)
	c, err = s.h.lc.CompleteClaimProcessing(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(core.ClaimProcessingCompleted, c.ProcessingStatus)
	s.NotNil(c.ProcessedAt)

	c, err = s.h.lc.PayClaim(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(core.ClaimPayoutCompleted, c.PayoutStatus)
	requireDec(s.T(), "50000.00", c.PaidAmount)
	s.Equal(1, s.h.events.count(core.EventClaimPaid))

	_, err = s.h.lc.PayClaim(s.ctx, c.ID)
	s.Require().ErrorIs(err, core.ErrInvalidState, "paid once")
	s.Equal(1, s.h.events.count(core.EventClaimPaid))

	second, err := s.h.lc.FileClaim(s.ctx, id, core.ClaimInput{
		Reason: core.ClaimReasonOthers, OtherReason: "dental", ClaimAmount: dec("1200"),
	})
	s.Require().NoError(err)
	_, err = s.h.lc.RejectClaim(s.ctx, second.ID, "")
	s.Require().ErrorIs(err, core.ErrValidation)
	second, err = s.h.lc.RejectClaim(s.ctx, second.ID, "not covered")
	s.Require().NoError(err)
	s.Equal(core.ClaimRejected, second.Status)
	_, err = s.h.lc.ApproveClaim(s.ctx, second.ID, "")
	s.Require().ErrorIs(err, core.ErrInvalidState)

	view := s.get(id)
	s.Len(view.Claims, 2)
	s.Equal(core.PolicyStatusActive, view.Holder.Status, "claims do not end the policy")

	rejected, err := s.h.lc.ListClaims(s.ctx, core.ClaimFilter{Status: core.ClaimRejected})
	s.Require().NoError(err)
	s.Require().Len(rejected, 1)
	s.Equal(second.ID, rejected[0].ID)

	_, err = s.h.lc.ListClaims(s.ctx, core.ClaimFilter{Status: "Paid"})
	s.Require().ErrorIs(err, core.ErrValidation)
	_, err = s.h.lc.GetClaim(s.ctx, "missing")
	s.Require().ErrorIs(err, core.ErrClaimNotFound)
}

func (s *LifecycleSuite) TestClaimsRequireInForcePolicy() {
	holder, err := s.h.lc.Register(s.ctx, application(endowmentID, core.IntervalAnnual, 10))
	s.Require().NoError(err)
	_, err = s.h.lc.FileClaim(s.ctx, holder.ID, core.ClaimInput{Reason: core.ClaimReasonAccident, ClaimAmount: dec("100")})
	s.Require().ErrorIs(err, core.ErrInvalidState, "pending application")
}

func (s *LifecycleSuite) TestSurrenderLocksOutClaims() {
	v := s.h.issue(s.T(), application(endowmentID, core.IntervalAnnual, 10))
	id := v.Holder.ID

	open, err := s.h.lc.FileClaim(s.ctx, id, core.ClaimInput{Reason: core.ClaimReasonDisability, ClaimAmount: dec("20000")})
	s.Require().NoError(err)

	sur, err := s.h.lc.RequestSurrender(s.ctx, id, "moving abroad")
	s.Require().NoError(err)
	_, err = s.h.lc.ApproveSurrender(s.ctx, sur.ID, "")
	s.Require().NoError(err)
	s.Require().Equal(core.PolicyStatusSurrendered, s.get(id).Holder.Status)

	_, err = s.h.lc.FileClaim(s.ctx, id, core.ClaimInput{Reason: core.ClaimReasonAccident, ClaimAmount: dec("100")})
	s.Require().ErrorIs(err, core.ErrPolicySurrendered)
	_, err = s.h.lc.ApproveClaim(s.ctx, open.ID, "")
	s.Require().ErrorIs(err, core.ErrPolicySurrendered)

	got, err := s.h.lc.GetClaim(s.ctx, open.ID)
	s.Require().NoError(err)
	s.Equal(core.ClaimPending, got.Status, "reads still work")
}

func agentApplication(email string) core.AgentApplicationInput {
	return core.AgentApplicationInput{
		BranchCode: "KTM",
		FirstName:  "Grace",
		LastName:   "Hopper",
		Email:      email,
		Phone:      "+977-1-5550100",
	}
}

func (s *LifecycleSuite) TestAgentOnboarding() {
	bad := agentApplication("not-an-email")
	_, err := s.h.lc.SubmitAgentApplication(s.ctx, bad)
	s.Require().ErrorIs(err, core.ErrValidation)

	app, err := s.h.lc.SubmitAgentApplication(s.ctx, agentApplication("grace@example.com"))
	s.Require().NoError(err)
	s.Equal(core.ApplicationPending, app.Status)
	s.EqualValues(1, app.Number)

	_, err = s.h.lc.SubmitAgentApplication(s.ctx, agentApplication("GRACE@example.com"))
	s.Require().ErrorIs(err, core.ErrConflict, "one application per email")

	app, agent, err := s.h.lc.ApproveAgentApplication(s.ctx, app.ID, "welcome")
	s.Require().NoError(err)
	s.Equal(core.ApplicationApproved, app.Status)
	s.Equal("A-KTM-0001", agent.ID)
	s.Equal(agent.ID, app.AgentID)
	s.Equal("Grace Hopper", agent.Name)
	s.True(agent.Active)
	s.Equal(app.ID, agent.ApplicationID)
	requireDec(s.T(), "5", agent.CommissionRate)

	stored, err := s.h.lc.GetAgent(s.ctx, "A-KTM-0001")
	s.Require().NoError(err)
	s.Equal(agent, stored)

	_, _, err = s.h.lc.ApproveAgentApplication(s.ctx, app.ID, "")
	s.Require().ErrorIs(err, core.ErrInvalidState)

	// The onboarded agent sells at the default rate
	in := application(endowmentID, core.IntervalQuarterly, 10)
	in.AgentID = agent.ID
	v := s.h.issue(s.T(), in)
	res := s.h.pay(s.T(), v.Holder.ID, "900.00")
	requireDec(s.T(), "45.00", res.Commission)
}

func (s *LifecycleSuite) TestAgentApplicationRejection() {
	expired := day(2025, time.December, 31)
	in := agentApplication("ada@example.com")
	in.LicenseNumber = "LIC-77"
	in.LicenseExpiry = &expired
	app, err := s.h.lc.SubmitAgentApplication(s.ctx, in)
	s.Require().NoError(err)

	_, _, err = s.h.lc.ApproveAgentApplication(s.ctx, app.ID, "")
	s.Require().ErrorIs(err, core.ErrValidation, "license expired")
	_, err = s.h.lc.GetAgent(s.ctx, app.AgentCode())
	s.Require().ErrorIs(err, core.ErrAgentNotFound, "nothing created")

	_, err = s.h.lc.RejectAgentApplication(s.ctx, app.ID, "")
	s.Require().ErrorIs(err, core.ErrValidation)
	app, err = s.h.lc.RejectAgentApplication(s.ctx, app.ID, "license expired")
	s.Require().NoError(err)
	s.Equal(core.ApplicationRejected, app.Status)
	s.Empty(app.AgentID)

	pending, err := s.h.lc.ListAgentApplications(s.ctx, core.ApplicationPending)
	s.Require().NoError(err)
	s.Empty(pending)
	all, err := s.h.lc.ListAgentApplications(s.ctx, "")
	s.Require().NoError(err)
	s.Len(all, 1)
}
