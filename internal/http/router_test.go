package transporthttp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/MrKriegler/go-policyadmin/internal/core"
	"github.com/MrKriegler/go-policyadmin/internal/http/handlers"
	"github.com/MrKriegler/go-policyadmin/internal/http/health"
	"github.com/MrKriegler/go-policyadmin/internal/jobs"
	"github.com/MrKriegler/go-policyadmin/internal/notify"
	"github.com/MrKriegler/go-policyadmin/internal/platform/metrics"
	"github.com/MrKriegler/go-policyadmin/internal/store/memory"
	"github.com/MrKriegler/go-policyadmin/pkg/problem"
)

const apiKey = "test-key"

type RouterSuite struct {
	suite.Suite
	srv *httptest.Server
}

func TestRouter(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (s *RouterSuite) SetupTest() {
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	repo := memory.NewRateRepo()
	s.Require().NoError(repo.UpsertProduct(ctx, core.Product{
		ID:             "END-10",
		Name:           "Endowment Plus",
		PolicyType:     core.PolicyTypeEndowment,
		BaseMultiplier: dec("1.0"),
		MinSumAssured:  dec("100000"),
		MaxSumAssured:  dec("5000000"),
	}))
	for _, b := range []core.RateBand{
		{ID: "mort-1", Table: core.TableMortality, Min: 18, Max: 65, Value: dec("3.00")},
		{ID: "dur-1", Table: core.TableDurationFactor, Key: "Endowment", Min: 1, Max: 30, Value: dec("1.20")},
		{ID: "bonus-1", Table: core.TableBonusRate, Key: "Endowment", Min: 1, Max: 30, Value: dec("40")},
		{ID: "gsv-1", Table: core.TableGSVRate, Key: "END-10", Min: 2, Max: 30, Value: dec("30")},
		{ID: "ssv-1", Table: core.TableSSVConfig, Key: "END-10", Min: 3, Max: 30, Value: dec("40"), EligibilityYears: 3},
	} {
		s.Require().NoError(repo.CreateBand(ctx, b))
	}

	store := memory.NewStore()
	rates := core.NewRateService(repo, time.Hour)
	lc := core.NewLifecycle(store, rates, notify.NewLogNotifier(log), core.DefaultTerms(), log)
	lc.SetClock(func() time.Time { return time.Date(2026, time.April, 3, 10, 0, 0, 0, time.UTC) })

	m := metrics.New()
	runner := jobs.NewRunner(core.NewBatchService(lc, memory.NewReminders(), log), m, time.Minute, log)

	router := NewRouter(Deps{
		Log:            log,
		APIKey:         apiKey,
		AllowedOrigins: []string{"*"},
		RequestTimeout: 5 * time.Second,
		Metrics:        m,
		Health:         health.New(log, []health.Check{{Name: "ledger", Pinger: store}}, time.Second),
		Mounts: []handlers.Mountable{
			handlers.NewPolicyHandler(lc, log),
			handlers.NewPaymentHandler(lc, log),
			handlers.NewLoanHandler(lc, log),
			handlers.NewSurrenderHandler(lc, log),
			handlers.NewClaimHandler(lc, log),
			handlers.NewRenewalHandler(lc, log),
			handlers.NewUnderwritingHandler(lc, log),
			handlers.NewRateHandler(rates, log),
			handlers.NewQuoteHandler(lc, log),
			handlers.NewAgentHandler(lc, log),
			handlers.NewBatchHandler(runner, log),
		},
	})
	s.srv = httptest.NewServer(router)
	s.T().Cleanup(s.srv.Close)
}

func (s *RouterSuite) do(method, path string, body any, out any) *http.Response {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		s.Require().NoError(err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, r)
	s.Require().NoError(err)
	req.Header.Set("X-API-Key", apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	if out != nil {
		s.Require().NoError(json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func application() core.RegisterInput {
	return core.RegisterInput{
		ProductID:       "END-10",
		Name:            "Ada Lovelace",
		DateOfBirth:     time.Date(1996, time.March, 15, 0, 0, 0, 0, time.UTC),
		SumAssured:      dec("1000000"),
		DurationYears:   10,
		PaymentInterval: core.IntervalAnnual,
		Risk:            core.RiskProfile{Occupation: core.OccupationLow, Exercise: core.ExerciseRegular},
	}
}

func (s *RouterSuite) TestRequiresAPIKey() {
	resp, err := http.Get(s.srv.URL + "/v1/products")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	s.Equal("application/problem+json", resp.Header.Get("Content-Type"))
}

func (s *RouterSuite) TestPublicEndpoints() {
	resp, err := http.Get(s.srv.URL + "/health")
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	resp, err = http.Get(s.srv.URL + "/readyz")
	s.Require().NoError(err)
	var ready map[string]any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&ready))
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("ready", ready["status"])

	s.do(http.MethodGet, "/v1/policies/missing", nil, nil)
	resp, err = http.Get(s.srv.URL + "/metrics")
	s.Require().NoError(err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	s.Contains(string(body), `route="/v1/policies/{id}"`)
}

func (s *RouterSuite) TestPolicyLifecycleOverHTTP() {
	var quote core.PremiumQuote
	resp := s.do(http.MethodPost, "/v1/quotes", core.QuoteInput{
		ProductID:       "END-10",
		DateOfBirth:     time.Date(1996, time.March, 15, 0, 0, 0, 0, time.UTC),
		SumAssured:      dec("1000000"),
		DurationYears:   10,
		PaymentInterval: core.IntervalAnnual,
	}, &quote)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.True(quote.AnnualPremium.IsPositive())

	var holder core.PolicyHolder
	resp = s.do(http.MethodPost, "/v1/policies", application(), &holder)
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	s.Equal(core.PolicyStatusPending, holder.Status)
	s.Equal("POL-2026-000001", holder.PolicyNumber)

	var view core.PolicyView
	resp = s.do(http.MethodPost, "/v1/policies/"+holder.ID+"/approve", nil, &view)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Equal(core.PolicyStatusActive, view.Holder.Status)
	s.Require().NotNil(view.Payment)

	var paid core.PaymentResult
	resp = s.do(http.MethodPost, "/v1/policies/"+holder.ID+"/payments",
		map[string]any{"amount": view.Payment.IntervalPayment}, &paid)
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	s.True(paid.Payment.TotalPaid.Equal(view.Payment.IntervalPayment))

	var listed struct {
		Items []core.PolicyHolder `json:"items"`
		Total int64               `json:"total"`
	}
	resp = s.do(http.MethodGet, "/v1/policies?status=Active", nil, &listed)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.EqualValues(1, listed.Total)

	var fine core.FineView
	resp = s.do(http.MethodGet, "/v1/policies/"+holder.ID+"/fine", nil, &fine)
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *RouterSuite) TestErrorMapping() {
	var p problem.Problem
	resp := s.do(http.MethodGet, "/v1/policies/missing", nil, &p)
	s.Equal(http.StatusNotFound, resp.StatusCode)
	s.Equal(http.StatusNotFound, p.Status)
	s.Equal("/problems/not-found", p.Type)
	s.Equal("/v1/policies/missing", p.Instance)

	var holder core.PolicyHolder
	s.do(http.MethodPost, "/v1/policies", application(), &holder)
	resp = s.do(http.MethodPost, "/v1/policies/"+holder.ID+"/payments", map[string]any{"amount": "-5"}, &p)
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	resp = s.do(http.MethodPost, "/v1/policies", map[string]any{"unknown_field": true}, &p)
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Equal("Invalid JSON", p.Title)

	resp = s.do(http.MethodPost, "/v1/rate-bands", core.RateBand{
		Table: core.TableMortality, Min: 60, Max: 70, Value: dec("9.00"),
	}, &p)
	s.Equal(http.StatusBadRequest, resp.StatusCode, "overlaps the 18-65 band")

	app := application()
	app.ProductID = "NOPE"
	resp = s.do(http.MethodPost, "/v1/quotes", core.QuoteInput{
		ProductID: app.ProductID, DateOfBirth: app.DateOfBirth, SumAssured: app.SumAssured,
		DurationYears: 10, PaymentInterval: core.IntervalAnnual,
	}, &p)
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *RouterSuite) TestClaimsOverHTTP() {
	var holder core.PolicyHolder
	s.do(http.MethodPost, "/v1/policies", application(), &holder)
	s.do(http.MethodPost, "/v1/policies/"+holder.ID+"/approve", nil, nil)

	var p problem.Problem
	resp := s.do(http.MethodPost, "/v1/policies/"+holder.ID+"/claims",
		map[string]any{"reason": "Boredom", "claim_amount": "100"}, &p)
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	var c core.ClaimRequest
	resp = s.do(http.MethodPost, "/v1/policies/"+holder.ID+"/claims",
		map[string]any{"reason": "Critical Illness", "claim_amount": "25000"}, &c)
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	s.Equal(core.ClaimPending, c.Status)

	resp = s.do(http.MethodPost, "/v1/claims/"+c.ID+"/pay", nil, &p)
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	for _, step := range []string{"approve", "processing", "complete", "pay"} {
		resp = s.do(http.MethodPost, "/v1/claims/"+c.ID+"/"+step, nil, &c)
		s.Require().Equal(http.StatusOK, resp.StatusCode, step)
	}
	s.Equal(core.ClaimPayoutCompleted, c.PayoutStatus)
	s.True(c.PaidAmount.Equal(dec("25000")))

	var listed []core.ClaimRequest
	resp = s.do(http.MethodGet, "/v1/claims?policy_holder_id="+holder.ID, nil, &listed)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Len(listed, 1)

	resp = s.do(http.MethodGet, "/v1/claims/missing", nil, &p)
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *RouterSuite) TestAgentOnboardingOverHTTP() {
	in := core.AgentApplicationInput{
		BranchCode: "PKR",
		FirstName:  "Alan",
		LastName:   "Turing",
		Email:      "alan@example.com",
		Phone:      "5550101",
	}
	var app core.AgentApplication
	resp := s.do(http.MethodPost, "/v1/agent-applications", in, &app)
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	var p problem.Problem
	resp = s.do(http.MethodPost, "/v1/agent-applications", in, &p)
	s.Equal(http.StatusConflict, resp.StatusCode)

	var approved struct {
		Application core.AgentApplication `json:"application"`
		Agent       core.SalesAgent       `json:"agent"`
	}
	resp = s.do(http.MethodPost, "/v1/agent-applications/"+app.ID+"/approve", map[string]any{"remarks": "ok"}, &approved)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Equal("A-PKR-0001", approved.Agent.ID)
	s.True(approved.Agent.CommissionRate.Equal(dec("5")))

	var agent core.SalesAgent
	resp = s.do(http.MethodGet, "/v1/agents/A-PKR-0001", nil, &agent)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Equal(app.ID, agent.ApplicationID)

	var pending []core.AgentApplication
	resp = s.do(http.MethodGet, "/v1/agent-applications?status=Pending", nil, &pending)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Empty(pending)
}

func (s *RouterSuite) TestBatchEndpoints() {
	var jobsList []core.BatchJob
	resp := s.do(http.MethodGet, "/v1/batch/jobs", nil, &jobsList)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Equal(core.AllJobs, jobsList)

	var p problem.Problem
	resp = s.do(http.MethodPost, "/v1/batch/jobs/reindex", nil, &p)
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	var res core.BatchResult
	resp = s.do(http.MethodPost, "/v1/batch/jobs/apply_fines", nil, &res)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Equal(core.JobApplyFines, res.Job)
	s.Zero(res.Failed)
}

func TestAgentReportsRejectsBadDate(t *testing.T) {
	h := handlers.NewAgentHandler(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := NewRouter(Deps{
		Log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		APIKey: apiKey,
		Mounts: []handlers.Mountable{h},
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/agents/reports?date=03-04-2026", nil)
	req.Header.Set("X-API-Key", apiKey)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "YYYY-MM-DD")
}
