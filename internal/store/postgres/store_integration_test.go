//go:build integration

package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/MrKriegler/go-policyadmin/internal/core"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("policyadmin"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, EnsureSchema(ctx, db))
	require.NoError(t, EnsureSchema(ctx, db), "schema is idempotent")
	return db
}

func newTestStore(t *testing.T, db *sqlx.DB) *Store {
	return NewStore(db, 500*time.Millisecond, 10*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testHolder(id string) core.PolicyHolder {
	start := day(2026, time.January, 10)
	maturity := day(2036, time.January, 10)
	now := time.Date(2026, time.January, 10, 9, 30, 0, 0, time.UTC)
	return core.PolicyHolder{
		ID:              id,
		ProductID:       "END-10",
		Name:            "Ada Lovelace",
		DateOfBirth:     day(1996, time.March, 15),
		SumAssured:      decimal.NewFromInt(1000000),
		DurationYears:   10,
		PaymentInterval: core.IntervalQuarterly,
		StartDate:       &start,
		MaturityDate:    &maturity,
		Status:          core.PolicyStatusActive,
		RiskCategory:    core.RiskLow,
		Risk:            core.RiskProfile{Occupation: core.OccupationLow, Exercise: core.ExerciseRegular},
		Term:            1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestLedgerRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newTestDB(t))

	due := day(2026, time.April, 10)
	err := s.RunInTx(ctx, func(ctx context.Context, tx core.Tx) error {
		h := testHolder("h1")
		num, err := tx.PolicyHolders().NextPolicyNumber(ctx, 2026)
		if err != nil {
			return err
		}
		h.PolicyNumber = num
		if err := tx.PolicyHolders().Create(ctx, h); err != nil {
			return err
		}
		if err := tx.Underwriting().Save(ctx, core.Underwriting{
			PolicyHolderID: "h1",
			Score:          11,
			RiskCategory:   core.RiskLow,
			LoadingPercent: decimal.Zero,
			Factors:        map[string]int{"age": 5, "occupation": 6},
			UpdatedAt:      h.CreatedAt,
		}); err != nil {
			return err
		}
		return tx.Payments().Create(ctx, core.PremiumPayment{
			ID:               "p1",
			PolicyHolderID:   "h1",
			Term:             1,
			Interval:         core.IntervalQuarterly,
			AnnualPremium:    decimal.RequireFromString("3600.00"),
			IntervalPayment:  decimal.RequireFromString("900.00"),
			TotalPremium:     decimal.RequireFromString("36000.00"),
			RemainingPremium: decimal.RequireFromString("36000.00"),
			Status:           core.PaymentUnpaid,
			NextPaymentDate:  &due,
			CreatedAt:        h.CreatedAt,
			UpdatedAt:        h.CreatedAt,
		})
	})
	require.NoError(t, err)

	err = s.RunInTx(ctx, func(ctx context.Context, tx core.Tx) error {
		h, err := tx.PolicyHolders().Get(ctx, "h1")
		require.NoError(t, err)
		assert.Equal(t, "POL-2026-000001", h.PolicyNumber)
		assert.True(t, h.SumAssured.Equal(decimal.NewFromInt(1000000)))
		assert.Equal(t, core.OccupationLow, h.Risk.Occupation)
		assert.Equal(t, day(2036, time.January, 10), *h.MaturityDate)

		u, err := tx.Underwriting().Get(ctx, "h1")
		require.NoError(t, err)
		assert.Equal(t, 6, u.Factors["occupation"])

		p, err := tx.Payments().Current(ctx, "h1")
		require.NoError(t, err)
		assert.Equal(t, "900", p.IntervalPayment.String())
		assert.Equal(t, due, *p.NextPaymentDate)

		_, err = tx.Bonuses().Get(ctx, "h1")
		assert.ErrorIs(t, err, core.ErrBonusNotFound)
		return nil
	})
	require.NoError(t, err)

	err = s.RunInTx(ctx, func(ctx context.Context, tx core.Tx) error {
		return tx.PolicyHolders().Create(ctx, testHolder("h1"))
	})
	require.ErrorIs(t, err, core.ErrPolicyHolderExists)
}

func TestRollbackKeepsCounter(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newTestDB(t))

	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(ctx context.Context, tx core.Tx) error {
		if _, err := tx.PolicyHolders().NextPolicyNumber(ctx, 2026); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = s.RunInTx(ctx, func(ctx context.Context, tx core.Tx) error {
		num, err := tx.PolicyHolders().NextPolicyNumber(ctx, 2026)
		require.NoError(t, err)
		assert.Equal(t, "POL-2026-000001", num)
		return nil
	})
	require.NoError(t, err)
}

func TestTryLockSkipsHeldRows(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newTestDB(t))
	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx core.Tx) error {
		return tx.PolicyHolders().Create(ctx, testHolder("h1"))
	}))

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.RunInTx(ctx, func(ctx context.Context, tx core.Tx) error {
			if _, err := tx.PolicyHolders().Lock(ctx, "h1"); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	err := s.RunInTx(ctx, func(ctx context.Context, tx core.Tx) error {
		_, err := tx.PolicyHolders().TryLock(ctx, "h1")
		return err
	})
	require.ErrorIs(t, err, core.ErrLocked)

	err = s.RunInTx(ctx, func(ctx context.Context, tx core.Tx) error {
		_, err := tx.PolicyHolders().Lock(ctx, "h1")
		return err
	})
	require.ErrorIs(t, err, core.ErrLocked, "lock_timeout expires")

	close(release)
	require.NoError(t, <-done)
}

func TestCandidatesAndRepayments(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newTestDB(t))
	asOf := day(2026, time.May, 20)
	overdue := day(2026, time.April, 10)

	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx core.Tx) error {
		for _, id := range []string{"b-overdue", "a-current"} {
			if err := tx.PolicyHolders().Create(ctx, testHolder(id)); err != nil {
				return err
			}
		}
		if err := tx.Payments().Create(ctx, core.PremiumPayment{
			ID: "p1", PolicyHolderID: "b-overdue", Term: 1, Interval: core.IntervalQuarterly,
			Status: core.PaymentPartiallyPaid, NextPaymentDate: &overdue,
		}); err != nil {
			return err
		}
		return tx.Loans().Create(ctx, core.Loan{
			ID: "l1", PolicyHolderID: "a-current", LoanAmount: decimal.NewFromInt(1000),
			InterestRate: decimal.NewFromInt(10), RemainingBalance: decimal.NewFromInt(1000),
			Status: core.LoanActive, LastInterestDate: asOf,
		})
	}))

	ids, err := s.Candidates(ctx, core.CandidatesActive, asOf)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-current", "b-overdue"}, ids)

	ids, err = s.Candidates(ctx, core.CandidatesOverdue, asOf)
	require.NoError(t, err)
	assert.Equal(t, []string{"b-overdue"}, ids)

	ids, err = s.Candidates(ctx, core.CandidatesActiveLoans, asOf)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-current"}, ids)

	rep := core.LoanRepayment{
		ID: "rep-1", LoanID: "l1", PolicyHolderID: "a-current", Amount: decimal.NewFromInt(100),
		Type: core.RepayBoth, CreatedAt: asOf,
	}
	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx core.Tx) error {
		return tx.Loans().AddRepayment(ctx, rep)
	}))
	err = s.RunInTx(ctx, func(ctx context.Context, tx core.Tx) error {
		return tx.Loans().AddRepayment(ctx, rep)
	})
	require.ErrorIs(t, err, core.ErrRepaymentExists)
}

func TestRateRepoAndReminders(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	rates := NewRateRepo(db)
	require.NoError(t, rates.UpsertProduct(ctx, core.Product{
		ID: "END-10", Name: "Endowment 10", PolicyType: core.PolicyTypeEndowment,
		BaseMultiplier: decimal.RequireFromString("1.2"), MinSumAssured: decimal.NewFromInt(10000),
		MaxSumAssured: decimal.NewFromInt(5000000),
	}))
	require.NoError(t, rates.CreateBand(ctx, core.RateBand{
		ID: "mort-1", Table: core.TableMortality, Min: 18, Max: 65, Value: decimal.RequireFromString("2.50"),
	}))

	bands, err := rates.ListBands(ctx, core.TableMortality)
	require.NoError(t, err)
	require.Len(t, bands, 1)
	assert.Equal(t, "2.5", bands[0].Value.String())

	require.NoError(t, rates.DeleteBand(ctx, "mort-1"))
	require.ErrorIs(t, rates.DeleteBand(ctx, "mort-1"), core.ErrRateBandNotFound)

	_, err = rates.GetProduct(ctx, "GHOST")
	require.ErrorIs(t, err, core.ErrProductNotFound)

	now := time.Date(2026, time.April, 15, 9, 0, 0, 0, time.UTC)
	r := NewReminders(db)
	r.clock = func() time.Time { return now }

	first, err := r.MarkSent(ctx, "payment-reminder:p1", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	first, err = r.MarkSent(ctx, "payment-reminder:p1", time.Hour)
	require.NoError(t, err)
	assert.False(t, first)

	now = now.Add(2 * time.Hour)
	first, err = r.MarkSent(ctx, "payment-reminder:p1", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)
}

func TestClaimsAndAgentApplications(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newTestDB(t))
	filed := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx core.Tx) error {
		if err := tx.PolicyHolders().Create(ctx, testHolder("h1")); err != nil {
			return err
		}
		return tx.Claims().Create(ctx, core.ClaimRequest{
			ID:             "c1",
			PolicyHolderID: "h1",
			Reason:         core.ClaimReasonAccident,
			ClaimAmount:    decimal.RequireFromString("50000.00"),
			Status:         core.ClaimPending,
			PaidAmount:     decimal.Zero,
			ClaimDate:      day(2026, time.March, 2),
			UpdatedAt:      filed,
		})
	}))

	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx core.Tx) error {
		c, err := tx.Claims().Get(ctx, "c1")
		require.NoError(t, err)
		require.NoError(t, c.Decide(core.ClaimApproved, "ok", filed))
		require.NoError(t, c.Advance(core.ClaimProcessingInProgress, filed))
		require.NoError(t, c.Advance(core.ClaimProcessingCompleted, filed))
		require.NoError(t, c.Pay(filed))
		return tx.Claims().Update(ctx, c)
	}))

	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx core.Tx) error {
		got, err := tx.Claims().List(ctx, core.ClaimFilter{PolicyHolderID: "h1", Status: core.ClaimApproved})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, core.ClaimPayoutCompleted, got[0].PayoutStatus)
		assert.Equal(t, "50000", got[0].PaidAmount.String())
		assert.Equal(t, filed, *got[0].PaidAt)

		none, err := tx.Claims().List(ctx, core.ClaimFilter{Status: core.ClaimRejected})
		require.NoError(t, err)
		assert.Empty(t, none)

		_, err = tx.Claims().Get(ctx, "missing")
		assert.ErrorIs(t, err, core.ErrClaimNotFound)
		return nil
	}))

	app := core.AgentApplication{
		ID:         "app-1",
		BranchCode: "KTM",
		FirstName:  "Grace",
		LastName:   "Hopper",
		Email:      "grace@example.com",
		Phone:      "5550100",
		Status:     core.ApplicationPending,
		CreatedAt:  filed,
	}
	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx core.Tx) error {
		var err error
		if app.Number, err = tx.AgentApplications().NextNumber(ctx); err != nil {
			return err
		}
		return tx.AgentApplications().Create(ctx, app)
	}))
	assert.EqualValues(t, 1, app.Number)

	err := s.RunInTx(ctx, func(ctx context.Context, tx core.Tx) error {
		dup := app
		dup.ID = "app-2"
		dup.Number = 2
		dup.Email = "GRACE@example.com"
		return tx.AgentApplications().Create(ctx, dup)
	})
	require.ErrorIs(t, err, core.ErrConflict)

	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx core.Tx) error {
		a, err := tx.AgentApplications().Get(ctx, "app-1")
		require.NoError(t, err)
		require.NoError(t, a.Decide(core.ApplicationApproved, "", filed))
		agent := core.SalesAgent{
			ID:             a.AgentCode(),
			Name:           a.FullName(),
			CommissionRate: decimal.NewFromInt(5),
			Active:         true,
			ApplicationID:  a.ID,
		}
		if err := tx.Agents().Upsert(ctx, agent); err != nil {
			return err
		}
		a.AgentID = agent.ID
		return tx.AgentApplications().Update(ctx, a)
	}))

	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx core.Tx) error {
		agent, err := tx.Agents().Get(ctx, "A-KTM-0001")
		require.NoError(t, err)
		assert.Equal(t, "app-1", agent.ApplicationID)

		apps, err := tx.AgentApplications().List(ctx, core.ApplicationApproved)
		require.NoError(t, err)
		require.Len(t, apps, 1)
		assert.Equal(t, "A-KTM-0001", apps[0].AgentID)
		return nil
	}))
}
