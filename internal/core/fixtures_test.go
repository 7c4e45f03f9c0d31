package core_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/MrKriegler/go-policyadmin/internal/core"
	"github.com/MrKriegler/go-policyadmin/internal/store/memory"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func requireDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s, got %s %v", want, got.String(), msgAndArgs)
}

const (
	endowmentID = "END-10"
	termID      = "TERM-10"
)

func testProducts() []core.Product {
	return []core.Product{
		{
			ID:             endowmentID,
			Name:           "Endowment Plus",
			PolicyType:     core.PolicyTypeEndowment,
			BaseMultiplier: dec("1.0"),
			MinSumAssured:  dec("100000"),
			MaxSumAssured:  dec("5000000"),
		},
		{
			ID:             termID,
			Name:           "Pure Term",
			PolicyType:     core.PolicyTypeTerm,
			BaseMultiplier: dec("1.0"),
			MinSumAssured:  dec("100000"),
			MaxSumAssured:  dec("5000000"),
		},
	}
}

func testBands() []core.RateBand {
	return []core.RateBand{
		{ID: "mort-1", Table: core.TableMortality, Min: 18, Max: 65, Value: dec("3.00")},
		{ID: "dur-1", Table: core.TableDurationFactor, Key: "Endowment", Min: 1, Max: 10, Value: dec("1.20")},
		{ID: "dur-2", Table: core.TableDurationFactor, Key: "Endowment", Min: 11, Max: 30, Value: dec("1.10")},
		{ID: "bonus-1", Table: core.TableBonusRate, Key: "Endowment", Min: 1, Max: 30, Value: dec("40")},
		{ID: "gsv-1", Table: core.TableGSVRate, Key: endowmentID, Min: 2, Max: 5, Value: dec("30")},
		{ID: "gsv-2", Table: core.TableGSVRate, Key: endowmentID, Min: 6, Max: 30, Value: dec("50")},
		{ID: "gsv-3", Table: core.TableGSVRate, Key: termID, Min: 3, Max: 30, Value: dec("20")},
		{ID: "ssv-1", Table: core.TableSSVConfig, Key: endowmentID, Min: 3, Max: 30, Value: dec("40"), EligibilityYears: 3},
	}
}

func testRates(t *testing.T) *core.RateTables {
	t.Helper()
	rt, err := core.NewRateTables(testProducts(), testBands())
	require.NoError(t, err)
	return rt
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t.Add(10 * time.Hour)
	c.mu.Unlock()
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []core.Event
}

func (n *recordingNotifier) Notify(_ context.Context, e core.Event) error {
	n.mu.Lock()
	n.events = append(n.events, e)
	n.mu.Unlock()
	return nil
}

func (n *recordingNotifier) count(t core.EventType) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e.Type == t {
			c++
		}
	}
	return c
}

// harness wires a Lifecycle over the in-memory store with a fixed clock.
type harness struct {
	store  *memory.Store
	lc     *core.Lifecycle
	batch  *core.BatchService
	clock  *fixedClock
	events *recordingNotifier
}

func newHarness(t *testing.T, start time.Time) *harness {
	t.Helper()
	ctx := context.Background()

	repo := memory.NewRateRepo()
	for _, p := range testProducts() {
		require.NoError(t, repo.UpsertProduct(ctx, p))
	}
	for _, b := range testBands() {
		require.NoError(t, repo.CreateBand(ctx, b))
	}

	h := &harness{
		store:  memory.NewStore(),
		clock:  &fixedClock{},
		events: &recordingNotifier{},
	}
	h.clock.Set(start)
	h.lc = core.NewLifecycle(h.store, core.NewRateService(repo, time.Hour), h.events, core.DefaultTerms(), discardLogger())
	h.lc.SetClock(h.clock.Now)
	h.batch = core.NewBatchService(h.lc, memory.NewReminders(), discardLogger())
	return h
}

func lowRisk() core.RiskProfile {
	return core.RiskProfile{Occupation: core.OccupationLow, Exercise: core.ExerciseRegular}
}

func application(productID string, interval core.PaymentInterval, years int) core.RegisterInput {
	return core.RegisterInput{
		ProductID:       productID,
		Name:            "Ada Lovelace",
		DateOfBirth:     day(1996, time.March, 15),
		SumAssured:      dec("1000000"),
		DurationYears:   years,
		PaymentInterval: interval,
		Risk:            lowRisk(),
	}
}

// issue registers and approves a policy on the current clock date.
func (h *harness) issue(t *testing.T, in core.RegisterInput) core.PolicyView {
	t.Helper()
	ctx := context.Background()
	holder, err := h.lc.Register(ctx, in)
	require.NoError(t, err)
	view, err := h.lc.Approve(ctx, holder.ID)
	require.NoError(t, err)
	return view
}

func (h *harness) pay(t *testing.T, holderID, amount string) core.PaymentResult {
	t.Helper()
	res, err := h.lc.AddPayment(context.Background(), holderID, dec(amount))
	require.NoError(t, err)
	return res
}
