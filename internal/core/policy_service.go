package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrKriegler/go-policyadmin/internal/platform/ids"
)

type PolicyService interface {
	// Register records a Pending policy holder and scores its risk.
	Register(ctx context.Context, in RegisterInput) (PolicyHolder, error)

	// Get returns the holder with its underwriting, ledger, bonus and every
	// loan, surrender, renewal and claim.
	Get(ctx context.Context, id string) (PolicyView, error)

	// List returns holders with optional filtering and pagination.
	List(ctx context.Context, filter PolicyHolderFilter, limit, offset int) ([]PolicyHolder, int64, error)

	// UpdateProfile changes holder attributes and reruns the recompute pipeline.
	UpdateProfile(ctx context.Context, id string, in ProfileUpdate) (PolicyView, error)

	// Approve moves a Pending holder to Active and opens its premium ledger.
	Approve(ctx context.Context, id string) (PolicyView, error)

	// Recompute runs underwriting, premium and surrender values in that order.
	Recompute(ctx context.Context, id string) (PolicyView, error)

	// Evaluate runs the daily lifecycle checks for one holder.
	Evaluate(ctx context.Context, id string) (Evaluation, error)

	// CheckPolicyExpiry lapses the policy after LapseDays without payment.
	CheckPolicyExpiry(ctx context.Context, id string) (bool, error)

	// UpdateAnniversaryBonus credits the latest anniversary bonus once.
	UpdateAnniversaryBonus(ctx context.Context, id string) (BonusResult, error)

	// QuotePremium prices a prospective policy without persisting anything.
	QuotePremium(ctx context.Context, in QuoteInput) (PremiumQuote, error)
}

// PolicyView is a holder and everything it owns.
type PolicyView struct {
	Holder       PolicyHolder      `json:"policy_holder"`
	Underwriting *Underwriting     `json:"underwriting,omitempty"`
	Payment      *PremiumPayment   `json:"premium_payment,omitempty"`
	Bonus        *Bonus            `json:"bonus,omitempty"`
	Loans        []Loan            `json:"loans"`
	Surrenders   []PolicySurrender `json:"surrenders"`
	Renewals     []PolicyRenewal   `json:"renewals"`
	Claims       []ClaimRequest    `json:"claims"`
}

// Evaluation reports what the daily lifecycle checks did.
type Evaluation struct {
	PolicyHolderID string       `json:"policy_holder_id"`
	Status         PolicyStatus `json:"status"`
	Lapsed         bool         `json:"lapsed"`
	Matured        bool         `json:"matured"`
	RenewalOpened  bool         `json:"renewal_opened"`
	RenewalExpired bool         `json:"renewal_expired"`
}

func (e Evaluation) Changed() bool {
	return e.Lapsed || e.Matured || e.RenewalOpened || e.RenewalExpired
}

type BonusResult struct {
	Bonus     Bonus           `json:"bonus"`
	Credited  decimal.Decimal `json:"credited"`
	Processed bool            `json:"processed"`
}

// Lifecycle orchestrates every operation on a policy. Each call runs in one
// store transaction holding the policy holder's row lock, so all derived
// monetary fields commit together or not at all.
type Lifecycle struct {
	store    Store
	rates    RateSource
	notifier Notifier
	terms    Terms
	log      *slog.Logger
	clock    func() time.Time
}

func NewLifecycle(store Store, rates RateSource, notifier Notifier, terms Terms, log *slog.Logger) *Lifecycle {
	return &Lifecycle{
		store:    store,
		rates:    rates,
		notifier: notifier,
		terms:    terms,
		log:      log,
		clock:    time.Now,
	}
}

// SetClock replaces the wall clock, for tests and back-dated batch runs.
func (s *Lifecycle) SetClock(clock func() time.Time) {
	s.clock = clock
}

func (s *Lifecycle) Terms() Terms {
	return s.terms
}

type lockMode int

const (
	lockWait lockMode = iota
	lockSkip
)

// policyTx is the working state of one locked policy holder.
type policyTx struct {
	Tx
	rates   *RateTables
	holder  PolicyHolder
	product Product
	today   time.Time
	now     time.Time
	dirty   bool
	events  []Event
}

func (pc *policyTx) emit(t EventType, data map[string]any) {
	pc.events = append(pc.events, Event{
		Type:           t,
		PolicyHolderID: pc.holder.ID,
		PolicyNumber:   pc.holder.PolicyNumber,
		At:             pc.now,
		Data:           data,
	})
}

func (pc *policyTx) setStatus(next PolicyStatus) error {
	prev := pc.holder.Status
	if err := pc.holder.TransitionTo(next); err != nil {
		return err
	}
	pc.dirty = true
	pc.emit(EventPolicyStatusChanged, map[string]any{"from": prev, "to": next})
	return nil
}

// inPolicyTx loads and locks the holder, runs fn, saves the holder if fn
// changed it, and publishes fn's events once the transaction has committed.
func (s *Lifecycle) inPolicyTx(ctx context.Context, holderID string, mode lockMode, fn func(context.Context, *policyTx) error) error {
	if holderID == "" {
		return fmt.Errorf("%w: missing policy holder ID", ErrValidation)
	}
	rates, err := s.rates.Snapshot(ctx)
	if err != nil {
		return err
	}

	var events []Event
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var (
			h   PolicyHolder
			err error
		)
		if mode == lockSkip {
			h, err = tx.PolicyHolders().TryLock(ctx, holderID)
		} else {
			h, err = tx.PolicyHolders().Lock(ctx, holderID)
		}
		if err != nil {
			return err
		}
		pc, err := s.newPolicyTx(tx, rates, h)
		if err != nil {
			return err
		}
		if err := fn(ctx, pc); err != nil {
			return err
		}
		if pc.dirty {
			pc.holder.UpdatedAt = pc.now
			if err := tx.PolicyHolders().Update(ctx, pc.holder); err != nil {
				return err
			}
		}
		events = pc.events
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, events)
	return nil
}

func (s *Lifecycle) newPolicyTx(tx Tx, rates *RateTables, h PolicyHolder) (*policyTx, error) {
	product, ok := rates.Product(h.ProductID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, h.ProductID)
	}
	now := s.clock()
	return &policyTx{Tx: tx, rates: rates, holder: h, product: product, today: DateOf(now), now: now}, nil
}

// ownerOf resolves the holder that owns a loan, surrender or renewal.
func (s *Lifecycle) ownerOf(ctx context.Context, get func(context.Context, Tx) (string, error)) (string, error) {
	var id string
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		id, err = get(ctx, tx)
		return err
	})
	return id, err
}

func (s *Lifecycle) publish(ctx context.Context, events []Event) {
	if s.notifier == nil {
		return
	}
	for _, e := range events {
		if err := s.notifier.Notify(ctx, e); err != nil {
			s.log.Warn("failed to publish event",
				"event", e.Type,
				"policy_holder_id", e.PolicyHolderID,
				"err", err,
			)
		}
	}
}

// recompute is the ordered pipeline: underwriting, then premium, then
// surrender values. Each stage reads the previous stage's output and nothing
// feeds back into underwriting.
func (s *Lifecycle) recompute(ctx context.Context, pc *policyTx) error {
	h := &pc.holder

	// 1) Underwriting
	uw, err := pc.Underwriting().Get(ctx, h.ID)
	if errors.Is(err, ErrNotFound) {
		uw, err = Underwriting{PolicyHolderID: h.ID, LoadingPercent: decimal.Zero}, nil
	}
	if err != nil {
		return err
	}
	age := AgeOn(h.DateOfBirth, h.IssueDate(pc.today))
	uw.Apply(AssessRisk(h.Risk, age, h.SumAssured, pc.product.MaxSumAssured), pc.now)
	if err := pc.Underwriting().Save(ctx, uw); err != nil {
		return err
	}
	if h.RiskCategory != uw.RiskCategory {
		h.RiskCategory = uw.RiskCategory
		pc.dirty = true
	}

	// Only in-force policies carry a premium ledger
	if h.Status != PolicyStatusActive {
		return nil
	}

	// 2) Premium
	quote, err := CalculatePremium(pc.rates, PremiumInput{
		Product:        pc.product,
		SumAssured:     h.SumAssured,
		DateOfBirth:    h.DateOfBirth,
		DurationYears:  h.DurationYears,
		Interval:       h.PaymentInterval,
		LoadingPercent: uw.LoadingPercent,
		AsOf:           h.IssueDate(pc.today),
	})
	if err != nil {
		return err
	}

	pay, err := pc.Payments().Current(ctx, h.ID)
	create := errors.Is(err, ErrNotFound) || (err == nil && pay.Term < h.Term)
	switch {
	case create:
		pay = NewPremiumPayment(ids.New(), h.ID, h.Term, quote, h.IssueDate(pc.today), pc.now)
	case err != nil:
		return err
	default:
		pay.Reprice(quote, pc.now)
	}

	// 3) Surrender values
	if _, err := s.value(ctx, pc, &pay); err != nil {
		return err
	}
	if create {
		return pc.Payments().Create(ctx, pay)
	}
	return pc.Payments().Update(ctx, pay)
}

// value recomputes GSV and SSV and caches them on pay. Missing bands are
// logged and valued at zero.
func (s *Lifecycle) value(ctx context.Context, pc *policyTx, pay *PremiumPayment) (SurrenderValues, error) {
	accrued := decimal.Zero
	b, err := pc.Bonuses().Get(ctx, pc.holder.ID)
	switch {
	case err == nil:
		accrued = b.AccruedAmount
	case !errors.Is(err, ErrNotFound):
		return SurrenderValues{}, err
	}

	v := ValueSurrender(pc.rates, pc.holder, pc.product, pay, accrued, s.terms.GSVBasis, pc.today)
	if !v.GSVBand {
		s.log.Warn("no gsv rate band, gsv valued at zero",
			"policy_holder_id", pc.holder.ID,
			"product_id", pc.holder.ProductID,
			"policy_year", v.ElapsedYears,
		)
	}
	if !v.SSVBand && pc.product.PolicyType == PolicyTypeEndowment {
		s.log.Warn("no ssv config band, ssv valued at zero",
			"policy_holder_id", pc.holder.ID,
			"product_id", pc.holder.ProductID,
			"policy_year", v.ElapsedYears,
		)
	}
	return v, nil
}

// outstandingLoans totals what is owed on Active loans, accruing interest to
// today first when accrue is set.
func (s *Lifecycle) outstandingLoans(ctx context.Context, pc *policyTx, accrue bool) (decimal.Decimal, error) {
	loans, err := pc.Loans().ListByHolder(ctx, pc.holder.ID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, l := range loans {
		if l.Status != LoanActive {
			continue
		}
		if accrue && l.AccrueInterest(pc.today).IsPositive() {
			l.UpdatedAt = pc.now
			if err := pc.Loans().Update(ctx, l); err != nil {
				return decimal.Zero, err
			}
		}
		total = total.Add(l.Outstanding())
	}
	return total, nil
}

func (s *Lifecycle) Get(ctx context.Context, id string) (PolicyView, error) {
	if id == "" {
		return PolicyView{}, fmt.Errorf("%w: missing policy holder ID", ErrValidation)
	}
	var view PolicyView
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		h, err := tx.PolicyHolders().Get(ctx, id)
		if err != nil {
			return err
		}
		view, err = s.view(ctx, tx, h)
		return err
	})
	return view, err
}

func (s *Lifecycle) view(ctx context.Context, tx Tx, h PolicyHolder) (PolicyView, error) {
	v := PolicyView{Holder: h}

	if uw, err := tx.Underwriting().Get(ctx, h.ID); err == nil {
		v.Underwriting = &uw
	} else if !errors.Is(err, ErrNotFound) {
		return PolicyView{}, err
	}
	if pay, err := tx.Payments().Current(ctx, h.ID); err == nil {
		v.Payment = &pay
	} else if !errors.Is(err, ErrNotFound) {
		return PolicyView{}, err
	}
	if b, err := tx.Bonuses().Get(ctx, h.ID); err == nil {
		v.Bonus = &b
	} else if !errors.Is(err, ErrNotFound) {
		return PolicyView{}, err
	}

	var err error
	if v.Loans, err = tx.Loans().ListByHolder(ctx, h.ID); err != nil {
		return PolicyView{}, err
	}
	if v.Surrenders, err = tx.Surrenders().ListByHolder(ctx, h.ID); err != nil {
		return PolicyView{}, err
	}
	if v.Renewals, err = tx.Renewals().ListByHolder(ctx, h.ID); err != nil {
		return PolicyView{}, err
	}
	if v.Claims, err = tx.Claims().List(ctx, ClaimFilter{PolicyHolderID: h.ID}); err != nil {
		return PolicyView{}, err
	}
	if v.Loans == nil {
		v.Loans = []Loan{}
	}
	if v.Surrenders == nil {
		v.Surrenders = []PolicySurrender{}
	}
	if v.Renewals == nil {
		v.Renewals = []PolicyRenewal{}
	}
	if v.Claims == nil {
		v.Claims = []ClaimRequest{}
	}
	return v, nil
}

func (s *Lifecycle) List(ctx context.Context, filter PolicyHolderFilter, limit, offset int) ([]PolicyHolder, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	var (
		holders []PolicyHolder
		total   int64
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		holders, total, err = tx.PolicyHolders().List(ctx, filter, limit, offset)
		return err
	})
	return holders, total, err
}

func (s *Lifecycle) Recompute(ctx context.Context, id string) (PolicyView, error) {
	var view PolicyView
	err := s.inPolicyTx(ctx, id, lockWait, func(ctx context.Context, pc *policyTx) error {
		if pc.holder.Status == PolicyStatusSurrendered {
			return ErrPolicySurrendered
		}
		if err := s.recompute(ctx, pc); err != nil {
			return err
		}
		var err error
		view, err = s.view(ctx, pc.Tx, pc.holder)
		return err
	})
	return view, err
}

func (s *Lifecycle) Evaluate(ctx context.Context, id string) (Evaluation, error) {
	var ev Evaluation
	err := s.inPolicyTx(ctx, id, lockWait, func(ctx context.Context, pc *policyTx) error {
		var err error
		ev, err = s.evaluate(ctx, pc)
		return err
	})
	return ev, err
}

// evaluate applies, in order: payment lapse, renewal grace lapse, opening of
// the renewal window, and maturity.
func (s *Lifecycle) evaluate(ctx context.Context, pc *policyTx) (ev Evaluation, err error) {
	h := &pc.holder
	ev.PolicyHolderID = h.ID
	defer func() { ev.Status = h.Status }()

	if h.Status != PolicyStatusActive || h.MaturityDate == nil {
		return ev, nil
	}

	// 1) Payment lapse
	lapsed, err := s.checkExpiry(ctx, pc)
	if err != nil || lapsed {
		ev.Lapsed = lapsed
		return ev, err
	}

	renewals, err := pc.Renewals().ListByHolder(ctx, h.ID)
	if err != nil {
		return ev, err
	}
	var current *PolicyRenewal
	for i := range renewals {
		r := &renewals[i]
		if r.DueDate.Equal(*h.MaturityDate) && r.Status != RenewalExpired {
			current = r
		}
	}

	// 2) Renewal grace lapse: the term matured unrenewed, so the policy
	// expires and the maturity value is still owed
	if current != nil && current.GraceLapsed(pc.today) {
		if err := current.TransitionTo(RenewalExpired, pc.now); err != nil {
			return ev, err
		}
		if err := pc.Renewals().Update(ctx, *current); err != nil {
			return ev, err
		}
		ev.RenewalExpired = true
		if err := pc.setStatus(PolicyStatusExpired); err != nil {
			return ev, err
		}
		if _, err := s.openSurrender(ctx, pc, SurrenderMaturity, "renewal grace period lapsed"); err != nil {
			return ev, err
		}
		ev.Matured = true
		return ev, nil
	}

	// 3) Renewal window, annual policies only
	daysToMaturity := DaysBetween(pc.today, *h.MaturityDate)
	if current == nil && h.PaymentInterval == IntervalAnnual &&
		daysToMaturity >= 0 && daysToMaturity <= s.terms.RenewalWindowDays {
		r := NewRenewal(ids.New(), h.ID, *h.MaturityDate, s.terms, pc.now)
		if err := r.MarkReminder(ReminderFirst, pc.today); err != nil {
			return ev, err
		}
		if err := pc.Renewals().Create(ctx, r); err != nil {
			return ev, err
		}
		pc.emit(EventRenewalReminder, map[string]any{"renewal_id": r.ID, "reminder": ReminderFirst, "due_date": r.DueDate})
		ev.RenewalOpened = true
		current = &r
	}

	// 4) Maturity, unless a renewal is still pending for this term
	if current == nil && daysToMaturity <= 0 {
		if _, err := s.openSurrender(ctx, pc, SurrenderMaturity, "policy matured"); err != nil {
			return ev, err
		}
		ev.Matured = true
	}
	return ev, nil
}

func (s *Lifecycle) CheckPolicyExpiry(ctx context.Context, id string) (bool, error) {
	var lapsed bool
	err := s.inPolicyTx(ctx, id, lockWait, func(ctx context.Context, pc *policyTx) error {
		var err error
		lapsed, err = s.checkExpiry(ctx, pc)
		return err
	})
	return lapsed, err
}

// checkExpiry lapses the policy when its ledger has been unpaid for longer
// than LapseDays: an automatic surrender is opened and approved, the ledger
// expires and the holder moves to Expired.
func (s *Lifecycle) checkExpiry(ctx context.Context, pc *policyTx) (bool, error) {
	if pc.holder.Status != PolicyStatusActive {
		return false, nil
	}
	pay, err := pc.Payments().Current(ctx, pc.holder.ID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !pay.Lapsed(pc.today, s.terms) {
		return false, nil
	}

	if _, err := s.openSurrender(ctx, pc, SurrenderAutomatic, "premium unpaid beyond lapse window"); err != nil {
		return false, err
	}

	// openSurrender refreshed the cached values; expire the fresh copy
	pay, err = pc.Payments().Current(ctx, pc.holder.ID)
	if err != nil {
		return false, err
	}
	pay.Status = PaymentExpired
	pay.UpdatedAt = pc.now
	if err := pc.Payments().Update(ctx, pay); err != nil {
		return false, err
	}

	s.log.Info("policy lapsed",
		"policy_holder_id", pc.holder.ID,
		"policy_number", pc.holder.PolicyNumber,
		"next_payment_date", pay.NextPaymentDate,
	)
	return true, nil
}

func (s *Lifecycle) UpdateAnniversaryBonus(ctx context.Context, id string) (BonusResult, error) {
	var res BonusResult
	err := s.inPolicyTx(ctx, id, lockWait, func(ctx context.Context, pc *policyTx) error {
		var err error
		res, err = s.updateBonus(ctx, pc)
		return err
	})
	return res, err
}

func (s *Lifecycle) updateBonus(ctx context.Context, pc *policyTx) (BonusResult, error) {
	b, err := pc.Bonuses().Get(ctx, pc.holder.ID)
	if errors.Is(err, ErrNotFound) {
		b, err = Bonus{PolicyHolderID: pc.holder.ID, AccruedAmount: decimal.Zero}, nil
	}
	if err != nil {
		return BonusResult{}, err
	}
	res := BonusResult{Bonus: b, Credited: decimal.Zero}
	if pc.product.PolicyType != PolicyTypeEndowment || pc.holder.Status != PolicyStatusActive {
		return res, nil
	}

	credit, stamped := b.UpdateAnniversary(pc.rates, pc.holder, pc.product.PolicyType, pc.today)
	if !stamped {
		return res, nil
	}
	b.UpdatedAt = pc.now
	if err := pc.Bonuses().Save(ctx, b); err != nil {
		return BonusResult{}, err
	}

	// SSV includes accrued bonus, so the cached value is stale now
	pay, err := pc.Payments().Current(ctx, pc.holder.ID)
	switch {
	case err == nil:
		if _, err := s.value(ctx, pc, &pay); err != nil {
			return BonusResult{}, err
		}
		pay.UpdatedAt = pc.now
		if err := pc.Payments().Update(ctx, pay); err != nil {
			return BonusResult{}, err
		}
	case !errors.Is(err, ErrNotFound):
		return BonusResult{}, err
	}

	pc.emit(EventBonusCredited, map[string]any{
		"amount":      credit.StringFixed(2),
		"anniversary": b.LastAnniversaryProcessed,
	})
	return BonusResult{Bonus: b, Credited: credit, Processed: true}, nil
}
