// Package memory is an in-process policy ledger for tests and local runs.
// Transactions are serialized and work on a copy of the data that replaces
// the committed state only when the transaction function returns nil.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MrKriegler/go-policyadmin/internal/core"
)

type state struct {
	holders      map[string]core.PolicyHolder
	underwriting map[string]core.Underwriting
	payments     map[string]core.PremiumPayment
	bonuses      map[string]core.Bonus
	loans        map[string]core.Loan
	repayments   map[string]core.LoanRepayment
	repayOrder   []string
	surrenders   map[string]core.PolicySurrender
	renewals     map[string]core.PolicyRenewal
	agents       map[string]core.SalesAgent
	reports      map[string]core.AgentReport
	applications map[string]core.AgentApplication
	appSeq       int64
	claims       map[string]core.ClaimRequest
	counters     map[int]int64
}

func newState() *state {
	return &state{
		holders:      map[string]core.PolicyHolder{},
		underwriting: map[string]core.Underwriting{},
		payments:     map[string]core.PremiumPayment{},
		bonuses:      map[string]core.Bonus{},
		loans:        map[string]core.Loan{},
		repayments:   map[string]core.LoanRepayment{},
		surrenders:   map[string]core.PolicySurrender{},
		renewals:     map[string]core.PolicyRenewal{},
		agents:       map[string]core.SalesAgent{},
		reports:      map[string]core.AgentReport{},
		applications: map[string]core.AgentApplication{},
		claims:       map[string]core.ClaimRequest{},
		counters:     map[int]int64{},
	}
}

// clone copies every table. Records are values, so a shallow copy of each
// map is enough to isolate a transaction.
func (s *state) clone() *state {
	return &state{
		holders:      maps.Clone(s.holders),
		underwriting: maps.Clone(s.underwriting),
		payments:     maps.Clone(s.payments),
		bonuses:      maps.Clone(s.bonuses),
		loans:        maps.Clone(s.loans),
		repayments:   maps.Clone(s.repayments),
		repayOrder:   slices.Clone(s.repayOrder),
		surrenders:   maps.Clone(s.surrenders),
		renewals:     maps.Clone(s.renewals),
		agents:       maps.Clone(s.agents),
		reports:      maps.Clone(s.reports),
		applications: maps.Clone(s.applications),
		appSeq:       s.appSeq,
		claims:       maps.Clone(s.claims),
		counters:     maps.Clone(s.counters),
	}
}

type Store struct {
	txMu sync.Mutex
	data *state

	lockMu sync.Mutex
	held   map[string]bool
}

var _ core.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{data: newState(), held: map[string]bool{}}
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx core.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	work := s.data.clone()
	if err := fn(ctx, &tx{store: s, st: work}); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Hold marks a policy holder as locked by an outside party until the
// returned release func is called. Lock and TryLock both fail with
// core.ErrLocked while it is held.
func (s *Store) Hold(id string) (release func()) {
	s.lockMu.Lock()
	s.held[id] = true
	s.lockMu.Unlock()
	return func() {
		s.lockMu.Lock()
		delete(s.held, id)
		s.lockMu.Unlock()
	}
}

func (s *Store) isHeld(id string) bool {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	return s.held[id]
}

func (s *Store) Candidates(ctx context.Context, kind core.CandidateKind, asOf time.Time) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	st := s.data

	set := map[string]bool{}
	switch kind {
	case core.CandidatesActive:
		for id, h := range st.holders {
			if h.Status == core.PolicyStatusActive {
				set[id] = true
			}
		}
	case core.CandidatesOverdue:
		for id, h := range st.holders {
			if h.Status != core.PolicyStatusActive {
				continue
			}
			p, ok := st.current(id)
			if ok && p.Status != core.PaymentExpired && p.NextPaymentDate != nil && p.NextPaymentDate.Before(asOf) {
				set[id] = true
			}
		}
	case core.CandidatesActiveLoans:
		for _, l := range st.loans {
			if l.Status == core.LoanActive {
				set[l.PolicyHolderID] = true
			}
		}
	case core.CandidatesPendingRenewals:
		for _, r := range st.renewals {
			if r.Status == core.RenewalPending {
				set[r.PolicyHolderID] = true
			}
		}
	default:
		return nil, fmt.Errorf("%w: unknown candidate kind %q", core.ErrValidation, kind)
	}

	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (st *state) current(holderID string) (core.PremiumPayment, bool) {
	var (
		best  core.PremiumPayment
		found bool
	)
	for _, p := range st.payments {
		if p.PolicyHolderID != holderID {
			continue
		}
		if !found || p.Term > best.Term {
			best, found = p, true
		}
	}
	return best, found
}

type tx struct {
	store *Store
	st    *state
}

func (t *tx) PolicyHolders() core.PolicyHolderRepo { return holderRepo{t} }
func (t *tx) Underwriting() core.UnderwritingRepo { return underwritingRepo{t} }
func (t *tx) Payments() core.PaymentRepo { return paymentRepo{t} }
func (t *tx) Bonuses() core.BonusRepo { return bonusRepo{t} }
func (t *tx) Loans() core.LoanRepo { return loanRepo{t} }
func (t *tx) Surrenders() core.SurrenderRepo { return surrenderRepo{t} }
func (t *tx) Renewals() core.RenewalRepo { return renewalRepo{t} }
func (t *tx) Agents() core.AgentRepo { return agentRepo{t} }
func (t *tx) AgentApplications() core.AgentApplicationRepo { return applicationRepo{t} }
func (t *tx) Claims() core.ClaimRepo { return claimRepo{t} }

type holderRepo struct{ *tx }

func (r holderRepo) Create(_ context.Context, h core.PolicyHolder) error {
	if _, ok := r.st.holders[h.ID]; ok {
		return core.ErrPolicyHolderExists
	}
	for _, o := range r.st.holders {
		if h.PolicyNumber != "" && o.PolicyNumber == h.PolicyNumber {
			return core.ErrPolicyHolderExists
		}
	}
	r.st.holders[h.ID] = h
	return nil
}

func (r holderRepo) Get(_ context.Context, id string) (core.PolicyHolder, error) {
	h, ok := r.st.holders[id]
	if !ok {
		return core.PolicyHolder{}, core.ErrPolicyHolderNotFound
	}
	return h, nil
}

// Lock cannot block: transactions are already serialized, so the only
// contention is an outside Hold, reported as core.ErrLocked.
func (r holderRepo) Lock(ctx context.Context, id string) (core.PolicyHolder, error) {
	return r.TryLock(ctx, id)
}

func (r holderRepo) TryLock(ctx context.Context, id string) (core.PolicyHolder, error) {
	h, err := r.Get(ctx, id)
	if err != nil {
		return h, err
	}
	if r.store.isHeld(id) {
		return core.PolicyHolder{}, fmt.Errorf("%w: policy holder %s", core.ErrLocked, id)
	}
	return h, nil
}

func (r holderRepo) Update(_ context.Context, h core.PolicyHolder) error {
	if _, ok := r.st.holders[h.ID]; !ok {
		return core.ErrPolicyHolderNotFound
	}
	r.st.holders[h.ID] = h
	return nil
}

func (r holderRepo) List(_ context.Context, f core.PolicyHolderFilter, limit, offset int) ([]core.PolicyHolder, int64, error) {
	var out []core.PolicyHolder
	for _, h := range r.st.holders {
		if f.Status != "" && h.Status != f.Status {
			continue
		}
		if f.ProductID != "" && h.ProductID != f.ProductID {
			continue
		}
		if f.AgentID != "" && h.AgentID != f.AgentID {
			continue
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	total := int64(len(out))
	if offset >= len(out) {
		return []core.PolicyHolder{}, total, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (r holderRepo) NextPolicyNumber(_ context.Context, year int) (string, error) {
	r.st.counters[year]++
	return core.FormatPolicyNumber(year, r.st.counters[year]), nil
}

type underwritingRepo struct{ *tx }

func (r underwritingRepo) Get(_ context.Context, holderID string) (core.Underwriting, error) {
	u, ok := r.st.underwriting[holderID]
	if !ok {
		return core.Underwriting{}, core.ErrUnderwritingNotFound
	}
	return u, nil
}

func (r underwritingRepo) Save(_ context.Context, u core.Underwriting) error {
	r.st.underwriting[u.PolicyHolderID] = u
	return nil
}

type paymentRepo struct{ *tx }

func (r paymentRepo) Current(_ context.Context, holderID string) (core.PremiumPayment, error) {
	p, ok := r.st.current(holderID)
	if !ok {
		return core.PremiumPayment{}, core.ErrPaymentNotFound
	}
	return p, nil
}

func (r paymentRepo) Create(_ context.Context, p core.PremiumPayment) error {
	for _, o := range r.st.payments {
		if o.ID == p.ID || (o.PolicyHolderID == p.PolicyHolderID && o.Term == p.Term) {
			return fmt.Errorf("%w: premium payment for term %d exists", core.ErrConflict, p.Term)
		}
	}
	r.st.payments[p.ID] = p
	return nil
}

func (r paymentRepo) Update(_ context.Context, p core.PremiumPayment) error {
	if _, ok := r.st.payments[p.ID]; !ok {
		return core.ErrPaymentNotFound
	}
	r.st.payments[p.ID] = p
	return nil
}

type bonusRepo struct{ *tx }

func (r bonusRepo) Get(_ context.Context, holderID string) (core.Bonus, error) {
	b, ok := r.st.bonuses[holderID]
	if !ok {
		return core.Bonus{}, core.ErrBonusNotFound
	}
	return b, nil
}

func (r bonusRepo) Save(_ context.Context, b core.Bonus) error {
	r.st.bonuses[b.PolicyHolderID] = b
	return nil
}

type loanRepo struct{ *tx }

func (r loanRepo) Create(_ context.Context, l core.Loan) error {
	if _, ok := r.st.loans[l.ID]; ok {
		return fmt.Errorf("%w: loan %s exists", core.ErrConflict, l.ID)
	}
	r.st.loans[l.ID] = l
	return nil
}

func (r loanRepo) Get(_ context.Context, id string) (core.Loan, error) {
	l, ok := r.st.loans[id]
	if !ok {
		return core.Loan{}, core.ErrLoanNotFound
	}
	return l, nil
}

func (r loanRepo) Update(_ context.Context, l core.Loan) error {
	if _, ok := r.st.loans[l.ID]; !ok {
		return core.ErrLoanNotFound
	}
	r.st.loans[l.ID] = l
	return nil
}

func (r loanRepo) ListByHolder(_ context.Context, holderID string) ([]core.Loan, error) {
	var out []core.Loan
	for _, l := range r.st.loans {
		if l.PolicyHolderID == holderID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r loanRepo) GetRepayment(_ context.Context, id string) (core.LoanRepayment, error) {
	rep, ok := r.st.repayments[id]
	if !ok {
		return core.LoanRepayment{}, core.ErrRepaymentNotFound
	}
	return rep, nil
}

func (r loanRepo) AddRepayment(_ context.Context, rep core.LoanRepayment) error {
	if _, ok := r.st.repayments[rep.ID]; ok {
		return core.ErrRepaymentExists
	}
	r.st.repayments[rep.ID] = rep
	r.st.repayOrder = append(r.st.repayOrder, rep.ID)
	return nil
}

func (r loanRepo) ListRepayments(_ context.Context, loanID string) ([]core.LoanRepayment, error) {
	var out []core.LoanRepayment
	for _, id := range r.st.repayOrder {
		if rep := r.st.repayments[id]; rep.LoanID == loanID {
			out = append(out, rep)
		}
	}
	return out, nil
}

type surrenderRepo struct{ *tx }

func (r surrenderRepo) Create(_ context.Context, s core.PolicySurrender) error {
	if _, ok := r.st.surrenders[s.ID]; ok {
		return fmt.Errorf("%w: surrender %s exists", core.ErrConflict, s.ID)
	}
	r.st.surrenders[s.ID] = s
	return nil
}

func (r surrenderRepo) Get(_ context.Context, id string) (core.PolicySurrender, error) {
	s, ok := r.st.surrenders[id]
	if !ok {
		return core.PolicySurrender{}, core.ErrSurrenderNotFound
	}
	return s, nil
}

func (r surrenderRepo) Update(_ context.Context, s core.PolicySurrender) error {
	if _, ok := r.st.surrenders[s.ID]; !ok {
		return core.ErrSurrenderNotFound
	}
	r.st.surrenders[s.ID] = s
	return nil
}

func (r surrenderRepo) ListByHolder(_ context.Context, holderID string) ([]core.PolicySurrender, error) {
	var out []core.PolicySurrender
	for _, s := range r.st.surrenders {
		if s.PolicyHolderID == holderID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].RequestedAt.Before(out[j].RequestedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type renewalRepo struct{ *tx }

func (r renewalRepo) Create(_ context.Context, rn core.PolicyRenewal) error {
	if _, ok := r.st.renewals[rn.ID]; ok {
		return fmt.Errorf("%w: renewal %s exists", core.ErrConflict, rn.ID)
	}
	r.st.renewals[rn.ID] = rn
	return nil
}

func (r renewalRepo) Get(_ context.Context, id string) (core.PolicyRenewal, error) {
	rn, ok := r.st.renewals[id]
	if !ok {
		return core.PolicyRenewal{}, core.ErrRenewalNotFound
	}
	return rn, nil
}

func (r renewalRepo) Update(_ context.Context, rn core.PolicyRenewal) error {
	if _, ok := r.st.renewals[rn.ID]; !ok {
		return core.ErrRenewalNotFound
	}
	r.st.renewals[rn.ID] = rn
	return nil
}

func (r renewalRepo) ListByHolder(_ context.Context, holderID string) ([]core.PolicyRenewal, error) {
	var out []core.PolicyRenewal
	for _, rn := range r.st.renewals {
		if rn.PolicyHolderID == holderID {
			out = append(out, rn)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type agentRepo struct{ *tx }

func reportKey(agentID string, date time.Time) string {
	return agentID + "|" + core.DateOf(date).Format(time.DateOnly)
}

func (r agentRepo) Get(_ context.Context, id string) (core.SalesAgent, error) {
	a, ok := r.st.agents[id]
	if !ok {
		return core.SalesAgent{}, core.ErrAgentNotFound
	}
	return a, nil
}

func (r agentRepo) Upsert(_ context.Context, a core.SalesAgent) error {
	r.st.agents[a.ID] = a
	return nil
}

func (r agentRepo) GetReport(_ context.Context, agentID string, date time.Time) (core.AgentReport, error) {
	if rep, ok := r.st.reports[reportKey(agentID, date)]; ok {
		return rep, nil
	}
	return core.AgentReport{AgentID: agentID, Date: core.DateOf(date)}, nil
}

func (r agentRepo) SaveReport(_ context.Context, rep core.AgentReport) error {
	r.st.reports[reportKey(rep.AgentID, rep.Date)] = rep
	return nil
}

func (r agentRepo) ListReports(_ context.Context, date time.Time) ([]core.AgentReport, error) {
	day := core.DateOf(date)
	var out []core.AgentReport
	for _, rep := range r.st.reports {
		if rep.Date.Equal(day) {
			out = append(out, rep)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out, nil
}

type applicationRepo struct{ *tx }

func (r applicationRepo) Create(_ context.Context, a core.AgentApplication) error {
	for _, o := range r.st.applications {
		if o.ID == a.ID || strings.EqualFold(o.Email, a.Email) {
			return fmt.Errorf("%w: agent application for %s exists", core.ErrConflict, a.Email)
		}
	}
	r.st.applications[a.ID] = a
	return nil
}

func (r applicationRepo) Get(_ context.Context, id string) (core.AgentApplication, error) {
	a, ok := r.st.applications[id]
	if !ok {
		return core.AgentApplication{}, core.ErrApplicationNotFound
	}
	return a, nil
}

func (r applicationRepo) Update(_ context.Context, a core.AgentApplication) error {
	if _, ok := r.st.applications[a.ID]; !ok {
		return core.ErrApplicationNotFound
	}
	r.st.applications[a.ID] = a
	return nil
}

func (r applicationRepo) List(_ context.Context, status core.ApplicationStatus) ([]core.AgentApplication, error) {
	var out []core.AgentApplication
	for _, a := range r.st.applications {
		if status == "" || a.Status == status {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (r applicationRepo) NextNumber(_ context.Context) (int64, error) {
	r.st.appSeq++
	return r.st.appSeq, nil
}

type claimRepo struct{ *tx }

func (r claimRepo) Create(_ context.Context, c core.ClaimRequest) error {
	if _, ok := r.st.claims[c.ID]; ok {
		return fmt.Errorf("%w: claim %s exists", core.ErrConflict, c.ID)
	}
	r.st.claims[c.ID] = c
	return nil
}

func (r claimRepo) Get(_ context.Context, id string) (core.ClaimRequest, error) {
	c, ok := r.st.claims[id]
	if !ok {
		return core.ClaimRequest{}, core.ErrClaimNotFound
	}
	return c, nil
}

func (r claimRepo) Update(_ context.Context, c core.ClaimRequest) error {
	if _, ok := r.st.claims[c.ID]; !ok {
		return core.ErrClaimNotFound
	}
	r.st.claims[c.ID] = c
	return nil
}

func (r claimRepo) List(_ context.Context, f core.ClaimFilter) ([]core.ClaimRequest, error) {
	var out []core.ClaimRequest
	for _, c := range r.st.claims {
		if f.PolicyHolderID != "" && c.PolicyHolderID != f.PolicyHolderID {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ClaimDate.Equal(out[j].ClaimDate) {
			return out[i].ClaimDate.Before(out[j].ClaimDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
