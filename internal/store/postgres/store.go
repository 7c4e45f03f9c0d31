package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/MrKriegler/go-policyadmin/internal/core"
)

type Store struct {
	db               *sqlx.DB
	lockTimeout      time.Duration
	statementTimeout time.Duration
	log              *slog.Logger
}

var _ core.Store = (*Store)(nil)

// NewStore wraps db. A zero lockTimeout lets Lock wait indefinitely.
func NewStore(db *sqlx.DB, lockTimeout, statementTimeout time.Duration, log *slog.Logger) *Store {
	return &Store{
		db:               db,
		lockTimeout:      lockTimeout,
		statementTimeout: statementTimeout,
		log:              log.With("component", "postgres"),
	}
}

func (s *Store) DB() *sqlx.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx core.Tx) error) (err error) {
	sqlTx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.log.Warn("rollback failed", "err", rbErr)
			}
		}
	}()

	// SET does not take bind parameters; both values are integers.
	if s.lockTimeout > 0 {
		if _, err = sqlTx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", s.lockTimeout.Milliseconds())); err != nil {
			return fmt.Errorf("set lock_timeout: %w", err)
		}
	}
	if s.statementTimeout > 0 {
		if _, err = sqlTx.ExecContext(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", s.statementTimeout.Milliseconds())); err != nil {
			return fmt.Errorf("set statement_timeout: %w", err)
		}
	}

	if err = fn(ctx, &tx{q: sqlTx}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const (
	candidatesActiveSQL = `
		SELECT id FROM policy_holders
		WHERE status = 'Active'
		ORDER BY id`

	candidatesOverdueSQL = `
		SELECT h.id FROM policy_holders h
		JOIN premium_payments p ON p.policy_holder_id = h.id
		WHERE h.status = 'Active'
		  AND p.term = (SELECT MAX(term) FROM premium_payments WHERE policy_holder_id = h.id)
		  AND p.status <> 'Expired'
		  AND p.next_payment_date < $1
		ORDER BY h.id`

	candidatesActiveLoansSQL = `
		SELECT DISTINCT policy_holder_id FROM loans
		WHERE status = 'Active'
		ORDER BY policy_holder_id`

	candidatesPendingRenewalsSQL = `
		SELECT DISTINCT policy_holder_id FROM policy_renewals
		WHERE status = 'Pending'
		ORDER BY policy_holder_id`
)

func (s *Store) Candidates(ctx context.Context, kind core.CandidateKind, asOf time.Time) ([]string, error) {
	var (
		query string
		args  []any
	)
	switch kind {
	case core.CandidatesActive:
		query = candidatesActiveSQL
	case core.CandidatesOverdue:
		query, args = candidatesOverdueSQL, []any{asOf.UTC()}
	case core.CandidatesActiveLoans:
		query = candidatesActiveLoansSQL
	case core.CandidatesPendingRenewals:
		query = candidatesPendingRenewalsSQL
	default:
		return nil, fmt.Errorf("%w: unknown candidate kind %q", core.ErrValidation, kind)
	}

	ids := []string{}
	if err := s.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("candidates.%s: %w", kind, err)
	}
	return ids, nil
}

// queryer is the part of *sqlx.Tx the repositories use.
type queryer interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
}

type tx struct {
	q queryer
}

func (t *tx) PolicyHolders() core.PolicyHolderRepo { return holderRepo{t.q} }
func (t *tx) Underwriting() core.UnderwritingRepo { return underwritingRepo{t.q} }
func (t *tx) Payments() core.PaymentRepo { return paymentRepo{t.q} }
func (t *tx) Bonuses() core.BonusRepo { return bonusRepo{t.q} }
func (t *tx) Loans() core.LoanRepo { return loanRepo{t.q} }
func (t *tx) Surrenders() core.SurrenderRepo { return surrenderRepo{t.q} }
func (t *tx) Renewals() core.RenewalRepo { return renewalRepo{t.q} }
func (t *tx) Agents() core.AgentRepo { return agentRepo{t.q} }
func (t *tx) AgentApplications() core.AgentApplicationRepo { return applicationRepo{t.q} }
func (t *tx) Claims() core.ClaimRepo { return claimRepo{t.q} }

// checkAffected turns an UPDATE that matched no row into notFound.
func checkAffected(op string, res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func utc(t time.Time) time.Time { return t.UTC() }

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
