package core

import (
	"context"
	"time"
)

// CandidateKind selects which policy holders a batch job should visit.
type CandidateKind string

const (
	// CandidatesActive lists every Active holder.
	CandidatesActive CandidateKind = "active"
	// CandidatesOverdue lists Active holders whose current ledger is past due.
	CandidatesOverdue CandidateKind = "overdue"
	// CandidatesActiveLoans lists holders with at least one Active loan.
	CandidatesActiveLoans CandidateKind = "active_loans"
	// CandidatesPendingRenewals lists holders with a Pending renewal.
	CandidatesPendingRenewals CandidateKind = "pending_renewals"
)

// Tx exposes the repositories bound to one transaction.
type Tx interface {
	PolicyHolders() PolicyHolderRepo
	Underwriting() UnderwritingRepo
	Payments() PaymentRepo
	Bonuses() BonusRepo
	Loans() LoanRepo
	Surrenders() SurrenderRepo
	Renewals() RenewalRepo
	Agents() AgentRepo
	AgentApplications() AgentApplicationRepo
	Claims() ClaimRepo
}

// Store is the policy ledger. Every operation runs inside RunInTx: fn's
// writes commit together when it returns nil and roll back otherwise.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// Candidates lists holder IDs for a batch job. The list is a hint: each
	// record is re-read and re-checked under its own lock.
	Candidates(ctx context.Context, kind CandidateKind, asOf time.Time) ([]string, error)
	Ping(ctx context.Context) error
}
