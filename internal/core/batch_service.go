package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"
)

type BatchJob string

const (
	JobApplyFines           BatchJob = "apply_fines"
	JobAccrueLoanInterest   BatchJob = "accrue_loan_interest"
	JobProcessAnniversaries BatchJob = "process_anniversaries"
	JobCheckExpiries        BatchJob = "check_expiries"
	JobSendRenewalReminders BatchJob = "send_renewal_reminders"
	JobSendPaymentReminders BatchJob = "send_payment_reminders"
)

// AllJobs lists the batch jobs in the order a nightly run executes them.
var AllJobs = []BatchJob{
	JobAccrueLoanInterest,
	JobApplyFines,
	JobProcessAnniversaries,
	JobCheckExpiries,
	JobSendRenewalReminders,
	JobSendPaymentReminders,
}

func (j BatchJob) Valid() bool {
	return slices.Contains(AllJobs, j)
}

// Days before and after a due date on which payment reminders go out.
var (
	upcomingReminderDays = []int{15, 7, 3, 1}
	overdueReminderDays  = []int{1, 5, 10, 15, 30, 60, 90}
)

const reminderTTL = 120 * 24 * time.Hour

// BatchResult summarises one job run.
type BatchResult struct {
	Job         BatchJob  `json:"job"`
	AsOf        time.Time `json:"as_of"`
	Candidates  int       `json:"candidates"`
	Processed   int       `json:"processed"`
	Changed     int       `json:"changed"`
	Skipped     int       `json:"skipped"` // locked by another worker, or gone
	Failed      int       `json:"failed"`
	Interrupted bool      `json:"interrupted"`
}

// BatchService runs the daily jobs. Each record is handled in its own
// transaction; records locked elsewhere are skipped, failures are logged and
// counted, and the run continues.
type BatchService struct {
	lc        *Lifecycle
	reminders ReminderLedger
	log       *slog.Logger
}

func NewBatchService(lc *Lifecycle, reminders ReminderLedger, log *slog.Logger) *BatchService {
	return &BatchService{lc: lc, reminders: reminders, log: log.With("component", "batch")}
}

func (b *BatchService) Run(ctx context.Context, job BatchJob) (BatchResult, error) {
	switch job {
	case JobApplyFines:
		return b.each(ctx, job, CandidatesOverdue, b.lc.applyFine)
	case JobAccrueLoanInterest:
		return b.each(ctx, job, CandidatesActiveLoans, b.lc.accrueAll)
	case JobProcessAnniversaries:
		return b.each(ctx, job, CandidatesActive, func(ctx context.Context, pc *policyTx) (bool, error) {
			res, err := b.lc.updateBonus(ctx, pc)
			return res.Processed, err
		})
	case JobCheckExpiries:
		return b.each(ctx, job, CandidatesActive, func(ctx context.Context, pc *policyTx) (bool, error) {
			ev, err := b.lc.evaluate(ctx, pc)
			return ev.Changed(), err
		})
	case JobSendRenewalReminders:
		return b.each(ctx, job, CandidatesPendingRenewals, b.lc.sendDueRenewalReminders)
	case JobSendPaymentReminders:
		return b.each(ctx, job, CandidatesActive, b.sendPaymentReminder)
	}
	return BatchResult{}, fmt.Errorf("%w: unknown batch job %q", ErrValidation, job)
}

func (b *BatchService) each(ctx context.Context, job BatchJob, kind CandidateKind, fn func(context.Context, *policyTx) (bool, error)) (BatchResult, error) {
	asOf := DateOf(b.lc.clock())
	res := BatchResult{Job: job, AsOf: asOf}
	log := b.log.With("job", job)

	ids, err := b.lc.store.Candidates(ctx, kind, asOf)
	if err != nil {
		return res, fmt.Errorf("%s: list candidates: %w", job, err)
	}
	res.Candidates = len(ids)

	for _, id := range ids {
		if ctx.Err() != nil {
			res.Interrupted = true
			log.Warn("batch interrupted", "processed", res.Processed, "remaining", res.Candidates-res.Processed-res.Skipped-res.Failed)
			return res, ctx.Err()
		}

		var changed bool
		err := b.lc.inPolicyTx(ctx, id, lockSkip, func(ctx context.Context, pc *policyTx) error {
			var err error
			changed, err = fn(ctx, pc)
			return err
		})
		switch {
		case errors.Is(err, ErrLocked), errors.Is(err, ErrPolicyHolderNotFound):
			res.Skipped++
			log.Debug("record skipped", "policy_holder_id", id, "err", err)
		case err != nil:
			res.Failed++
			log.Error("record failed", "policy_holder_id", id, "err", err)
		default:
			res.Processed++
			if changed {
				res.Changed++
			}
		}
	}

	log.Info("batch complete",
		"candidates", res.Candidates,
		"processed", res.Processed,
		"changed", res.Changed,
		"skipped", res.Skipped,
		"failed", res.Failed,
	)
	return res, nil
}

// sendPaymentReminder notifies ahead of and after the next due date on the
// fixed reminder days. The ledger makes each reminder go out once.
func (b *BatchService) sendPaymentReminder(ctx context.Context, pc *policyTx) (bool, error) {
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
	if pay.NextPaymentDate == nil || pay.FullyPaid() {
		return false, nil
	}

	due := *pay.NextPaymentDate
	days := DaysBetween(pc.today, due)
	var (
		kind string
		n    int
	)
	switch {
	case days > 0 && slices.Contains(upcomingReminderDays, days):
		kind, n = "upcoming", days
	case days < 0 && slices.Contains(overdueReminderDays, -days):
		kind, n = "overdue", -days
	default:
		return false, nil
	}

	key := fmt.Sprintf("payment-reminder:%s:%s:%s:%d", pay.ID, due.Format("2006-01-02"), kind, n)
	first, err := b.reminders.MarkSent(ctx, key, reminderTTL)
	if err != nil {
		return false, fmt.Errorf("reminder ledger: %w", err)
	}
	if !first {
		return false, nil
	}

	pc.emit(EventPaymentReminder, map[string]any{
		"reminder":   kind,
		"days":       n,
		"due_date":   due,
		"amount_due": pay.DueAmount().StringFixed(2),
		"fine_due":   pay.OutstandingFine().StringFixed(2),
		"payment_id": pay.ID,
	})
	return true, nil
}
