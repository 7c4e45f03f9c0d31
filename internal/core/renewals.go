package core

import (
	"context"
	"fmt"
	"time"
)

type RenewalStatus string

const (
	RenewalPending RenewalStatus = "Pending"
	RenewalRenewed RenewalStatus = "Renewed"
	RenewalExpired RenewalStatus = "Expired"
)

type ReminderType string

const (
	ReminderFirst  ReminderType = "first"
	ReminderSecond ReminderType = "second"
	ReminderFinal  ReminderType = "final"
)

// PolicyRenewal governs renewal of one term, due on that term's maturity date.
type PolicyRenewal struct {
	ID                 string        `json:"id"`
	PolicyHolderID     string        `json:"policy_holder_id"`
	DueDate            time.Time     `json:"due_date"`
	GracePeriodEnd     time.Time     `json:"grace_period_end"`
	Status             RenewalStatus `json:"status"`
	FirstReminderSent  *time.Time    `json:"first_reminder_sent,omitempty"`
	SecondReminderSent *time.Time    `json:"second_reminder_sent,omitempty"`
	FinalReminderSent  *time.Time    `json:"final_reminder_sent,omitempty"`
	RenewedAt          *time.Time    `json:"renewed_at,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

func NewRenewal(id, holderID string, due time.Time, t Terms, now time.Time) PolicyRenewal {
	due = DateOf(due)
	return PolicyRenewal{
		ID:             id,
		PolicyHolderID: holderID,
		DueDate:        due,
		GracePeriodEnd: due.AddDate(0, 0, t.RenewalGraceDays),
		Status:         RenewalPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// MarkReminder records a reminder. Reminders go first, second, final; each
// once, and only while the renewal is pending.
func (r *PolicyRenewal) MarkReminder(kind ReminderType, today time.Time) error {
	if r.Status != RenewalPending {
		return fmt.Errorf("%w: renewal %s is %s", ErrInvalidState, r.ID, r.Status)
	}
	today = DateOf(today)
	var slot **time.Time
	switch kind {
	case ReminderFirst:
		slot = &r.FirstReminderSent
	case ReminderSecond:
		if r.FirstReminderSent == nil {
			return fmt.Errorf("%w: second reminder before the first", ErrValidation)
		}
		slot = &r.SecondReminderSent
	case ReminderFinal:
		if r.SecondReminderSent == nil {
			return fmt.Errorf("%w: final reminder before the second", ErrValidation)
		}
		slot = &r.FinalReminderSent
	default:
		return fmt.Errorf("%w: unknown reminder type %q", ErrValidation, kind)
	}
	if *slot != nil {
		return fmt.Errorf("%w: %s reminder already sent", ErrValidation, kind)
	}
	*slot = &today
	r.UpdatedAt = today
	return nil
}

// DueReminder returns the next reminder the schedule calls for today, if any:
// the first at once, the second from SecondReminderDays before the due date,
// the final from FinalReminderDays before it.
func (r PolicyRenewal) DueReminder(today time.Time, t Terms) (ReminderType, bool) {
	if r.Status != RenewalPending {
		return "", false
	}
	daysLeft := DaysBetween(today, r.DueDate)
	switch {
	case r.FirstReminderSent == nil:
		return ReminderFirst, true
	case r.SecondReminderSent == nil:
		return ReminderSecond, daysLeft <= t.SecondReminderDays
	case r.FinalReminderSent == nil:
		return ReminderFinal, daysLeft <= t.FinalReminderDays
	}
	return "", false
}

// GraceLapsed reports whether the grace period ended with the renewal still pending.
func (r PolicyRenewal) GraceLapsed(today time.Time) bool {
	return r.Status == RenewalPending && DateOf(today).After(r.GracePeriodEnd)
}

func (r *PolicyRenewal) TransitionTo(next RenewalStatus, now time.Time) error {
	if r.Status != RenewalPending || next == RenewalPending {
		return fmt.Errorf("%w: renewal %s cannot move from %s to %s", ErrInvalidState, r.ID, r.Status, next)
	}
	r.Status = next
	if next == RenewalRenewed {
		r.RenewedAt = &now
	}
	r.UpdatedAt = now
	return nil
}

type RenewalRepo interface {
	Create(ctx context.Context, r PolicyRenewal) error
	Get(ctx context.Context, id string) (PolicyRenewal, error)
	Update(ctx context.Context, r PolicyRenewal) error
	ListByHolder(ctx context.Context, policyHolderID string) ([]PolicyRenewal, error)
}

var ErrRenewalNotFound = fmt.Errorf("%w: renewal not found", ErrNotFound)
