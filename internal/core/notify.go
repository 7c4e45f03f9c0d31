package core

import (
	"context"
	"time"
)

type EventType string

const (
	EventPolicyStatusChanged EventType = "policy.status_changed"
	EventPaymentAccepted     EventType = "payment.accepted"
	EventPaymentReminder     EventType = "payment.reminder"
	EventRenewalReminder     EventType = "renewal.reminder"
	EventSurrenderProcessed  EventType = "surrender.processed"
	EventBonusCredited       EventType = "bonus.credited"
	EventClaimPaid           EventType = "claim.paid"
)

// Event is published after the transaction that produced it commits.
type Event struct {
	Type           EventType      `json:"type"`
	PolicyHolderID string         `json:"policy_holder_id"`
	PolicyNumber   string         `json:"policy_number,omitempty"`
	At             time.Time      `json:"at"`
	Data           map[string]any `json:"data,omitempty"`
}

// Notifier delivers events to policyholders or downstream systems.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// ReminderLedger remembers which reminders went out.
type ReminderLedger interface {
	// MarkSent records key and reports true only the first time it is seen.
	MarkSent(ctx context.Context, key string, ttl time.Duration) (bool, error)
}
