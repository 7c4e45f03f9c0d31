package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/MrKriegler/go-policyadmin/internal/core"
)

// Reminders is the sent-reminder ledger for deployments without Redis.
type Reminders struct {
	db    *sqlx.DB
	clock func() time.Time
}

var _ core.ReminderLedger = (*Reminders)(nil)

func NewReminders(db *sqlx.DB) *Reminders {
	return &Reminders{db: db, clock: time.Now}
}

// MarkSent claims key until ttl elapses. An expired claim is taken over in
// the same statement.
func (r *Reminders) MarkSent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	now := r.clock().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO sent_reminders (key, expires_at) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET expires_at = EXCLUDED.expires_at
		WHERE sent_reminders.expires_at <= $3`, key, now.Add(ttl), now)
	if err != nil {
		return false, fmt.Errorf("sent_reminders.mark: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sent_reminders.mark: %w", err)
	}
	return n == 1, nil
}

