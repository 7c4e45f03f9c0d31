// Package redis holds the state API and batch replicas share: the
// sent-reminder ledger and the request rate-limit counters.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrKriegler/go-policyadmin/internal/core"
)

const keyPrefix = "policyadmin:reminder:"

type Reminders struct {
	client *redis.Client
}

var _ core.ReminderLedger = (*Reminders)(nil)

func NewReminders(client *redis.Client) *Reminders {
	return &Reminders{client: client}
}

// NewClient parses a redis:// URL and checks the server answers.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (r *Reminders) MarkSent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, keyPrefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reminders.setnx: %w", err)
	}
	return ok, nil
}

func (r *Reminders) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
