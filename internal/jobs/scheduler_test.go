package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrKriegler/go-policyadmin/internal/core"
)

func TestNewSchedulerRejectsBadCronExpr(t *testing.T) {
	r := NewRunner(&fakeBatch{}, nil, 0, quiet)

	_, err := NewScheduler(r, map[core.BatchJob]string{core.JobApplyFines: "every night"}, quiet)
	require.ErrorContains(t, err, "apply_fines")
}

func TestSchedulerSkipsUnscheduledJobs(t *testing.T) {
	r := NewRunner(&fakeBatch{}, nil, 0, quiet)

	s, err := NewScheduler(r, map[core.BatchJob]string{
		core.JobApplyFines:    "15 1 * * *",
		core.JobCheckExpiries: "",
	}, quiet)
	require.NoError(t, err)
	assert.Len(t, s.Next(), 1)
	assert.Contains(t, s.Next(), core.JobApplyFines)
}

func TestSchedulerFiresJobs(t *testing.T) {
	fb := &fakeBatch{started: make(chan struct{}, 8)}
	r := NewRunner(fb, nil, 0, quiet)

	s, err := NewScheduler(r, map[core.BatchJob]string{core.JobSendPaymentReminders: "@every 1s"}, quiet)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(stopped)
	}()

	select {
	case <-fb.started:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduled job never fired")
	}
	next := s.Next()[core.JobSendPaymentReminders]
	assert.False(t, next.IsZero())
	assert.Equal(t, time.UTC, next.Location())

	cancel()
	<-stopped
	assert.Contains(t, fb.jobs(), core.JobSendPaymentReminders)
}
