package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/MrKriegler/go-policyadmin/internal/core"
)

// Scheduler fires batch jobs on cron schedules evaluated in UTC.
type Scheduler struct {
	cron   *cron.Cron
	runner *Runner
	log    *slog.Logger
	ctx    context.Context
	ids    map[core.BatchJob]cron.EntryID
}

// NewScheduler registers one cron entry per job with a non-empty schedule.
func NewScheduler(runner *Runner, schedules map[core.BatchJob]string, log *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		runner: runner,
		log:    log.With("worker", "scheduler"),
		ctx:    context.Background(),
		ids:    map[core.BatchJob]cron.EntryID{},
	}
	logger := cronLogger{log: s.log}
	s.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	for _, job := range core.AllJobs {
		spec := schedules[job]
		if spec == "" {
			continue
		}
		id, err := s.cron.AddFunc(spec, func() { s.fire(job) })
		if err != nil {
			return nil, fmt.Errorf("schedule %s %q: %w", job, spec, err)
		}
		s.ids[job] = id
		s.log.Info("job scheduled", "job", job, "cron", spec)
	}
	return s, nil
}

// Start runs the scheduler until ctx is cancelled, then waits for running
// jobs to return.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
	s.log.Info("worker started", "entries", len(s.cron.Entries()))

	<-ctx.Done()
	s.log.Info("worker stopping")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) Name() string {
	return "scheduler"
}

// Next reports when each scheduled job fires next. Zero until Start.
func (s *Scheduler) Next() map[core.BatchJob]time.Time {
	out := make(map[core.BatchJob]time.Time, len(s.ids))
	for job, id := range s.ids {
		out[job] = s.cron.Entry(id).Next
	}
	return out
}

func (s *Scheduler) fire(job core.BatchJob) {
	if _, err := s.runner.Run(s.ctx, job); err != nil {
		s.log.Error("scheduled job failed", "job", job, "err", err)
	}
}

// cronLogger adapts slog to cron's logger interface.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "err", err)...)
}
