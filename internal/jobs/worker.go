package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrKriegler/go-policyadmin/internal/core"
	"github.com/MrKriegler/go-policyadmin/internal/platform/metrics"
)

// Worker defines a long-running background component.
type Worker interface {
	Start(ctx context.Context)
	Name() string
}

const tracerName = "github.com/MrKriegler/go-policyadmin/internal/jobs"

// ErrJobRunning is returned when the same batch job is already in progress.
var ErrJobRunning = fmt.Errorf("%w: batch job already running", core.ErrConflict)

// BatchRunner runs one batch job to completion.
type BatchRunner interface {
	Run(ctx context.Context, job core.BatchJob) (core.BatchResult, error)
}

// Runner executes batch jobs with a timeout, tracing and metrics. A job
// never runs twice at once in the same process, whether started by the
// scheduler or over HTTP.
type Runner struct {
	batch   BatchRunner
	metrics *metrics.Metrics
	timeout time.Duration
	tracer  trace.Tracer
	log     *slog.Logger

	mu      sync.Mutex
	running map[core.BatchJob]bool
}

// NewRunner creates a runner. m may be nil.
func NewRunner(batch BatchRunner, m *metrics.Metrics, timeout time.Duration, log *slog.Logger) *Runner {
	return &Runner{
		batch:   batch,
		metrics: m,
		timeout: timeout,
		tracer:  otel.Tracer(tracerName),
		log:     log.With("component", "jobs"),
		running: map[core.BatchJob]bool{},
	}
}

// WithTracerProvider traces runs through tp instead of the global provider.
func (r *Runner) WithTracerProvider(tp trace.TracerProvider) *Runner {
	r.tracer = tp.Tracer(tracerName)
	return r
}

func (r *Runner) Run(ctx context.Context, job core.BatchJob) (core.BatchResult, error) {
	if !job.Valid() {
		return core.BatchResult{}, fmt.Errorf("%w: unknown batch job %q", core.ErrValidation, job)
	}
	if !r.acquire(job) {
		return core.BatchResult{Job: job}, ErrJobRunning
	}
	defer r.release(job)

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	ctx, span := r.tracer.Start(ctx, "batch."+string(job),
		trace.WithAttributes(attribute.String("batch.job", string(job))))
	defer span.End()

	log := r.log.With("job", job)
	log.InfoContext(ctx, "batch job started")
	start := time.Now()

	res, err := r.batch.Run(ctx, job)
	elapsed := time.Since(start)

	span.SetAttributes(
		attribute.Int("batch.candidates", res.Candidates),
		attribute.Int("batch.processed", res.Processed),
		attribute.Int("batch.changed", res.Changed),
		attribute.Int("batch.skipped", res.Skipped),
		attribute.Int("batch.failed", res.Failed),
		attribute.Bool("batch.interrupted", res.Interrupted),
	)
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.ErrorContext(ctx, "batch job failed", "err", err, "elapsed", elapsed)
	case res.Failed > 0:
		span.SetStatus(codes.Error, fmt.Sprintf("%d records failed", res.Failed))
		log.WarnContext(ctx, "batch job finished with failures", "failed", res.Failed, "elapsed", elapsed)
	default:
		log.InfoContext(ctx, "batch job finished", "changed", res.Changed, "elapsed", elapsed)
	}

	if r.metrics != nil {
		r.metrics.ObserveBatch(res, elapsed, err)
	}
	return res, err
}

// RunAll runs every job in nightly order. A failing job does not stop the
// ones after it; a cancelled context does.
func (r *Runner) RunAll(ctx context.Context) ([]core.BatchResult, error) {
	var (
		results []core.BatchResult
		errs    []error
	)
	for _, job := range core.AllJobs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, err := r.Run(ctx, job)
		results = append(results, res)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", job, err))
		}
	}
	return results, errors.Join(errs...)
}

func (r *Runner) acquire(job core.BatchJob) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running[job] {
		return false
	}
	r.running[job] = true
	return true
}

func (r *Runner) release(job core.BatchJob) {
	r.mu.Lock()
	delete(r.running, job)
	r.mu.Unlock()
}
