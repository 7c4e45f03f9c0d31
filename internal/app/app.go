// Package app wires the policy lifecycle to the configured stores and
// brokers. The api, batch and seed commands share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"

	"github.com/MrKriegler/go-policyadmin/internal/core"
	"github.com/MrKriegler/go-policyadmin/internal/http/health"
	"github.com/MrKriegler/go-policyadmin/internal/jobs"
	"github.com/MrKriegler/go-policyadmin/internal/notify"
	"github.com/MrKriegler/go-policyadmin/internal/platform/config"
	"github.com/MrKriegler/go-policyadmin/internal/platform/metrics"
	"github.com/MrKriegler/go-policyadmin/internal/platform/tracing"
	"github.com/MrKriegler/go-policyadmin/internal/store/dynamo"
	"github.com/MrKriegler/go-policyadmin/internal/store/mongo"
	"github.com/MrKriegler/go-policyadmin/internal/store/postgres"
	"github.com/MrKriegler/go-policyadmin/internal/store/redis"
)

const (
	RatesPostgres = "postgres"
	RatesMongo    = "mongo"
	RatesDynamo   = "dynamodb"
)

type App struct {
	Config    *config.Config
	Log       *slog.Logger
	DB        *sqlx.DB
	Store     *postgres.Store
	RateRepo  core.RateTableRepo
	Rates     core.RateService
	Lifecycle *core.Lifecycle
	Batch     *core.BatchService
	Runner    *jobs.Runner
	Metrics   *metrics.Metrics
	Tracer    *tracing.Provider
	Redis     *goredis.Client // nil when REDIS_URL is unset
	Checks    []health.Check

	closers []func(context.Context) error
}

// New connects every configured backend. On error, whatever was already
// opened is closed again.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (_ *App, err error) {
	a := &App{Config: cfg, Log: log, Metrics: metrics.New()}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	// 0) Tracing, first so it is shut down (and flushed) last
	a.Tracer, err = tracing.New(cfg)
	if err != nil {
		return nil, err
	}
	a.onClose(a.Tracer.Close)

	// 1) Ledger
	a.DB, err = postgres.Open(cfg)
	if err != nil {
		return nil, err
	}
	a.onClose(func(context.Context) error { return a.DB.Close() })
	if err := postgres.EnsureSchema(ctx, a.DB); err != nil {
		return nil, err
	}
	a.Store = postgres.NewStore(a.DB,
		time.Duration(cfg.DBLockTimeoutMs)*time.Millisecond,
		time.Duration(cfg.DBStatementTimeMs)*time.Millisecond,
		log)
	a.Checks = append(a.Checks, health.Check{Name: "postgres", Pinger: a.Store})

	// 2) Reference data
	if a.RateRepo, err = a.openRateRepo(ctx); err != nil {
		return nil, err
	}
	a.Rates = core.NewRateService(a.RateRepo, time.Duration(cfg.RatesCacheTTLSec)*time.Second)

	// 3) Reminder ledger
	var reminders core.ReminderLedger = postgres.NewReminders(a.DB)
	if cfg.RedisURL != "" {
		a.Redis, err = redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.onClose(func(context.Context) error { return a.Redis.Close() })
		r := redis.NewReminders(a.Redis)
		reminders = r
		a.Checks = append(a.Checks, health.Check{Name: "redis", Pinger: r})
	}

	// 4) Notifications
	notifier := notify.Multi{notify.NewLogNotifier(log)}
	if cfg.AMQPURL != "" {
		pub, err := notify.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange, log)
		if err != nil {
			return nil, err
		}
		a.onClose(func(context.Context) error { return pub.Close() })
		notifier = append(notifier, pub)
		a.Checks = append(a.Checks, health.Check{Name: "amqp", Pinger: pub})
	}

	// 5) Services
	a.Lifecycle = core.NewLifecycle(a.Store, a.Rates, notifier, cfg.Terms, log)
	a.Batch = core.NewBatchService(a.Lifecycle, reminders, log)
	a.Runner = jobs.NewRunner(a.Batch, a.Metrics, time.Duration(cfg.BatchTimeoutMin)*time.Minute, log).
		WithTracerProvider(a.Tracer)

	log.Info("application wired",
		"rates_db", cfg.RatesDBType,
		"redis", a.Redis != nil,
		"amqp", cfg.AMQPURL != "",
		"trace_exporter", cfg.TraceExporter)
	return a, nil
}

func (a *App) openRateRepo(ctx context.Context) (core.RateTableRepo, error) {
	cfg := a.Config
	switch cfg.RatesDBType {
	case RatesPostgres, "":
		return postgres.NewRateRepo(a.DB), nil

	case RatesMongo:
		client, err := mongo.NewClient(cfg)
		if err != nil {
			return nil, err
		}
		a.onClose(client.Close)
		if err := mongo.EnsureIndexes(ctx, client.DB); err != nil {
			return nil, err
		}
		a.Checks = append(a.Checks, health.Check{Name: "mongo", Pinger: client})
		return mongo.NewRateRepo(client.DB, time.Duration(cfg.MongoOpTimeoutMs)*time.Millisecond), nil

	case RatesDynamo:
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := dynamo.EnsureTables(ctx, client.DB, client.Tables, a.Log); err != nil {
			return nil, err
		}
		a.Checks = append(a.Checks, health.Check{Name: "dynamodb", Pinger: client})
		return dynamo.NewRateRepo(client.DB, client.Tables), nil
	}
	return nil, fmt.Errorf("unknown RATES_DB_TYPE %q", cfg.RatesDBType)
}

func (a *App) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// Close releases connections in reverse order of opening.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
