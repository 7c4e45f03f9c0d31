package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrKriegler/go-policyadmin/internal/app"
	transporthttp "github.com/MrKriegler/go-policyadmin/internal/http"
	"github.com/MrKriegler/go-policyadmin/internal/http/handlers"
	"github.com/MrKriegler/go-policyadmin/internal/http/health"
	"github.com/MrKriegler/go-policyadmin/internal/jobs"
	"github.com/MrKriegler/go-policyadmin/internal/middleware"
	"github.com/MrKriegler/go-policyadmin/internal/platform/config"
	"github.com/MrKriegler/go-policyadmin/internal/platform/logging"
	"github.com/MrKriegler/go-policyadmin/internal/store/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.MustLoad()
	log := logging.New(cfg.Env, cfg.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("api stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting policyadmin api", "env", cfg.Env, "port", cfg.Port)
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			log.Warn("close failed", "err", err)
		}
	}()

	// Rate limits are shared across replicas when Redis is available.
	var limiter middleware.Limiter
	if a.Redis != nil {
		limiter = redis.NewRateLimiter(a.Redis, cfg.RateLimitRPM, time.Minute)
	} else {
		rl := middleware.NewRateLimiter(cfg.RateLimitRPM, time.Minute)
		rl.StartWithContext(ctx)
		limiter = rl
	}

	lc := a.Lifecycle
	router := transporthttp.NewRouter(transporthttp.Deps{
		Log:            log,
		APIKey:         cfg.APIKey,
		AllowedOrigins: cfg.AllowedOrigins,
		RequestTimeout: time.Duration(cfg.HTTPRequestTimeoutSec) * time.Second,
		Limiter:        limiter,
		Metrics:        a.Metrics,
		Tracer:         a.Tracer,
		Health:         health.New(log, a.Checks, 2*time.Second),
		Mounts: []handlers.Mountable{
			handlers.NewPolicyHandler(lc, log),
			handlers.NewPaymentHandler(lc, log),
			handlers.NewLoanHandler(lc, log),
			handlers.NewSurrenderHandler(lc, log),
			handlers.NewClaimHandler(lc, log),
			handlers.NewRenewalHandler(lc, log),
			handlers.NewUnderwritingHandler(lc, log),
			handlers.NewRateHandler(a.Rates, log),
			handlers.NewQuoteHandler(lc, log),
			handlers.NewAgentHandler(lc, log),
			handlers.NewBatchHandler(a.Runner, log),
		},
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTPReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTPWriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(cfg.HTTPIdleTimeoutSec) * time.Second,
	}

	var workers []jobs.Worker
	if cfg.SchedulerEnabled {
		sched, err := jobs.NewScheduler(a.Runner, cfg.CronSchedules, log)
		if err != nil {
			return err
		}
		workers = append(workers, sched)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	for _, w := range workers {
		g.Go(func() error {
			log.Info("starting worker", "worker", w.Name())
			w.Start(gctx)
			return nil
		})
	}

	return g.Wait()
}
