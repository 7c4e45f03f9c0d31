// Command batch runs one daily job, or all of them in nightly order, and
// exits. Re-running a job for the same day is safe.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrKriegler/go-policyadmin/internal/app"
	"github.com/MrKriegler/go-policyadmin/internal/core"
	"github.com/MrKriegler/go-policyadmin/internal/platform/config"
	"github.com/MrKriegler/go-policyadmin/internal/platform/logging"
)

func main() {
	job := flag.String("job", "all", "job to run: all, or one of the names printed by -list")
	asOf := flag.String("as-of", "", "run as if today were this date (YYYY-MM-DD, UTC)")
	list := flag.Bool("list", false, "print job names and exit")
	flag.Parse()

	if *list {
		for _, j := range core.AllJobs {
			fmt.Println(j)
		}
		return
	}

	cfg := config.MustLoad()
	log := logging.New(cfg.Env, cfg.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log, *job, *asOf); err != nil {
		log.Error("batch failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger, job, asOf string) error {
	if job != "all" && !core.BatchJob(job).Valid() {
		return fmt.Errorf("unknown job %q", job)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	if asOf != "" {
		day, err := time.Parse(time.DateOnly, asOf)
		if err != nil {
			return fmt.Errorf("bad -as-of: %w", err)
		}
		a.Lifecycle.SetClock(func() time.Time {
			now := time.Now().UTC()
			return day.Add(now.Sub(core.DateOf(now)))
		})
		log.Info("running with overridden date", "as_of", asOf)
	}

	var results []core.BatchResult
	if job == "all" {
		results, err = a.Runner.RunAll(ctx)
	} else {
		var res core.BatchResult
		res, err = a.Runner.Run(ctx, core.BatchJob(job))
		results = append(results, res)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(results); encErr != nil {
		log.Warn("failed to print results", "err", encErr)
	}
	return err
}
