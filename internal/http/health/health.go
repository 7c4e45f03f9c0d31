package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Check is a named dependency pinged by readiness.
type Check struct {
	Name   string
	Pinger Pinger
}

// New builds liveness and readiness endpoints. Readiness pings every
// dependency concurrently and fails if any of them fails.
func New(log *slog.Logger, checks []Check, opTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
		defer cancel()

		var (
			mu      sync.Mutex
			results = make(map[string]string, len(checks))
			g       errgroup.Group
		)
		for _, c := range checks {
			g.Go(func() error {
				err := c.Pinger.Ping(ctx)
				status := "ok"
				if err != nil {
					status = err.Error()
					log.Warn("readiness failed", "check", c.Name, "err", err)
				}
				mu.Lock()
				results[c.Name] = status
				mu.Unlock()
				return err
			})
		}

		code, status := http.StatusOK, "ready"
		if err := g.Wait(); err != nil {
			code, status = http.StatusServiceUnavailable, "not ready"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": status, "checks": results})
	})

	return r
}
