package transporthttp

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrKriegler/go-policyadmin/internal/http/handlers"
	"github.com/MrKriegler/go-policyadmin/internal/middleware"
	"github.com/MrKriegler/go-policyadmin/internal/platform/metrics"
)

// Deps bundles the router's collaborators. Health, Metrics, Tracer and
// Limiter are optional.
type Deps struct {
	Log            *slog.Logger
	APIKey         string
	AllowedOrigins []string
	RequestTimeout time.Duration
	Limiter        middleware.Limiter
	Metrics        *metrics.Metrics
	Tracer         trace.TracerProvider
	Health         http.Handler
	Mounts         []handlers.Mountable
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	if d.Tracer != nil {
		r.Use(middleware.Tracing(d.Tracer))
	}
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(d.AllowedOrigins))
	if d.Metrics != nil {
		r.Use(middleware.Metrics(d.Metrics))
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}
	if d.Health != nil {
		r.Mount("/", d.Health)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.SimpleAPIKey(d.APIKey))
		if d.Limiter != nil {
			r.Use(middleware.RateLimit(d.Limiter, d.Log))
		}
		r.Use(middleware.LimitRequestBody(middleware.MaxBodySize))
		r.Use(middleware.SetJSONContentType)
		if d.RequestTimeout > 0 {
			r.Use(chimw.Timeout(d.RequestTimeout))
		}

		for _, m := range d.Mounts {
			m.Mount(r)
		}
	})

	return r
}
