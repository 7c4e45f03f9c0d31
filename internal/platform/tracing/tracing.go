// Package tracing installs the process-wide OpenTelemetry tracer provider.
package tracing

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/MrKriegler/go-policyadmin/internal/platform/config"
)

const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"

	serviceName = "policyadmin"
)

// Provider wraps the SDK provider so callers only see Shutdown.
type Provider struct {
	*sdktrace.TracerProvider
}

// New builds a provider from config and registers it, with W3C trace
// context propagation, as the global default. With the "none" exporter
// spans are still sampled and carry trace IDs into logs, but are not
// shipped anywhere.
func New(cfg *config.Config) (*Provider, error) {
	return newProvider(cfg, os.Stderr)
}

func newProvider(cfg *config.Config, w io.Writer) (*Provider, error) {
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("deployment.environment", cfg.Env),
	))
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.TraceSampleRatio))),
	}
	switch cfg.TraceExporter {
	case ExporterNone, "":
	case ExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("stdout trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	default:
		return nil, fmt.Errorf("unknown TRACE_EXPORTER %q", cfg.TraceExporter)
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return &Provider{TracerProvider: tp}, nil
}

// Close flushes pending spans.
func (p *Provider) Close(ctx context.Context) error {
	return p.Shutdown(ctx)
}
