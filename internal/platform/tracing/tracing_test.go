package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrKriegler/go-policyadmin/internal/platform/config"
)

func TestStdoutExporterWritesSpans(t *testing.T) {
	var buf bytes.Buffer
	p, err := newProvider(&config.Config{Env: "test", TraceExporter: ExporterStdout, TraceSampleRatio: 1}, &buf)
	require.NoError(t, err)

	_, span := p.Tracer("test").Start(context.Background(), "batch.apply_fines")
	span.End()
	require.NoError(t, p.Close(context.Background()))

	assert.Contains(t, buf.String(), "batch.apply_fines")
	assert.Contains(t, buf.String(), "policyadmin")
}

func TestNoneExporterStillSamples(t *testing.T) {
	p, err := newProvider(&config.Config{TraceExporter: ExporterNone, TraceSampleRatio: 1}, nil)
	require.NoError(t, err)
	defer p.Close(context.Background())

	_, span := p.Tracer("test").Start(context.Background(), "x")
	defer span.End()
	assert.True(t, span.SpanContext().IsSampled())
	assert.True(t, span.SpanContext().HasTraceID())
}

func TestUnknownExporter(t *testing.T) {
	_, err := newProvider(&config.Config{TraceExporter: "zipkin"}, nil)
	require.ErrorContains(t, err, "zipkin")
}
