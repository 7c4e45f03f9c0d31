package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrKriegler/go-policyadmin/internal/core"
)

func TestObserveBatch(t *testing.T) {
	m := New()

	m.ObserveBatch(core.BatchResult{Job: core.JobApplyFines, Processed: 4, Changed: 3, Skipped: 1}, time.Second, nil)
	m.ObserveBatch(core.BatchResult{Job: core.JobApplyFines, Processed: 1, Failed: 1}, time.Second, errors.New("db down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.batchRuns.WithLabelValues("apply_fines", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.batchRuns.WithLabelValues("apply_fines", "error")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.batchRecords.WithLabelValues("apply_fines", "processed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.batchRecords.WithLabelValues("apply_fines", "failed")))
	assert.Positive(t, testutil.ToFloat64(m.batchLastRun.WithLabelValues("apply_fines")))
}

func TestHandlerExposesHTTPMetrics(t *testing.T) {
	m := New()
	m.ObserveHTTP("/v1/policies/{id}", "GET", "200", 20*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `policyadmin_http_requests_total{method="GET",route="/v1/policies/{id}",status="200"} 1`)
}
