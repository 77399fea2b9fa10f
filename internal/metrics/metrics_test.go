package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveRun("manual", "SUCCESS", time.Second)
	m.SetExecuting(true)
	m.Found("q", 3)
	m.Rejected("quality", "too_short")
	m.Added()
	m.PersistFailed()
	m.SourceError("quota")
	m.Fallback()
	m.Genre("Hành động")
	assert.NotNil(t, m.Handler())
}

func TestCountersAndHandler(t *testing.T) {
	m := New()
	m.Found("Vus Review", 4)
	m.Rejected("batch", "identity")
	m.Added()
	m.ObserveRun("schedule", "SUCCESS", 2*time.Second)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.CandidatesFound.WithLabelValues("Vus Review")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CandidatesRejected.WithLabelValues("batch", "identity")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReviewsAdded))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "reviews_pipeline_reviews_added_total 1")
	assert.Contains(t, string(body), `reviews_pipeline_runs_total{status="SUCCESS",trigger="schedule"} 1`)
}
