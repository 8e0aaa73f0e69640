package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordGenerationFailure(t *testing.T) {
	m := getMetrics()
	before := testutil.ToFloat64(m.generationFailures.WithLabelValues("plan"))

	RecordGenerationFailure("plan")
	RecordGenerationFailure("plan")

	assert.Equal(t, before+2, testutil.ToFloat64(m.generationFailures.WithLabelValues("plan")))
}

func TestSessionLifecycleMetrics(t *testing.T) {
	m := getMetrics()
	active := testutil.ToFloat64(m.sessionsActive)
	success := testutil.ToFloat64(m.sessionsTotal.WithLabelValues("success"))

	SessionStarted()
	assert.Equal(t, active+1, testutil.ToFloat64(m.sessionsActive))

	RecordSessionEnd("success", 150*time.Millisecond, 1, 0.8)
	assert.Equal(t, active, testutil.ToFloat64(m.sessionsActive))
	assert.Equal(t, success+1, testutil.ToFloat64(m.sessionsTotal.WithLabelValues("success")))
}

func TestRecordHTTPRequest(t *testing.T) {
	m := getMetrics()
	before := testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("/api/agent/execute", "200"))

	RecordHTTPRequest("/api/agent/execute", http.StatusOK)

	assert.Equal(t, before+1, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("/api/agent/execute", "200")))
}

func TestMetricsHandlerExposesNamespace(t *testing.T) {
	RecordPhase("execute", 10*time.Millisecond)

	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "deepagent_phase_duration_seconds"))
}
