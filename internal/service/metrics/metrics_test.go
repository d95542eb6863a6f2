package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.CycleFinished("manual", OutcomeSuccess)
	m.CycleFinished("manual", OutcomeSuccess)
	m.TriggerDropped("timer", ReasonInFlight)
	m.SetInFlight(true)
	m.SetCameraActive(true)
	m.Probe(ProbeConnection, false)
	m.ObserveAnalysis(OutcomeSuccess, 120*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.cycles.WithLabelValues("manual", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.droppedTriggers.WithLabelValues("timer", ReasonInFlight)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cameraActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.probes.WithLabelValues(ProbeConnection, OutcomeError)))

	m.SetInFlight(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inFlight))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.CycleFinished("manual", OutcomeError)
		m.TriggerDropped("manual", ReasonNoCamera)
		m.ObserveAnalysis(OutcomeError, time.Second)
		m.SetInFlight(true)
		m.SetCameraActive(true)
		m.SetAutoMode(true)
		m.Probe(ProbeTest, true)
		m.SetViewers(3)
	})
	assert.Nil(t, m.Registry())
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.SetViewers(2)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "visionbridge_viewers 2")
}
