package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.Transition("idle", "initializing")
	m.CommandRefused("pause")
	m.ActivationTimeout()
	m.MavlinkFailure("generation")
	m.SetState("editable")
	m.BusMessage("drone-state")
	assert.Nil(t, m.Registry())
}

func TestCounters(t *testing.T) {
	m := New()
	m.Transition("idle", "initializing")
	m.Transition("idle", "initializing")
	m.CommandRefused("pause")
	m.ActivationTimeout()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Transitions.WithLabelValues("idle", "initializing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandsRefused.WithLabelValues("pause")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActivationTimeouts))
}

func TestStateGauge(t *testing.T) {
	m := New()
	m.SetState("editable")
	m.SetState("flying")

	assert.Equal(t, 0.0, testutil.ToFloat64(m.MachineState.WithLabelValues("editable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MachineState.WithLabelValues("flying")))
}

func TestHandlerServesMetrics(t *testing.T) {
	m := New()
	m.MavlinkFailure("sending")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `flightplan_mavlink_failures_total{phase="sending"} 1`))
}
