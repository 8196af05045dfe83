package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.ObserveAction("toggle", "ok")
	m.ObserveAction("toggle", "ok")
	m.ObserveAction("back", "no_prior_state")
	m.ObserveView(nil)
	m.ObserveView(errors.New("boom"))
	m.ObserveQuery(2, 10*time.Millisecond, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.actions.WithLabelValues("toggle", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.actions.WithLabelValues("back", "no_prior_state")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.viewIncrements.WithLabelValues("fail")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.queryDuration))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveAction("x", "ok")
	m.ObserveQuery(1, time.Second, nil)
	m.ObserveView(nil)
	m.SetSessions(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.SetSessions(4)
	m.ObserveAction("select", "ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "facetbot_sessions_active 4"), body)
	assert.Contains(t, body, `facetbot_actions_total{kind="select",outcome="ok"} 1`)
}
