package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upb/jaffa-explorer/session"
)

func TestClientMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewClientMetrics(reg)

	m.ObserveRequest("GET", session.RoleVisitor, 200, 120*time.Millisecond)
	m.ObserveRequest("GET", session.RoleVisitor, 200, 80*time.Millisecond)
	m.ObserveRequest("POST", session.RoleNone, 0, time.Second)
	m.ObserveLogin(session.RoleAdmin, "success")
	m.ObserveRefresh(session.RoleVisitor, "rejected")
	m.ObserveSessionLoss(session.RoleVisitor)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "visitor", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RequestsTotal.WithLabelValues("POST", "none", "0")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LoginsTotal.WithLabelValues("admin", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RefreshesTotal.WithLabelValues("visitor", "rejected")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SessionLosses.WithLabelValues("visitor")))

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		byName[mf.GetName()] = mf
	}

	hist, ok := byName["jaffa_client_request_duration_seconds"]
	require.True(t, ok)
	var samples uint64
	for _, metric := range hist.GetMetric() {
		samples += metric.GetHistogram().GetSampleCount()
	}
	assert.Equal(t, uint64(3), samples)

	assert.Contains(t, byName, "jaffa_client_requests_total")
	assert.Contains(t, byName, "jaffa_client_logins_total")
}
