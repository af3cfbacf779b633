package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/upb/jaffa-explorer/session"
)

const namespace = "jaffa"

// ClientMetrics holds the Prometheus collectors for the request client.
// It satisfies client.Metrics.
type ClientMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	LoginsTotal     *prometheus.CounterVec
	RefreshesTotal  *prometheus.CounterVec
	SessionLosses   *prometheus.CounterVec
}

// NewClientMetrics creates and registers the collectors with reg.
func NewClientMetrics(reg prometheus.Registerer) *ClientMetrics {
	return &ClientMetrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "client_requests_total",
				Help:      "Backend requests issued by the client",
			},
			[]string{"method", "role", "status"}, // status=0 for transport failures
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "client_request_duration_seconds",
				Help:      "Backend request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		LoginsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "client_logins_total",
				Help:      "Login attempts by role and outcome",
			},
			[]string{"role", "outcome"},
		),
		RefreshesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "client_token_refreshes_total",
				Help:      "Access token refresh attempts by role and outcome",
			},
			[]string{"role", "outcome"},
		),
		SessionLosses: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "client_session_losses_total",
				Help:      "Sessions dropped after an unrecoverable 401",
			},
			[]string{"role"},
		),
	}
}

func (m *ClientMetrics) ObserveRequest(method string, role session.Role, status int, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, role.String(), strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func (m *ClientMetrics) ObserveLogin(role session.Role, outcome string) {
	m.LoginsTotal.WithLabelValues(role.String(), outcome).Inc()
}

func (m *ClientMetrics) ObserveRefresh(role session.Role, outcome string) {
	m.RefreshesTotal.WithLabelValues(role.String(), outcome).Inc()
}

func (m *ClientMetrics) ObserveSessionLoss(role session.Role) {
	m.SessionLosses.WithLabelValues(role.String()).Inc()
}
