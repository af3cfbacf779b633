package client

import (
	"time"

	"github.com/upb/jaffa-explorer/session"
)

// Outcomes reported for login and refresh attempts.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics receives client instrumentation. Status is 0 for transport
// failures.
type Metrics interface {
	ObserveRequest(method string, role session.Role, status int, duration time.Duration)
	ObserveLogin(role session.Role, outcome string)
	ObserveRefresh(role session.Role, outcome string)
	ObserveSessionLoss(role session.Role)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) ObserveRequest(string, session.Role, int, time.Duration) {}
func (NopMetrics) ObserveLogin(session.Role, string)                        {}
func (NopMetrics) ObserveRefresh(session.Role, string)                      {}
func (NopMetrics) ObserveSessionLoss(session.Role)                          {}
