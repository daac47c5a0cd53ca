// Package metrics exposes Prometheus instruments for the authentication flows.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

var (
	// AuthAttempts counts credential checks.
	// Labels:
	//   - method: "session", "token", "admin_password", "admin_code", "password_reset"
	//   - outcome: "success", "failure", "error"
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faaxis_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"method", "outcome"},
	)

	// AdminOTPEvents counts admin one-time code lifecycle events.
	// Labels:
	//   - event: "issued", "verified", "rejected", "locked_out"
	AdminOTPEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faaxis_admin_otp_total",
			Help: "Admin one-time code events",
		},
		[]string{"event"},
	)

	// EmailSends counts outbound email deliveries.
	EmailSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faaxis_email_send_total",
			Help: "Outbound email deliveries by template and outcome",
		},
		[]string{"template", "outcome"},
	)

	// PasswordVerifyDuration measures password hash comparisons per hash format.
	PasswordVerifyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "faaxis_password_verify_seconds",
			Help:    "Duration of password verification in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"format"},
	)
)
