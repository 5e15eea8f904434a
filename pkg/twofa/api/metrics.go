package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	verificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "twofa_verifications_total",
			Help: "2FA verification attempts by endpoint and result",
		},
		[]string{"endpoint", "result"},
	)

	lockoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "twofa_lockouts_total",
			Help: "Verification attempts rejected because the account is locked",
		},
	)

	enrollmentEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "twofa_enrollment_events_total",
			Help: "2FA lifecycle events",
		},
		[]string{"event"},
	)
)

const (
	endpointSetupVerify = "setup_verify"
	endpointVerify      = "verify"
)
