// Package metrics holds the Prometheus collectors of the auth gate, OTP delivery and class swaps.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ratiba"

var (
	GateTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gate_transitions_total",
		Help:      "Auth gate state changes, by target state.",
	}, []string{"state"})

	OTPSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "otp_sent_total",
		Help:      "One-time code issuances, by result.",
	}, []string{"result"})

	OTPVerified = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "otp_verifications_total",
		Help:      "One-time code checks, by result.",
	}, []string{"result"})

	Swaps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "class_swaps_total",
		Help:      "Class swaps, by outcome.",
	}, []string{"outcome"})
)

// Register registers the collectors on reg (or the default registerer if nil).
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{GateTransitions, OTPSent, OTPVerified, Swaps} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}

func ObserveGateState(state string) {
	GateTransitions.WithLabelValues(state).Inc()
}

func ObserveOTPSent(err error) {
	OTPSent.WithLabelValues(result(err)).Inc()
}

func ObserveOTPVerified(ok bool, err error) {
	switch {
	case err != nil:
		OTPVerified.WithLabelValues("error").Inc()
	case ok:
		OTPVerified.WithLabelValues("match").Inc()
	default:
		OTPVerified.WithLabelValues("mismatch").Inc()
	}
}

// ObserveSwap counts a swap outcome: ok, rejected, failed, partial, compensation_failed or atomic.
func ObserveSwap(outcome string) {
	Swaps.WithLabelValues(outcome).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
