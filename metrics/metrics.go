// Package metrics exposes Prometheus instrumentation for the tracker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the tracker service.
type Metrics struct {
	SubmissionsAccepted prometheus.Counter
	SubmissionsRejected *prometheus.CounterVec
	PeriodsFinalized    prometheus.Counter
	PeriodsEmergency    prometheus.Counter
	AlertsFired         *prometheus.CounterVec
	CallbacksRejected   prometheus.Counter
}

// New creates and registers all metrics on the given registerer. Pass
// prometheus.DefaultRegisterer in production; tests pass a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SubmissionsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "tracker_submissions_accepted_total",
			Help: "Total number of observations accepted into a period",
		}),
		SubmissionsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_submissions_rejected_total",
			Help: "Total number of rejected observations by rejection kind",
		}, []string{"kind"}),
		PeriodsFinalized: factory.NewCounter(prometheus.CounterOpts{
			Name: "tracker_periods_finalized_total",
			Help: "Total number of periods finalized with verified aggregates",
		}),
		PeriodsEmergency: factory.NewCounter(prometheus.CounterOpts{
			Name: "tracker_periods_emergency_ended_total",
			Help: "Total number of periods closed without decryption",
		}),
		AlertsFired: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_alerts_fired_total",
			Help: "Total number of alerts fired at finalization by alert type",
		}, []string{"type"}),
		CallbacksRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "tracker_decrypt_callbacks_rejected_total",
			Help: "Total number of decrypt callbacks that failed verification",
		}),
	}
}

// RecordRejection counts one rejected submission under its error kind.
func (m *Metrics) RecordRejection(kind string) {
	m.SubmissionsRejected.WithLabelValues(kind).Inc()
}

// RecordFinalized counts one finalization and any alerts it fired.
func (m *Metrics) RecordFinalized(symptomAlert, exposureAlert bool) {
	m.PeriodsFinalized.Inc()
	if symptomAlert {
		m.AlertsFired.WithLabelValues("symptom").Inc()
	}
	if exposureAlert {
		m.AlertsFired.WithLabelValues("exposure").Inc()
	}
}
