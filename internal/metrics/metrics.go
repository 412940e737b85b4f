// Package metrics declares the Prometheus collectors of the simulator.
package metrics

import (
	"github.com/iwvelando/credit-simulator/pkg/validation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "credit_simulator"

var (
	// Simulations counts calculations by category and outcome.
	Simulations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulations_total",
			Help:      "Simulations calculated, by category and status",
		},
		[]string{"category", "status"},
	)

	// Errors counts failures by operation and error class.
	Errors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Failed operations by error class",
		},
		[]string{"operation", "class"},
	)

	// MessagesSent counts rendered messages handed to a channel.
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Messages delivered or queued, by channel and status",
		},
		[]string{"channel", "status"},
	)

	// SettingsReloads counts settings reloads by status.
	SettingsReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settings_reloads_total",
			Help:      "Settings reloads by status",
		},
		[]string{"status"},
	)

	// RequestDuration observes HTTP handler latency.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status code",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "code"},
	)
)

// Error class labels.
const (
	ClassValidation    = "validation"
	ClassConfiguration = "configuration"
	ClassInternal      = "internal"
)

// Classify maps err to an error class label.
func Classify(err error) string {
	switch {
	case validation.IsValidation(err):
		return ClassValidation
	case validation.IsConfiguration(err):
		return ClassConfiguration
	}
	return ClassInternal
}

// ObserveError records err under operation; a nil err is ignored.
func ObserveError(operation string, err error) {
	if err == nil {
		return
	}
	Errors.WithLabelValues(operation, Classify(err)).Inc()
}

// ObserveSimulation records the outcome of a calculation.
func ObserveSimulation(category string, err error) {
	status := "success"
	if err != nil {
		status = Classify(err)
	}
	Simulations.WithLabelValues(category, status).Inc()
}
