package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "prospect"

// Outcome labels recorded for every operation.
const (
	OutcomeOK           = "ok"
	OutcomeNotFound     = "not_found"
	OutcomeUnauthorized = "unauthorized"
	OutcomeInvalid      = "invalid"
	OutcomeError        = "error"
)

var errMissingRegisterer = errors.New("metrics: registerer is required")

// Recorder captures per-entity operation timings and results.
type Recorder interface {
	ObserveOperation(entity, operation, outcome string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveOperation(string, string, string, time.Duration) {}

// Nop returns a Recorder that discards observations.
func Nop() Recorder {
	return nopRecorder{}
}

// PrometheusRecorder exports operation counters and latency histograms.
type PrometheusRecorder struct {
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the record operation collectors with registerer.
func NewPrometheusRecorder(registerer prometheus.Registerer) (*PrometheusRecorder, error) {
	if registerer == nil {
		return nil, errMissingRegisterer
	}
	recorder := &PrometheusRecorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_operations_total",
			Help:      "Record operations by entity, operation and outcome.",
		}, []string{"entity", "operation", "outcome"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "record_operation_duration_seconds",
			Help:      "Record operation latency by entity and operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"entity", "operation"}),
	}
	for _, collector := range []prometheus.Collector{recorder.operations, recorder.durations} {
		if err := registerer.Register(collector); err != nil {
			return nil, err
		}
	}
	return recorder, nil
}

func (r *PrometheusRecorder) ObserveOperation(entity, operation, outcome string, elapsed time.Duration) {
	r.operations.WithLabelValues(entity, operation, outcome).Inc()
	r.durations.WithLabelValues(entity, operation).Observe(elapsed.Seconds())
}
