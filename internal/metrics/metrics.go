package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels requests that produced a full response.
	OutcomeSuccess = "success"
	// OutcomeInvalid labels requests rejected as invalid input.
	OutcomeInvalid = "invalid"
	// OutcomeError labels requests that failed while processing.
	OutcomeError = "error"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "threatlens",
			Name:      "requests_total",
			Help:      "Total number of inference requests, partitioned by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	requestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "threatlens",
			Name:      "request_seconds",
			Help:      "Inference request latency in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"operation"},
	)

	logRecordsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "threatlens",
			Name:      "log_records_total",
			Help:      "Log lines that matched the record pattern and were scored.",
		},
	)

	logAnomaliesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "threatlens",
			Name:      "log_anomalies_total",
			Help:      "Log records flagged as anomalous.",
		},
	)

	urlClassificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "threatlens",
			Name:      "url_classifications_total",
			Help:      "URL classifications, partitioned by label and resolution source.",
		},
		[]string{"label", "source"},
	)
)

// Register attaches threatlens collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		requestsTotal,
		requestDurationSeconds,
		logRecordsTotal,
		logAnomaliesTotal,
		urlClassificationsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveRequest records a request duration and outcome label for an operation.
func ObserveRequest(operation string, duration time.Duration, outcome string) {
	switch outcome {
	case OutcomeInvalid, OutcomeError:
	default:
		outcome = OutcomeSuccess
	}
	requestsTotal.WithLabelValues(operation, outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	requestDurationSeconds.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveLogAnalysis counts scored records and flagged anomalies.
func ObserveLogAnalysis(records, anomalies int) {
	logRecordsTotal.Add(float64(records))
	logAnomaliesTotal.Add(float64(anomalies))
}

// ObserveURLClassification counts one classified URL.
func ObserveURLClassification(label, source string) {
	urlClassificationsTotal.WithLabelValues(label, source).Inc()
}
