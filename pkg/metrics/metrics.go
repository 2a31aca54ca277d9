package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "checkout",
			Name:      "requests_total",
			Help:      "HTTP requests by status and method",
		},
		[]string{"status", "method"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "checkout",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration",
			Buckets: []float64{
				0.01, 0.02, 0.03, 0.05, 0.08, 0.12,
				0.2, 0.3, 0.5, 0.8, 1.2, 2, 3, 5,
			},
		},
		[]string{"status"},
	)

	ConfirmationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "checkout",
			Name:      "confirmations_total",
			Help:      "Payment confirmation outcomes by state and failure code",
		},
		[]string{"state", "code"},
	)
)

func init() {
	prometheus.MustRegister(RequestsTotal, RequestDuration, ConfirmationsTotal)
}

func IncRequest(status, method string) {
	RequestsTotal.WithLabelValues(status, method).Inc()
}

func ObserveDuration(status string, seconds float64) {
	RequestDuration.WithLabelValues(status).Observe(seconds)
}

func IncConfirmation(state, code string) {
	ConfirmationsTotal.WithLabelValues(state, code).Inc()
}
