package lambda

import "github.com/prometheus/client_golang/prometheus"

var (
	// InvocationsTotal counts invocations by kind (http, command, ignored).
	InvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adapter_invocations_total",
			Help: "Invocations received",
		},
		[]string{"kind"},
	)

	// ResponsesTotal counts HTTP responses by status class.
	ResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adapter_responses_total",
			Help: "Application responses",
		},
		[]string{"status"},
	)

	// ExceptionsTotal counts failed invocations by exception handler outcome.
	ExceptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adapter_exceptions_total",
			Help: "Failed invocations",
		},
		[]string{"outcome"},
	)

	// InvocationDuration records time spent translating and serving HTTP events.
	InvocationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "adapter_invocation_duration_seconds",
			Help:    "Invocation duration",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		InvocationsTotal,
		ResponsesTotal,
		ExceptionsTotal,
		InvocationDuration,
	)
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
