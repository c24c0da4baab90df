// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the entfalten gateway.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts all HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entfalten_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "entfalten_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method"},
	)

	// ProviderRequestsTotal counts completion calls sent to the backend.
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entfalten_provider_requests_total",
			Help: "Provider requests",
		},
		[]string{"provider", "model", "status"},
	)

	// ProviderLatency records backend completion latency in seconds.
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "entfalten_provider_latency_seconds",
			Help:    "Provider latency",
			Buckets: LLMBuckets,
		},
		[]string{"provider", "model"},
	)

	// ProviderTokensTotal counts tokens processed by direction (input/output).
	ProviderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entfalten_provider_tokens_total",
			Help: "Token count",
		},
		[]string{"provider", "model", "direction"},
	)

	// ForksTotal counts fan-out forks by outcome.
	ForksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entfalten_forks_total",
			Help: "Fan-out forks",
		},
		[]string{"status"},
	)

	// StepFanout records how many forks each fan-out step launched.
	StepFanout = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "entfalten_step_fanout",
			Help:    "Forks launched per step",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
		},
	)

	// ConversationOpsTotal counts conversation store operations by kind and outcome.
	ConversationOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entfalten_conversation_ops_total",
			Help: "Conversation store operations",
		},
		[]string{"op", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		ProviderRequestsTotal,
		ProviderLatency,
		ProviderTokensTotal,
		ForksTotal,
		StepFanout,
		ConversationOpsTotal,
	)
}
