package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parley_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	MessagesReceivedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "parley_messages_received_total",
			Help: "Total number of inbound chat messages seen by the client.",
		},
	)

	TurnsBatchedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "parley_turns_batched_total",
			Help: "Total number of logical turns emitted by the batcher.",
		},
	)

	RepliesSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "parley_replies_sent_total",
			Help: "Total number of reply messages delivered via XMPP.",
		},
	)

	RepliesSuppressedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_replies_suppressed_total",
			Help: "Total number of turns suppressed before generation.",
		},
		[]string{"reason"},
	)

	ProviderAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_provider_attempts_total",
			Help: "Total number of completion attempts by provider and result.",
		},
		[]string{"provider", "result"},
	)

	GenerationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "parley_generation_duration_seconds",
			Help:    "Wall time of a full provider-chain generation.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	TypingDelaySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "parley_typing_delay_seconds",
			Help:    "Simulated typing delay applied before sending a reply.",
			Buckets: []float64{0.5, 1, 2, 4, 8, 15, 25},
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		MessagesReceivedTotal,
		TurnsBatchedTotal,
		RepliesSentTotal,
		RepliesSuppressedTotal,
		ProviderAttemptsTotal,
		GenerationDuration,
		TypingDelaySeconds,
	)
}
