package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_total",
			Help: "Total number of inbound messages handled by the relay (count)",
		},
		[]string{"status"},
	)

	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_deliveries_total",
			Help: "Total number of delivery attempts per destination (count)",
		},
		[]string{"outcome"},
	)

	DeliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_delivery_duration_ms",
			Help:    "Duration of a single destination delivery in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"outcome"},
	)

	FallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_fallback_total",
			Help: "Total number of download-and-reupload fallbacks for protected media (count)",
		},
		[]string{"result"},
	)

	FloodWaitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_flood_waits_total",
			Help: "Total number of flood-wait responses from the transport (count)",
		},
		[]string{"action"},
	)

	SessionReconnectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_session_reconnects_total",
			Help: "Total number of session reconnects (count)",
		},
		[]string{"cause"},
	)

	SessionState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_session_state",
			Help: "Session supervisor state (0=connecting, 1=running, 2=reconnecting, 3=terminated) (state code)",
		},
	)

	NameCacheSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_name_cache_size",
			Help: "Number of resolved chat names cached (count)",
		},
	)

	FilterRuleEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_filter_rule_evaluations_total",
			Help: "Total number of filter rule evaluations (count)",
		},
		[]string{"rule_name", "result"},
	)

	FilterFallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_filter_fallback_total",
			Help: "Total number of times the filter error fallback was used (count)",
		},
		[]string{"strategy"},
	)

	SendLimitWaitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_send_limit_wait_ms",
			Help:    "Time spent waiting for the outbound send limiter in milliseconds",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 250, 500, 1000, 5000},
		},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)
)

func RegisterRelayMetrics() {
	prometheus.MustRegister(MessagesTotal)
	prometheus.MustRegister(DeliveriesTotal)
	prometheus.MustRegister(DeliveryDuration)
	prometheus.MustRegister(FallbackTotal)
	prometheus.MustRegister(FloodWaitsTotal)
	prometheus.MustRegister(NameCacheSize)
	prometheus.MustRegister(SendLimitWaitDuration)
}

func RegisterFilteringMetrics() {
	prometheus.MustRegister(FilterRuleEvaluationsTotal)
	prometheus.MustRegister(FilterFallbackTotal)
}

func RegisterSessionMetrics() {
	prometheus.MustRegister(SessionReconnectsTotal)
	prometheus.MustRegister(SessionState)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func IncMessages(status string) {
	MessagesTotal.WithLabelValues(status).Inc()
}

func ObserveDelivery(outcome string, duration time.Duration) {
	DeliveriesTotal.WithLabelValues(outcome).Inc()
	DeliveryDuration.WithLabelValues(outcome).Observe(float64(duration.Milliseconds()))
}

func IncFallback(result string) {
	FallbackTotal.WithLabelValues(result).Inc()
}

func IncFloodWait(action string) {
	FloodWaitsTotal.WithLabelValues(action).Inc()
}

func IncSessionReconnect(cause string) {
	SessionReconnectsTotal.WithLabelValues(cause).Inc()
}

func SetSessionState(state int) {
	SessionState.Set(float64(state))
}

func SetNameCacheSize(size int) {
	NameCacheSize.Set(float64(size))
}

func IncFilterRuleEvaluation(ruleName, result string) {
	FilterRuleEvaluationsTotal.WithLabelValues(ruleName, result).Inc()
}

func IncFilterFallback(strategy string) {
	FilterFallbackTotal.WithLabelValues(strategy).Inc()
}

func ObserveSendLimitWait(duration time.Duration) {
	SendLimitWaitDuration.Observe(float64(duration.Milliseconds()))
}
