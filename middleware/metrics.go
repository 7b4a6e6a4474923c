package middleware

import (
	"strconv"
	"time"

	"checkout-svc/circuitbreaker"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	checkoutSessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_sessions_total",
			Help: "Checkout session attempts by kind and outcome code",
		},
		[]string{"kind", "outcome"},
	)

	listingClaimsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steward_listing_claims_total",
			Help: "Steward listing claim attempts by outcome",
		},
		[]string{"outcome"},
	)

	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_events_total",
			Help: "Payment webhook events by type and result",
		},
		[]string{"event_type", "result"},
	)

	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_dispatched_total",
			Help: "Best-effort notifications by kind and result",
		},
		[]string{"kind", "result"},
	)

	processorCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_processor_calls_total",
			Help: "Payment processor API calls by operation and result",
		},
		[]string{"operation", "result"},
	)

	circuitState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"name"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(checkoutSessionsTotal)
	prometheus.MustRegister(listingClaimsTotal)
	prometheus.MustRegister(webhookEventsTotal)
	prometheus.MustRegister(notificationsTotal)
	prometheus.MustRegister(processorCallsTotal)
	prometheus.MustRegister(circuitState)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

func RecordCheckoutSession(kind, outcome string) {
	checkoutSessionsTotal.WithLabelValues(kind, outcome).Inc()
}

func RecordListingClaim(outcome string) {
	listingClaimsTotal.WithLabelValues(outcome).Inc()
}

func RecordWebhookEvent(eventType, result string) {
	webhookEventsTotal.WithLabelValues(eventType, result).Inc()
}

func RecordNotification(kind string, err error) {
	notificationsTotal.WithLabelValues(kind, resultLabel(err)).Inc()
}

func RecordProcessorCall(operation string, err error) {
	processorCallsTotal.WithLabelValues(operation, resultLabel(err)).Inc()
}

func RecordCircuitState(name string, _, to circuitbreaker.State) {
	circuitState.WithLabelValues(name).Set(float64(to))
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
