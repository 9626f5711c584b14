package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Webhook metrics
	WebhookEventsTotal   *prometheus.CounterVec
	WebhookRejectedTotal *prometheus.CounterVec

	// Call pipeline metrics
	CallRecordsUpserted *prometheus.CounterVec
	LeadsExtracted      prometheus.Counter

	// Enforcement metrics
	EnforcementDecisions  *prometheus.CounterVec
	EnforcementActions    *prometheus.CounterVec
	EnforcementQueueDepth prometheus.Gauge

	// Provider metrics
	ProviderRequestDuration *prometheus.HistogramVec
	ProviderErrors          *prometheus.CounterVec
	CircuitBreakerState     prometheus.Gauge

	// Rate limiting metrics
	RateLimitHits prometheus.Counter
}

var metrics *Metrics

// Init initializes all Prometheus metrics
func Init() *Metrics {
	if metrics != nil {
		return metrics
	}

	metrics = &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		WebhookEventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_events_total",
				Help: "Total number of webhook events received",
			},
			[]string{"event_type", "outcome"},
		),
		WebhookRejectedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_rejected_total",
				Help: "Total number of rejected webhook deliveries",
			},
			[]string{"reason"},
		),

		CallRecordsUpserted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "call_records_upserted_total",
				Help: "Total number of call record upserts",
			},
			[]string{"result"},
		),
		LeadsExtracted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "leads_extracted_total",
				Help: "Total number of leads extracted from call analysis",
			},
		),

		EnforcementDecisions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enforcement_decisions_total",
				Help: "Total number of enforcement decisions",
			},
			[]string{"action"},
		),
		EnforcementActions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enforcement_actions_total",
				Help: "Total number of per-assistant enforcement mutations",
			},
			[]string{"action", "status"},
		),
		EnforcementQueueDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "enforcement_queue_depth",
				Help: "Number of unprocessed enforcement queue items",
			},
		),

		ProviderRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "provider_request_duration_seconds",
				Help:    "Voice provider API request duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20},
			},
			[]string{"operation"},
		),
		ProviderErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provider_errors_total",
				Help: "Total number of voice provider API errors",
			},
			[]string{"operation"},
		),
		CircuitBreakerState: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Provider circuit breaker state (0=closed, 1=open, 0.5=half-open)",
			},
		),

		RateLimitHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "rate_limit_hits_total",
				Help: "Total number of webhook rate limit hits",
			},
		),
	}

	return metrics
}

// Get returns the global metrics instance
func Get() *Metrics {
	if metrics == nil {
		return Init()
	}
	return metrics
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// GinHandler returns a Gin-compatible handler for Prometheus metrics
func GinHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// MetricsMiddleware is a Gin middleware for collecting HTTP metrics
func MetricsMiddleware() gin.HandlerFunc {
	m := Get()
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method

		// Track in-flight requests
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		// Process request
		c.Next()

		// Record metrics
		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// RecordWebhookEvent records an accepted webhook event by type and outcome
func RecordWebhookEvent(eventType, outcome string) {
	Get().WebhookEventsTotal.WithLabelValues(eventType, outcome).Inc()
}

// RecordWebhookRejected records a rejected webhook delivery
func RecordWebhookRejected(reason string) {
	Get().WebhookRejectedTotal.WithLabelValues(reason).Inc()
}

// RecordCallRecordUpsert records a call record write
func RecordCallRecordUpsert(result string) {
	Get().CallRecordsUpserted.WithLabelValues(result).Inc()
}

// RecordEnforcementDecision records an enqueue decision
func RecordEnforcementDecision(action string) {
	Get().EnforcementDecisions.WithLabelValues(action).Inc()
}

// RecordEnforcementAction records one per-assistant mutation attempt
func RecordEnforcementAction(action, status string) {
	Get().EnforcementActions.WithLabelValues(action, status).Inc()
}

// SetQueueDepth sets the current enforcement queue depth
func SetQueueDepth(depth float64) {
	Get().EnforcementQueueDepth.Set(depth)
}

// RecordProviderRequest records a provider API call duration
func RecordProviderRequest(operation string, duration time.Duration) {
	Get().ProviderRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordProviderError records a provider API error
func RecordProviderError(operation string) {
	Get().ProviderErrors.WithLabelValues(operation).Inc()
}

// SetCircuitBreakerState sets the provider circuit breaker gauge
func SetCircuitBreakerState(state float64) {
	Get().CircuitBreakerState.Set(state)
}

// RecordRateLimitHit records a webhook rate limit hit
func RecordRateLimitHit() {
	Get().RateLimitHits.Inc()
}
