package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)

	// Authorization gate outcomes per policy
	AuthzDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_decisions_total",
			Help: "Total number of authorization gate decisions",
		},
		[]string{"policy", "outcome"},
	)

	BathroomLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bathroom_lookups_total",
			Help: "Total number of bathroom locator lookups",
		},
		[]string{"outcome"},
	)

	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"outcome"},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of events published",
		},
		[]string{"event_type", "outcome"},
	)
)

const (
	OutcomeAllow = "allow"
	OutcomeDeny  = "deny"
)

func RecordHTTPRequest(service, method, path, status string) {
	HTTPRequestsTotal.WithLabelValues(service, method, path, status).Inc()
}

func RecordHTTPDuration(service, method, path string, duration float64) {
	HTTPRequestDuration.WithLabelValues(service, method, path).Observe(duration)
}

func RecordAuthzDecision(policy string, allowed bool) {
	outcome := OutcomeDeny
	if allowed {
		outcome = OutcomeAllow
	}
	AuthzDecisionsTotal.WithLabelValues(policy, outcome).Inc()
}

func RecordBathroomLookup(outcome string) {
	BathroomLookupsTotal.WithLabelValues(outcome).Inc()
}

func RecordEventPublished(eventType string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	EventsPublished.WithLabelValues(eventType, outcome).Inc()
}

// HTTPMiddleware records request counts and latency keyed by the matched
// route template, so path parameters do not explode label cardinality.
func HTTPMiddleware(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		RecordHTTPRequest(service, method, path, strconv.Itoa(c.Writer.Status()))
		RecordHTTPDuration(service, method, path, time.Since(start).Seconds())
	}
}
