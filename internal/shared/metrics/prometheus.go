package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Business metrics
	complaintsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "complaints_created_total",
			Help: "Total number of complaints filed",
		},
		[]string{"category", "province"},
	)

	complaintsStatusChanged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "complaints_status_changed_total",
			Help: "Total number of complaint status changes",
		},
		[]string{"from_status", "to_status"},
	)

	complaintResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "complaint_responses_total",
			Help: "Total number of responses posted on complaints",
		},
		[]string{"author_role"},
	)

	attachmentsUploaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "complaint_attachments_uploaded_total",
			Help: "Total number of attachments uploaded",
		},
		[]string{"content_type"},
	)

	loginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logins_total",
			Help: "Total number of login attempts",
		},
		[]string{"result"},
	)

	authorizationDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authorization_decisions_total",
			Help: "Total number of authorization decisions",
		},
		[]string{"resource_type", "action", "decision"},
	)

	eventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of domain events published",
		},
		[]string{"type", "status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath replaces UUID segments with {id} to bound label cardinality
func normalizePath(path string) string {
	if len(path) > 200 {
		return "/api/..."
	}
	segments := strings.Split(path, "/")
	for i, s := range segments {
		if len(s) == 36 {
			if _, err := uuid.Parse(s); err == nil {
				segments[i] = "{id}"
			}
		}
	}
	return strings.Join(segments, "/")
}

// --- Business metric helpers ---

// RecordComplaintCreated records a filed complaint
func RecordComplaintCreated(category, province string) {
	complaintsCreated.WithLabelValues(category, province).Inc()
}

// RecordComplaintStatusChange records a complaint status change
func RecordComplaintStatusChange(fromStatus, toStatus string) {
	complaintsStatusChanged.WithLabelValues(fromStatus, toStatus).Inc()
}

// RecordResponse records a posted response
func RecordResponse(authorRole string) {
	complaintResponses.WithLabelValues(authorRole).Inc()
}

// RecordAttachment records an uploaded attachment
func RecordAttachment(contentType string) {
	attachmentsUploaded.WithLabelValues(contentType).Inc()
}

// RecordLogin records a login attempt
func RecordLogin(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	loginsTotal.WithLabelValues(result).Inc()
}

// RecordAuthorizationDecision records an authorization decision
func RecordAuthorizationDecision(resourceType, action string, allowed bool) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	authorizationDecisions.WithLabelValues(resourceType, action, decision).Inc()
}

// RecordEventPublished records the outcome of publishing a domain event
func RecordEventPublished(eventType string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	eventsPublished.WithLabelValues(eventType, status).Inc()
}
