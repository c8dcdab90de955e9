package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	directoryCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directory_calls_total",
			Help: "Directory provider calls by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	directoryCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "directory_call_duration_seconds",
			Help:    "Directory provider call latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "outcome"},
	)

	breakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "directory_breaker_state",
			Help: "Circuit breaker state per operation key (0 closed, 1 open, 2 half-open).",
		},
		[]string{"key"},
	)
)

var initOnce sync.Once

// Init registers all service metrics in the default registry.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			directoryCallsTotal, directoryCallDuration,
			breakerState,
		)
	})
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDirectoryCall records one guarded provider call.
func ObserveDirectoryCall(operation, outcome string, d time.Duration) {
	directoryCallsTotal.WithLabelValues(operation, outcome).Inc()
	directoryCallDuration.WithLabelValues(operation, outcome).Observe(d.Seconds())
}

// SetBreakerState publishes a breaker transition. State follows the
// breaker's own encoding: 0 closed, 1 open, 2 half-open.
func SetBreakerState(key string, state int) {
	breakerState.WithLabelValues(key).Set(float64(state))
}

// Instrument measures RPS, latency and in-flight count per request.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses resource identifiers so metric labels stay
// bounded regardless of how many users, groups or permissions exist.
func CanonicalPath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	segs := strings.Split(strings.Trim(p, "/"), "/")
	if len(segs) < 3 || segs[0] != "v1" {
		return p
	}
	switch segs[1] {
	case "users", "groups", "permissions", "roles":
		segs[2] = ":id"
	default:
		return p
	}
	if len(segs) > 4 {
		return p
	}
	return "/" + strings.Join(segs, "/")
}

// statusWriter captures the response code for labeling.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
