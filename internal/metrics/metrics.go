package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matai_http_requests_total",
		Help: "Total number of HTTP requests processed.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "matai_http_request_duration_seconds",
		Help:    "Histogram of latencies for HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	calendarFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matai_calendar_fetches_total",
		Help: "Calendar service requests by endpoint and result.",
	}, []string{"endpoint", "result"})

	imageResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matai_image_resolutions_total",
		Help: "Image resolutions by outcome (cache_hit, network, rate_limited, recent_failure, error, disabled).",
	}, []string{"outcome"})

	aggregations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matai_holiday_aggregations_total",
		Help: "Holiday aggregation cycles by the source that served the result.",
	}, []string{"source"})
)

// Middleware records request metrics keyed by chi route pattern.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := routePattern(r)
			httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
			httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

func CalendarFetch(endpoint string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	calendarFetches.WithLabelValues(endpoint, result).Inc()
}

func ImageResolution(outcome string) {
	imageResolutions.WithLabelValues(outcome).Inc()
}

func Aggregation(source string) {
	aggregations.WithLabelValues(source).Inc()
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := strings.TrimSpace(rctx.RoutePattern()); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
