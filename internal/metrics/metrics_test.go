package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCalendarFetchResults(t *testing.T) {
	okBefore := testutil.ToFloat64(calendarFetches.WithLabelValues("converter", "ok"))
	errBefore := testutil.ToFloat64(calendarFetches.WithLabelValues("converter", "error"))

	CalendarFetch("converter", nil)
	CalendarFetch("converter", errors.New("timeout"))
	CalendarFetch("converter", nil)

	if got := testutil.ToFloat64(calendarFetches.WithLabelValues("converter", "ok")) - okBefore; got != 2 {
		t.Errorf("ok delta = %v", got)
	}
	if got := testutil.ToFloat64(calendarFetches.WithLabelValues("converter", "error")) - errBefore; got != 1 {
		t.Errorf("error delta = %v", got)
	}
}

func TestOutcomeCounters(t *testing.T) {
	before := testutil.ToFloat64(imageResolutions.WithLabelValues("rate_limited"))
	ImageResolution("rate_limited")
	if got := testutil.ToFloat64(imageResolutions.WithLabelValues("rate_limited")) - before; got != 1 {
		t.Errorf("image delta = %v", got)
	}

	before = testutil.ToFloat64(aggregations.WithLabelValues("cache_offline"))
	Aggregation("cache_offline")
	if got := testutil.ToFloat64(aggregations.WithLabelValues("cache_offline")) - before; got != 1 {
		t.Errorf("aggregation delta = %v", got)
	}
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/api/things/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	counter := httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/things/{id}", "418")
	before := testutil.ToFloat64(counter)

	for _, id := range []string{"1", "2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/things/"+id, nil))
	}
	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("route counter delta = %v", got)
	}

	unmatched := httpRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")
	before = testutil.ToFloat64(unmatched)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))
	if got := testutil.ToFloat64(unmatched) - before; got != 1 {
		t.Errorf("unmatched delta = %v", got)
	}
}
