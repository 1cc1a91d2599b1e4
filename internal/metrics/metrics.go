// Package metrics exposes Prometheus collectors for the API surface and
// clone runs.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequests counts API requests by method and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orgclone_http_requests_total",
		Help: "API requests served, by method and status code.",
	}, []string{"method", "status"})

	// CloneResources counts per-item clone results by resource kind.
	CloneResources = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orgclone_resources_total",
		Help: "Resources processed during clone runs, by kind and outcome.",
	}, []string{"kind", "outcome"})

	// CloneRuns counts finished clone runs by final status.
	CloneRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orgclone_runs_total",
		Help: "Clone runs finished, by status.",
	}, []string{"status"})
)

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records one HTTPRequests sample per request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		HTTPRequests.WithLabelValues(r.Method, strconv.Itoa(ww.Status())).Inc()
	})
}
