package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry is shared by the api and worker binaries.
	Registry = prometheus.NewRegistry()

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "route", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "route"},
	)

	// Runs counts finished optimization runs by terminal status.
	Runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "optimizer_runs_total", Help: "Optimization runs by final status."},
		[]string{"status"},
	)
	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "optimizer_run_duration_seconds", Help: "Wall time of a whole optimization run.", Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 900, 1800}},
	)
	Generations = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "optimizer_generations_total", Help: "Evaluated generations across all runs."},
	)
	GenerationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "optimizer_generation_duration_seconds", Help: "Time to evaluate and breed one generation.", Buckets: prometheus.ExponentialBuckets(0.001, 4, 8)},
	)
	BestCost = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "optimizer_best_cost", Help: "Best cost seen so far in a running optimization."},
		[]string{"run_id"},
	)
	Improvements = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "optimizer_improvements_total", Help: "Generations that produced a new best solution."},
	)
	SkippedSwaps = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "optimizer_skipped_swaps_total", Help: "Mutations rejected because they would break capacity."},
	)
)

var regOnce sync.Once

// RegisterDefault registers every collector on Registry. Safe to call more than once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(
			HTTPRequests,
			HTTPDuration,
			Runs,
			RunDuration,
			Generations,
			GenerationDuration,
			BestCost,
			Improvements,
			SkippedSwaps,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}

func Handler() http.Handler {
	RegisterDefault()
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// Instrument records request counts and latencies keyed by the chi route pattern.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
