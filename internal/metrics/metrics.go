// Package metrics exposes Prometheus instrumentation for the paging layer.
//
// Metrics:
//   - flickpick_paging_loads_total{category, load_type, outcome} (Counter): loads by result
//     (outcome is "success", "end_of_data", "cancelled", "transport", "service" or "storage")
//   - flickpick_paging_fetch_duration_seconds{category} (Histogram): remote page fetch latency
//   - flickpick_paging_items_written_total{category} (Counter): list items committed to the store
//   - flickpick_detail_cache_requests_total{result} (Counter): movie detail cache lookups
//     (result is "hit", "miss" or "error")
//
// Example Prometheus Queries:
//
//	# Append failure rate per category
//	sum by (category) (rate(flickpick_paging_loads_total{load_type="append",outcome=~"transport|service|storage"}[5m]))
//
//	# P95 fetch latency
//	histogram_quantile(0.95, rate(flickpick_paging_fetch_duration_seconds_bucket[5m]))
package metrics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels
const (
	OutcomeSuccess   = "success"
	OutcomeEndOfData = "end_of_data"
	OutcomeCancelled = "cancelled"
)

// Detail cache result labels
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// Recorder owns a private registry and the paging collectors.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry      *prometheus.Registry
	loads         *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	itemsWritten  *prometheus.CounterVec
	detailCache   *prometheus.CounterVec
}

// NewRecorder creates a Recorder with its own registry
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		loads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flickpick_paging_loads_total",
				Help: "Total number of paging loads by category, load type and outcome",
			},
			[]string{"category", "load_type", "outcome"},
		),
		fetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flickpick_paging_fetch_duration_seconds",
				Help:    "Remote page fetch duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"category"},
		),
		itemsWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flickpick_paging_items_written_total",
				Help: "Total number of list items committed to the page store",
			},
			[]string{"category"},
		),
		detailCache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flickpick_detail_cache_requests_total",
				Help: "Total number of movie detail cache lookups by result",
			},
			[]string{"result"},
		),
	}
}

// Registry returns the private registry
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveLoad counts a finished load
func (r *Recorder) ObserveLoad(category, loadType, outcome string) {
	if r == nil {
		return
	}
	r.loads.WithLabelValues(category, loadType, outcome).Inc()
}

// ObserveFetch records the latency of one remote fetch
func (r *Recorder) ObserveFetch(category string, d time.Duration) {
	if r == nil {
		return
	}
	r.fetchDuration.WithLabelValues(category).Observe(d.Seconds())
}

// AddItemsWritten counts items committed for a category
func (r *Recorder) AddItemsWritten(category string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.itemsWritten.WithLabelValues(category).Add(float64(n))
}

// ObserveDetailCache counts a detail cache lookup
func (r *Recorder) ObserveDetailCache(result string) {
	if r == nil {
		return
	}
	r.detailCache.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Router serves /metrics and /health. Requests are logged as JSON to
// accessLog when it is non-nil.
func (r *Recorder) Router(accessLog io.Writer) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	if accessLog != nil {
		httpLogger := httplog.NewLogger("flickpick", httplog.Options{
			Writer: accessLog,
			JSON:   true,
		})
		router.Use(httplog.RequestLogger(httpLogger))
	}

	router.Method(http.MethodGet, "/metrics", r.Handler())
	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return router
}

// Serve exposes the router on addr until ctx is cancelled
func (r *Recorder) Serve(ctx context.Context, addr string, logger *slog.Logger, accessLog io.Writer) error {
	if logger == nil {
		logger = slog.Default()
	}

	srv := &http.Server{Addr: addr, Handler: r.Router(accessLog), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
