package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthFunc reports collaborator health for the /healthz endpoint.
type HealthFunc func(ctx context.Context) error

// StartServer runs a lightweight HTTP server for /metrics and /healthz in a
// background goroutine and returns it so the caller can shut it down.
func StartServer(port string, healthFn HealthFunc) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()

		if err := healthFn(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(fmt.Sprintf("unhealthy: %v", err)))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return srv
}

// Pipeline holds the ingestion worker's counters and gauges.
type Pipeline struct {
	Cycles         prometheus.Counter
	QuotesScored   prometheus.Counter
	PositiveEV     prometheus.Counter
	RecordsDeleted prometheus.Counter
	Errors         *prometheus.CounterVec
	BestEV         prometheus.Gauge
	CycleDuration  prometheus.Histogram
}

// NewPipeline registers and returns the worker metric set.
func NewPipeline() *Pipeline {
	p := &Pipeline{
		Cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ev_worker_cycles_total", Help: "completed ingestion cycles"}),
		QuotesScored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ev_worker_quotes_scored_total", Help: "quotes scored across cycles"}),
		PositiveEV: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ev_worker_positive_ev_total", Help: "quotes with positive computed EV"}),
		RecordsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ev_worker_stale_records_deleted_total", Help: "stale records removed by cleanup"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ev_worker_errors_total", Help: "errors by pipeline stage"}, []string{"stage"}),
		BestEV: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ev_worker_best_ev_percent", Help: "best EV percentage seen in the last cycle"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ev_worker_cycle_duration_seconds",
			Help:    "ingestion cycle duration",
			Buckets: prometheus.DefBuckets,
		}),
	}
	prometheus.MustRegister(
		p.Cycles, p.QuotesScored, p.PositiveEV, p.RecordsDeleted,
		p.Errors, p.BestEV, p.CycleDuration,
	)
	return p
}
