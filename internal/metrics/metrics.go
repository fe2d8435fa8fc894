package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	// Ledger
	LedgerTransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_transactions_total",
			Help: "Ledger records written, by kind and status",
		},
		[]string{"type", "status"},
	)
	BalanceAdjustmentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "balance_adjustments_total",
			Help: "Atomic balance increments applied",
		},
	)
	WorkflowFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_failures_total",
			Help: "Workflow failures surfaced to callers, by stable code",
		},
		[]string{"code"},
	)
)

func Init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(LedgerTransactionsTotal)
	prometheus.MustRegister(BalanceAdjustmentsTotal)
	prometheus.MustRegister(WorkflowFailuresTotal)
}

type HealthFunc func(ctx context.Context) error

// StartMetricsServer runs a light HTTP server for /metrics and /healthz on
// its own port, in a goroutine owned by the returned server.
func StartMetricsServer(port string, healthFn HealthFunc) *http.Server {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()

		if err := healthFn(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("unhealthy: " + err.Error()))
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
