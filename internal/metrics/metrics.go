package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ledgerOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Total ledger mutations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	ledgerOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_operation_duration_seconds",
			Help:    "Time spent validating and committing a ledger mutation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	ledgerTotals = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ledger_objects_total",
			Help: "Current number of events and tickets in the ledger",
		},
		[]string{"kind"},
	)

	journalSeq = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledger_journal_seq",
			Help: "Sequence number of the last committed journal entry",
		},
	)

	publishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_publish_failures_total",
			Help: "Journal entries that could not be published to Kafka",
		},
	)

	seatHolds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_seat_holds_total",
			Help: "Seat hold attempts by outcome",
		},
		[]string{"outcome"},
	)

	httpRequests = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// ObserveMutation records one ledger mutation. An empty outcome means success.
func ObserveMutation(operation, outcome string, d time.Duration) {
	if outcome == "" {
		outcome = "ok"
	}
	ledgerOperations.WithLabelValues(operation, outcome).Inc()
	ledgerOperationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func SetTotals(events, tickets, seq uint64) {
	ledgerTotals.WithLabelValues("events").Set(float64(events))
	ledgerTotals.WithLabelValues("tickets").Set(float64(tickets))
	journalSeq.Set(float64(seq))
}

func PublishFailed() {
	publishFailures.Inc()
}

func SeatHold(outcome string) {
	seatHolds.WithLabelValues(outcome).Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware times each request against its chi route pattern so ids in the
// path do not explode label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
