package metrics

import (
	"errors"
	"github.com/kotche/memo/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"log"
	"net/http"
	"time"
)

var (
	// Операции над заметками по типу и результату
	MemoOperationsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memo_operations_total",
			Help: "Total number of memo operations by result",
		},
		[]string{"op", "result"},
	)

	ResponseTimeHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "memo_operation_seconds",
			Help:    "Memo operation time in seconds",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10), // Бакеты от 0.1 до 1.0 секунд
		},
		[]string{"op"},
	)

	ReminderFailuresCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_reconcile_failures_total",
			Help: "Reminder schedule/cancel calls that failed",
		},
		[]string{"action"},
	)
)

func Init() {
	prometheus.MustRegister(MemoOperationsCounter)
	prometheus.MustRegister(ResponseTimeHistogram)
	prometheus.MustRegister(ReminderFailuresCounter)
}

func StartMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Printf("metrics server running on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Fatalf("failed to start metrics server: %v", err)
		}
	}()
}

func ObserveMemoOperation(op string, err error, elapsed time.Duration) {
	MemoOperationsCounter.WithLabelValues(op, resultLabel(err)).Inc()
	ResponseTimeHistogram.WithLabelValues(op).Observe(elapsed.Seconds())
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrTimeout):
		return "timeout"
	case errors.Is(err, model.ErrNotAuthenticated):
		return "not_authenticated"
	case errors.Is(err, model.ErrValidation):
		return "validation"
	case errors.Is(err, model.ErrStore):
		return "store"
	default:
		return "error"
	}
}
