// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	MessagesRecorded   prometheus.Counter
	MessagesSent       prometheus.Counter
	SendsThrottled     prometheus.Counter
	CommandsDispatched *prometheus.CounterVec
	PagesServed        *prometheus.CounterVec

	// Histograms (seconds)
	StoreQueryDuration *prometheus.HistogramVec
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		MessagesRecorded = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_messages_recorded_total", Help: "Number of chat messages persisted"})
		MessagesSent = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_messages_sent_total", Help: "Number of outbound chat messages sent"})
		SendsThrottled = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_sends_throttled_total", Help: "Number of outbound sends that waited on the rate limiter"})
		CommandsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chat_commands_dispatched_total", Help: "Number of chat commands dispatched"}, []string{"command"})
		PagesServed = promauto.NewCounterVec(prometheus.CounterOpts{Name: "pages_served_total", Help: "Number of connection pages served over HTTP"}, []string{"collection"})
		StoreQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{Name: "store_query_duration_seconds", Help: "Backing store query duration seconds", Buckets: prometheus.DefBuckets}, []string{"collection"})
	})
}

// ObserveStoreQuery records one backing-store query duration.
func ObserveStoreQuery(collection string, d time.Duration) {
	if StoreQueryDuration != nil {
		StoreQueryDuration.WithLabelValues(collection).Observe(d.Seconds())
	}
}

// IncPageServed counts one served connection page.
func IncPageServed(collection string) {
	if PagesServed != nil {
		PagesServed.WithLabelValues(collection).Inc()
	}
}

// IncCommandDispatched counts one dispatched chat command.
func IncCommandDispatched(name string) {
	if CommandsDispatched != nil {
		CommandsDispatched.WithLabelValues(name).Inc()
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
