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
	MessagesBuffered prometheus.Counter
	MessagesEvicted  prometheus.Counter
	PollCycles       prometheus.Counter
	PollErrors       prometheus.Counter
	PollRetries      prometheus.Counter
	SearchesRun      prometheus.Counter
	SessionsStarted  prometheus.Counter

	// Histograms (seconds unless noted)
	PollBatchSize  prometheus.Observer
	SearchDuration prometheus.Observer

	// Gauges
	BufferSizeGauge    prometheus.Gauge
	PollerStateGauge   prometheus.Gauge // numeric PollerState value
	SessionActiveGauge prometheus.Gauge // 1=active,0=not
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		MessagesBuffered = promauto.NewCounter(prometheus.CounterOpts{Name: "chatecho_messages_buffered_total", Help: "Number of chat messages pushed into the buffer"})
		MessagesEvicted = promauto.NewCounter(prometheus.CounterOpts{Name: "chatecho_messages_evicted_total", Help: "Number of chat messages evicted from a full buffer"})
		PollCycles = promauto.NewCounter(prometheus.CounterOpts{Name: "chatecho_poll_cycles_total", Help: "Number of poll cycles (NextBatch invocations)"})
		PollErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "chatecho_poll_errors_total", Help: "Number of poll cycles that returned an error"})
		PollRetries = promauto.NewCounter(prometheus.CounterOpts{Name: "chatecho_poll_retries_total", Help: "Number of transient poll failures retried"})
		SearchesRun = promauto.NewCounter(prometheus.CounterOpts{Name: "chatecho_searches_total", Help: "Number of buffer searches executed"})
		SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{Name: "chatecho_sessions_started_total", Help: "Number of monitoring sessions started"})
		PollBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{Name: "chatecho_poll_batch_size", Help: "Events delivered per poll batch", Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100}})
		SearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "chatecho_search_duration_seconds", Help: "Buffer search duration seconds", Buckets: prometheus.DefBuckets})
		BufferSizeGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "chatecho_buffer_size", Help: "Current number of messages held in the buffer"})
		PollerStateGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "chatecho_poller_state", Help: "Current poller state (0=idle 1=connecting 2=running 3=stopping 4=stopped 5=failed)"})
		SessionActiveGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "chatecho_session_active", Help: "Monitoring session active=1 idle=0"})
	})
}

// MessageBuffered increments the buffered-message counter.
func MessageBuffered() {
	if MessagesBuffered != nil {
		MessagesBuffered.Inc()
	}
}

// MessageEvicted increments the eviction counter.
func MessageEvicted() {
	if MessagesEvicted != nil {
		MessagesEvicted.Inc()
	}
}

// SetBufferSize records the current buffer occupancy.
func SetBufferSize(n int) {
	if BufferSizeGauge != nil {
		BufferSizeGauge.Set(float64(n))
	}
}

// SetPollerState records the poller state as its numeric value.
func SetPollerState(state int) {
	if PollerStateGauge != nil {
		PollerStateGauge.Set(float64(state))
	}
}

// SetSessionActive sets the session gauge to 1 if active else 0.
func SetSessionActive(active bool) {
	if SessionActiveGauge != nil {
		if active {
			SessionActiveGauge.Set(1)
		} else {
			SessionActiveGauge.Set(0)
		}
	}
}

// CountPoll records one poll cycle and its batch size.
func CountPoll(batch int) {
	if PollCycles != nil {
		PollCycles.Inc()
	}
	if PollBatchSize != nil {
		PollBatchSize.Observe(float64(batch))
	}
}

// CountPollError increments the poll error counter.
func CountPollError() {
	if PollErrors != nil {
		PollErrors.Inc()
	}
}

// CountPollRetry increments the retry counter.
func CountPollRetry() {
	if PollRetries != nil {
		PollRetries.Inc()
	}
}

// CountSessionStart increments the session counter.
func CountSessionStart() {
	if SessionsStarted != nil {
		SessionsStarted.Inc()
	}
}

// TimeSearch measures fn and records it as a search.
func TimeSearch(fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if SearchesRun != nil {
		SearchesRun.Inc()
	}
	if SearchDuration != nil {
		SearchDuration.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns the correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with a corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
