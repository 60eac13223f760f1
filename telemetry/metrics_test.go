package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("write counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		t.Fatalf("write gauge: %v", err)
	}
	return m.GetGauge().GetValue()
}

func histogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	h, ok := o.(prometheus.Histogram)
	if !ok {
		t.Fatalf("observer %T is not a histogram", o)
	}
	m := &dto.Metric{}
	if err := h.Write(m); err != nil {
		t.Fatalf("write histogram: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func TestInitIdempotent(t *testing.T) {
	Init()
	Init() // second call must not re-register (promauto panics on duplicates)

	if MessagesBuffered == nil || PollCycles == nil || SearchesRun == nil || SessionsStarted == nil {
		t.Error("counters not initialized")
	}
	if PollBatchSize == nil || SearchDuration == nil {
		t.Error("histograms not initialized")
	}
	if BufferSizeGauge == nil || PollerStateGauge == nil || SessionActiveGauge == nil {
		t.Error("gauges not initialized")
	}
}

func TestCountPollRecordsCycleAndBatch(t *testing.T) {
	Init()

	cyclesBefore := counterValue(t, PollCycles)
	batchesBefore := histogramCount(t, PollBatchSize)

	CountPoll(3)
	CountPoll(0)

	if got := counterValue(t, PollCycles) - cyclesBefore; got != 2 {
		t.Errorf("poll cycles delta = %v, want 2", got)
	}
	if got := histogramCount(t, PollBatchSize) - batchesBefore; got != 2 {
		t.Errorf("batch size observations delta = %v, want 2", got)
	}
}

func TestTimeSearchRecordsObservation(t *testing.T) {
	Init()

	searchesBefore := counterValue(t, SearchesRun)
	durationsBefore := histogramCount(t, SearchDuration)

	executed := false
	d := TimeSearch(func() {
		time.Sleep(10 * time.Millisecond)
		executed = true
	})

	if !executed {
		t.Error("TimeSearch did not execute provided function")
	}
	if d < 10*time.Millisecond {
		t.Errorf("TimeSearch duration = %v, want >= 10ms", d)
	}
	if got := counterValue(t, SearchesRun) - searchesBefore; got != 1 {
		t.Errorf("searches delta = %v, want 1", got)
	}
	if got := histogramCount(t, SearchDuration) - durationsBefore; got != 1 {
		t.Errorf("duration observations delta = %v, want 1", got)
	}
}

func TestGaugeSetters(t *testing.T) {
	Init()

	SetBufferSize(42)
	if got := gaugeValue(t, BufferSizeGauge); got != 42 {
		t.Errorf("buffer size gauge = %v, want 42", got)
	}

	SetPollerState(2)
	if got := gaugeValue(t, PollerStateGauge); got != 2 {
		t.Errorf("poller state gauge = %v, want 2", got)
	}

	SetSessionActive(true)
	if got := gaugeValue(t, SessionActiveGauge); got != 1 {
		t.Errorf("session gauge = %v, want 1", got)
	}
	SetSessionActive(false)
	if got := gaugeValue(t, SessionActiveGauge); got != 0 {
		t.Errorf("session gauge = %v, want 0", got)
	}
}

// The helpers guard against nil metrics so library code never has to care
// whether main wired metrics up.
func TestHelpersTolerateNilMetrics(t *testing.T) {
	savedCounter := MessagesBuffered
	savedObserver := SearchDuration
	savedGauge := BufferSizeGauge
	MessagesBuffered = nil
	SearchDuration = nil
	BufferSizeGauge = nil
	defer func() {
		MessagesBuffered = savedCounter
		SearchDuration = savedObserver
		BufferSizeGauge = savedGauge
	}()

	MessageBuffered()
	SetBufferSize(7)
	if d := TimeSearch(func() {}); d < 0 {
		t.Errorf("TimeSearch duration = %v", d)
	}
}

func TestCorrelationContext(t *testing.T) {
	ctx := context.Background()
	if got := GetCorrelation(ctx); got != "" {
		t.Errorf("correlation on empty context = %q", got)
	}

	ctx = WithCorrelation(ctx, "corr-42")
	if got := GetCorrelation(ctx); got != "corr-42" {
		t.Errorf("correlation = %q, want corr-42", got)
	}

	if lg := LoggerWithCorr(ctx); lg == nil {
		t.Error("LoggerWithCorr returned nil")
	}
}
