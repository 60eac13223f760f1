package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/onnwee/chat-echo/buffer"
	"github.com/onnwee/chat-echo/telemetry"
)

// Defaults for the polling loop. Both are overridable per Poller.
const (
	DefaultInterval   = 500 * time.Millisecond
	DefaultMaxRetries = 3
)

// PollerState is the lifecycle state of a Poller. Owned by the poller's own
// loop; everything else observes it read-only.
type PollerState int

const (
	StateIdle PollerState = iota
	StateConnecting
	StateRunning
	StateStopping
	StateStopped
	StateFailed
)

// String returns the lowercase state name.
func (s PollerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is an end state of the loop.
func (s PollerState) Terminal() bool {
	return s == StateStopped || s == StateFailed
}

// Status is one poller state transition. Err is set only for StateFailed.
type Status struct {
	State PollerState `json:"state"`
	Err   error       `json:"-"`
	At    time.Time   `json:"at"`
}

// Poller drives ingestion from a Source into a buffer at a fixed interval
// until stopped or a terminal feed condition occurs. A Poller is single-use:
// it runs at most one loop, and a new stream needs a new Poller.
type Poller struct {
	src        Source
	buf        *buffer.Buffer
	interval   time.Duration
	maxRetries int

	// onStatus, when set before Start, receives every state transition.
	// Called from the poller's goroutine; must not block.
	onStatus func(Status)

	mu      sync.Mutex
	state   PollerState
	err     error
	started bool
	cancel  context.CancelFunc
	done    chan struct{}

	log *slog.Logger
}

// NewPoller returns an idle poller feeding buf from src. Non-positive
// interval or retries fall back to the defaults.
func NewPoller(src Source, buf *buffer.Buffer, interval time.Duration, maxRetries int) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Poller{
		src:        src,
		buf:        buf,
		interval:   interval,
		maxRetries: maxRetries,
		state:      StateIdle,
		log:        slog.With(slog.String("component", "poller")),
	}
}

// State returns the current poller state.
func (p *Poller) State() PollerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Err returns the failure reason once the poller is in StateFailed.
func (p *Poller) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Start connects to streamID and launches the polling loop. It returns
// ErrAlreadyRunning if the poller was ever started. Connect runs
// synchronously: a stream that is not live or an invalid identifier is
// reported here as the error, with the poller left in StateFailed and
// nothing buffered. Cancelling ctx stops the loop the same way Stop does.
func (p *Poller) Start(ctx context.Context, streamID string) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return ErrAlreadyRunning
	}
	p.started = true
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	p.log = p.log.With(slog.String("stream_id", streamID))
	p.mu.Unlock()

	p.transition(StateConnecting, nil)

	connectCtx, span := telemetry.StartSpan(ctx, "chat-poller", "poller.connect", telemetry.StreamIDAttr(streamID))
	conn, err := p.src.Connect(connectCtx, streamID)
	telemetry.RecordError(span, err)
	span.End()
	if err != nil {
		if ctx.Err() != nil {
			p.transition(StateStopped, nil)
		} else {
			p.log.Error("connect failed", slog.Any("err", err))
			p.transition(StateFailed, err)
		}
		close(p.done)
		return err
	}

	p.log.Info("connected; polling", slog.Duration("interval", p.interval))
	go p.loop(ctx, conn)
	return nil
}

// Stop requests cooperative cancellation and waits for the loop to exit. The
// loop observes the request within one polling interval. Stop is idempotent
// and a no-op when the poller never started or already reached a terminal
// state.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.started || p.state.Terminal() {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()

	p.transition(StateStopping, nil)
	cancel()
	if done != nil {
		<-done
	}
}

// transition moves to state unless a terminal state was already reached.
// Terminal states are sticky so a late Stop cannot mask a failure.
func (p *Poller) transition(state PollerState, err error) {
	p.mu.Lock()
	if p.state == state || p.state.Terminal() {
		p.mu.Unlock()
		return
	}
	p.state = state
	if err != nil {
		p.err = err
	}
	fn := p.onStatus
	st := Status{State: state, Err: err, At: time.Now()}
	p.mu.Unlock()

	telemetry.SetPollerState(int(state))
	p.log.Debug("state", slog.String("poller_state", state.String()))
	if fn != nil {
		fn(st)
	}
}

// loop fetches one batch per interval. It is the only writer to the buffer,
// and it never pushes after the poller reports Stopped or Failed.
func (p *Poller) loop(ctx context.Context, conn Connection) {
	defer close(p.done)
	defer func() {
		if err := conn.Close(); err != nil {
			p.log.Debug("close feed", slog.Any("err", err))
		}
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	failures := 0
	for {
		events, terminal, err := conn.NextBatch(ctx)
		if ctx.Err() != nil {
			p.transition(StateStopped, nil)
			return
		}
		telemetry.CountPoll(len(events))

		if err != nil {
			telemetry.CountPollError()
			if IsFatal(err) {
				p.log.Error("feed failed", slog.Any("err", err))
				p.transition(StateFailed, err)
				return
			}
			failures++
			if failures >= p.maxRetries {
				err = fmt.Errorf("%w after %d attempts: %v", ErrConnectionLost, failures, err)
				p.log.Error("retries exhausted", slog.Any("err", err))
				p.transition(StateFailed, err)
				return
			}
			telemetry.CountPollRetry()
			p.log.Warn("fetch failed; retrying", slog.Int("attempt", failures), slog.Int("max_attempts", p.maxRetries), slog.Any("err", err))
		} else {
			failures = 0
			for _, ev := range events {
				p.buf.Push(buffer.ChatMessage{
					Author:     strings.TrimPrefix(ev.Author, "@"),
					Text:       ev.Text,
					ReceivedAt: time.Now(),
				})
			}
			if len(events) > 0 {
				p.log.Debug("buffered batch", slog.Int("count", len(events)))
			}
			if terminal {
				p.log.Info("stream ended")
				p.transition(StateStopped, nil)
				return
			}
			p.transition(StateRunning, nil)
		}

		select {
		case <-ctx.Done():
			p.transition(StateStopped, nil)
			return
		case <-ticker.C:
		}
	}
}
