package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/chat-echo/buffer"
	"github.com/onnwee/chat-echo/telemetry"
)

// SessionState is the lifecycle of one monitoring session.
type SessionState int

const (
	SessionNotStarted SessionState = iota
	SessionActive
	SessionEnded
)

// String returns the lowercase session state name.
func (s SessionState) String() string {
	switch s {
	case SessionNotStarted:
		return "not_started"
	case SessionActive:
		return "active"
	case SessionEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Options tune a Controller. Zero values fall back to the package defaults.
type Options struct {
	Interval   time.Duration // polling cadence, default 500ms
	MaxRetries int           // consecutive transient failures tolerated, default 3
	Capacity   int           // buffer capacity, default 200
}

// Controller orchestrates poller, buffer, and query engine for one
// monitoring session at a time. A finished session's buffer stays queryable
// until the next StartSession swaps in a fresh one with fresh sequence
// numbering. Safe for concurrent use.
type Controller struct {
	src        Source
	interval   time.Duration
	maxRetries int
	capacity   int

	mu        sync.Mutex
	state     SessionState
	buf       *buffer.Buffer
	poller    *Poller
	streamID  string
	sessionID string
	last      Status
	subs      map[int]chan Status
	nextSub   int

	log *slog.Logger
}

// NewController returns a controller in SessionNotStarted with an empty
// buffer, so CheckNow works before any session ran.
func NewController(src Source, opts Options) *Controller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.Capacity <= 0 {
		opts.Capacity = buffer.DefaultCapacity
	}
	return &Controller{
		src:        src,
		interval:   opts.Interval,
		maxRetries: opts.MaxRetries,
		capacity:   opts.Capacity,
		state:      SessionNotStarted,
		buf:        buffer.New(opts.Capacity),
		last:       Status{State: StateIdle, At: time.Now()},
		subs:       make(map[int]chan Status),
		log:        slog.With(slog.String("component", "session")),
	}
}

// StartSession begins monitoring streamID: fresh buffer, fresh poller. It
// returns ErrAlreadyRunning while a session is Active. Connect-time errors
// (ErrNotLive, ErrInvalidID, transport) are returned to the caller and the
// session ends with an empty buffer still available for inspection. ctx
// bounds the whole session; cancelling it stops the poller cooperatively.
func (c *Controller) StartSession(ctx context.Context, streamID string) error {
	c.mu.Lock()
	if c.state == SessionActive {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	buf := buffer.New(c.capacity)
	p := NewPoller(c.src, buf, c.interval, c.maxRetries)
	p.onStatus = func(st Status) { c.handleStatus(p, st) }
	c.buf = buf
	c.poller = p
	c.streamID = streamID
	c.sessionID = uuid.New().String()
	c.state = SessionActive
	sessionID := c.sessionID
	c.mu.Unlock()

	telemetry.CountSessionStart()
	telemetry.SetSessionActive(true)
	c.log.Info("session starting", slog.String("session_id", sessionID), slog.String("stream_id", streamID))

	ctx, span := telemetry.StartSpan(ctx, "chat-session", "session.start",
		telemetry.SessionIDAttr(sessionID),
		telemetry.StreamIDAttr(streamID))
	defer span.End()

	if err := p.Start(ctx, streamID); err != nil {
		// handleStatus already moved the session to Ended on the Failed
		// transition; the empty buffer stays queryable.
		telemetry.RecordError(span, err)
		return err
	}
	telemetry.SetSpanSuccess(span)
	return nil
}

// EndSession stops the poller and moves the session to Ended. Idempotent;
// the buffer remains queryable until the next StartSession.
func (c *Controller) EndSession() {
	c.mu.Lock()
	p := c.poller
	c.mu.Unlock()

	if p != nil {
		p.Stop()
	}

	c.mu.Lock()
	if c.state == SessionActive {
		c.state = SessionEnded
		telemetry.SetSessionActive(false)
		c.log.Info("session ended", slog.String("session_id", c.sessionID))
	}
	c.mu.Unlock()
}

// CheckNow searches the current buffer snapshot for pattern, regardless of
// poller state. A user may check mid-Stopping or after the stream ended to
// inspect what was captured.
func (c *Controller) CheckNow(pattern string, caseSensitive bool) (SearchResult, error) {
	return Search(c.snapshot(), SearchQuery{Pattern: pattern, CaseSensitive: caseSensitive})
}

// CheckAuthor searches the current buffer snapshot for messages by username
// (case-insensitive exact match), regardless of poller state.
func (c *Controller) CheckAuthor(username string) (SearchResult, error) {
	return SearchAuthor(c.snapshot(), username)
}

// Snapshot returns the current buffer contents in arrival order.
func (c *Controller) Snapshot() []buffer.ChatMessage {
	return c.snapshot()
}

func (c *Controller) snapshot() []buffer.ChatMessage {
	c.mu.Lock()
	buf := c.buf
	c.mu.Unlock()
	return buf.Snapshot()
}

// Subscribe returns a channel of poller status transitions and an
// unsubscribe func. The current status is delivered first. Slow subscribers
// have events dropped rather than ever blocking the poller; the channel is
// closed on unsubscribe.
func (c *Controller) Subscribe() (<-chan Status, func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	ch := make(chan Status, 16)
	c.subs[id] = ch
	ch <- c.last
	c.mu.Unlock()

	return ch, func() {
		c.mu.Lock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
		c.mu.Unlock()
	}
}

// Status returns the most recent poller status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// SessionState returns the session lifecycle state.
func (c *Controller) SessionState() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// StreamID returns the stream monitored by the current or last session.
func (c *Controller) StreamID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streamID
}

// SessionID returns the id of the current or last session, empty before the
// first StartSession.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// BufferSize returns the number of messages currently buffered.
func (c *Controller) BufferSize() int {
	c.mu.Lock()
	buf := c.buf
	c.mu.Unlock()
	return buf.Size()
}

// BufferCapacity returns the buffer capacity.
func (c *Controller) BufferCapacity() int {
	c.mu.Lock()
	buf := c.buf
	c.mu.Unlock()
	return buf.Capacity()
}

// BufferStats returns occupancy and time-span stats for the current buffer.
func (c *Controller) BufferStats() buffer.Stats {
	c.mu.Lock()
	buf := c.buf
	c.mu.Unlock()
	return buf.Stats()
}

// handleStatus records transitions from the current poller, propagates
// terminal poller states to the session, and fans out to subscribers.
// Transitions from a superseded poller are ignored.
func (c *Controller) handleStatus(p *Poller, st Status) {
	c.mu.Lock()
	if c.poller != p {
		c.mu.Unlock()
		return
	}
	c.last = st
	if st.State.Terminal() && c.state == SessionActive {
		c.state = SessionEnded
		telemetry.SetSessionActive(false)
		c.log.Info("session ended by poller",
			slog.String("session_id", c.sessionID),
			slog.String("poller_state", st.State.String()),
			slog.Any("err", st.Err))
	}
	for id, ch := range c.subs {
		select {
		case ch <- st:
		default:
			c.log.Warn("status subscriber lagging; dropping event", slog.Int("subscriber", id), slog.String("poller_state", st.State.String()))
		}
	}
	c.mu.Unlock()
}
