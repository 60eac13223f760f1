// Package buffer implements the bounded in-memory store for captured chat
// messages. The buffer holds the most recent N messages (default 200) in
// arrival order and silently evicts the oldest once full; eviction is the
// documented lossy policy, not an error. One goroutine pushes (the poller),
// any number of goroutines read via immutable snapshots.
package buffer

import (
	"sync"
	"time"

	"github.com/onnwee/chat-echo/telemetry"
)

// DefaultCapacity is the number of messages retained when no explicit
// capacity is configured.
const DefaultCapacity = 200

// ChatMessage is a single normalized chat message. Immutable once stored.
type ChatMessage struct {
	Author     string    `json:"author"`
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
	Sequence   int64     `json:"sequence"`
}

// Stats describes the current buffer occupancy and how long messages have
// been flowing into it (elapsed time since the first message ever arrived).
type Stats struct {
	Count int           `json:"count"`
	Span  time.Duration `json:"span"`
}

// Buffer is a fixed-capacity FIFO ring of chat messages. Sequence numbers
// are assigned on insert, strictly increasing for the lifetime of the
// buffer and never reused, even after eviction.
type Buffer struct {
	mu      sync.RWMutex
	entries []ChatMessage
	head    int // index of the oldest entry
	count   int
	seq     int64
	firstAt time.Time
}

// New returns an empty buffer holding at most capacity messages. A
// non-positive capacity falls back to DefaultCapacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{entries: make([]ChatMessage, capacity)}
}

// Push stores msg with the next sequence number (any caller-set Sequence is
// overwritten) and returns the stored copy. When the buffer is full the
// oldest entry is discarded. Push never fails.
func (b *Buffer) Push(msg ChatMessage) ChatMessage {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	msg.Sequence = b.seq
	if b.firstAt.IsZero() {
		b.firstAt = msg.ReceivedAt
	}
	if b.count == len(b.entries) {
		b.entries[b.head] = msg
		b.head = (b.head + 1) % len(b.entries)
		telemetry.MessageEvicted()
	} else {
		b.entries[(b.head+b.count)%len(b.entries)] = msg
		b.count++
	}
	telemetry.MessageBuffered()
	telemetry.SetBufferSize(b.count)
	return msg
}

// Snapshot returns a point-in-time copy of the buffer contents in arrival
// order. The copy never aliases internal storage, so callers may scan it
// while pushes continue.
func (b *Buffer) Snapshot() []ChatMessage {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]ChatMessage, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.entries[(b.head+i)%len(b.entries)]
	}
	return out
}

// Size returns the number of messages currently held.
func (b *Buffer) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Capacity returns the maximum number of messages retained.
func (b *Buffer) Capacity() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Stats returns the current count and the elapsed time since the first
// message entered the buffer. Span is zero while the buffer has never
// received a message.
func (b *Buffer) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := Stats{Count: b.count}
	if !b.firstAt.IsZero() {
		s.Span = time.Since(b.firstAt)
	}
	return s
}
