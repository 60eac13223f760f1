// Package testutil provides shared fakes for exercising the session
// controller and the HTTP surface without a real chat feed.
package testutil

import (
	"context"
	"sync"

	"github.com/onnwee/chat-echo/chat"
)

// Batch is one scripted NextBatch result.
type Batch struct {
	Events   []chat.Event
	Terminal bool
	Err      error
}

// Events builds a batch from alternating author/text pairs.
func Events(pairs ...string) []chat.Event {
	evs := make([]chat.Event, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		evs = append(evs, chat.Event{Author: pairs[i], Text: pairs[i+1]})
	}
	return evs
}

// ScriptedConn replays its batches in order. Once the script is exhausted it
// returns the repeat batch when one is set, otherwise quiet empty batches.
type ScriptedConn struct {
	mu     sync.Mutex
	script []Batch
	repeat *Batch
	calls  int
	closed bool
}

// NewScriptedConn returns a connection that will replay batches in order.
func NewScriptedConn(batches ...Batch) *ScriptedConn {
	return &ScriptedConn{script: batches}
}

// RepeatForever makes the connection return b on every call after the
// script runs out. Returns the connection for chaining.
func (c *ScriptedConn) RepeatForever(b Batch) *ScriptedConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.repeat = &b
	return c
}

func (c *ScriptedConn) NextBatch(ctx context.Context) ([]chat.Event, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if len(c.script) > 0 {
		b := c.script[0]
		c.script = c.script[1:]
		return b.Events, b.Terminal, b.Err
	}
	if c.repeat != nil {
		return c.repeat.Events, c.repeat.Terminal, c.repeat.Err
	}
	return nil, false, nil
}

func (c *ScriptedConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Calls reports how many times NextBatch ran.
func (c *ScriptedConn) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Closed reports whether Close was called.
func (c *ScriptedConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// ScriptedSource hands out its connections in order; when they run out,
// Connect returns a fresh quiet connection. FailConnect makes every
// subsequent Connect fail instead.
type ScriptedSource struct {
	mu         sync.Mutex
	conns      []*ScriptedConn
	connectErr error
	connects   int
	lastID     string
}

// NewScriptedSource returns a source serving conns in order.
func NewScriptedSource(conns ...*ScriptedConn) *ScriptedSource {
	return &ScriptedSource{conns: conns}
}

// FailConnect makes every subsequent Connect return err.
func (s *ScriptedSource) FailConnect(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectErr = err
}

func (s *ScriptedSource) Connect(ctx context.Context, streamID string) (chat.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connects++
	s.lastID = streamID
	if s.connectErr != nil {
		return nil, s.connectErr
	}
	if len(s.conns) > 0 {
		c := s.conns[0]
		s.conns = s.conns[1:]
		return c, nil
	}
	return NewScriptedConn(), nil
}

// Connects reports how many times Connect ran.
func (s *ScriptedSource) Connects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects
}

// LastStreamID reports the stream id passed to the most recent Connect.
func (s *ScriptedSource) LastStreamID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastID
}
