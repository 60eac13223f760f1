// Package twitch implements the chat feed for Twitch channels: liveness is
// probed through the Helix API and messages arrive over anonymous IRC.
package twitch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	irc "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/chat-echo/chat"
)

var loginPattern = regexp.MustCompile(`^[a-z0-9_]{2,25}$`)

const (
	// DefaultLiveRecheck is how often an open feed re-probes liveness. IRC
	// keeps flowing after a stream goes offline, so the probe is the only
	// end-of-stream signal.
	DefaultLiveRecheck = 30 * time.Second
	// DefaultPendingLimit bounds messages held between batch drains.
	DefaultPendingLimit = 2048
)

// Source opens Twitch chat feeds. Helix must be set; the other fields
// default when zero.
type Source struct {
	Helix        *HelixClient
	LiveRecheck  time.Duration
	PendingLimit int
}

func normalizeLogin(channel string) (string, error) {
	login := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(channel), "#"))
	if !loginPattern.MatchString(login) {
		return "", fmt.Errorf("channel %q: %w", channel, chat.ErrInvalidID)
	}
	return login, nil
}

// CheckLive reports channel liveness: nil when live, ErrInvalidID for a
// malformed or unknown login, ErrNotLive when offline.
func (s *Source) CheckLive(ctx context.Context, channel string) error {
	login, err := normalizeLogin(channel)
	if err != nil {
		return err
	}
	if _, err := s.Helix.GetUserID(ctx, login); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return fmt.Errorf("channel %q: %w", login, chat.ErrInvalidID)
		}
		return err
	}
	streams, err := s.Helix.GetStreams(ctx, login)
	if err != nil {
		return err
	}
	if len(streams) == 0 {
		return fmt.Errorf("channel %q: %w", login, chat.ErrNotLive)
	}
	return nil
}

// Connect verifies the channel is live, joins its chat anonymously, and
// returns the feed.
func (s *Source) Connect(ctx context.Context, channel string) (chat.Connection, error) {
	login, err := normalizeLogin(channel)
	if err != nil {
		return nil, err
	}
	if err := s.CheckLive(ctx, login); err != nil {
		return nil, err
	}

	recheck := s.LiveRecheck
	if recheck <= 0 {
		recheck = DefaultLiveRecheck
	}
	limit := s.PendingLimit
	if limit <= 0 {
		limit = DefaultPendingLimit
	}

	conn := &connection{
		login:     login,
		helix:     s.Helix,
		recheck:   recheck,
		limit:     limit,
		lastProbe: time.Now(),
		log:       slog.With(slog.String("component", "twitch-feed"), slog.String("channel", login)),
	}

	client := irc.NewAnonymousClient()
	client.OnPrivateMessage(func(m irc.PrivateMessage) {
		author := m.User.DisplayName
		if author == "" {
			author = m.User.Name
		}
		conn.enqueue(chat.Event{Author: author, Text: m.Message})
	})
	client.Join(login)
	conn.client = client

	go func() {
		conn.connectExited(client.Connect())
	}()

	conn.log.Info("joined channel chat")
	return conn, nil
}

// connection buffers IRC messages between NextBatch drains. The IRC client
// reconnects on its own; Connect returning means the transport is gone for
// good.
type connection struct {
	login   string
	helix   *HelixClient
	client  *irc.Client
	recheck time.Duration
	limit   int

	mu        sync.Mutex
	pending   []chat.Event
	dropped   int
	ircErr    error
	exited    bool
	closed    bool
	lastProbe time.Time

	log *slog.Logger
}

func (c *connection) enqueue(ev chat.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if len(c.pending) >= c.limit {
		c.pending = c.pending[1:]
		c.dropped++
	}
	c.pending = append(c.pending, ev)
}

func (c *connection) connectExited(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exited = true
	if err != nil && !c.closed {
		c.ircErr = err
	}
}

// NextBatch drains everything queued since the last call. Every recheck
// interval it re-probes liveness; an offline channel ends the feed. A failed
// probe with chat still flowing is not an error; the next probe decides.
// A dead IRC transport is reported only once the queue is drained, so no
// received message is lost to the error.
func (c *connection) NextBatch(ctx context.Context) ([]chat.Event, bool, error) {
	c.mu.Lock()
	events := c.pending
	c.pending = nil
	dropped := c.dropped
	c.dropped = 0
	ircErr := c.ircErr
	exited := c.exited
	if len(events) == 0 {
		c.ircErr = nil
	}
	probe := time.Since(c.lastProbe) >= c.recheck
	if probe {
		c.lastProbe = time.Now()
	}
	c.mu.Unlock()

	if dropped > 0 {
		c.log.Warn("pending chat overflowed, oldest messages dropped", slog.Int("dropped", dropped))
	}
	if len(events) == 0 {
		if ircErr != nil {
			return nil, false, fmt.Errorf("irc: %w", ircErr)
		}
		if exited {
			return nil, false, errors.New("irc connection closed")
		}
	}

	if probe {
		live, err := c.helix.IsLive(ctx, c.login)
		if err != nil {
			c.log.Debug("liveness probe failed", slog.Any("err", err))
		} else if !live {
			c.log.Info("channel went offline")
			return events, true, nil
		}
	}
	return events, false, nil
}

func (c *connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	client := c.client
	c.mu.Unlock()

	if client != nil {
		if err := client.Disconnect(); err != nil && !errors.Is(err, irc.ErrConnectionIsNotOpen) {
			return err
		}
	}
	return nil
}
