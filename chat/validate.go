package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultValidateTTL is how long a liveness verdict stays cached.
const DefaultValidateTTL = time.Minute

// ProbeFunc answers whether a stream is live right now: nil when it is,
// ErrNotLive or ErrInvalidID when it is not, any other error on transport
// trouble.
type ProbeFunc func(ctx context.Context, streamID string) error

// LiveChecker is implemented by sources that can probe liveness more
// cheaply than a full Connect.
type LiveChecker interface {
	CheckLive(ctx context.Context, streamID string) error
}

// ProbeSource adapts src into a ProbeFunc, preferring its LiveChecker when
// it has one.
func ProbeSource(src Source) ProbeFunc {
	if lc, ok := src.(LiveChecker); ok {
		return lc.CheckLive
	}
	return func(ctx context.Context, streamID string) error {
		conn, err := src.Connect(ctx, streamID)
		if err != nil {
			return err
		}
		return conn.Close()
	}
}

// LiveValidator caches liveness verdicts so repeated lookups for the same
// stream do not each hit the upstream API. Concurrent probes for one id are
// collapsed into a single call.
type LiveValidator struct {
	probe ProbeFunc
	ttl   time.Duration

	mu    sync.Mutex
	cache map[string]verdict
	group singleflight.Group
}

type verdict struct {
	err error
	at  time.Time
}

// NewLiveValidator wraps probe with caching. ttl <= 0 selects
// DefaultValidateTTL.
func NewLiveValidator(probe ProbeFunc, ttl time.Duration) *LiveValidator {
	if ttl <= 0 {
		ttl = DefaultValidateTTL
	}
	return &LiveValidator{
		probe: probe,
		ttl:   ttl,
		cache: make(map[string]verdict),
	}
}

// Validate reports the cached or freshly probed liveness of streamID. Only
// definite verdicts are cached; transport errors are returned to the caller
// and retried on the next call.
func (v *LiveValidator) Validate(ctx context.Context, streamID string) error {
	v.mu.Lock()
	if e, ok := v.cache[streamID]; ok && time.Since(e.at) < v.ttl {
		v.mu.Unlock()
		return e.err
	}
	v.mu.Unlock()

	_, err, _ := v.group.Do(streamID, func() (any, error) {
		err := v.probe(ctx, streamID)
		if err == nil || errors.Is(err, ErrNotLive) || errors.Is(err, ErrInvalidID) {
			v.mu.Lock()
			v.cache[streamID] = verdict{err: err, at: time.Now()}
			v.mu.Unlock()
		}
		return nil, err
	})
	return err
}

// Reset drops all cached verdicts.
func (v *LiveValidator) Reset() {
	v.mu.Lock()
	v.cache = make(map[string]verdict)
	v.mu.Unlock()
}
