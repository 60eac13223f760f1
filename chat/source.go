package chat

import "context"

// Event is one raw chat event as delivered by a feed, before normalization.
type Event struct {
	Author string
	Text   string
}

// Connection is an open chat feed for a single stream. NextBatch returns the
// events that arrived since the previous call and reports terminal=true once
// the stream has ended; a terminal batch may still carry events. Errors are
// classified by Classify into transient (caller may retry) and fatal.
// Close releases the underlying transport and is safe to call more than once.
type Connection interface {
	NextBatch(ctx context.Context) (events []Event, terminal bool, err error)
	Close() error
}

// Source opens chat feeds. Connect resolves streamID and returns an open
// Connection. It returns an error wrapping ErrNotLive when the identifier
// names a stream that is not currently live, and one wrapping ErrInvalidID
// when the identifier cannot name a stream at all.
type Source interface {
	Connect(ctx context.Context, streamID string) (Connection, error)
}
