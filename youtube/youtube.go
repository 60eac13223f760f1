// Package youtube implements the chat feed for YouTube livestreams on top
// of the Data API v3: the video lookup resolves the active live chat id,
// then liveChatMessages.list is polled with page tokens. The package also
// provides URL/id parsing and a cached liveness validator.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/onnwee/chat-echo/chat"
)

// Config selects the API credentials for a Source. AccessToken wins over
// APIKey when both are set; an access token is required for streams whose
// chat the key cannot read (members-only, age-gated). Endpoint and
// HTTPClient exist for tests.
type Config struct {
	APIKey      string
	AccessToken string
	Endpoint    string
	HTTPClient  *http.Client
}

// Source opens YouTube live chat feeds.
type Source struct {
	svc *yt.Service
	log *slog.Logger
}

// NewSource builds the API-backed source. ctx bounds credential setup and
// outlives individual calls, so pass the application context.
func NewSource(ctx context.Context, cfg Config) (*Source, error) {
	var opts []option.ClientOption
	switch {
	case cfg.HTTPClient != nil:
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	case cfg.AccessToken != "":
		opts = append(opts, option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken})))
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	default:
		return nil, errors.New("youtube credentials missing: set YOUTUBE_API_KEY or YOUTUBE_ACCESS_TOKEN")
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	svc, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	return &Source{
		svc: svc,
		log: slog.With(slog.String("component", "youtube-feed")),
	}, nil
}

// lookup fetches the video once. A missing video maps to ErrInvalidID.
func (s *Source) lookup(ctx context.Context, videoID string) (*yt.Video, error) {
	resp, err := s.svc.Videos.List([]string{"snippet", "liveStreamingDetails"}).Id(videoID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("video lookup: %w", err)
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("video %q not found: %w", videoID, chat.ErrInvalidID)
	}
	return resp.Items[0], nil
}

// CheckLive reports whether videoID refers to a livestream with an active
// chat: nil when live, ErrNotLive or ErrInvalidID otherwise.
func (s *Source) CheckLive(ctx context.Context, videoID string) error {
	id, err := ParseVideoID(videoID)
	if err != nil {
		return err
	}
	v, err := s.lookup(ctx, id)
	if err != nil {
		return err
	}
	if v.LiveStreamingDetails == nil || v.LiveStreamingDetails.ActiveLiveChatId == "" {
		return fmt.Errorf("video %q has no active live chat: %w", id, chat.ErrNotLive)
	}
	return nil
}

// Connect resolves videoID (bare id or URL) to its active live chat and
// returns a polling connection over it.
func (s *Source) Connect(ctx context.Context, videoID string) (chat.Connection, error) {
	id, err := ParseVideoID(videoID)
	if err != nil {
		return nil, err
	}
	v, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.LiveStreamingDetails == nil || v.LiveStreamingDetails.ActiveLiveChatId == "" {
		return nil, fmt.Errorf("video %q has no active live chat: %w", id, chat.ErrNotLive)
	}

	title := ""
	if v.Snippet != nil {
		title = v.Snippet.Title
	}
	s.log.Info("live chat resolved", slog.String("video_id", id), slog.String("title", title))

	return &liveChatConn{
		svc:     s.svc,
		chatID:  v.LiveStreamingDetails.ActiveLiveChatId,
		videoID: id,
		log:     s.log.With(slog.String("video_id", id)),
	}, nil
}

// liveChatConn pages through liveChatMessages.list. The API reports its own
// minimum polling interval; fetches before it elapses are skipped with an
// empty batch so the caller's cadence stays fixed without burning quota.
type liveChatConn struct {
	svc       *yt.Service
	chatID    string
	videoID   string
	pageToken string
	notBefore time.Time
	log       *slog.Logger
}

func (c *liveChatConn) NextBatch(ctx context.Context) ([]chat.Event, bool, error) {
	if time.Now().Before(c.notBefore) {
		return nil, false, nil
	}

	call := c.svc.LiveChatMessages.List(c.chatID, []string{"snippet", "authorDetails"}).Context(ctx)
	if c.pageToken != "" {
		call = call.PageToken(c.pageToken)
	}
	resp, err := call.Do()
	if err != nil {
		if reason, ended := chatEndedReason(err); ended {
			c.log.Info("live chat ended", slog.String("reason", reason))
			return nil, true, nil
		}
		return nil, false, fmt.Errorf("live chat fetch: %w", err)
	}

	c.pageToken = resp.NextPageToken
	if resp.PollingIntervalMillis > 0 {
		c.notBefore = time.Now().Add(time.Duration(resp.PollingIntervalMillis) * time.Millisecond)
	}

	terminal := resp.OfflineAt != ""
	events := make([]chat.Event, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Snippet == nil {
			continue
		}
		if item.Snippet.Type == "chatEndedEvent" {
			terminal = true
			continue
		}
		if item.Snippet.DisplayMessage == "" {
			continue
		}
		author := ""
		if item.AuthorDetails != nil {
			author = item.AuthorDetails.DisplayName
		}
		events = append(events, chat.Event{Author: author, Text: item.Snippet.DisplayMessage})
	}
	return events, terminal, nil
}

// Close is a no-op; the feed holds no transport of its own.
func (c *liveChatConn) Close() error {
	return nil
}

// chatEndedReason detects the API's way of saying the chat is over, which
// arrives as a 403 rather than a terminal page.
func chatEndedReason(err error) (string, bool) {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return "", false
	}
	for _, item := range gerr.Errors {
		if item.Reason == "liveChatEnded" || item.Reason == "liveChatNotFound" {
			return item.Reason, true
		}
	}
	return "", false
}
