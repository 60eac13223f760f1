package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/onnwee/chat-echo/chat"
)

func newFakeAPI(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for pattern, h := range handlers {
		mux.HandleFunc(pattern, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestSource(t *testing.T, srv *httptest.Server) *Source {
	t.Helper()
	src, err := NewSource(context.Background(), Config{
		Endpoint:   srv.URL,
		HTTPClient: srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	return src
}

func liveVideoJSON(videoID, chatID string) string {
	return fmt.Sprintf(`{
		"kind": "youtube#videoListResponse",
		"items": [{
			"id": %q,
			"snippet": {"title": "launch party", "liveBroadcastContent": "live"},
			"liveStreamingDetails": {"activeLiveChatId": %q}
		}]
	}`, videoID, chatID)
}

func TestConnectResolvesLiveChat(t *testing.T) {
	srv := newFakeAPI(t, map[string]http.HandlerFunc{
		"/youtube/v3/videos": func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("id"); got != "dQw4w9WgXcQ" {
				t.Errorf("videos id = %q, want dQw4w9WgXcQ", got)
			}
			fmt.Fprint(w, liveVideoJSON("dQw4w9WgXcQ", "chat-123"))
		},
		"/youtube/v3/liveChat/messages": func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("liveChatId"); got != "chat-123" {
				t.Errorf("liveChatId = %q, want chat-123", got)
			}
			fmt.Fprint(w, `{
				"nextPageToken": "page-2",
				"pollingIntervalMillis": 0,
				"items": [
					{"snippet": {"type": "textMessageEvent", "displayMessage": "hello"}, "authorDetails": {"displayName": "Alice"}},
					{"snippet": {"type": "textMessageEvent", "displayMessage": "world"}, "authorDetails": {"displayName": "Bob"}}
				]
			}`)
		},
	})

	src := newTestSource(t, srv)
	conn, err := src.Connect(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	events, terminal, err := conn.NextBatch(context.Background())
	if err != nil {
		t.Fatalf("NextBatch: %v", err)
	}
	if terminal {
		t.Fatal("first batch reported terminal")
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Author != "Alice" || events[0].Text != "hello" {
		t.Errorf("events[0] = %+v", events[0])
	}
	if events[1].Author != "Bob" || events[1].Text != "world" {
		t.Errorf("events[1] = %+v", events[1])
	}
}

func TestConnectAcceptsWatchURL(t *testing.T) {
	var gotID atomic.Value
	srv := newFakeAPI(t, map[string]http.HandlerFunc{
		"/youtube/v3/videos": func(w http.ResponseWriter, r *http.Request) {
			gotID.Store(r.URL.Query().Get("id"))
			fmt.Fprint(w, liveVideoJSON("dQw4w9WgXcQ", "chat-123"))
		},
		"/youtube/v3/liveChat/messages": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"items": []}`)
		},
	})

	src := newTestSource(t, srv)
	conn, err := src.Connect(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	conn.Close()
	if got := gotID.Load(); got != "dQw4w9WgXcQ" {
		t.Errorf("lookup used id %v, want dQw4w9WgXcQ", got)
	}
}

func TestConnectNotLive(t *testing.T) {
	srv := newFakeAPI(t, map[string]http.HandlerFunc{
		"/youtube/v3/videos": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{
				"items": [{
					"id": "dQw4w9WgXcQ",
					"snippet": {"title": "old upload", "liveBroadcastContent": "none"}
				}]
			}`)
		},
	})

	src := newTestSource(t, srv)
	if _, err := src.Connect(context.Background(), "dQw4w9WgXcQ"); !errors.Is(err, chat.ErrNotLive) {
		t.Fatalf("Connect err = %v, want ErrNotLive", err)
	}
}

func TestConnectEndedStreamNotLive(t *testing.T) {
	srv := newFakeAPI(t, map[string]http.HandlerFunc{
		"/youtube/v3/videos": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{
				"items": [{
					"id": "dQw4w9WgXcQ",
					"snippet": {"title": "finished stream", "liveBroadcastContent": "none"},
					"liveStreamingDetails": {"actualEndTime": "2026-08-20T18:00:00Z"}
				}]
			}`)
		},
	})

	src := newTestSource(t, srv)
	if _, err := src.Connect(context.Background(), "dQw4w9WgXcQ"); !errors.Is(err, chat.ErrNotLive) {
		t.Fatalf("Connect err = %v, want ErrNotLive", err)
	}
}

func TestConnectUnknownVideo(t *testing.T) {
	srv := newFakeAPI(t, map[string]http.HandlerFunc{
		"/youtube/v3/videos": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"items": []}`)
		},
	})

	src := newTestSource(t, srv)
	if _, err := src.Connect(context.Background(), "AAAAAAAAAAA"); !errors.Is(err, chat.ErrInvalidID) {
		t.Fatalf("Connect err = %v, want ErrInvalidID", err)
	}
}

func TestConnectRejectsMalformedID(t *testing.T) {
	var calls atomic.Int32
	srv := newFakeAPI(t, map[string]http.HandlerFunc{
		"/": func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.Error(w, "unexpected", http.StatusTeapot)
		},
	})

	src := newTestSource(t, srv)
	if _, err := src.Connect(context.Background(), "not a video id"); !errors.Is(err, chat.ErrInvalidID) {
		t.Fatalf("Connect err = %v, want ErrInvalidID", err)
	}
	if calls.Load() != 0 {
		t.Errorf("malformed id reached the API %d times", calls.Load())
	}
}

func TestNextBatchSendsPageToken(t *testing.T) {
	var tokens []string
	var mu sync.Mutex
	srv := newFakeAPI(t, map[string]http.HandlerFunc{
		"/youtube/v3/videos": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, liveVideoJSON("dQw4w9WgXcQ", "chat-123"))
		},
		"/youtube/v3/liveChat/messages": func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			tokens = append(tokens, r.URL.Query().Get("pageToken"))
			mu.Unlock()
			fmt.Fprint(w, `{"nextPageToken": "page-2", "items": []}`)
		},
	})

	src := newTestSource(t, srv)
	conn, err := src.Connect(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	for i := 0; i < 2; i++ {
		if _, _, err := conn.NextBatch(context.Background()); err != nil {
			t.Fatalf("NextBatch %d: %v", i, err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(tokens) != 2 || tokens[0] != "" || tokens[1] != "page-2" {
		t.Errorf("page tokens = %q, want [\"\" \"page-2\"]", tokens)
	}
}

func TestNextBatchHonorsPollingFloor(t *testing.T) {
	var fetches atomic.Int32
	srv := newFakeAPI(t, map[string]http.HandlerFunc{
		"/youtube/v3/videos": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, liveVideoJSON("dQw4w9WgXcQ", "chat-123"))
		},
		"/youtube/v3/liveChat/messages": func(w http.ResponseWriter, r *http.Request) {
			fetches.Add(1)
			fmt.Fprint(w, `{"pollingIntervalMillis": 60000, "items": []}`)
		},
	})

	src := newTestSource(t, srv)
	conn, err := src.Connect(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	if _, _, err := conn.NextBatch(context.Background()); err != nil {
		t.Fatalf("first NextBatch: %v", err)
	}
	events, terminal, err := conn.NextBatch(context.Background())
	if err != nil || terminal || len(events) != 0 {
		t.Fatalf("throttled NextBatch = (%v, %v, %v), want empty quiet batch", events, terminal, err)
	}
	if fetches.Load() != 1 {
		t.Errorf("API fetched %d times inside the polling floor, want 1", fetches.Load())
	}
}

func TestNextBatchChatEnded(t *testing.T) {
	srv := newFakeAPI(t, map[string]http.HandlerFunc{
		"/youtube/v3/videos": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, liveVideoJSON("dQw4w9WgXcQ", "chat-123"))
		},
		"/youtube/v3/liveChat/messages": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"error": {"code": 403, "message": "The live chat is no longer live.", "errors": [{"reason": "liveChatEnded", "message": "The live chat is no longer live."}]}}`)
		},
	})

	src := newTestSource(t, srv)
	conn, err := src.Connect(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	_, terminal, err := conn.NextBatch(context.Background())
	if err != nil {
		t.Fatalf("NextBatch err = %v, want terminal without error", err)
	}
	if !terminal {
		t.Fatal("chat ended response did not report terminal")
	}
}

func TestNextBatchOfflineAt(t *testing.T) {
	srv := newFakeAPI(t, map[string]http.HandlerFunc{
		"/youtube/v3/videos": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, liveVideoJSON("dQw4w9WgXcQ", "chat-123"))
		},
		"/youtube/v3/liveChat/messages": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{
				"offlineAt": "2026-08-20T18:00:00Z",
				"items": [{"snippet": {"type": "textMessageEvent", "displayMessage": "bye"}, "authorDetails": {"displayName": "Alice"}}]
			}`)
		},
	})

	src := newTestSource(t, srv)
	conn, err := src.Connect(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	events, terminal, err := conn.NextBatch(context.Background())
	if err != nil {
		t.Fatalf("NextBatch: %v", err)
	}
	if !terminal {
		t.Fatal("offlineAt did not report terminal")
	}
	if len(events) != 1 || events[0].Text != "bye" {
		t.Errorf("final batch = %+v, want the goodbye message", events)
	}
}

func TestNextBatchSkipsNonDisplayable(t *testing.T) {
	srv := newFakeAPI(t, map[string]http.HandlerFunc{
		"/youtube/v3/videos": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, liveVideoJSON("dQw4w9WgXcQ", "chat-123"))
		},
		"/youtube/v3/liveChat/messages": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{
				"items": [
					{"snippet": {"type": "textMessageEvent", "displayMessage": "kept"}, "authorDetails": {"displayName": "Alice"}},
					{"snippet": {"type": "messageDeletedEvent", "displayMessage": ""}},
					{"snippet": {"type": "textMessageEvent", "displayMessage": ""}, "authorDetails": {"displayName": "Ghost"}}
				]
			}`)
		},
	})

	src := newTestSource(t, srv)
	conn, err := src.Connect(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	events, _, err := conn.NextBatch(context.Background())
	if err != nil {
		t.Fatalf("NextBatch: %v", err)
	}
	if len(events) != 1 || events[0].Text != "kept" {
		t.Errorf("events = %+v, want only the displayable message", events)
	}
}

func TestNextBatchTransportErrorIsTransient(t *testing.T) {
	var failing atomic.Bool
	srv := newFakeAPI(t, map[string]http.HandlerFunc{
		"/youtube/v3/videos": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, liveVideoJSON("dQw4w9WgXcQ", "chat-123"))
		},
		"/youtube/v3/liveChat/messages": func(w http.ResponseWriter, r *http.Request) {
			if failing.Load() {
				http.Error(w, `{"error": {"code": 503, "message": "Backend Error"}}`, http.StatusServiceUnavailable)
				return
			}
			fmt.Fprint(w, `{"items": []}`)
		},
	})

	src := newTestSource(t, srv)
	conn, err := src.Connect(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	failing.Store(true)
	_, terminal, err := conn.NextBatch(context.Background())
	if err == nil || terminal {
		t.Fatalf("NextBatch = (terminal=%v, err=%v), want transient error", terminal, err)
	}
	if !chat.IsTransient(err) {
		t.Errorf("503 classified as %v, want transient", chat.Classify(err))
	}
}

func TestCheckLive(t *testing.T) {
	srv := newFakeAPI(t, map[string]http.HandlerFunc{
		"/youtube/v3/videos": func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Query().Get("id") {
			case "LiveLiveLiv":
				fmt.Fprint(w, liveVideoJSON("LiveLiveLiv", "chat-123"))
			case "DeadDeadDea":
				fmt.Fprint(w, `{"items": [{"id": "DeadDeadDea", "snippet": {"liveBroadcastContent": "none"}}]}`)
			default:
				fmt.Fprint(w, `{"items": []}`)
			}
		},
	})

	src := newTestSource(t, srv)
	ctx := context.Background()
	if err := src.CheckLive(ctx, "LiveLiveLiv"); err != nil {
		t.Errorf("live video: %v", err)
	}
	if err := src.CheckLive(ctx, "DeadDeadDea"); !errors.Is(err, chat.ErrNotLive) {
		t.Errorf("offline video err = %v, want ErrNotLive", err)
	}
	if err := src.CheckLive(ctx, "GoneGoneGon"); !errors.Is(err, chat.ErrInvalidID) {
		t.Errorf("missing video err = %v, want ErrInvalidID", err)
	}
}

func TestParseVideoID(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{" dQw4w9WgXcQ ", "dQw4w9WgXcQ", false},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://youtube.com/watch?v=dQw4w9WgXcQ&t=42s", "dQw4w9WgXcQ", false},
		{"https://m.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://www.youtube.com/live/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://www.youtube.com/live/dQw4w9WgXcQ/", "dQw4w9WgXcQ", false},
		{"", "", true},
		{"tooshort", "", true},
		{"way-too-long-to-be-an-id", "", true},
		{"https://example.com/watch?v=dQw4w9WgXcQ", "", true},
		{"https://www.youtube.com/playlist?list=PL123", "", true},
		{"has spaces!", "", true},
	}
	for _, tc := range cases {
		got, err := ParseVideoID(tc.in)
		if tc.wantErr {
			if !errors.Is(err, chat.ErrInvalidID) {
				t.Errorf("ParseVideoID(%q) err = %v, want ErrInvalidID", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseVideoID(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseVideoID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCheckLiveFeedsValidator(t *testing.T) {
	var lookups atomic.Int32
	srv := newFakeAPI(t, map[string]http.HandlerFunc{
		"/youtube/v3/videos": func(w http.ResponseWriter, r *http.Request) {
			lookups.Add(1)
			fmt.Fprint(w, liveVideoJSON("LiveLiveLiv", "chat-123"))
		},
	})

	src := newTestSource(t, srv)
	v := chat.NewLiveValidator(chat.ProbeSource(src), 0)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := v.Validate(ctx, "LiveLiveLiv"); err != nil {
			t.Fatalf("Validate: %v", err)
		}
	}
	if lookups.Load() != 1 {
		t.Errorf("API looked up %d times for a cached verdict, want 1", lookups.Load())
	}
}
