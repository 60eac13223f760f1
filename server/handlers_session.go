package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/onnwee/chat-echo/chat"
)

// sessionView is the JSON shape shared by the session endpoints.
type sessionView struct {
	SessionID      string    `json:"session_id,omitempty"`
	SessionState   string    `json:"session_state"`
	PollerState    string    `json:"poller_state"`
	StreamID       string    `json:"stream_id,omitempty"`
	BufferSize     int       `json:"buffer_size"`
	BufferCapacity int       `json:"buffer_capacity"`
	BufferSpanMS   int64     `json:"buffer_span_ms"`
	LastError      string    `json:"last_error,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (h *Handlers) sessionView() sessionView {
	st := h.ctrl.Status()
	stats := h.ctrl.BufferStats()
	v := sessionView{
		SessionID:      h.ctrl.SessionID(),
		SessionState:   h.ctrl.SessionState().String(),
		PollerState:    st.State.String(),
		StreamID:       h.ctrl.StreamID(),
		BufferSize:     stats.Count,
		BufferCapacity: h.ctrl.BufferCapacity(),
		BufferSpanMS:   stats.Span.Milliseconds(),
		UpdatedAt:      st.At,
	}
	if st.Err != nil {
		v.LastError = st.Err.Error()
	}
	return v
}

// HandleSession returns the current session snapshot.
func (h *Handlers) HandleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.sessionView())
}

// HandleSessionStart begins a monitoring session for the stream in the
// request body ({"stream_id": ...} or {"url": ...}).
func (h *Handlers) HandleSessionStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		StreamID string `json:"stream_id"`
		URL      string `json:"url"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	streamID := strings.TrimSpace(req.StreamID)
	if streamID == "" {
		streamID = strings.TrimSpace(req.URL)
	}
	if streamID == "" {
		http.Error(w, "stream_id or url required", http.StatusBadRequest)
		return
	}

	// Bound to the server context, not r.Context(): the session must keep
	// polling after this request completes.
	if err := h.ctrl.StartSession(h.ctx, streamID); err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, chat.ErrAlreadyRunning):
			status = http.StatusConflict
		case errors.Is(err, chat.ErrNotLive):
			status = http.StatusNotFound
		case errors.Is(err, chat.ErrInvalidID):
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(h.sessionView())
}

// HandleSessionStop ends the current session. Idempotent; the buffer stays
// queryable afterwards.
func (h *Handlers) HandleSessionStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.ctrl.EndSession()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.sessionView())
}

// HandleSessionCheck runs a point-in-time query against the buffer: either
// ?pattern= (with optional case_sensitive) or ?author=, never both. Queries
// work in every session state; an ended session's buffer is still
// inspectable.
func (h *Handlers) HandleSessionCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	pattern := r.URL.Query().Get("pattern")
	author := r.URL.Query().Get("author")
	if (pattern == "") == (author == "") {
		http.Error(w, "exactly one of pattern or author is required", http.StatusBadRequest)
		return
	}

	var (
		res chat.SearchResult
		err error
	)
	if pattern != "" {
		res, err = h.ctrl.CheckNow(pattern, parseBoolQuery(r, "case_sensitive"))
	} else {
		res, err = h.ctrl.CheckAuthor(author)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(res)
}
