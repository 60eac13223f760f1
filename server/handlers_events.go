package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/onnwee/chat-echo/chat"
)

// sseHeartbeat is the comment-frame interval keeping idle SSE connections
// alive through proxies.
const sseHeartbeat = 15 * time.Second

// HandleSessionEvents streams poller status transitions as Server-Sent
// Events. The current status is sent immediately, then every transition as
// it happens, until the client disconnects or the server shuts down.
func (h *Handlers) HandleSessionEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	statuses, unsubscribe := h.ctrl.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()
	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	enc := json.NewEncoder(w)
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.ctx.Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case st, open := <-statuses:
			if !open {
				return
			}
			if err := writeStatusEvent(w, enc, st); err != nil {
				slog.Warn("failed to write SSE event", slog.Any("err", err))
				return
			}
			flusher.Flush()
		}
	}
}

// writeStatusEvent encodes one status transition as an SSE data frame. The
// state goes out as its name, not its numeric value.
func writeStatusEvent(w http.ResponseWriter, enc *json.Encoder, st chat.Status) error {
	if _, err := w.Write([]byte("data: ")); err != nil {
		return err
	}
	payload := map[string]any{
		"state": st.State.String(),
		"at":    st.At,
	}
	if st.Err != nil {
		payload["error"] = st.Err.Error()
	}
	if err := enc.Encode(payload); err != nil {
		return err
	}
	_, err := w.Write([]byte("\n"))
	return err
}
