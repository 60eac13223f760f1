package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/onnwee/chat-echo/chat"
)

// HandleResolve checks whether ?url= (or ?stream_id=) refers to a stream
// that is live right now. Verdicts are cached by the validator, so a UI can
// poll this endpoint while the user types without burning upstream quota.
func (h *Handlers) HandleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.validator == nil {
		http.Error(w, "resolver not configured", http.StatusServiceUnavailable)
		return
	}
	raw := strings.TrimSpace(r.URL.Query().Get("url"))
	if raw == "" {
		raw = strings.TrimSpace(r.URL.Query().Get("stream_id"))
	}
	if raw == "" {
		http.Error(w, "url or stream_id required", http.StatusBadRequest)
		return
	}

	err := h.validator.Validate(r.Context(), raw)
	switch {
	case err == nil, errors.Is(err, chat.ErrNotLive):
	case errors.Is(err, chat.ErrInvalidID):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	default:
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	resp := map[string]any{
		"stream_id": raw,
		"live":      err == nil,
	}
	if errors.Is(err, chat.ErrNotLive) {
		resp["reason"] = "not_live"
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
