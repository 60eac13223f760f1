package youtube

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/onnwee/chat-echo/chat"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ParseVideoID extracts the 11-character video id from raw, which may be
// the bare id or any of the usual URL shapes:
//
//	https://www.youtube.com/watch?v=VIDEOID
//	https://youtu.be/VIDEOID
//	https://www.youtube.com/live/VIDEOID
//
// Anything else maps to ErrInvalidID.
func ParseVideoID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if videoIDPattern.MatchString(raw) {
		return raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", raw, chat.ErrInvalidID)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	var id string
	switch host {
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		switch {
		case u.Path == "/watch":
			id = u.Query().Get("v")
		case strings.HasPrefix(u.Path, "/live/"):
			id = strings.TrimPrefix(u.Path, "/live/")
		}
	case "youtu.be":
		id = strings.TrimPrefix(u.Path, "/")
	}
	id = strings.TrimSuffix(id, "/")

	if !videoIDPattern.MatchString(id) {
		return "", fmt.Errorf("no video id in %q: %w", raw, chat.ErrInvalidID)
	}
	return id, nil
}
