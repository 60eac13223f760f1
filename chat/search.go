package chat

import (
	"strings"

	"github.com/onnwee/chat-echo/buffer"
	"github.com/onnwee/chat-echo/telemetry"
)

// SearchQuery describes one lookup against a buffer snapshot.
type SearchQuery struct {
	Pattern       string `json:"pattern"`
	CaseSensitive bool   `json:"case_sensitive"`
}

// SearchResult reports whether a query matched and every matching message in
// buffer order. It is never stored back into the buffer.
type SearchResult struct {
	Found   bool                 `json:"found"`
	Matches []buffer.ChatMessage `json:"matches"`
}

// Search scans snapshot in order and returns every message whose text
// contains q.Pattern as a substring. When q.CaseSensitive is false both
// sides are compared case-folded. An empty pattern is rejected with
// ErrInvalidQuery rather than matching everything. Search never mutates the
// snapshot and holds no state between calls.
func Search(snapshot []buffer.ChatMessage, q SearchQuery) (SearchResult, error) {
	if q.Pattern == "" {
		return SearchResult{}, ErrInvalidQuery
	}
	var res SearchResult
	telemetry.TimeSearch(func() {
		pattern := q.Pattern
		if !q.CaseSensitive {
			pattern = strings.ToLower(pattern)
		}
		for _, m := range snapshot {
			text := m.Text
			if !q.CaseSensitive {
				text = strings.ToLower(text)
			}
			if strings.Contains(text, pattern) {
				res.Matches = append(res.Matches, m)
			}
		}
	})
	res.Found = len(res.Matches) > 0
	return res, nil
}

// SearchAuthor returns every message whose author equals username, compared
// case-insensitively. A leading @ on the queried name is ignored, matching
// how viewers usually write handles. An empty username is rejected with
// ErrInvalidQuery.
func SearchAuthor(snapshot []buffer.ChatMessage, username string) (SearchResult, error) {
	username = strings.TrimPrefix(username, "@")
	if username == "" {
		return SearchResult{}, ErrInvalidQuery
	}
	var res SearchResult
	telemetry.TimeSearch(func() {
		for _, m := range snapshot {
			if strings.EqualFold(m.Author, username) {
				res.Matches = append(res.Matches, m)
			}
		}
	})
	res.Found = len(res.Matches) > 0
	return res, nil
}
