package server

import (
	"net/http"
	"strings"
)

// parseBoolQuery reports whether key is set to a truthy value in the query
// string ("1", "true", "yes", case-insensitive).
func parseBoolQuery(r *http.Request, key string) bool {
	switch strings.ToLower(r.URL.Query().Get(key)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
