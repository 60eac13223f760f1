package chat

import (
	"errors"
	"strings"
)

// Sentinel errors reported to callers. Adapters wrap ErrNotLive and
// ErrInvalidID so errors.Is works across package boundaries.
var (
	// ErrNotLive means the identifier does not refer to an active livestream.
	ErrNotLive = errors.New("stream is not live")
	// ErrInvalidID means the stream identifier is malformed or unresolvable.
	ErrInvalidID = errors.New("invalid stream id")
	// ErrAlreadyRunning means a start was attempted while a poll is active.
	ErrAlreadyRunning = errors.New("already running")
	// ErrInvalidQuery means the search pattern or username is empty.
	ErrInvalidQuery = errors.New("empty search pattern")
	// ErrConnectionLost means the feed failed mid-session beyond the retry budget.
	ErrConnectionLost = errors.New("connection lost")
)

// Class represents whether a fetch error should be retried or not.
type Class int

const (
	// ClassTransient indicates the fetch should be retried (network hiccups, 5xx).
	ClassTransient Class = iota
	// ClassFatal indicates polling should stop (bad stream, auth, removed content).
	ClassFatal
	// ClassUnknown indicates the error type cannot be determined.
	ClassUnknown
)

// String returns a human-readable name for the error class.
func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassFatal:
		return "fatal"
	case ClassUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

// Classify sorts fetch errors into transient vs fatal categories.
//
// Fatal errors (stop polling):
// - Stream identity errors (not live, invalid id, video removed, 404)
// - Authentication/authorization errors (401, 403, login required)
// - Restricted content (age-restricted, private, members-only)
//
// Transient errors (retry at the next interval):
// - Network errors (connection reset, timeout, DNS failures)
// - Server errors (500, 502, 503, 504)
// - Rate limiting (429, too many requests)
//
// Unmatched errors are treated as transient so a flaky feed is not given up
// on too early; the retry budget still bounds them.
func Classify(err error) Class {
	if err == nil {
		return ClassUnknown
	}
	if errors.Is(err, ErrNotLive) || errors.Is(err, ErrInvalidID) {
		return ClassFatal
	}

	lower := strings.ToLower(err.Error())

	// Server errors first so "503 service unavailable" stays transient.
	if strings.Contains(lower, "500") ||
		strings.Contains(lower, "502") ||
		strings.Contains(lower, "503") ||
		strings.Contains(lower, "504") ||
		strings.Contains(lower, "internal server error") ||
		strings.Contains(lower, "bad gateway") ||
		strings.Contains(lower, "service unavailable") ||
		strings.Contains(lower, "gateway timeout") {
		return ClassTransient
	}

	if strings.Contains(lower, "401") ||
		strings.Contains(lower, "403") ||
		strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "forbidden") ||
		strings.Contains(lower, "login required") ||
		strings.Contains(lower, "authentication required") ||
		strings.Contains(lower, "age-restricted") ||
		strings.Contains(lower, "age restricted") ||
		strings.Contains(lower, "private") ||
		strings.Contains(lower, "members-only") ||
		strings.Contains(lower, "members only") {
		return ClassFatal
	}

	if strings.Contains(lower, "404") ||
		strings.Contains(lower, "not found") ||
		strings.Contains(lower, "deleted") ||
		strings.Contains(lower, "no longer available") ||
		strings.Contains(lower, "does not exist") ||
		(strings.Contains(lower, "video") && strings.Contains(lower, "unavailable")) {
		return ClassFatal
	}

	networkPatterns := []string{
		"connection reset",
		"connection refused",
		"connection timed out",
		"timeout",
		"temporary failure in name resolution",
		"no route to host",
		"network unreachable",
		"dns",
		"eof",
		"broken pipe",
	}
	for _, pattern := range networkPatterns {
		if strings.Contains(lower, pattern) {
			return ClassTransient
		}
	}

	rateLimitPatterns := []string{
		"429",
		"too many requests",
		"rate limit",
		"throttled",
	}
	for _, pattern := range rateLimitPatterns {
		if strings.Contains(lower, pattern) {
			return ClassTransient
		}
	}

	return ClassTransient
}

// IsTransient checks if an error should trigger another poll attempt.
func IsTransient(err error) bool {
	return Classify(err) == ClassTransient
}

// IsFatal checks if an error should stop polling immediately.
func IsFatal(err error) bool {
	return Classify(err) == ClassFatal
}
