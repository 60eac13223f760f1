package chat

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassString(t *testing.T) {
	tests := []struct {
		class Class
		want  string
	}{
		{ClassTransient, "transient"},
		{ClassFatal, "fatal"},
		{ClassUnknown, "unknown"},
		{Class(999), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := tt.class.String()
			if got != tt.want {
				t.Errorf("Class.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassify_Fatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"not live sentinel", ErrNotLive},
		{"wrapped not live", fmt.Errorf("connect: %w", ErrNotLive)},
		{"invalid id sentinel", ErrInvalidID},
		{"wrapped invalid id", fmt.Errorf("resolve %q: %w", "nope", ErrInvalidID)},
		{"401 unauthorized", errors.New("HTTP Error 401: Unauthorized")},
		{"403 forbidden", errors.New("googleapi: Error 403: Forbidden")},
		{"login required", errors.New("login required to access this content")},
		{"age-restricted", errors.New("this live stream is age-restricted")},
		{"private video", errors.New("this video is private")},
		{"members only", errors.New("chat is members-only")},
		{"404 not found", errors.New("HTTP Error 404: Not Found")},
		{"video deleted", errors.New("video has been deleted by the creator")},
		{"does not exist", errors.New("channel does not exist")},
		{"video unavailable", errors.New("this video is unavailable")},
		{"uppercase FORBIDDEN", errors.New("ACCESS FORBIDDEN")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if got != ClassFatal {
				t.Errorf("Classify(%q) = %v, want %v", tt.err, got, ClassFatal)
			}
		})
	}
}

func TestClassify_Transient(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"connection reset", errors.New("read tcp: connection reset by peer")},
		{"connection refused", errors.New("dial tcp: connection refused")},
		{"timeout", errors.New("context deadline exceeded (Client.Timeout exceeded)")},
		{"dns failure", errors.New("temporary failure in name resolution")},
		{"eof", errors.New("unexpected EOF")},
		{"500", errors.New("HTTP Error 500: Internal Server Error")},
		{"502", errors.New("502 Bad Gateway")},
		{"503 service unavailable", errors.New("503 Service Unavailable")},
		{"504 gateway timeout", errors.New("504 Gateway Timeout")},
		{"429 rate limit", errors.New("HTTP Error 429: Too Many Requests")},
		{"throttled", errors.New("request throttled by upstream")},
		{"unmatched defaults transient", errors.New("something odd happened")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if got != ClassTransient {
				t.Errorf("Classify(%q) = %v, want %v", tt.err, got, ClassTransient)
			}
		})
	}
}

func TestClassifyNil(t *testing.T) {
	if got := Classify(nil); got != ClassUnknown {
		t.Errorf("Classify(nil) = %v, want %v", got, ClassUnknown)
	}
}

func TestIsTransientIsFatal(t *testing.T) {
	if !IsTransient(errors.New("connection reset by peer")) {
		t.Error("IsTransient(connection reset) = false, want true")
	}
	if IsFatal(errors.New("connection reset by peer")) {
		t.Error("IsFatal(connection reset) = true, want false")
	}
	if !IsFatal(fmt.Errorf("probe: %w", ErrNotLive)) {
		t.Error("IsFatal(ErrNotLive) = false, want true")
	}
	if IsTransient(fmt.Errorf("probe: %w", ErrNotLive)) {
		t.Error("IsTransient(ErrNotLive) = true, want false")
	}
}
