// Package server exposes the HTTP API over a session controller: session
// lifecycle, buffer queries, an SSE status stream, health, and metrics. It
// includes permissive CORS for development and injects correlation IDs into
// request contexts for consistent logging.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/chat-echo/chat"
	"github.com/onnwee/chat-echo/telemetry"
)

// getAdminEndpointPattern matches the mutating session endpoints that
// require admin auth. Lazily compiled on first use.
var getAdminEndpointPattern = sync.OnceValue(func() *regexp.Regexp {
	return regexp.MustCompile(`^/api/session/(start|stop)$`)
})

// getQueryEndpointPattern matches the query endpoints that get per-IP rate
// limiting.
var getQueryEndpointPattern = sync.OnceValue(func() *regexp.Regexp {
	return regexp.MustCompile(`^/api/(session/check|resolve)$`)
})

// NewMux returns the HTTP handler with all routes.
// The provided context is used for rate limiter cleanup goroutine lifecycle
// and as the parent of sessions started over HTTP.
func NewMux(ctx context.Context, ctrl *chat.Controller, validator *chat.LiveValidator) http.Handler {
	// Load middleware configurations
	authCfg := loadAuthConfig()
	rateLimiterCfg := loadRateLimiterConfig()
	corsCfg := loadCORSConfig()

	rateLimiter := newIPRateLimiter(ctx, rateLimiterCfg)

	// Initialize handlers with dependencies
	handlers := NewHandlers(ctx, ctrl, validator)

	mux := http.NewServeMux()

	// Metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	// Health and readiness endpoints
	mux.HandleFunc("/healthz", handlers.HandleHealthz)
	mux.HandleFunc("/readyz", handlers.HandleReadyz)

	// Session endpoints
	mux.HandleFunc("/api/session", handlers.HandleSession)
	mux.HandleFunc("/api/session/start", handlers.HandleSessionStart)
	mux.HandleFunc("/api/session/stop", handlers.HandleSessionStop)
	mux.HandleFunc("/api/session/check", handlers.HandleSessionCheck)
	mux.HandleFunc("/api/session/events", handlers.HandleSessionEvents)

	// Stream resolution endpoint
	mux.HandleFunc("/api/resolve", handlers.HandleResolve)

	// Selective middleware wrapper: auth + rate limiting on mutating session
	// endpoints, rate limiting alone on query endpoints.
	selectiveHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if getAdminEndpointPattern().MatchString(r.URL.Path) {
			adminAuth(rateLimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				mux.ServeHTTP(w, r)
			}), rateLimiter), authCfg).ServeHTTP(w, r)
			return
		}

		if getQueryEndpointPattern().MatchString(r.URL.Path) {
			rateLimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				mux.ServeHTTP(w, r)
			}), rateLimiter).ServeHTTP(w, r)
			return
		}

		// All other endpoints: no special protection
		mux.ServeHTTP(w, r)
	})

	// Wrap with correlation ID injector and tracing middleware
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Reuse corr header if provided else generate
		corr := r.Header.Get("X-Correlation-ID")
		if corr == "" {
			corr = uuid.New().String()
		}
		ctx := telemetry.WithCorrelation(r.Context(), corr)
		w.Header().Set("X-Correlation-ID", corr)

		// Start tracing span if enabled
		ctx, span := telemetry.StartSpan(ctx, "http-server", r.Method+" "+r.URL.Path,
			telemetry.HTTPMethodAttr(r.Method),
			telemetry.HTTPRouteAttr(r.URL.Path),
			telemetry.HTTPURLAttr(r.URL.String()),
		)
		defer span.End()

		telemetry.LoggerWithCorr(ctx).Debug("request start", slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.String("component", "http"))

		// Capture status code via custom ResponseWriter
		wrappedWriter := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		selectiveHandler.ServeHTTP(wrappedWriter, r.WithContext(ctx))

		// Record HTTP status in span
		telemetry.SetSpanHTTPStatus(span, wrappedWriter.statusCode)
		if wrappedWriter.statusCode >= 400 {
			code, msg := telemetry.ErrorStatus(fmt.Sprintf("HTTP %d", wrappedWriter.statusCode))
			span.SetStatus(code, msg)
		}
	})
	return withCORSConfig(handler, corsCfg)
}

// statusRecorder wraps ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

// Flush implements http.Flusher if the underlying ResponseWriter supports it
func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Start runs the HTTP server and shuts down gracefully on context
// cancellation.
func Start(ctx context.Context, addr string, ctrl *chat.Controller, validator *chat.LiveValidator) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      NewMux(ctx, ctrl, validator),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 0, // SSE connections stay open; per-handler deadlines instead
		IdleTimeout:  60 * time.Second,
	}

	// Shutdown goroutine
	go func() {
		<-ctx.Done()
		// Use WithoutCancel to inherit context values but allow shutdown to complete
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", slog.Any("err", err))
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("http server error", slog.Any("err", err))
		return err
	}
	return nil
}
