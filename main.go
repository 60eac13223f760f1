// Command chat-echo is the main entrypoint for the livestream chat monitor.
// It:
//   - Loads configuration and initializes structured logging.
//   - Builds the configured chat source (YouTube live chat or Twitch IRC).
//   - Wires the session controller and live-check validator.
//   - Exposes an HTTP server with session control, buffer queries, an SSE
//     status stream, /healthz, /readyz, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/onnwee/chat-echo/chat"
	"github.com/onnwee/chat-echo/config"
	"github.com/onnwee/chat-echo/server"
	"github.com/onnwee/chat-echo/telemetry"
	"github.com/onnwee/chat-echo/twitch"
	"github.com/onnwee/chat-echo/youtube"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		// unknown level -> keep info but note once using temporary logger
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.ValidateSourceReady(); err != nil {
		slog.Error("source credentials missing", slog.String("source", cfg.Source), slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("chat-echo", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Chat source
	var src chat.Source
	switch cfg.Source {
	case config.SourceTwitch:
		tokenSource := twitch.AppTokenSource(ctx, cfg.TwitchClientID, cfg.TwitchClientSecret, "")
		// Best-effort early fetch so bad credentials surface at boot, not at
		// the first session start. The source is cached for Helix calls.
		if tok, err := tokenSource.Token(); err != nil {
			slog.Warn("twitch app token fetch failed", slog.Any("err", err))
		} else if len(tok.AccessToken) > 6 {
			masked := "***" + tok.AccessToken[len(tok.AccessToken)-6:]
			slog.Info("twitch app token acquired", slog.String("tail", masked))
		}
		src = &twitch.Source{
			Helix:       &twitch.HelixClient{ClientID: cfg.TwitchClientID, TokenSource: tokenSource},
			LiveRecheck: cfg.LiveRecheck,
		}
	default:
		src, err = youtube.NewSource(ctx, youtube.Config{APIKey: cfg.YouTubeAPIKey, AccessToken: cfg.YouTubeAccessToken})
		if err != nil {
			slog.Error("youtube source init failed", slog.Any("err", err))
			os.Exit(1)
		}
	}
	slog.Info("chat source ready", slog.String("source", cfg.Source))

	ctrl := chat.NewController(src, chat.Options{
		Interval:   cfg.PollInterval,
		MaxRetries: cfg.PollMaxRetries,
		Capacity:   cfg.BufferCapacity,
	})
	validator := chat.NewLiveValidator(chat.ProbeSource(src), cfg.ValidateTTL)

	// Optional boot-time session: start monitoring immediately when a stream
	// is configured. Failure is logged, not fatal; the API can retry.
	if cfg.StreamID != "" {
		if err := ctrl.StartSession(ctx, cfg.StreamID); err != nil {
			slog.Error("boot session start failed", slog.String("stream_id", cfg.StreamID), slog.Any("err", err))
		}
	}

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			// Use an http.Server with timeouts to satisfy G114 and avoid DoS risks
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	// HTTP server (session control, queries, SSE, health, metrics)
	go func() {
		if err := server.Start(ctx, cfg.HTTPAddr, ctrl, validator); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
	ctrl.EndSession()
}
