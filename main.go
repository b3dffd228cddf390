// Command chatrelay is the main entrypoint for the chat relay service.
// It:
//   - Loads configuration and initializes structured logging.
//   - Connects to MongoDB and ensures indexes.
//   - Starts the Twitch chat bot (recorder + command dispatch) and the OAuth
//     token refresher.
//   - Exposes the HTTP API: Relay connection endpoints over recorded chat and
//     commands, admin command management, OAuth, /healthz, /readyz, /status,
//     and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/quillen/chatrelay/chat"
	"github.com/quillen/chatrelay/config"
	"github.com/quillen/chatrelay/db"
	"github.com/quillen/chatrelay/oauth"
	"github.com/quillen/chatrelay/server"
	"github.com/quillen/chatrelay/telemetry"
	"github.com/quillen/chatrelay/twitchapi"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load(".env")

	initLogging()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("chatrelay", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(ctx)
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := database.Client().Disconnect(disconnectCtx); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()
	if err := db.EnsureIndexes(ctx, database); err != nil {
		slog.Error("failed to ensure indexes", slog.Any("err", err))
		os.Exit(1)
	}
	store, err := db.NewStore(database)
	if err != nil {
		slog.Error("failed to init store", slog.Any("err", err))
		os.Exit(1)
	}
	db.RegisterKinds()

	// Helix client for the built-in commands (app token, not the chat token).
	helix := &twitchapi.HelixClient{
		AppTokenSource: &twitchapi.TokenSource{ClientID: cfg.TwitchClientID, ClientSecret: cfg.TwitchClientSecret},
		ClientID:       cfg.TwitchClientID,
	}
	registry := chat.NewRegistry()
	if err := chat.RegisterBuiltins(registry, helix); err != nil {
		slog.Error("failed to register built-in commands", slog.Any("err", err))
		os.Exit(1)
	}

	// Background refresh for the stored Twitch user token.
	oauthCfg := twitchapi.NewOAuthConfig(cfg.TwitchClientID, cfg.TwitchClientSecret, cfg.TwitchRedirectURI, cfg.TwitchScopes)
	if cfg.TwitchClientID != "" && cfg.TwitchClientSecret != "" {
		oauth.StartRefresher(ctx, store, "twitch", 5*time.Minute, 15*time.Minute,
			func(ctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
				tok, err := twitchapi.RefreshToken(ctx, oauthCfg, refreshToken)
				if err != nil {
					return "", "", time.Time{}, "", err
				}
				return tok.AccessToken, tok.RefreshToken, twitchapi.ComputeExpiry(tok), scopeString(tok), nil
			})
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(ctx, store, cfg)
	})
	if err := cfg.ValidateChatReady(); err != nil {
		slog.Info("twitch creds not set; chat bot disabled", slog.Any("err", err))
	} else {
		g.Go(func() error {
			return chat.Run(ctx, cfg, store, registry)
		})
	}

	if err := g.Wait(); err != nil {
		slog.Error("service exited with error", slog.Any("err", err))
		os.Exit(1)
	}
}

// initLogging configures slog from LOG_LEVEL and LOG_FORMAT (text | json).
func initLogging() {
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
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT"))
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))
}

// scopeString extracts the granted scopes from a token response. Twitch
// returns them as a JSON array; some providers use a space-joined string.
func scopeString(tok *oauth2.Token) string {
	switch v := tok.Extra("scope").(type) {
	case string:
		return v
	case []any:
		parts := make([]string, 0, len(v))
		for _, s := range v {
			if str, ok := s.(string); ok {
				parts = append(parts, str)
			}
		}
		return strings.Join(parts, " ")
	}
	return ""
}
