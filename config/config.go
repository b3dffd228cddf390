// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
// For required credentials (e.g., Twitch chat), use ValidateChatReady.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Twitch
	TwitchChannel      string
	TwitchBotUsername  string
	TwitchOAuthToken   string
	TwitchClientID     string
	TwitchClientSecret string
	TwitchRedirectURI  string
	TwitchScopes       string

	// Chat
	CommandPrefix string
	ChatSendRate  float64       // messages per second allowed on the outbound limiter
	ChatSendBurst int           // limiter burst size
	ChatSendWait  time.Duration // max wait for a send slot before dropping

	// Database
	MongoURI      string
	MongoDatabase string

	// HTTP API
	HTTPAddr        string
	DefaultPageSize int
	MaxPageSize     int
}

// Load reads environment variables and applies defaults. It doesn't fail if
// Twitch creds are missing; use ValidateChatReady() when you require the bot.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.TwitchChannel = os.Getenv("TWITCH_CHANNEL")
	cfg.TwitchBotUsername = os.Getenv("TWITCH_BOT_USERNAME")
	cfg.TwitchOAuthToken = os.Getenv("TWITCH_OAUTH_TOKEN")
	cfg.TwitchClientID = os.Getenv("TWITCH_CLIENT_ID")
	cfg.TwitchClientSecret = os.Getenv("TWITCH_CLIENT_SECRET")
	cfg.TwitchRedirectURI = os.Getenv("TWITCH_REDIRECT_URI")
	cfg.TwitchScopes = os.Getenv("TWITCH_SCOPES")
	if cfg.TwitchScopes == "" {
		// default scopes for chat bot
		cfg.TwitchScopes = "chat:read chat:edit"
	}

	cfg.CommandPrefix = os.Getenv("COMMAND_PREFIX")
	if cfg.CommandPrefix == "" {
		cfg.CommandPrefix = "!"
	}

	// Twitch allows 20 messages per 30s for a regular bot account.
	rate, err := envFloat("CHAT_SEND_RATE", 20.0/30.0)
	if err != nil {
		return nil, err
	}
	cfg.ChatSendRate = rate
	burst, err := envInt("CHAT_SEND_BURST", 1)
	if err != nil {
		return nil, err
	}
	cfg.ChatSendBurst = burst
	cfg.ChatSendWait = 5 * time.Second

	cfg.MongoURI = os.Getenv("MONGO_URI")
	if cfg.MongoURI == "" {
		// Matches docker-compose service name.
		cfg.MongoURI = "mongodb://mongo:27017"
	}
	cfg.MongoDatabase = os.Getenv("MONGO_DB")
	if cfg.MongoDatabase == "" {
		cfg.MongoDatabase = "chatrelay"
	}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	def, err := envInt("DEFAULT_PAGE_SIZE", 25)
	if err != nil {
		return nil, err
	}
	cfg.DefaultPageSize = def
	max, err := envInt("MAX_PAGE_SIZE", 100)
	if err != nil {
		return nil, err
	}
	cfg.MaxPageSize = max
	if cfg.DefaultPageSize <= 0 || cfg.MaxPageSize <= 0 || cfg.DefaultPageSize > cfg.MaxPageSize {
		return nil, fmt.Errorf("invalid page size config: default=%d max=%d", cfg.DefaultPageSize, cfg.MaxPageSize)
	}

	return cfg, nil
}

// ValidateChatReady checks required fields when the chat bot is enabled.
func (c *Config) ValidateChatReady() error {
	if c.TwitchChannel == "" || c.TwitchBotUsername == "" || c.TwitchOAuthToken == "" {
		return fmt.Errorf("missing twitch env: require TWITCH_CHANNEL, TWITCH_BOT_USERNAME, TWITCH_OAUTH_TOKEN")
	}
	return nil
}

func envInt(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return n, nil
}

func envFloat(name string, def float64) (float64, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return f, nil
}
