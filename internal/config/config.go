package config

import (
	"time"

	"lawlink-chat/pkg/env"
)

// Config holds all configuration for the chat engine binaries
type Config struct {
	Server ServerConfig
	Client ClientConfig
	Auth   AuthConfig
	Log    LogConfig
}

// ServerConfig holds dev server configuration
type ServerConfig struct {
	Port int
}

// ClientConfig holds the client engine's endpoints and identity
type ClientConfig struct {
	APIURL      string // durable store + token service base URL
	WSURL       string // real-time channel endpoint
	RoomID      string
	UserID      string
	DisplayName string
}

// AuthConfig holds token settings shared by client and dev server
type AuthConfig struct {
	Secret        string
	TokenTTL      time.Duration
	MediaSecret   string
	MediaValidity time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: env.GetInt("PORT", 8080),
		},
		Client: ClientConfig{
			APIURL:      env.GetString("API_URL", "http://localhost:8080"),
			WSURL:       env.GetString("WS_URL", "ws://localhost:8080/ws"),
			RoomID:      env.GetString("ROOM_ID", "demo-room"),
			UserID:      env.GetString("USER_ID", "demo-user"),
			DisplayName: env.GetString("DISPLAY_NAME", "Demo User"),
		},
		Auth: AuthConfig{
			Secret:        env.GetString("AUTH_SECRET", "dev-auth-secret-not-for-production"),
			TokenTTL:      env.GetDuration("AUTH_TOKEN_TTL", 15*time.Minute),
			MediaSecret:   env.GetString("MEDIA_SECRET", "dev-media-secret-not-for-production"),
			MediaValidity: env.GetDuration("MEDIA_VALIDITY", 5*time.Minute),
		},
		Log: LogConfig{
			Level:  env.GetString("LOG_LEVEL", "info"),
			Format: env.GetString("LOG_FORMAT", "text"),
		},
	}
}
