// Package config loads runtime settings from the environment (and an optional .env file)
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DefaultBackendURL is the analytics backend the original dashboard talked to
const DefaultBackendURL = "http://127.0.0.1:8000"

type Config struct {
	Backend  BackendConfig
	Alerts   AlertsConfig
	Sessions SessionsConfig
	Web      WebConfig
	Telegram TelegramConfig
	OpenAI   OpenAIConfig
	Debug    bool
}

type BackendConfig struct {
	BaseURL string
	// Timeout bounds one round trip; zero means no client timeout
	Timeout time.Duration
}

type AlertsConfig struct {
	PollInterval time.Duration
}

type SessionsConfig struct {
	IdleTimeout  time.Duration
	ReapInterval time.Duration
}

type WebConfig struct {
	ListenAddr string
}

type TelegramConfig struct {
	BotToken string
}

type OpenAIConfig struct {
	APIKey string
}

// Load reads the configuration. A missing .env file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Backend: BackendConfig{
			BaseURL: getEnv("DWLR_API_BASE", DefaultBackendURL),
			Timeout: getEnvAsDuration("DWLR_HTTP_TIMEOUT", 30*time.Second),
		},
		Alerts: AlertsConfig{
			PollInterval: getEnvAsDuration("DWLR_ALERTS_INTERVAL", time.Minute),
		},
		Sessions: SessionsConfig{
			IdleTimeout:  getEnvAsDuration("DWLR_SESSION_IDLE", 30*time.Minute),
			ReapInterval: getEnvAsDuration("DWLR_REAP_INTERVAL", 5*time.Minute),
		},
		Web: WebConfig{
			ListenAddr: getEnv("DWLR_LISTEN_ADDR", ":8080"),
		},
		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		},
		OpenAI: OpenAIConfig{
			APIKey: getEnv("OPENAI_API_KEY", ""),
		},
		Debug: getEnvAsBool("DWLR_DEBUG", false),
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
