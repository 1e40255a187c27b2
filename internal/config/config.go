package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LLM provider names.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// LLM
	LLMProvider     string
	LLMModel        string
	OllamaHost      string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	AWSRegion       string

	// Calendar backend; "memory" selects the in-memory calendar
	CalendarBaseURL string
	CalendarToken   string
	CalendarTimeout time.Duration

	// Human-notification webhook (empty disables notification)
	HandoffWebhookURL string

	// Inbound server
	ListenAddr string

	// Clinic policy file (empty uses built-in defaults)
	PolicyFile string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "clinic"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "secretary"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		LLMProvider:     getEnv("SECRETARY_LLM_PROVIDER", ProviderOllama),
		LLMModel:        getEnv("SECRETARY_LLM_MODEL", "llama3.1"),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),

		CalendarBaseURL: getEnv("SECRETARY_CALENDAR_URL", "http://localhost:9090"),
		CalendarToken:   os.Getenv("SECRETARY_CALENDAR_TOKEN"),
		CalendarTimeout: getEnvDuration("SECRETARY_CALENDAR_TIMEOUT", 10*time.Second),

		HandoffWebhookURL: os.Getenv("SECRETARY_HANDOFF_WEBHOOK"),

		ListenAddr: getEnv("SECRETARY_LISTEN_ADDR", ":8585"),

		PolicyFile: os.Getenv("SECRETARY_POLICY_FILE"),

		LogFile:  getEnv("SECRETARY_LOG_FILE", "/tmp/secretary.log"),
		LogLevel: parseLogLevel(getEnv("SECRETARY_LOG_LEVEL", "INFO")),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: invalid duration for %s: %q, using default\n", key, val)
		return defaultVal
	}
	return d
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
