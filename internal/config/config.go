package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr          string
	LogLevel          string
	HTTPClientTimeout time.Duration
	Line              LineConfig
	Gemini            GeminiConfig
	Relay             RelayConfig
	Session           SessionConfig
}

type LineConfig struct {
	ChannelSecret      string
	ChannelAccessToken string
	APIBaseURL         string
}

type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type RelayConfig struct {
	MaxRequestsPerDay int
	MaxContextTurns   int
	Workers           int
	QueueSize         int
}

type SessionConfig struct {
	StoreType string
	RedisURL  string
	RedisTTL  time.Duration
	Timezone  string
}

func Load() (Config, error) {
	var cfg Config

	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")

	clientTimeout, err := parseDuration(getEnv("HTTP_CLIENT_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse HTTP_CLIENT_TIMEOUT: %w", err)
	}
	cfg.HTTPClientTimeout = clientTimeout

	cfg.Line = LineConfig{
		ChannelSecret:      getEnv("LINE_CHANNEL_SECRET", ""),
		ChannelAccessToken: getEnv("LINE_CHANNEL_ACCESS_TOKEN", ""),
		APIBaseURL:         getEnv("LINE_API_BASE_URL", "https://api.line.me"),
	}

	geminiTimeout, err := parseDuration(getEnv("GEMINI_TIMEOUT", "30s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse GEMINI_TIMEOUT: %w", err)
	}
	cfg.Gemini = GeminiConfig{
		APIKey:  getEnv("GEMINI_API_KEY", ""),
		BaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		Model:   getEnv("GEMINI_MODEL", "gemini-pro"),
		Timeout: geminiTimeout,
	}

	maxRequests, err := parseInt(getEnv("MAX_REQUESTS_PER_DAY", "20"))
	if err != nil {
		return Config{}, fmt.Errorf("parse MAX_REQUESTS_PER_DAY: %w", err)
	}
	maxTurns, err := parseInt(getEnv("MAX_CONTEXT_TURNS", "6"))
	if err != nil {
		return Config{}, fmt.Errorf("parse MAX_CONTEXT_TURNS: %w", err)
	}
	workers, err := parseInt(getEnv("WORKER_COUNT", "4"))
	if err != nil {
		return Config{}, fmt.Errorf("parse WORKER_COUNT: %w", err)
	}
	queueSize, err := parseInt(getEnv("QUEUE_SIZE", "64"))
	if err != nil {
		return Config{}, fmt.Errorf("parse QUEUE_SIZE: %w", err)
	}
	cfg.Relay = RelayConfig{
		MaxRequestsPerDay: maxRequests,
		MaxContextTurns:   maxTurns,
		Workers:           workers,
		QueueSize:         queueSize,
	}

	redisTTL, err := parseDuration(getEnv("REDIS_SESSION_TTL", "48h"))
	if err != nil {
		return Config{}, fmt.Errorf("parse REDIS_SESSION_TTL: %w", err)
	}
	cfg.Session = SessionConfig{
		StoreType: getEnv("SESSION_STORE", "memory"),
		RedisURL:  getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisTTL:  redisTTL,
		// Фиксированный пояс для суточного сброса: процессная локаль дала
		// бы разные границы дня в разных деплоях.
		Timezone: getEnv("SESSION_TIMEZONE", "Asia/Tokyo"),
	}

	return cfg, nil
}

// Validate проверяет обязательные секреты. Отсутствие любого из них
// фатально на старте.
func (c Config) Validate() error {
	if c.Line.ChannelSecret == "" {
		return fmt.Errorf("LINE_CHANNEL_SECRET is required")
	}
	if c.Line.ChannelAccessToken == "" {
		return fmt.Errorf("LINE_CHANNEL_ACCESS_TOKEN is required")
	}
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	return nil
}

func parseDuration(value string) (time.Duration, error) {
	if value == "" {
		return 0, fmt.Errorf("duration is empty")
	}
	return time.ParseDuration(value)
}

func parseInt(value string) (int, error) {
	if value == "" {
		return 0, fmt.Errorf("number is empty")
	}
	return strconv.Atoi(value)
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return def
}
