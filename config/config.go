package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"market-sentinel/internal/model"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	LogLevel string
	HTTPAddr string

	// Refresh pipeline
	RefreshInterval time.Duration
	Timeframes      string // comma-separated, e.g. "15m,4h,1d"
	KlineLimit      int
	StockRequestGap time.Duration
	SignalRetention int
	UniverseFile    string

	// Persistence
	StoreBackend  string
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Vendor credentials. Binance klines are public, so its keys are optional.
	BinanceAPIKey    string
	BinanceSecretKey string
	AlpacaAPIKey     string
	AlpacaSecretKey  string

	// Notifications
	TelegramBotToken string
	TelegramChatID   int64
	WebhookURL       string

	// AdminTOTPSecret enables the second factor on mutating API routes.
	AdminTOTPSecret string
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is applied first when present; real
// environment variables take precedence over it.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[config] .env not loaded: %v", err)
	}

	return &Config{
		LogLevel: getEnv("LOG_LEVEL", "info"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		RefreshInterval: getEnvDuration("REFRESH_INTERVAL", 60*time.Second),
		Timeframes:      getEnv("TIMEFRAMES", "15m,2h,4h,1d,1w"),
		KlineLimit:      getEnvInt("KLINE_LIMIT", 200),
		StockRequestGap: getEnvDuration("STOCK_REQUEST_GAP", 200*time.Millisecond),
		SignalRetention: getEnvInt("SIGNAL_RETENTION", 50),
		UniverseFile:    getEnv("UNIVERSE_FILE", ""),

		StoreBackend:  strings.ToLower(getEnv("STORE_BACKEND", BackendSQLite)),
		SQLitePath:    getEnv("SQLITE_PATH", "data/sentinel.db"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		BinanceAPIKey:    getEnv("BINANCE_API_KEY", ""),
		BinanceSecretKey: getEnv("BINANCE_SECRET_KEY", ""),
		AlpacaAPIKey:     getEnv("ALPACA_API_KEY", ""),
		AlpacaSecretKey:  getEnv("ALPACA_SECRET_KEY", ""),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   int64(getEnvInt("TELEGRAM_CHAT_ID", 0)),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),

		AdminTOTPSecret: getEnv("ADMIN_TOTP_SECRET", ""),
	}
}

// ParseTimeframes returns the configured timeframes, falling back to all
// supported ones when none parse.
func (c *Config) ParseTimeframes() []model.Timeframe {
	tfs := model.ParseTimeframes(c.Timeframes)
	if len(tfs) == 0 {
		log.Printf("[config] no valid timeframes in %q, using all", c.Timeframes)
		return append([]model.Timeframe(nil), model.AllTimeframes...)
	}
	return tfs
}

// StocksEnabled reports whether Alpaca credentials are configured.
func (c *Config) StocksEnabled() bool {
	return c.AlpacaAPIKey != "" && c.AlpacaSecretKey != ""
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		log.Printf("[config] invalid integer %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil || d <= 0 {
		log.Printf("[config] invalid duration %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
