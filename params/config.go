package params

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Engine struct {
	// FeeRate is charged on every trade's notional, e.g. 0.001 = 10 bps.
	FeeRate decimal.Decimal
	// MaxPosition is the absolute per-trader, per-symbol exposure limit.
	// 0 disables the risk check.
	MaxPosition int64
	// RiskLimitsFile is an optional YAML file with per-symbol limits. It
	// takes precedence over MaxPosition.
	RiskLimitsFile string
}

type API struct {
	Addr           string
	AllowedOrigins []string
	BookInterval   time.Duration // orderbook push interval for WebSocket subscribers
}

type Log struct {
	Level string
	File  string // empty logs to stdout only
}

type Storage struct {
	// ArchiveDir is the pebble directory for trades and order states.
	// Empty keeps everything in memory.
	ArchiveDir string
	// JournalFile appends every engine event as one JSON line.
	JournalFile string
}

type Kafka struct {
	Brokers []string
	Topic   string
	Client  string // "kafka-go" or "sarama"
}

type Feeder struct {
	Enabled bool
	Mode    string // "default" or "high"
	Symbols []string
	Seed    int64
}

type Config struct {
	Engine  Engine
	API     API
	Log     Log
	Storage Storage
	Kafka   Kafka
	Feeder  Feeder
}

func Default() Config {
	return Config{
		Engine: Engine{
			FeeRate:     decimal.New(1, -3),
			MaxPosition: 1000,
		},
		API: API{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:3001"},
			BookInterval:   250 * time.Millisecond,
		},
		Log: Log{
			Level: "info",
		},
		Storage: Storage{
			ArchiveDir: "data/archive",
		},
		Kafka: Kafka{
			Topic:  "crossbook.events",
			Client: "kafka-go",
		},
		Feeder: Feeder{
			Mode:    "default",
			Symbols: []string{"BTC-USDT"},
			Seed:    1,
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) (Config, error) {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	if v := os.Getenv("ENGINE_FEE_RATE"); v != "" {
		rate, err := decimal.NewFromString(v)
		if err != nil {
			return cfg, fmt.Errorf("ENGINE_FEE_RATE: %w", err)
		}
		cfg.Engine.FeeRate = rate
	}
	if v := os.Getenv("ENGINE_MAX_POSITION"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("ENGINE_MAX_POSITION: %w", err)
		}
		cfg.Engine.MaxPosition = n
	}
	cfg.Engine.RiskLimitsFile = getEnv("ENGINE_RISK_LIMITS_FILE", cfg.Engine.RiskLimitsFile)

	cfg.API.Addr = getEnv("API_ADDR", cfg.API.Addr)
	if v := os.Getenv("API_ALLOWED_ORIGINS"); v != "" {
		cfg.API.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("API_BOOK_INTERVAL_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("API_BOOK_INTERVAL_MS: %w", err)
		}
		cfg.API.BookInterval = time.Duration(ms) * time.Millisecond
	}

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.File = getEnv("LOG_FILE", cfg.Log.File)

	if v, ok := os.LookupEnv("ARCHIVE_DIR"); ok {
		cfg.Storage.ArchiveDir = v // may be set empty to disable
	}
	cfg.Storage.JournalFile = getEnv("JOURNAL_FILE", cfg.Storage.JournalFile)

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	cfg.Kafka.Topic = getEnv("KAFKA_TOPIC", cfg.Kafka.Topic)
	cfg.Kafka.Client = getEnv("KAFKA_CLIENT", cfg.Kafka.Client)

	if v := os.Getenv("ENABLE_FEEDER"); v != "" {
		cfg.Feeder.Enabled = v == "true"
	}
	cfg.Feeder.Mode = getEnv("FEEDER_MODE", cfg.Feeder.Mode)
	if v := os.Getenv("FEEDER_SYMBOLS"); v != "" {
		cfg.Feeder.Symbols = splitList(v)
	}
	if v := os.Getenv("FEEDER_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("FEEDER_SEED: %w", err)
		}
		cfg.Feeder.Seed = n
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Engine.FeeRate.IsNegative() || c.Engine.FeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("fee rate %s must be in [0, 1)", c.Engine.FeeRate)
	}
	if c.Engine.MaxPosition < 0 {
		return fmt.Errorf("max position %d must not be negative", c.Engine.MaxPosition)
	}
	switch c.Kafka.Client {
	case "kafka-go", "sarama":
	default:
		return fmt.Errorf("unknown kafka client %q", c.Kafka.Client)
	}
	switch c.Feeder.Mode {
	case "default", "high":
	default:
		return fmt.Errorf("unknown feeder mode %q", c.Feeder.Mode)
	}
	return nil
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
