package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"dex/internal/common"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds all configuration for the exchange
type Config struct {
	Exchange ExchangeConfig
	Logger   LoggerConfig
	Report   ReportConfig
}

// ExchangeConfig describes the assets the exchange starts with
type ExchangeConfig struct {
	QuoteAsset common.Symbol
	Assets     []common.Symbol // Registered in this order; must include the quote asset
	Decimals   int32           // Scale used to parse and print amounts
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level  string // trace, debug, info, warn, error
	Pretty bool   // Human readable console output instead of JSON
}

// ReportConfig holds trade report configuration
type ReportConfig struct {
	Workers     int
	Buffer      int
	JournalPath string // Optional JSON-lines trade journal
}

// Load loads configuration from .env files (if they exist) and environment
// variables.
func Load(files ...string) (*Config, error) {
	// Missing .env files are fine.
	_ = godotenv.Load(files...)

	cfg := &Config{
		Exchange: ExchangeConfig{
			QuoteAsset: common.Symbol(getEnv("DEX_QUOTE_ASSET", "DAI")),
			Assets:     getEnvSymbols("DEX_ASSETS", []common.Symbol{"DAI", "BAT", "REP", "ZRX"}),
			Decimals:   int32(getEnvInt("DEX_ASSET_DECIMALS", 18)),
		},
		Logger: LoggerConfig{
			Level:  getEnv("DEX_LOG_LEVEL", "info"),
			Pretty: getEnvBool("DEX_LOG_PRETTY", true),
		},
		Report: ReportConfig{
			Workers:     getEnvInt("DEX_REPORT_WORKERS", 1),
			Buffer:      getEnvInt("DEX_REPORT_BUFFER", 128),
			JournalPath: getEnv("DEX_TRADE_JOURNAL", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Exchange.QuoteAsset == "" {
		return fmt.Errorf("DEX_QUOTE_ASSET cannot be empty")
	}
	seen := make(map[common.Symbol]bool, len(c.Exchange.Assets))
	for _, symbol := range c.Exchange.Assets {
		if len(symbol) > common.MaxSymbolLen {
			return fmt.Errorf("DEX_ASSETS: %q is longer than %d bytes", symbol, common.MaxSymbolLen)
		}
		if seen[symbol] {
			return fmt.Errorf("DEX_ASSETS: %q listed twice", symbol)
		}
		seen[symbol] = true
	}
	if !seen[c.Exchange.QuoteAsset] {
		return fmt.Errorf("DEX_ASSETS must include the quote asset %q", c.Exchange.QuoteAsset)
	}
	if c.Exchange.Decimals < 0 || c.Exchange.Decimals > 36 {
		return fmt.Errorf("DEX_ASSET_DECIMALS must be between 0 and 36")
	}

	if _, err := zerolog.ParseLevel(c.Logger.Level); err != nil {
		return fmt.Errorf("DEX_LOG_LEVEL: %w", err)
	}

	if c.Report.Workers < 1 {
		return fmt.Errorf("DEX_REPORT_WORKERS must be > 0")
	}
	if c.Report.Buffer < 0 {
		return fmt.Errorf("DEX_REPORT_BUFFER must be >= 0")
	}
	return nil
}

// LogLevel returns the parsed logger level. Only valid after Validate.
func (c *Config) LogLevel() zerolog.Level {
	level, _ := zerolog.ParseLevel(c.Logger.Level)
	return level
}

// Helper functions to read environment variables with defaults

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvSymbols(key string, defaultValue []common.Symbol) []common.Symbol {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var symbols []common.Symbol
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			symbols = append(symbols, common.Symbol(part))
		}
	}
	return symbols
}
