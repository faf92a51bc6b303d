package config

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	CoinGecko CoinGeckoConfig `mapstructure:"coingecko"`
	Coinbase  CoinbaseConfig  `mapstructure:"coinbase"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Refresh   RefreshConfig   `mapstructure:"refresh"`
	Market    MarketConfig    `mapstructure:"market"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Log       LogConfig       `mapstructure:"log"`
}

type CoinGeckoConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	RetryBase    time.Duration `mapstructure:"retry_base"`
	StaggerDelay time.Duration `mapstructure:"stagger_delay"`
}

type CoinbaseConfig struct {
	URL            string        `mapstructure:"url"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
}

type CacheConfig struct {
	MarketTTL time.Duration `mapstructure:"market_ttl"`
	PriceTTL  time.Duration `mapstructure:"price_ttl"`
	Version   string        `mapstructure:"version"`
}

type RefreshConfig struct {
	Prices  time.Duration `mapstructure:"prices"`
	Markets time.Duration `mapstructure:"markets"`
}

type MarketConfig struct {
	PageSize   int `mapstructure:"page_size"`
	TotalItems int `mapstructure:"total_items"`
	ChartDays  int `mapstructure:"chart_days"`
}

// LogConfig defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
}

// Load loads application configuration using Viper.
// It reads from config.yaml and overrides with environment variables.
func Load() *Config {
	v := viper.New()

	v.SetConfigName("config") // config.yaml
	v.SetConfigType("yaml")

	ex, _ := os.Executable()
	if strings.Contains(ex, "go-build") {
		pwd, _ := os.Getwd()
		v.AddConfigPath(filepath.Join(pwd, "../../config"))
	} else {
		v.AddConfigPath(filepath.Join(filepath.Dir(ex), "../config"))
	}

	// Support environment variables with dot notation (e.g., COINBASE_URL)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("failed to read config: %v", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		log.Fatalf("failed to unmarshal config: %v", err)
	}

	return &cfg
}

// setDefaults pins the documented cache/refresh windows and rate-limit
// pacing so a minimal config.yaml still yields a working app.
func setDefaults(v *viper.Viper) {
	v.SetDefault("coingecko.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("coingecko.timeout", 10*time.Second)
	v.SetDefault("coingecko.max_attempts", 3)
	v.SetDefault("coingecko.retry_base", 2*time.Second)
	v.SetDefault("coingecko.stagger_delay", 3*time.Second)

	v.SetDefault("coinbase.url", "wss://ws-feed.exchange.coinbase.com")
	v.SetDefault("coinbase.reconnect_delay", 5*time.Second)

	v.SetDefault("cache.market_ttl", 5*time.Minute)
	v.SetDefault("cache.price_ttl", time.Minute)
	v.SetDefault("cache.version", "1.0")

	v.SetDefault("refresh.prices", time.Minute)
	v.SetDefault("refresh.markets", 5*time.Minute)

	v.SetDefault("market.page_size", 32)
	v.SetDefault("market.total_items", 96)
	v.SetDefault("market.chart_days", 7)

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.path", "cryptofolio.db")
}
