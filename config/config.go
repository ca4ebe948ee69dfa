package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log         Logger         `mapstructure:"logger"`
	DB          Database       `mapstructure:"database"`
	API         API            `mapstructure:"api"`
	Store       Store          `mapstructure:"store"`
	Scheduler   Scheduler      `mapstructure:"scheduler"`
	Engine      Engine         `mapstructure:"engine"`
	PriceGuard  PriceGuard     `mapstructure:"price_guard"`
	Selector    Selector       `mapstructure:"selector"`
	TestTrade   TestTrade      `mapstructure:"test_trade"`
	Market      Market         `mapstructure:"market"`
	Provider    Provider       `mapstructure:"provider"`
	Breaker     Breaker        `mapstructure:"breaker"`
	PaperBroker PaperBroker    `mapstructure:"paper_broker"`
	Cache       Cache          `mapstructure:"cache"`
	Telegram    TelegramConfig `mapstructure:"telegram"`
}

type Logger struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

type Database struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"name"`
	SSLMode         string `mapstructure:"ssl_mode"`
	TimeZone        string `mapstructure:"time_zone"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
}

type API struct {
	Port               int     `mapstructure:"port"`
	RateLimitPerSecond float64 `mapstructure:"rate_limit_per_second"`
	RateLimitBurst     int     `mapstructure:"rate_limit_burst"`
}

// Store selects the persistence backend. "postgres" uses gorm, "memory" keeps
// everything in process (paper trading and local runs).
type Store struct {
	Driver             string  `mapstructure:"driver"`
	SeedAccountBalance float64 `mapstructure:"seed_account_balance"`
}

type Scheduler struct {
	CycleInterval       time.Duration `mapstructure:"cycle_interval"`
	MaxConcurrency      int           `mapstructure:"max_concurrency"`
	ProviderTimeout     time.Duration `mapstructure:"provider_timeout"`
	MaxExecutionRetries int           `mapstructure:"max_execution_retries"`
	StopTimeout         time.Duration `mapstructure:"stop_timeout"`
	HistoryRetention    time.Duration `mapstructure:"history_retention"`
}

type Engine struct {
	PositionCooldown   time.Duration `mapstructure:"position_cooldown"`
	ContractMultiplier int           `mapstructure:"contract_multiplier"`
	DefaultAccountID   uint          `mapstructure:"default_account_id"`
	DiagnosticsTTL     time.Duration `mapstructure:"diagnostics_ttl"`
}

type PriceGuard struct {
	MaxOptionPremium            float64 `mapstructure:"max_option_premium"`
	UnderlyingMatchTolerancePct float64 `mapstructure:"underlying_match_tolerance_pct"`
}

type Selector struct {
	MinVolume       int64   `mapstructure:"min_volume"`
	MinOpenInterest int64   `mapstructure:"min_open_interest"`
	MaxSpreadPct    float64 `mapstructure:"max_spread_pct"`
}

// TestTrade holds the relaxed thresholds used by the on-demand test trade.
type TestTrade struct {
	MinVolume       int64   `mapstructure:"min_volume"`
	MinOpenInterest int64   `mapstructure:"min_open_interest"`
	MaxSpreadPct    float64 `mapstructure:"max_spread_pct"`
}

type Market struct {
	TimeZone  string   `mapstructure:"time_zone"`
	OpenTime  string   `mapstructure:"open_time"`
	CloseTime string   `mapstructure:"close_time"`
	Holidays  []string `mapstructure:"holidays"`
}

type Provider struct {
	BaseURL             string        `mapstructure:"base_url"`
	APIKey              string        `mapstructure:"api_key"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxRequestPerMinute int           `mapstructure:"max_request_per_minute"`
	RetryCount          int           `mapstructure:"retry_count"`
	RetryWait           time.Duration `mapstructure:"retry_wait"`
	QuoteCacheTTL       time.Duration `mapstructure:"quote_cache_ttl"`

	// Option chains are the heaviest endpoint and get their own budget.
	ChainRequestPerMinute int `mapstructure:"chain_request_per_minute"`
}

type Breaker struct {
	MaxConsecutiveFailures uint32        `mapstructure:"max_consecutive_failures"`
	Interval               time.Duration `mapstructure:"interval"`
	Timeout                time.Duration `mapstructure:"timeout"`
}

type PaperBroker struct {
	RejectWhenMarketClosed bool `mapstructure:"reject_when_market_closed"`
}

type Cache struct {
	DefaultExpiration time.Duration `mapstructure:"default_expiration"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
}

type TelegramConfig struct {
	BotToken        string        `mapstructure:"bot_token"`
	ChatID          int64         `mapstructure:"chat_id"`
	TimeoutDuration time.Duration `mapstructure:"timeout_duration"`
	MaxPerSecond    int           `mapstructure:"max_per_second"`
	WebhookURL      string        `mapstructure:"webhook_url"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.rate_limit_per_second", 5)
	v.SetDefault("api.rate_limit_burst", 10)
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.seed_account_balance", 100000)
	v.SetDefault("scheduler.cycle_interval", 15*time.Minute)
	v.SetDefault("scheduler.max_concurrency", 4)
	v.SetDefault("scheduler.provider_timeout", 10*time.Second)
	v.SetDefault("scheduler.max_execution_retries", 3)
	v.SetDefault("scheduler.stop_timeout", 30*time.Second)
	v.SetDefault("scheduler.history_retention", 30*24*time.Hour)
	v.SetDefault("engine.position_cooldown", 5*time.Minute)
	v.SetDefault("engine.contract_multiplier", 100)
	v.SetDefault("engine.default_account_id", 1)
	v.SetDefault("engine.diagnostics_ttl", time.Hour)
	v.SetDefault("price_guard.max_option_premium", 50)
	v.SetDefault("price_guard.underlying_match_tolerance_pct", 2)
	v.SetDefault("selector.min_volume", 10)
	v.SetDefault("selector.min_open_interest", 100)
	v.SetDefault("selector.max_spread_pct", 10)
	v.SetDefault("test_trade.min_volume", 0)
	v.SetDefault("test_trade.min_open_interest", 0)
	v.SetDefault("test_trade.max_spread_pct", 50)
	v.SetDefault("market.time_zone", "America/New_York")
	v.SetDefault("market.open_time", "09:30")
	v.SetDefault("market.close_time", "16:00")
	v.SetDefault("provider.timeout", 10*time.Second)
	v.SetDefault("provider.max_request_per_minute", 120)
	v.SetDefault("provider.chain_request_per_minute", 30)
	v.SetDefault("provider.quote_cache_ttl", time.Minute)
	v.SetDefault("provider.retry_count", 1)
	v.SetDefault("provider.retry_wait", 200*time.Millisecond)
	v.SetDefault("breaker.max_consecutive_failures", 5)
	v.SetDefault("breaker.interval", time.Minute)
	v.SetDefault("breaker.timeout", 30*time.Second)
	v.SetDefault("paper_broker.reject_when_market_closed", true)
	v.SetDefault("cache.default_expiration", 5*time.Minute)
	v.SetDefault("cache.cleanup_interval", 10*time.Minute)
	v.SetDefault("telegram.timeout_duration", 10*time.Second)
	v.SetDefault("telegram.max_per_second", 20)
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file loaded:", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AddConfigPath(".")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Println("No config file loaded:", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
