package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"trading-buddy/internal/logging"
	"trading-buddy/internal/storage"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig          `mapstructure:"app"`
	Logging   logging.Config     `mapstructure:"logging"`
	Server    ServerConfig       `mapstructure:"server"`
	Database  storage.PoolConfig `mapstructure:"database"`
	Engine    EngineConfig       `mapstructure:"engine"`
	Symbols   []string           `mapstructure:"symbols"`
	Feeds     FeedsConfig        `mapstructure:"feeds"`
	Rules     RulesConfig        `mapstructure:"rules"`
	Sanctions SanctionsConfig    `mapstructure:"sanctions"`
	Portfolio PortfolioConfig    `mapstructure:"portfolio"`
	State     StateConfig        `mapstructure:"state"`
	Outputs   OutputsConfig      `mapstructure:"outputs"`
	Notify    NotifyConfig       `mapstructure:"notify"`
	Export    ExportConfig       `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig covers the HTTP surface.
type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	WebhookToken   string   `mapstructure:"webhook_token"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// EngineConfig selects and tunes the stream processor.
type EngineConfig struct {
	Mode             string  `mapstructure:"mode"` // dataflow, fallback, or auto
	Workers          int     `mapstructure:"workers"`
	JumpThresholdPct float64 `mapstructure:"jump_threshold_pct"`
	AlertHistory     int     `mapstructure:"alert_history"`
	BusBuffer        int     `mapstructure:"bus_buffer"`
	SubscriberQueue  int     `mapstructure:"subscriber_queue"`
}

// FeedsConfig enables and tunes the source adapters.
type FeedsConfig struct {
	Synthetic SyntheticFeedConfig `mapstructure:"synthetic"`
	HTTP      HTTPFeedConfig      `mapstructure:"http"`
	Chain     ChainFeedConfig     `mapstructure:"chain"`
}

// SyntheticFeedConfig governs the deterministic generators.
type SyntheticFeedConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Seed          int64         `mapstructure:"seed"`
	PriceInterval time.Duration `mapstructure:"price_interval"`
	NewsInterval  time.Duration `mapstructure:"news_interval"`
	PayInterval   time.Duration `mapstructure:"pay_interval"`
	NoisePct      float64       `mapstructure:"noise_pct"`
	PriceFloor    float64       `mapstructure:"price_floor"`
	PriceCeiling  float64       `mapstructure:"price_ceiling"`
	SpikeEvery    int           `mapstructure:"spike_every"`
	Customers     []string      `mapstructure:"customers"`
	Recipients    []string      `mapstructure:"recipients"`
}

// HTTPFeedConfig governs the polling quote adapter.
type HTTPFeedConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	BaseURL   string        `mapstructure:"base_url"`
	Interval  time.Duration `mapstructure:"interval"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
	APIKey    string        `mapstructure:"api_key"`
}

// ChainFeedConfig governs the on-chain price feed adapter.
type ChainFeedConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	RPCURL      string        `mapstructure:"rpc_url"`
	FeedAddress string        `mapstructure:"feed_address"`
	Symbol      string        `mapstructure:"symbol"`
	Decimals    int32         `mapstructure:"decimals"`
	Interval    time.Duration `mapstructure:"interval"`
	Timeout     time.Duration `mapstructure:"request_timeout"`
}

// RulesConfig exposes the alert thresholds.
type RulesConfig struct {
	FraudK            float64 `mapstructure:"fraud_k"`
	AbsoluteThreshold float64 `mapstructure:"absolute_threshold"`
	MinSamples        int     `mapstructure:"min_samples"`
	WatchdogK         float64 `mapstructure:"watchdog_k"`
	MinSpendBuckets   int     `mapstructure:"min_spend_buckets"`
	FuzzyDistance     int     `mapstructure:"fuzzy_distance"`
}

// SanctionsConfig governs the sanctions refresh.
type SanctionsConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	FilePath string        `mapstructure:"file_path"`
	Static   []string      `mapstructure:"static"`
}

// PortfolioConfig seeds the starting portfolio.
type PortfolioConfig struct {
	Cash     float64            `mapstructure:"cash"`
	Holdings map[string]float64 `mapstructure:"holdings"`
}

// StateConfig bounds the in-memory collections.
type StateConfig struct {
	HistoryCap     int `mapstructure:"history_cap"`
	NewsCap        int `mapstructure:"news_cap"`
	BaselineWindow int `mapstructure:"baseline_window"`
	SpendBuckets   int `mapstructure:"spend_buckets"`
}

// OutputsConfig sets the append-only JSONL destinations.
type OutputsConfig struct {
	PricePath string `mapstructure:"price_path"`
	NewsPath  string `mapstructure:"news_path"`
	Buffer    int    `mapstructure:"buffer"`
}

// NotifyConfig routes alerts to external channels.
type NotifyConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes Telegram delivery parameters.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TRADINGBUDDY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "trading-buddy")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("server.addr", ":8080")

	v.SetDefault("symbols", []string{"TSLA", "AAPL"})

	v.SetDefault("engine.mode", "auto")
	v.SetDefault("engine.workers", 4)
	v.SetDefault("engine.jump_threshold_pct", 3.0)
	v.SetDefault("engine.alert_history", 200)
	v.SetDefault("engine.bus_buffer", 1024)
	v.SetDefault("engine.subscriber_queue", 256)

	v.SetDefault("feeds.synthetic.enabled", true)
	v.SetDefault("feeds.synthetic.seed", int64(1))
	v.SetDefault("feeds.synthetic.price_interval", "1s")
	v.SetDefault("feeds.synthetic.news_interval", "15s")
	v.SetDefault("feeds.synthetic.pay_interval", "5s")
	v.SetDefault("feeds.synthetic.noise_pct", 0.01)
	v.SetDefault("feeds.synthetic.price_floor", 1.0)
	v.SetDefault("feeds.synthetic.price_ceiling", 10000.0)
	v.SetDefault("feeds.synthetic.spike_every", 12)
	v.SetDefault("feeds.synthetic.customers", []string{"cust_1", "cust_2", "cust_3"})

	v.SetDefault("feeds.http.enabled", false)
	v.SetDefault("feeds.http.interval", "5s")
	v.SetDefault("feeds.http.timeout", "10s")
	v.SetDefault("feeds.http.user_agent", "trading-buddy/1.0")

	v.SetDefault("feeds.chain.enabled", false)
	v.SetDefault("feeds.chain.decimals", 8)
	v.SetDefault("feeds.chain.interval", "15s")
	v.SetDefault("feeds.chain.request_timeout", "10s")

	v.SetDefault("rules.fraud_k", 3.0)
	v.SetDefault("rules.absolute_threshold", 50000.0)
	v.SetDefault("rules.min_samples", 5)
	v.SetDefault("rules.watchdog_k", 3.0)
	v.SetDefault("rules.min_spend_buckets", 3)
	v.SetDefault("rules.fuzzy_distance", 1)

	v.SetDefault("sanctions.interval", "30s")
	v.SetDefault("sanctions.static", []string{"SuspiciousEntity", "John Doe", "Acme Imports", "GlobalTrade Ltd", "Ivan Petrov"})

	v.SetDefault("portfolio.cash", 10000.0)

	v.SetDefault("state.history_cap", 500)
	v.SetDefault("state.news_cap", 50)
	v.SetDefault("state.baseline_window", 50)
	v.SetDefault("state.spend_buckets", 48)

	v.SetDefault("outputs.price_path", "data/market_output.jsonl")
	v.SetDefault("outputs.news_path", "data/news_output.jsonl")
	v.SetDefault("outputs.buffer", 512)

	v.SetDefault("notify.telegram.enabled", false)
	v.SetDefault("notify.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("symbols must not be empty")
	}
	switch c.Engine.Mode {
	case "auto", "dataflow", "fallback":
	default:
		return fmt.Errorf("engine.mode must be auto, dataflow, or fallback")
	}
	if c.Engine.Mode == "dataflow" && c.Engine.Workers <= 0 {
		return fmt.Errorf("engine.workers must be greater than zero in dataflow mode")
	}
	if c.Engine.JumpThresholdPct < 0 {
		return fmt.Errorf("engine.jump_threshold_pct cannot be negative")
	}
	if c.Rules.FraudK <= 0 {
		return fmt.Errorf("rules.fraud_k must be greater than zero")
	}
	if c.Rules.AbsoluteThreshold <= 0 {
		return fmt.Errorf("rules.absolute_threshold must be greater than zero")
	}
	if c.Rules.FuzzyDistance < 0 {
		return fmt.Errorf("rules.fuzzy_distance cannot be negative")
	}
	if c.Sanctions.Interval <= 0 {
		return fmt.Errorf("sanctions.interval must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Feeds.Chain.Enabled {
		if c.Feeds.Chain.RPCURL == "" {
			return fmt.Errorf("feeds.chain.rpc_url is required when the chain feed is enabled")
		}
		if c.Feeds.Chain.FeedAddress == "" {
			return fmt.Errorf("feeds.chain.feed_address is required when the chain feed is enabled")
		}
		if c.Feeds.Chain.Symbol == "" {
			return fmt.Errorf("feeds.chain.symbol is required when the chain feed is enabled")
		}
	}
	if c.Feeds.HTTP.Enabled && c.Feeds.HTTP.BaseURL == "" {
		return fmt.Errorf("feeds.http.base_url is required when the http feed is enabled")
	}
	if c.Notify.Telegram.Enabled {
		if c.Notify.Telegram.BotToken == "" {
			return fmt.Errorf("notify.telegram.bot_token is required when telegram is enabled")
		}
		if c.Notify.Telegram.ChatID == "" {
			return fmt.Errorf("notify.telegram.chat_id is required when telegram is enabled")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
