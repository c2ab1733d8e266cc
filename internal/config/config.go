package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"powerindex/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	NordPool  NordPoolConfig  `mapstructure:"nordpool"`
	Ethereum  EthereumConfig  `mapstructure:"ethereum"`
	Index     IndexConfig     `mapstructure:"index"`
	Publish   PublishConfig   `mapstructure:"publish"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SchedulerConfig governs the publish loop cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// NordPoolConfig captures Data Portal API connectivity and credentials.
type NordPoolConfig struct {
	TokenURL       string        `mapstructure:"token_url"`
	APIURL         string        `mapstructure:"api_url"`
	VolumesAPIURL  string        `mapstructure:"volumes_api_url"`
	Market         string        `mapstructure:"market"`
	Currency       string        `mapstructure:"currency"`
	BasicAuth      string        `mapstructure:"basic_auth"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	Scope          string        `mapstructure:"scope"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// EthereumConfig covers the consumer contract and reporter credentials.
type EthereumConfig struct {
	RPCURL          string        `mapstructure:"rpc_url"`
	ConsumerAddress string        `mapstructure:"consumer_address"`
	ChainID         int64         `mapstructure:"chain_id"`
	PrivateKey      string        `mapstructure:"private_key"`
	GasLimit        uint64        `mapstructure:"gas_limit"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

// IndexConfig defines the index being published.
type IndexConfig struct {
	Name    string   `mapstructure:"name"`
	Areas   []string `mapstructure:"areas"`
	Variant string   `mapstructure:"variant"`
	// EnforceVWAPPeriodCount applies the {92,96,100} count check to the
	// joined price/volume series. Off by default: volumes may legitimately
	// thin out the joined set.
	EnforceVWAPPeriodCount bool `mapstructure:"enforce_vwap_period_count"`
}

// PublishConfig gates when and how results are committed.
type PublishConfig struct {
	PublishHourUTC int  `mapstructure:"publish_hour_utc"`
	ForceRun       bool `mapstructure:"force_run"`
	DryRun         bool `mapstructure:"dry_run"`
}

// AlertingConfig defines run-failure alert routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Channels []string       `mapstructure:"channels"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
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
	v.SetEnvPrefix("POWERINDEX")
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
	v.SetDefault("app.name", "powerindex")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "1h")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x50574958))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("nordpool.token_url", "https://sts.nordpoolgroup.com/connect/token")
	v.SetDefault("nordpool.api_url", "https://data-api.nordpoolgroup.com/api/v2/Auction/Prices/ByAreas")
	v.SetDefault("nordpool.volumes_api_url", "https://data-api.nordpoolgroup.com/api/v2/Auction/Prices/ByAreas/AggregateVolumes")
	v.SetDefault("nordpool.market", "DayAhead")
	v.SetDefault("nordpool.currency", "EUR")
	v.SetDefault("nordpool.request_timeout", "15s")
	v.SetDefault("nordpool.user_agent", "powerindex/1.0")

	v.SetDefault("ethereum.gas_limit", uint64(500_000))
	v.SetDefault("ethereum.request_timeout", "15s")

	v.SetDefault("index.name", "NORDPOOL_DAYAHEAD_AVG")
	v.SetDefault("index.areas", []string{"SE1", "SE2", "SE3", "SE4"})
	v.SetDefault("index.variant", "mean")
	v.SetDefault("index.enforce_vwap_period_count", false)

	v.SetDefault("publish.publish_hour_utc", 12)
	v.SetDefault("publish.force_run", false)
	v.SetDefault("publish.dry_run", false)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
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
	if c.Index.Name == "" {
		return fmt.Errorf("index.name must be configured")
	}
	if len(c.Index.Areas) == 0 {
		return fmt.Errorf("index.areas must list at least one delivery area")
	}
	if c.Index.Variant != "mean" && c.Index.Variant != "vwap" {
		return fmt.Errorf("index.variant must be mean or vwap, got %q", c.Index.Variant)
	}
	if c.Publish.PublishHourUTC < 0 || c.Publish.PublishHourUTC > 23 {
		return fmt.Errorf("publish.publish_hour_utc must be within 0-23")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
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
