package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Source   SourceConfig   `mapstructure:"source"`
	Store    StoreConfig    `mapstructure:"store"`
	App      AppConfig      `mapstructure:"app"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
}

// SourceConfig selects and configures the transaction source variant.
type SourceConfig struct {
	Variant         string `mapstructure:"variant"`           // "chaindb" or "explorer"
	ChainDBURL      string `mapstructure:"chain_db_url"`      // Postgres explorer database DSN
	ExplorerBaseURL string `mapstructure:"explorer_base_url"` // HTTP explorer API base URL
	RequestTimeout  int    `mapstructure:"request_timeout"`   // seconds
	MaxRetries      int    `mapstructure:"max_retries"`
}

type StoreConfig struct {
	DatabaseURL string `mapstructure:"database_url"`
	MaxRetries  int    `mapstructure:"max_retries"`
}

type AppConfig struct {
	PollInterval    int     `mapstructure:"poll_interval"`     // seconds between crawl cycles
	MonitorDelay    float64 `mapstructure:"monitor_delay"`     // seconds between monitors within a cycle
	StatusPort      int     `mapstructure:"status_port"`       // 0 disables the status endpoint
	MaxResponseSize int64   `mapstructure:"max_response_size"` // bytes
}

// LoadConfig merges defaults, config.yaml, .env and environment variables.
func LoadConfig() (*Config, error) {
	// Loads .env into the process environment; missing file is fine.
	godotenv.Load(".env")

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.ReadInConfig() // no error if the file is absent

	v.SetConfigType("env")
	v.SetConfigFile(".env")
	v.ReadInConfig()

	v.AutomaticEnv()

	setupEnvAliases(v)

	setupFlags(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setupEnvAliases(v *viper.Viper) {
	// TELEGRAM_BOT_TOKEN -> telegram.bot_token etc.
	v.BindEnv("telegram.bot_token", "TELEGRAM_BOT_TOKEN")

	v.BindEnv("source.variant", "SOURCE_VARIANT")
	v.BindEnv("source.chain_db_url", "CHAIN_DB_URL")
	v.BindEnv("source.explorer_base_url", "EXPLORER_BASE_URL")
	v.BindEnv("source.request_timeout", "SOURCE_REQUEST_TIMEOUT")
	v.BindEnv("source.max_retries", "SOURCE_MAX_RETRIES")

	v.BindEnv("store.database_url", "STORE_DATABASE_URL")
	v.BindEnv("store.max_retries", "STORE_MAX_RETRIES")

	v.BindEnv("app.poll_interval", "APP_POLL_INTERVAL")
	v.BindEnv("app.monitor_delay", "APP_MONITOR_DELAY")
	v.BindEnv("app.status_port", "APP_STATUS_PORT")
	v.BindEnv("app.max_response_size", "APP_MAX_RESPONSE_SIZE")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.bot_token", "")

	v.SetDefault("source.variant", "chaindb")
	v.SetDefault("source.chain_db_url", "")
	v.SetDefault("source.explorer_base_url", "")
	v.SetDefault("source.request_timeout", 30)
	v.SetDefault("source.max_retries", 3)

	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_retries", 3)

	v.SetDefault("app.poll_interval", 30)  // seconds, matches the original crawler cadence
	v.SetDefault("app.monitor_delay", 0.1) // 100ms pacing between monitors
	v.SetDefault("app.status_port", 0)
	v.SetDefault("app.max_response_size", 10*1024*1024) // 10MB
}

func setupFlags(v *viper.Viper) {
	if pflag.Lookup("source.variant") == nil {
		pflag.String("telegram.bot_token", "", "Telegram bot token (env: TELEGRAM_BOT_TOKEN)")

		pflag.String("source.variant", "chaindb", "Transaction source: chaindb or explorer (env: SOURCE_VARIANT)")
		pflag.String("source.chain_db_url", "", "Explorer Postgres DSN for the chaindb variant (env: CHAIN_DB_URL)")
		pflag.String("source.explorer_base_url", "", "Explorer API base URL for the explorer variant (env: EXPLORER_BASE_URL)")
		pflag.Int("source.request_timeout", 30, "Source request timeout in seconds (env: SOURCE_REQUEST_TIMEOUT)")
		pflag.Int("source.max_retries", 3, "Max retries for source requests (env: SOURCE_MAX_RETRIES)")

		pflag.String("store.database_url", "", "Monitor store Postgres DSN (env: STORE_DATABASE_URL)")
		pflag.Int("store.max_retries", 3, "Max retries for store operations (env: STORE_MAX_RETRIES)")

		pflag.Int("app.poll_interval", 30, "Seconds between crawl cycles (env: APP_POLL_INTERVAL)")
		pflag.Float64("app.monitor_delay", 0.1, "Seconds between monitors within a cycle (env: APP_MONITOR_DELAY)")
		pflag.Int("app.status_port", 0, "Port for the status HTTP endpoint, 0 disables it (env: APP_STATUS_PORT)")
		pflag.Int64("app.max_response_size", 10*1024*1024, "Max explorer response size in bytes (env: APP_MAX_RESPONSE_SIZE)")
	}

	pflag.Parse()
	v.BindPFlags(pflag.CommandLine)
}

func validateConfig(c *Config) error {
	switch c.Source.Variant {
	case "chaindb":
		if c.Source.ChainDBURL == "" {
			return fmt.Errorf("source.chain_db_url is required for the chaindb variant")
		}
	case "explorer":
		if c.Source.ExplorerBaseURL == "" {
			return fmt.Errorf("source.explorer_base_url is required for the explorer variant")
		}
	default:
		return fmt.Errorf("unknown source variant %q (want chaindb or explorer)", c.Source.Variant)
	}

	if c.Store.DatabaseURL == "" {
		return fmt.Errorf("store.database_url is required")
	}

	if c.App.PollInterval <= 0 {
		return fmt.Errorf("app.poll_interval must be positive, got %d", c.App.PollInterval)
	}

	return nil
}
