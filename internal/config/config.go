package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"quotechart/internal/logging"
)

// DefaultSince is the first regular-session open the collector captured
// (2023-01-31 14:30:00 UTC).
const DefaultSince int64 = 1675175400

// Plottable columns of the quote series.
const (
	SeriesLastTradePrice  = "last_trade_price"
	SeriesPriceDifference = "price_difference"
	SeriesAgeDifference   = "age_difference"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Query    QueryConfig    `mapstructure:"query"`
	Chart    ChartConfig    `mapstructure:"chart"`
	Display  DisplayConfig  `mapstructure:"display"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name string `mapstructure:"name"`
}

// DatabaseConfig selects the quote store. Path is a SQLite file; DSN, when
// set, points at PostgreSQL instead.
type DatabaseConfig struct {
	Path           string        `mapstructure:"path"`
	DSN            string        `mapstructure:"dsn"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// QueryConfig bounds the snapshot window.
type QueryConfig struct {
	Since  int64  `mapstructure:"since"`
	Symbol string `mapstructure:"symbol"`
}

// ChartConfig shapes the rendered chart.
type ChartConfig struct {
	Title  string   `mapstructure:"title"`
	Width  int      `mapstructure:"width"`
	Height int      `mapstructure:"height"`
	Series []string `mapstructure:"series"`
}

// DisplayConfig controls how the rendered chart is shown.
type DisplayConfig struct {
	Command []string `mapstructure:"command"`
	Hold    bool     `mapstructure:"hold"`
}

// Load builds configuration from .env, file, environment, and defaults.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("QUOTECHART")
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

func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
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
	v.SetDefault("app.name", "quotechart")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("database.path", "../database.db")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.connect_timeout", "10s")

	v.SetDefault("query.since", DefaultSince)
	v.SetDefault("query.symbol", "")

	v.SetDefault("chart.title", "quote_snapshots")
	v.SetDefault("chart.width", 1280)
	v.SetDefault("chart.height", 720)
	v.SetDefault("chart.series", []string{SeriesLastTradePrice})

	v.SetDefault("display.command", []string{})
	v.SetDefault("display.hold", true)
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
	if c.Database.Path == "" && c.Database.DSN == "" {
		return fmt.Errorf("one of database.path or database.dsn must be set")
	}
	if c.Query.Since < 0 {
		return fmt.Errorf("query.since cannot be negative")
	}
	if c.Chart.Width <= 0 || c.Chart.Height <= 0 {
		return fmt.Errorf("chart.width and chart.height must be greater than zero")
	}
	if len(c.Chart.Series) == 0 {
		return fmt.Errorf("chart.series must name at least one series")
	}
	for _, name := range c.Chart.Series {
		switch name {
		case SeriesLastTradePrice, SeriesPriceDifference, SeriesAgeDifference:
		default:
			return fmt.Errorf("chart.series: unknown series %q", name)
		}
	}
	return nil
}
